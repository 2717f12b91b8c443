package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"termchat/model"
)

// RunRecord is the audit entry of one orchestrated agent run.
type RunRecord struct {
	ID           string
	Conversation string
	Platform     string
	Model        string
	Input        string
	Output       string
	Status       string
	StartedAt    time.Time
	FinishedAt   time.Time
	ToolCalls    []model.ToolCall
}

// RunLog persists agent runs and their tool-call records in SQLite.
type RunLog struct {
	db *sql.DB
}

// NewRunLog opens (or creates) runs.db inside dataDir.
func NewRunLog(dataDir string) (*RunLog, error) {
	return OpenRunLog(filepath.Join(dataDir, "runs.db"))
}

// OpenRunLog opens the run log database at dbPath.
func OpenRunLog(dbPath string) (*RunLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	rl := &RunLog{db: db}
	if err := rl.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return rl, nil
}

func (rl *RunLog) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		conversation TEXT NOT NULL DEFAULT '',
		platform TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		input TEXT NOT NULL,
		output TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS tool_calls (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		arguments TEXT NOT NULL,
		result TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	_, err := rl.db.Exec(schema)
	return err
}

// Record stores a run and its tool calls in a single transaction.
func (rl *RunLog) Record(ctx context.Context, rec RunRecord) error {
	tx, err := rl.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO runs (id, conversation, platform, model, input, output, status, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Conversation,
		rec.Platform,
		rec.Model,
		rec.Input,
		rec.Output,
		rec.Status,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tool_calls WHERE run_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear tool calls: %w", err)
	}

	for i, call := range rec.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			return fmt.Errorf("failed to marshal arguments for %s: %w", call.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO tool_calls (run_id, position, name, arguments, result, failed)
		VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, i, call.Name, string(args), call.Result, call.Failed)
		if err != nil {
			return fmt.Errorf("failed to insert tool call: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their tool calls.
func (rl *RunLog) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := rl.db.QueryContext(ctx, `
	SELECT id, conversation, platform, model, input, output, status, started_at, finished_at
	FROM runs
	ORDER BY started_at DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(
			&rec.ID,
			&rec.Conversation,
			&rec.Platform,
			&rec.Model,
			&rec.Input,
			&rec.Output,
			&rec.Status,
			&started,
			&finished,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for i := range runs {
		calls, err := rl.toolCalls(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].ToolCalls = calls
	}

	return runs, nil
}

func (rl *RunLog) toolCalls(ctx context.Context, runID string) ([]model.ToolCall, error) {
	rows, err := rl.db.QueryContext(ctx, `
	SELECT name, arguments, result, failed
	FROM tool_calls
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var calls []model.ToolCall
	for rows.Next() {
		var call model.ToolCall
		var args string
		if err := rows.Scan(&call.Name, &args, &call.Result, &call.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		if err := json.Unmarshal([]byte(args), &call.Arguments); err != nil {
			call.Arguments = map[string]any{}
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// Close closes the database.
func (rl *RunLog) Close() error {
	return rl.db.Close()
}
