package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"termchat/model"
)

// PlanState is the lifecycle position of a copy plan.
type PlanState string

const (
	PlanProposed PlanState = "proposed"
	PlanApproved PlanState = "approved"
	PlanExecuted PlanState = "executed"
	PlanRejected PlanState = "rejected"
)

// CopyPlan is a pending or finished copy operation.
type CopyPlan struct {
	ID          string
	Source      string
	Destination string
	Command     string
	Directory   bool
	State       PlanState
}

// Planner holds copy plans for the process lifetime. A plan is proposed by
// one tool call and carried out or rejected by a later one.
type Planner struct {
	mu    sync.Mutex
	plans map[string]*CopyPlan
}

// NewPlanner creates an empty plan table.
func NewPlanner() *Planner {
	return &Planner{plans: make(map[string]*CopyPlan)}
}

// Propose records a copy plan and returns its summary. An empty id defaults
// to plan_<n> where n is one more than the number of known plans. Proposing
// an existing id replaces that plan.
func (p *Planner) Propose(source, destination, id string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: source path does not exist: %s", model.ErrNotFound, source)
		}
		return "", fmt.Errorf("failed to inspect source: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if id == "" {
		id = fmt.Sprintf("plan_%d", len(p.plans)+1)
	}

	plan := &CopyPlan{
		ID:          id,
		Source:      source,
		Destination: destination,
		Directory:   info.IsDir(),
		State:       PlanProposed,
	}
	if plan.Directory {
		plan.Command = fmt.Sprintf("cp -R '%s' '%s'", source, destination)
	} else {
		plan.Command = fmt.Sprintf("cp '%s' '%s'", source, destination)
	}
	p.plans[id] = plan

	return fmt.Sprintf("Plan ID: %s\nCopy from: %s\nCopy to: %s\nCommand: %s",
		plan.ID, plan.Source, plan.Destination, plan.Command), nil
}

// Execute carries out or rejects a plan. A plan whose copy failed is still
// approved and may be executed or rejected again.
func (p *Planner) Execute(id string, approve bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	plan, ok := p.plans[id]
	if !ok {
		return "", fmt.Errorf("%w: no plan found with ID: %s", model.ErrNotFound, id)
	}
	if plan.State != PlanProposed && plan.State != PlanApproved {
		return "", fmt.Errorf("%w: plan %s is already %s", model.ErrConflict, id, plan.State)
	}

	if !approve {
		plan.State = PlanRejected
		return fmt.Sprintf("Plan %s rejected by user. No action taken.", id), nil
	}

	plan.State = PlanApproved
	var err error
	if plan.Directory {
		err = copyDir(plan.Source, plan.Destination)
	} else {
		err = copyFile(plan.Source, plan.Destination)
	}
	if err != nil {
		return "", fmt.Errorf("error executing plan %s: %w", id, err)
	}
	plan.State = PlanExecuted
	return fmt.Sprintf("Plan %s executed successfully. %s copied to %s", id, plan.Source, plan.Destination), nil
}

// Get returns a copy of the plan with id.
func (p *Planner) Get(id string) (CopyPlan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[id]
	if !ok {
		return CopyPlan{}, false
	}
	return *plan, true
}

// PlanCapability exposes Propose as a tool.
func (p *Planner) PlanCapability() *CopyPlanTool { return &CopyPlanTool{planner: p} }

// ExecuteCapability exposes Execute as a tool.
func (p *Planner) ExecuteCapability() *CopyExecuteTool { return &CopyExecuteTool{planner: p} }

// CopyPlanTool is the copy_files_plan capability.
type CopyPlanTool struct{ planner *Planner }

func (t *CopyPlanTool) Schema() mcptypes.ToolInputSchema {
	return mcptypes.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"source":      property("string", "File or directory to copy"),
			"destination": property("string", "Target path"),
			"plan_id":     property("string", "Optional plan identifier"),
		},
		Required: []string{"source", "destination"},
	}
}

func (t *CopyPlanTool) Call(_ context.Context, args map[string]any) (string, error) {
	source, err := stringArg(args, "source")
	if err != nil {
		return "", err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return "", err
	}
	return t.planner.Propose(source, destination, optionalStringArg(args, "plan_id"))
}

// CopyExecuteTool is the copy_files_execute capability.
type CopyExecuteTool struct{ planner *Planner }

func (t *CopyExecuteTool) Schema() mcptypes.ToolInputSchema {
	return mcptypes.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"plan_id": property("string", "Identifier returned by copy_files_plan"),
			"approve": property("boolean", "Whether the user approved the plan (default true)"),
		},
		Required: []string{"plan_id"},
	}
}

func (t *CopyExecuteTool) Call(_ context.Context, args map[string]any) (string, error) {
	id, err := stringArg(args, "plan_id")
	if err != nil {
		return "", err
	}
	approve, err := boolArg(args, "approve", true)
	if err != nil {
		return "", err
	}
	return t.planner.Execute(id, approve)
}

// copyFile copies src to dst. A dst naming an existing directory receives
// the file under its base name.
func copyFile(src, dst string) error {
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		dst = filepath.Join(dst, filepath.Base(src))
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyDir copies the tree rooted at src to dst, which must not exist yet.
func copyDir(src, dst string) error {
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target)
	})
}
