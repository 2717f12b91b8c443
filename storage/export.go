package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ExportedConversation is the standalone file layout written by Export.
type ExportedConversation struct {
	Name string `json:"name"`
	Conversation
}

// SanitizeFilename replaces characters that are invalid in filenames.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\n', '\r', '\t':
			return '-'
		}
		return r
	}, name)

	name = strings.Trim(name, "-.")
	if len(name) > 50 {
		name = name[:50]
	}
	if name == "" {
		name = "conversation"
	}
	return name
}

// DefaultExportPath returns <dir>/termchat-<name>-<timestamp>.json.
func DefaultExportPath(dir, name string, now time.Time) string {
	filename := fmt.Sprintf("termchat-%s-%s.json", SanitizeFilename(name), now.Format("20060102-150405"))
	return filepath.Join(dir, filename)
}

// Export writes the named conversation to exportPath as indented JSON.
func (s *Store) Export(name, exportPath string) error {
	conv, err := s.Get(name)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(ExportedConversation{Name: name, Conversation: *conv}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Exports carry the same private history as the store itself
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
