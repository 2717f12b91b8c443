package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atotto/clipboard"

	"termchat/model"
)

// ErrQuit is returned when the user answers a prompt with exit or quit.
var ErrQuit = errors.New("quit requested")

// Prompter reads line-oriented answers from a terminal.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter reading from in and writing prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// ReadLine prints prompt and returns the trimmed answer. io.EOF is returned
// when input ends with nothing typed.
func (p *Prompter) ReadLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a Y/n question. An empty answer means yes; exit or quit
// returns ErrQuit.
func (p *Prompter) Confirm(prompt string) (bool, error) {
	answer, err := p.ReadLine(prompt + " (Y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "", "y", "yes":
		return true, nil
	case "exit", "quit":
		return false, ErrQuit
	default:
		return false, nil
	}
}

// IsQuit reports whether text is an exit command.
func IsQuit(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "exit", "quit":
		return true
	}
	return false
}

// clipboardWrite is replaced in tests.
var clipboardWrite = clipboard.WriteAll

// CopyMessages puts the conversation on the system clipboard as
// "Role: content" blocks.
func CopyMessages(msgs []model.Message) error {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		role := m.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		fmt.Fprintf(&b, "%s: %s", role, m.Content)
	}
	if err := clipboardWrite(b.String()); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}
