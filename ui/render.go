package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"termchat/model"
	"termchat/storage"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// RenderOptions controls DisplayMessages.
type RenderOptions struct {
	// Markdown renders message content as terminal markdown.
	Markdown bool
	Width    int
}

// DisplayMessages prints msgs framed by separators, one role-labelled block
// per message. Tool-call records attached to a message are listed below it.
func DisplayMessages(w io.Writer, msgs []model.Message, opts RenderOptions) {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}

	fmt.Fprintln(w, HeavySeparator())
	for i, msg := range msgs {
		if opts.Markdown {
			fmt.Fprintln(w, RoleLabel(msg.Role))
			fmt.Fprint(w, string(markdown.Render(msg.Content, width, 2)))
		} else {
			fmt.Fprintf(w, "%s %s\n", RoleLabel(msg.Role), msg.Content)
		}
		for _, call := range msg.ToolCalls {
			fmt.Fprintln(w, DimStyle.Render("  "+FormatToolCall(call, width-2)))
		}
		if i < len(msgs)-1 {
			fmt.Fprintln(w, LightSeparator())
		}
	}
	fmt.Fprintln(w, HeavySeparator())
}

// FormatToolCall renders a record as name(k=v, ...) -> result on one line.
func FormatToolCall(call model.ToolCall, width int) string {
	keys := make([]string, 0, len(call.Arguments))
	for k := range call.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("%s=%v", k, call.Arguments[k]))
	}

	marker := "->"
	if call.Failed {
		marker = "-x"
	}
	result := strings.Join(strings.Fields(call.Result), " ")
	line := fmt.Sprintf("[tool] %s(%s) %s %s", call.Name, strings.Join(args, ", "), marker, result)
	return Truncate(line, width)
}

// Truncate shortens s to at most width terminal columns.
func Truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// FormatSummary renders one `list` line: name, active marker, creation
// time and message count.
func FormatSummary(s storage.Summary, width int) string {
	name := s.Name
	if s.Active {
		name += SelectedStyle.Render(" *")
	}
	noun := "messages"
	if s.MessageCount == 1 {
		noun = "message"
	}
	detail := DimStyle.Render(fmt.Sprintf("(%s) - %d %s", s.CreatedAt, s.MessageCount, noun))
	return Truncate(name, width) + " " + detail
}

// FormatMatch renders a search hit as conversation#index role: preview.
func FormatMatch(m storage.MessageMatch, width int) string {
	head := fmt.Sprintf("%s#%d %s", HighlightStyle.Render(m.Conversation), m.MessageIndex+1, RoleLabel(m.Role))
	return head + " " + Truncate(m.Preview, width-runewidth.StringWidth(m.Conversation)-16)
}

// Suggest returns up to limit names from candidates that fuzzily match
// name, best match first.
func Suggest(name string, candidates []string, limit int) []string {
	if name == "" || len(candidates) == 0 {
		return nil
	}
	matches := fuzzy.Find(name, candidates)
	out := make([]string, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// NotFound formats a missing-conversation message with "did you mean"
// suggestions drawn from candidates.
func NotFound(name string, candidates []string) string {
	msg := fmt.Sprintf("No conversation named '%s'", name)
	if s := Suggest(name, candidates, 3); len(s) > 0 {
		msg += ". Did you mean: " + strings.Join(s, ", ") + "?"
	}
	return msg
}
