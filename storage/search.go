package storage

import (
	"strings"

	"termchat/model"
)

const previewLength = 100

// MessageMatch is a search hit inside a conversation.
type MessageMatch struct {
	Conversation string
	MessageIndex int
	Role         string
	Content      string
	Preview      string
}

// Search returns every non-system message containing query (case-insensitive),
// grouped by conversation in listing order.
func (s *Store) Search(query string) []MessageMatch {
	if strings.TrimSpace(query) == "" {
		return []MessageMatch{}
	}

	queryLower := strings.ToLower(query)
	var matches []MessageMatch

	for _, name := range s.Names() {
		for i, msg := range s.doc.Conversations[name].Messages {
			if msg.Role == model.RoleSystem {
				continue
			}
			if !strings.Contains(strings.ToLower(msg.Content), queryLower) {
				continue
			}
			matches = append(matches, MessageMatch{
				Conversation: name,
				MessageIndex: i,
				Role:         msg.Role,
				Content:      msg.Content,
				Preview:      preview(msg.Content, queryLower),
			})
		}
	}

	return matches
}

// preview returns a window of the content around the first match.
func preview(content, queryLower string) string {
	text := strings.Join(strings.Fields(content), " ")
	runes := []rune(text)
	if len(runes) <= previewLength {
		return text
	}

	lower := strings.ToLower(text)
	idx := strings.Index(lower, queryLower)
	start := 0
	if idx > 0 {
		if at := len([]rune(lower[:idx])); at > previewLength/2 {
			start = at - previewLength/4
		}
	}
	end := start + previewLength
	if end > len(runes) {
		end = len(runes)
		start = max(0, end-previewLength)
	}

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
