// Package ui renders conversations and prompts in the terminal.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"termchat/model"
)

var (
	dimColor       = lipgloss.Color("7")
	accentColor    = lipgloss.Color("12")
	successColor   = lipgloss.Color("10")
	warningColor   = lipgloss.Color("11")
	dangerColor    = lipgloss.Color("9")
	highlightColor = lipgloss.Color("13")

	// User message style
	UserStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	// Assistant message style
	AssistantStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	// System and tool message style
	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	// Separator lines between messages
	BorderStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	TitleStyle = lipgloss.NewStyle().
			Bold(true)

	// Active conversation marker in listings
	SelectedStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(dangerColor).
			Bold(true)

	HighlightStyle = lipgloss.NewStyle().
			Foreground(highlightColor).
			Bold(true)
)

const separatorWidth = 50

// HeavySeparator frames a message listing.
func HeavySeparator() string {
	return BorderStyle.Render(strings.Repeat("=", separatorWidth))
}

// LightSeparator divides messages and chat turns.
func LightSeparator() string {
	return BorderStyle.Render(strings.Repeat("-", separatorWidth))
}

// RoleLabel returns the capitalized, styled role name.
func RoleLabel(role string) string {
	label := role
	if label != "" {
		label = strings.ToUpper(label[:1]) + label[1:]
	}
	return roleStyle(role).Render(label + ":")
}

func roleStyle(role string) lipgloss.Style {
	switch role {
	case model.RoleUser:
		return UserStyle
	case model.RoleAssistant:
		return AssistantStyle
	default:
		return DimStyle
	}
}
