package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#DC2626")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#CA8A04"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#16A34A"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Italic(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#2563EB")).Width(16)
)

// FormatError returns a styled multi-line error message.
func FormatError(title, detail, suggestion string) string {
	out := errorStyle.Render("Error: "+title) + "\n"
	if detail != "" {
		out += "  " + detail + "\n"
	}
	if suggestion != "" {
		out += "  " + hintStyle.Render("Hint: "+suggestion) + "\n"
	}
	return out
}

// Success prints a green success message.
func Success(msg string) {
	fmt.Println(successStyle.Render(msg))
}

// Warn prints a yellow warning message.
func Warn(msg string) {
	fmt.Println(warnStyle.Render("Warning: " + msg))
}

func Bold(s string) string {
	return boldStyle.Render(s)
}

func Hint(s string) string {
	return hintStyle.Render(s)
}

func Dim(s string) string {
	return dimStyle.Render(s)
}

// Severity renders a check result label in the colour of its level.
func Severity(label string) string {
	switch label {
	case "OK":
		return successStyle.Render(label)
	case "WARNING":
		return warnStyle.Render(label)
	default:
		return errorStyle.Render(label)
	}
}

// Field is one line of a key/value block.
type Field struct {
	Key   string
	Value string
}

// WriteFields renders an aligned key/value block under a bold title.
func WriteFields(w io.Writer, title string, fields []Field) {
	var b strings.Builder
	b.WriteString(boldStyle.Render(title))
	b.WriteString("\n")
	for _, f := range fields {
		value := f.Value
		if value == "" {
			value = Dim("-")
		}
		b.WriteString("  " + keyStyle.Render(f.Key) + value + "\n")
	}
	_, _ = io.WriteString(w, b.String())
}
