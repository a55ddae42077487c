package errors

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	red  = color.New(color.FgRed, color.Bold)
	bold = color.New(color.FgWhite, color.Bold)
	cyan = color.New(color.FgCyan)
	gray = color.New(color.FgHiBlack)
)

// DisableColors disables colour output for every formatter in the process.
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables colour output even when stdout is not a terminal.
func EnableColors() {
	color.NoColor = false
}

// Format returns the error formatted for terminal display.
func (e *StateError) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(red.Sprint("ERROR "))
		b.WriteString(bold.Sprint(e.Code + ": "))
	} else {
		b.WriteString(red.Sprint("ERROR: "))
	}
	b.WriteString(e.Message)
	b.WriteString("\n\n")

	if len(e.Path) > 0 {
		b.WriteString("  ")
		b.WriteString(gray.Sprint("at "))
		b.WriteString(cyan.Sprint(e.PathString()))
		b.WriteString("\n\n")
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(gray.Sprint("cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan.Sprint("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n")
	}

	return b.String()
}

// FormatCompact returns a single-line rendering: "path: CODE: message".
func (e *StateError) FormatCompact() string {
	var b strings.Builder
	if len(e.Path) > 0 {
		b.WriteString(e.PathString())
		b.WriteString(": ")
	}
	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

type jsonError struct {
	Code       string   `json:"code,omitempty"`
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	Detail     string   `json:"detail,omitempty"`
	Path       []string `json:"path,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Cause      string   `json:"cause,omitempty"`
}

// FormatJSON returns the error as a JSON object.
func (e *StateError) FormatJSON() string {
	out := jsonError{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Path:       e.Path,
		Suggestion: e.Suggestion,
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(data)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

// Fprint writes err to w, formatted when it classifies as a StateError.
func Fprint(w io.Writer, err error) {
	if err == nil {
		return
	}
	fmt.Fprint(w, FromError(err, CategoryCLI).Format())
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	Fprint(os.Stderr, err)
}
