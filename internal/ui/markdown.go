package ui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"ragchat/internal/sanitize"
)

// MarkdownRenderer renders a stored raw response with glamour. Falls back to
// the sanitized plain text when rendering fails.
type MarkdownRenderer struct {
	mu       sync.Mutex
	style    string
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdownRenderer creates a renderer. style is a glamour standard style
// name ("dark", "light", "notty") or "auto" to detect it from the terminal.
func NewMarkdownRenderer(style string, width int) *MarkdownRenderer {
	r := &MarkdownRenderer{style: style}
	r.SetWidth(width)
	return r
}

// SetWidth rebuilds the renderer for a new wrap width
func (r *MarkdownRenderer) SetWidth(width int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if width == r.width && r.renderer != nil {
		return
	}
	r.width = width

	wrap := width - 10
	if wrap < 20 {
		wrap = 20
	}
	styleOpt := glamour.WithStandardStyle(r.style)
	if r.style == "" || r.style == "auto" {
		styleOpt = glamour.WithAutoStyle()
	}

	renderer, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(wrap))
	if err != nil {
		r.renderer = nil
		return
	}
	r.renderer = renderer
}

// Render converts raw markdown to styled terminal text
func (r *MarkdownRenderer) Render(raw string) string {
	r.mu.Lock()
	renderer := r.renderer
	r.mu.Unlock()

	if renderer == nil {
		return sanitize.Response(raw)
	}
	rendered, err := renderer.Render(raw)
	if err != nil {
		return sanitize.Response(raw)
	}
	return strings.TrimRight(rendered, "\n")
}
