package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// markdownRenderer caches a glamour renderer for one wrap width.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// Render formats content as terminal markdown. It falls back to the raw text
// when glamour fails.
func (r *markdownRenderer) Render(content string, width int) string {
	if content == "" {
		return ""
	}

	if r.renderer == nil || r.width != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		r.renderer, r.width = renderer, width
	}

	rendered, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	// glamour pads both ends with blank lines
	return strings.Trim(rendered, "\n")
}
