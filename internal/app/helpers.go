package app

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// truncateToWidth trims a single line to the given display width, appending
// an ellipsis when anything was cut. Widths are terminal cells, not runes.
func truncateToWidth(text string, width int) string {
	if width <= 0 {
		return ""
	}
	text = strings.ReplaceAll(text, "\n", " ")
	if runewidth.StringWidth(text) <= width {
		return text
	}
	if width == 1 {
		return "…"
	}
	return runewidth.Truncate(text, width-1, "") + "…"
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
