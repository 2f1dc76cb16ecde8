package infoview

import (
	"strings"

	"github.com/rivo/uniseg"
)

// WrapText wraps rendered infoview text to a display width, measuring
// grapheme clusters rather than bytes so wide runes and combining
// marks lay out correctly in terminal cells.
func WrapText(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		out = append(out, wrapLine(line, width)...)
	}
	return out
}

func wrapLine(line string, width int) []string {
	if uniseg.StringWidth(line) <= width {
		return []string{line}
	}

	var (
		out  []string
		cur  strings.Builder
		curW int
	)
	g := uniseg.NewGraphemes(line)
	for g.Next() {
		w := g.Width()
		if curW+w > width && curW > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curW = 0
		}
		cur.WriteString(g.Str())
		curW += w
	}
	if curW > 0 {
		out = append(out, cur.String())
	}
	return out
}

// Truncate cuts a string to a display width, appending an ellipsis
// when anything was removed.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if uniseg.StringWidth(s) <= width {
		return s
	}

	var (
		cur  strings.Builder
		curW int
	)
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		w := g.Width()
		if curW+w > width-1 {
			break
		}
		cur.WriteString(g.Str())
		curW += w
	}
	return cur.String() + "…"
}
