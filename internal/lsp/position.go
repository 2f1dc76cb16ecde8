package lsp

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// PositionConverter translates between byte offsets, rune columns, and
// LSP positions. LSP measures characters in UTF-16 code units, so any
// document containing non-BMP runes (mathematical alphanumerics are
// common in Lean sources) needs real conversion.
type PositionConverter struct {
	lines []string // line contents without terminators
	start []int    // byte offset of each line start
}

// NewPositionConverter indexes content for position lookups.
func NewPositionConverter(content string) *PositionConverter {
	pc := &PositionConverter{}
	off := 0
	for {
		i := strings.IndexByte(content[off:], '\n')
		if i < 0 {
			pc.lines = append(pc.lines, content[off:])
			pc.start = append(pc.start, off)
			break
		}
		pc.lines = append(pc.lines, content[off:off+i])
		pc.start = append(pc.start, off)
		off += i + 1
	}
	return pc
}

// LineCount returns the number of lines in the document.
func (pc *PositionConverter) LineCount() int {
	return len(pc.lines)
}

// Line returns the content of a 0-based line, without the terminator.
func (pc *PositionConverter) Line(n int) string {
	if n < 0 || n >= len(pc.lines) {
		return ""
	}
	return pc.lines[n]
}

// FromRuneColumn converts a 0-based line and rune column to an LSP
// position, clamping to line bounds.
func (pc *PositionConverter) FromRuneColumn(line, runeCol int) Position {
	if line < 0 {
		line = 0
	}
	if line >= len(pc.lines) {
		line = len(pc.lines) - 1
	}
	text := pc.lines[line]

	units := 0
	col := 0
	for _, r := range text {
		if col >= runeCol {
			break
		}
		units += utf16.RuneLen(r)
		col++
	}
	return Position{Line: line, Character: units}
}

// ToRuneColumn converts an LSP position to a 0-based rune column on
// its line, clamping to line bounds.
func (pc *PositionConverter) ToRuneColumn(pos Position) int {
	if pos.Line < 0 || pos.Line >= len(pc.lines) {
		return 0
	}
	text := pc.lines[pos.Line]

	units := 0
	col := 0
	for _, r := range text {
		if units >= pos.Character {
			break
		}
		units += utf16.RuneLen(r)
		col++
	}
	return col
}

// ToByteOffset converts an LSP position to a byte offset into the
// original content.
func (pc *PositionConverter) ToByteOffset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(pc.lines) {
		last := len(pc.lines) - 1
		return pc.start[last] + len(pc.lines[last])
	}
	text := pc.lines[pos.Line]

	units := 0
	b := 0
	for _, r := range text {
		if units >= pos.Character {
			break
		}
		units += utf16.RuneLen(r)
		b += utf8.RuneLen(r)
	}
	return pc.start[pos.Line] + b
}

// RuneLen returns the rune length of a 0-based line.
func (pc *PositionConverter) RuneLen(line int) int {
	if line < 0 || line >= len(pc.lines) {
		return 0
	}
	return utf8.RuneCountInString(pc.lines[line])
}
