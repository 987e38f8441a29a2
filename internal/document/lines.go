package document

import (
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/jward/morpheus/internal/syntax"
)

// LineIndex converts between protocol positions, which count UTF-16 code
// units, and syntax points, which count bytes.
type LineIndex struct {
	text   string
	starts []int
}

func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LineCount returns the number of lines, counting a trailing empty line.
func (l *LineIndex) LineCount() int { return len(l.starts) }

func (l *LineIndex) line(row int) string {
	if row < 0 || row >= len(l.starts) {
		return ""
	}
	end := len(l.text)
	if row+1 < len(l.starts) {
		end = l.starts[row+1] - 1
	}
	return l.text[l.starts[row]:end]
}

// Offset returns the byte offset of pos. Positions past the end of a line
// clamp to the line end; lines past the end of the text clamp to its length.
func (l *LineIndex) Offset(pos protocol.Position) int {
	row := int(pos.Line)
	if row >= len(l.starts) {
		return len(l.text)
	}
	return l.starts[row] + byteColumn(l.line(row), int(pos.Character))
}

// Point converts pos to a row and byte column.
func (l *LineIndex) Point(pos protocol.Position) syntax.Point {
	row := int(pos.Line)
	if row >= len(l.starts) {
		last := len(l.starts) - 1
		return syntax.Point{Row: uint32(last), Column: uint32(len(l.line(last)))}
	}
	return syntax.Point{Row: uint32(pos.Line), Column: uint32(byteColumn(l.line(row), int(pos.Character)))}
}

// Position converts a row and byte column to a protocol position.
func (l *LineIndex) Position(p syntax.Point) protocol.Position {
	line := l.line(int(p.Row))
	col := min(int(p.Column), len(line))
	var units int
	for _, r := range line[:col] {
		units += utf16Len(r)
	}
	return protocol.Position{Line: protocol.UInteger(p.Row), Character: protocol.UInteger(units)}
}

func (l *LineIndex) Range(r syntax.Range) protocol.Range {
	return protocol.Range{Start: l.Position(r.Start), End: l.Position(r.End)}
}

func byteColumn(line string, units int) int {
	col := 0
	for units > 0 && col < len(line) {
		r, size := utf8.DecodeRuneInString(line[col:])
		units -= utf16Len(r)
		col += size
	}
	return col
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
