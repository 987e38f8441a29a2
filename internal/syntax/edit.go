package syntax

// PointAt converts a byte offset in text to a row/column point.
func PointAt(text []byte, offset int) Point {
	offset = min(max(offset, 0), len(text))
	var row, lineStart int
	for i := 0; i < offset; i++ {
		if text[i] == '\n' {
			row++
			lineStart = i + 1
		}
	}
	return Point{Row: uint32(row), Column: uint32(offset - lineStart)}
}

// EditFor describes replacing text[start:oldEnd] with insert.
func EditFor(text []byte, start, oldEnd int, insert string) Edit {
	startPoint := PointAt(text, start)
	newEnd := startPoint
	for i := 0; i < len(insert); i++ {
		if insert[i] == '\n' {
			newEnd.Row++
			newEnd.Column = 0
		} else {
			newEnd.Column++
		}
	}
	return Edit{
		StartIndex:  uint32(start),
		OldEndIndex: uint32(oldEnd),
		NewEndIndex: uint32(start + len(insert)),
		StartPoint:  startPoint,
		OldEndPoint: PointAt(text, oldEnd),
		NewEndPoint: newEnd,
	}
}

// ApplyEdit returns text with text[start:oldEnd] replaced by insert.
func ApplyEdit(text []byte, start, oldEnd int, insert string) []byte {
	out := make([]byte, 0, len(text)-(oldEnd-start)+len(insert))
	out = append(out, text[:start]...)
	out = append(out, insert...)
	return append(out, text[oldEnd:]...)
}
