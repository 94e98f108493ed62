package diag

import (
	"fmt"
	"strings"
)

// Position is a 1-based line/column pair resolved from a byte offset.
type Position struct {
	Line int
	Col  int
}

// Resolve maps a byte offset in src to a line and column. Offsets past the
// end of src resolve to the final position.
func Resolve(src string, offset int) Position {
	if offset > len(src) {
		offset = len(src)
	}
	pos := Position{Line: 1, Col: 1}
	for _, b := range []byte(src[:offset]) {
		if b == '\n' {
			pos.Line++
			pos.Col = 1
		} else {
			pos.Col++
		}
	}
	return pos
}

// line returns the full source line containing offset, without its newline.
func line(src string, offset int) string {
	if offset > len(src) {
		offset = len(src)
	}
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := strings.IndexByte(src[start:], '\n')
	if end < 0 {
		return src[start:]
	}
	return src[start : start+end]
}

// Render formats a ParseError as a multi-diagnostic report. Each field error
// shows the offending line with a caret run under the erroneous subrange,
// followed by the help text.
func Render(e *ParseError) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d problem(s) found\n", len(e.Related))

	for _, d := range e.Related {
		sb.WriteByte('\n')
		switch d := d.(type) {
		case *FieldError:
			renderFieldError(&sb, e.Input, d)
		case *MissingField:
			fmt.Fprintf(&sb, "error: missing field: %s\n", d.Label)
		case *BadSyntax:
			fmt.Fprintf(&sb, "error: %s\n", d.Error())
		default:
			fmt.Fprintf(&sb, "error: %s\n", d.Error())
		}
	}
	return sb.String()
}

func renderFieldError(sb *strings.Builder, src string, fe *FieldError) {
	pos := Resolve(src, fe.ErrorSpan.Offset)
	fmt.Fprintf(sb, "error: %s\n", fe.FieldLabel)
	fmt.Fprintf(sb, "  --> %d:%d\n", pos.Line, pos.Col)

	srcLine := line(src, fe.ErrorSpan.Offset)
	fmt.Fprintf(sb, "   | %s\n", srcLine)

	// Caret run under the erroneous subrange, clamped to the line.
	width := fe.ErrorSpan.Len
	if width < 1 {
		width = 1
	}
	if max := len(srcLine) - (pos.Col - 1); width > max && max > 0 {
		width = max
	}
	fmt.Fprintf(sb, "   | %s%s here\n", strings.Repeat(" ", pos.Col-1), strings.Repeat("^", width))

	if fe.Help != "" {
		fmt.Fprintf(sb, "   = help: %s\n", fe.Help)
	}
}
