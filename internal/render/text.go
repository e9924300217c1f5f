package render

import (
	"fmt"
	"io"
	"strings"
)

// textHeaderRepeat is the number of data rows between repeated header rows
// in column mode, keeping grep/awk pipelines legible.
const textHeaderRepeat = 20

// TextRenderer writes fixed-width columns, one row per sample.
type TextRenderer struct {
	out   io.Writer
	level int
	lines int
}

// NewTextRenderer returns a column renderer whose first row is a header.
func NewTextRenderer(out io.Writer) *TextRenderer {
	return &TextRenderer{out: out}
}

func (t *TextRenderer) headersPass() int {
	pass := t.lines%(textHeaderRepeat+2) + 1
	if pass > 2 {
		return 0
	}
	return pass
}

func (t *TextRenderer) OpenStruct(name string) {
	t.level++
}

func (t *TextRenderer) CloseStruct() {
	if t.level == 0 {
		return
	}
	t.level--
	if t.level == 0 {
		t.lines++
		fmt.Fprintln(t.out)
	}
}

func (t *TextRenderer) AddMember(g *Group, it *Item, headers int) {
	if it.Counter == nil || !it.Counter.Present {
		return
	}

	switch headers {
	case 1:
		// Group-name row: printed once, at the first present column,
		// spanning the present columns.
		width := 0
		for _, other := range g.Items {
			if other.Counter == nil || !other.Counter.Present {
				continue
			}
			if width == 0 && other != it {
				return
			}
			width += 1 + fieldWidth(other)
		}
		fmt.Fprintf(t.out, "%*s ", width-1, g.DisplayName)
	case 2:
		label := it.Unit
		if label == "" {
			label = it.Name
		}
		fmt.Fprintf(t.out, "%*s ", fieldWidth(it), label)
	default:
		fmt.Fprintf(t.out, "%s ", formatValue(it))
	}
}

func (t *TextRenderer) PrintGroup(g *Group, headers int) {
	printGroup(t, g, headers)
}

func fieldWidth(it *Item) int {
	width := it.Width
	if it.Prec > 0 {
		width++
	}
	return width
}

// formatValue renders the item value in its fixed column width, filling
// with 'X' on overflow.
func formatValue(it *Item) string {
	width := fieldWidth(it)
	s := fmt.Sprintf("%*.*f", width, it.Prec, it.Value())
	if len(s) > width {
		s = strings.Repeat("X", width)
	}
	return s
}
