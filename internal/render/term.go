package render

import (
	"fmt"
	"strings"
)

// TermRenderer formats values for the interactive dashboard. It produces
// no output itself; formatted values land in the item buffers and the
// Screen draws them.
type TermRenderer struct{}

// NewTermRenderer returns the interactive table renderer.
func NewTermRenderer() *TermRenderer {
	return &TermRenderer{}
}

func (t *TermRenderer) headersPass() int {
	return 0
}

func (t *TermRenderer) OpenStruct(name string) {}

func (t *TermRenderer) CloseStruct() {}

func (t *TermRenderer) AddMember(g *Group, it *Item, headers int) {
	if it.Counter == nil {
		return
	}
	width := fieldWidth(it)
	if !it.Counter.Present {
		it.buf = strings.Repeat("-", width)
		return
	}
	s := fmt.Sprintf("%*.*f", width, it.Prec, it.Value())
	if len(s) > width {
		s = strings.Repeat("X", width)
	}
	it.buf = s
}

// PrintGroup fills buffers for every group, present or not; absent
// counters show as dashes without shifting any column.
func (t *TermRenderer) PrintGroup(g *Group, headers int) {
	t.OpenStruct(g.Name)
	for _, it := range g.Items {
		t.AddMember(g, it, headers)
	}
	t.CloseStruct()
}
