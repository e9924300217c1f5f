// Package render turns one in-memory sample into the four output shapes:
// interactive dashboard, plain-text columns, JSON stream and Prometheus
// text exposition.
package render

import (
	"github.com/skobkin/intelgputop/internal/pmu"
	"github.com/skobkin/intelgputop/internal/sampler"
)

// Item binds one counter to its display descriptor: field width and
// precision, the dimensional divisor d, the display scale s, labels and
// unit. An Item without a Counter is a unit pseudo-member emitted only by
// the JSON renderer.
type Item struct {
	Counter *pmu.Counter
	Width   int
	Prec    int
	D       float64
	T       float64
	S       float64
	Name    string
	Unit    string

	// buf holds the formatted value between the table pass and the screen
	// drawing pass in interactive mode.
	buf string
}

// Value computes the item's displayed rate for the current sample.
func (it *Item) Value() float64 {
	return sampler.Rate(it.Counter, it.D, it.T, it.S)
}

// Group is an ordered set of items emitted under one name. Emission order
// is identical across all renderers; only formatting differs.
type Group struct {
	Name        string
	DisplayName string
	Items       []*Item
}

func (g *Group) present() bool {
	for _, it := range g.Items {
		if it.Counter != nil && it.Counter.Present {
			return true
		}
	}
	return false
}

// Frame is one sample expressed as the fixed sequence of counter groups.
type Frame struct {
	T float64

	Period *Group
	Freq   *Group
	IRQ    *Group
	RC6    *Group
	Power  *Group
	IMC    *Group

	Engines []*Group
}

// headerGroups returns the summary groups in emission order. The period
// group is set only for JSON output.
func (f *Frame) headerGroups() []*Group {
	groups := make([]*Group, 0, 5)
	if f.Period != nil {
		groups = append(groups, f.Period)
	}
	return append(groups, f.Freq, f.IRQ, f.RC6, f.Power)
}

// Build assembles the frame for one sample. The engines argument selects
// the per-instance or per-class table; withPeriod adds the JSON-only
// period group.
func Build(s *sampler.Sampler, engines []*pmu.Engine, t float64, withPeriod bool) *Frame {
	f := &Frame{T: t}

	if withPeriod {
		tick := &pmu.Counter{Cur: 1, Present: true}
		f.Period = &Group{
			Name: "period",
			Items: []*Item{
				{Counter: tick, D: 1, T: 1, S: t * 1e3, Name: "duration"},
				{Name: "unit", Unit: "ms"},
			},
		}
	}

	f.Freq = &Group{
		Name:        "frequency",
		DisplayName: "Freq MHz",
		Items: []*Item{
			{Counter: &s.FreqReq, Width: 4, D: 1, T: t, S: 1, Name: "requested", Unit: "req"},
			{Counter: &s.FreqAct, Width: 4, D: 1, T: t, S: 1, Name: "actual", Unit: "act"},
			{Name: "unit", Unit: "MHz"},
		},
	}

	f.IRQ = &Group{
		Name:        "interrupts",
		DisplayName: "IRQ",
		Items: []*Item{
			{Counter: &s.IRQ, Width: 8, D: 1, T: t, S: 1, Name: "count", Unit: "/s"},
			{Name: "unit", Unit: "irq/s"},
		},
	}

	f.RC6 = &Group{
		Name:        "rc6",
		DisplayName: "RC6",
		Items: []*Item{
			{Counter: &s.RC6, Width: 3, D: 1e9, T: t, S: 100, Name: "value", Unit: "%"},
			{Name: "unit", Unit: "%"},
		},
	}

	f.Power = &Group{
		Name:        "power",
		DisplayName: "Power W",
		Items: []*Item{
			{Counter: &s.PowerGPU, Width: 4, Prec: 2, D: 1, T: t, S: s.PowerGPU.Scale, Name: "GPU", Unit: "gpu"},
			{Counter: &s.PowerPkg, Width: 4, Prec: 2, D: 1, T: t, S: s.PowerPkg.Scale, Name: "Package", Unit: "pkg"},
			{Name: "unit", Unit: "W"},
		},
	}

	if s.HasIMC() {
		unit := s.IMCReads.Unit
		if unit == "" {
			unit = s.IMCWrites.Unit
		}
		f.IMC = &Group{
			Name:        "imc-bandwidth",
			DisplayName: "IMC " + unit + "/s",
			Items: []*Item{
				{Counter: &s.IMCReads, Width: 6, D: 1, T: t, S: s.IMCReads.Scale, Name: "reads", Unit: "rd"},
				{Counter: &s.IMCWrites, Width: 6, D: 1, T: t, S: s.IMCWrites.Scale, Name: "writes", Unit: "wr"},
				{Name: "unit", Unit: unit + "/s"},
			},
		}
	}

	for _, engine := range engines {
		if engine.NumCounters == 0 {
			continue
		}
		f.Engines = append(f.Engines, &Group{
			Name:        engine.DisplayName,
			DisplayName: engine.ShortName,
			Items: []*Item{
				{Counter: &engine.Busy, Width: 6, Prec: 2, D: 1e9, T: t, S: 100, Name: "busy", Unit: "%"},
				{Counter: &engine.Sema, Width: 3, D: 1e9, T: t, S: 100, Name: "sema", Unit: "se"},
				{Counter: &engine.Wait, Width: 3, D: 1e9, T: t, S: 100, Name: "wait", Unit: "wa"},
				{Name: "unit", Unit: "%"},
			},
		})
	}

	return f
}
