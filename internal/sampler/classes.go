package sampler

import (
	"sort"

	"github.com/skobkin/intelgputop/internal/pmu"
)

// ClassView folds per-instance engines into one synthetic engine per
// present class. Synthetic engines carry instance -1 and counter pairs
// holding the arithmetic mean of the real engines' values, so the delta
// formula downstream applies unchanged. The real table is never touched.
type ClassView struct {
	real    []*pmu.Engine
	classes []*pmu.Engine
	counts  map[int]int
}

// NewClassView builds the synthetic per-class table from the real engines.
func NewClassView(engines []*pmu.Engine) *ClassView {
	counts := make(map[int]int)
	for _, e := range engines {
		counts[e.Class]++
	}

	ids := make([]int, 0, len(counts))
	for class := range counts {
		ids = append(ids, class)
	}
	sort.Ints(ids)

	classes := make([]*pmu.Engine, 0, len(ids))
	for _, class := range ids {
		synth := &pmu.Engine{
			DisplayName: pmu.ClassDisplayName(class),
			ShortName:   pmu.ClassShortName(class),
			Class:       class,
			Instance:    -1,
		}
		// Counter metadata comes from one real engine of the class; the
		// value pairs are overwritten on every Refresh.
		for _, e := range engines {
			if e.Class == class {
				synth.NumCounters = e.NumCounters
				synth.Busy = e.Busy
				synth.Sema = e.Sema
				synth.Wait = e.Wait
				break
			}
		}
		classes = append(classes, synth)
	}

	return &ClassView{real: engines, classes: classes, counts: counts}
}

// Refresh recomputes every synthetic counter pair from the latest real
// values: per class, previous and current are each summed then divided by
// the class's engine count.
func (v *ClassView) Refresh() {
	for _, synth := range v.classes {
		n := uint64(v.counts[synth.Class])

		synth.Busy.Prev, synth.Busy.Cur = 0, 0
		synth.Sema.Prev, synth.Sema.Cur = 0, 0
		synth.Wait.Prev, synth.Wait.Cur = 0, 0

		for _, e := range v.real {
			if e.Class != synth.Class {
				continue
			}
			synth.Busy.Prev += e.Busy.Prev
			synth.Busy.Cur += e.Busy.Cur
			synth.Sema.Prev += e.Sema.Prev
			synth.Sema.Cur += e.Sema.Cur
			synth.Wait.Prev += e.Wait.Prev
			synth.Wait.Cur += e.Wait.Cur
		}

		synth.Busy.Prev /= n
		synth.Busy.Cur /= n
		synth.Sema.Prev /= n
		synth.Sema.Cur /= n
		synth.Wait.Prev /= n
		synth.Wait.Cur /= n
	}
}

// Engines returns the synthetic per-class table in class order.
func (v *ClassView) Engines() []*pmu.Engine {
	return v.classes
}
