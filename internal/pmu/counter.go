// Package pmu discovers and reads i915 performance-monitoring counters
// through the kernel perf interface.
package pmu

// Counter is one kernel perf event inside a counter group. Raw values are
// monotonically increasing within a session; Prev/Cur hold the two most
// recent grouped reads.
type Counter struct {
	Type    uint64
	Config  uint64
	Idx     int
	Cur     uint64
	Prev    uint64
	Scale   float64
	Unit    string
	Present bool
}

// Update shifts the current raw value into the previous slot and stores val.
func (c *Counter) Update(val uint64) {
	c.Prev = c.Cur
	c.Cur = val
}

// UpdateFrom picks this counter's slot out of a grouped read. Counters that
// never opened, or whose slot is missing from a short vector, are left
// untouched.
func (c *Counter) UpdateFrom(vals []uint64) {
	if !c.Present || c.Idx >= len(vals) {
		return
	}
	c.Update(vals[c.Idx])
}
