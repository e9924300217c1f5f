package sampler

import "github.com/skobkin/intelgputop/internal/pmu"

// Rate converts a counter's raw delta into a displayed value:
//
//	((cur - prev) / d) / t * s
//
// where d is the dimensional divisor of the metric, t the wall-time delta
// in seconds and s the display scale. Percentage metrics (s == 100) are
// clamped to 100 to absorb counter jitter near the utilisation ceiling.
// A zero interval yields zero, covering the priming sample.
func Rate(c *pmu.Counter, d, t, s float64) float64 {
	if t == 0 {
		return 0
	}
	v := float64(c.Cur - c.Prev)
	v /= d
	v /= t
	v *= s
	if s == 100 && v > 100 {
		v = 100
	}
	return v
}
