// Package sampler drives the fixed-interval counter harvest and converts
// raw deltas into rates.
package sampler

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/skobkin/intelgputop/internal/pmu"
)

// ErrNoEngines means the events directory was missing or held no engine
// events; the kernel does not support the GPU PMU for this device.
var ErrNoEngines = errors.New("no engines discovered")

const expectedRaplUnit = "Joules"

// Config locates the three PMU sysfs roots the sampler consumes.
type Config struct {
	// PMUDir is the per-device perf directory, e.g. /sys/devices/i915.
	PMUDir string
	// RaplDir is the RAPL energy PMU directory, e.g. /sys/devices/power.
	RaplDir string
	// IMCDir is the memory-controller PMU directory,
	// e.g. /sys/devices/uncore_imc.
	IMCDir string
	// Integrated gates the RAPL opens; discrete cards have no RAPL domain.
	Integrated bool
}

// groupReader is the read surface of a counter group. Satisfied by
// *pmu.Group and by fakes in tests.
type groupReader interface {
	Read() (uint64, []uint64, error)
	Len() int
	Close()
}

// Sampler exclusively owns all counter state. Each tick issues one grouped
// read per non-empty group and shifts current values into previous slots.
type Sampler struct {
	logger *slog.Logger

	engines   []*pmu.Engine
	classView *ClassView

	engineGroup groupReader
	raplGroup   groupReader
	imcGroup    groupReader

	IRQ     pmu.Counter
	FreqReq pmu.Counter
	FreqAct pmu.Counter
	RC6     pmu.Counter

	PowerGPU pmu.Counter
	PowerPkg pmu.Counter

	IMCReads  pmu.Counter
	IMCWrites pmu.Counter

	// Kernel-provided nanosecond timestamps attached to the engine-group
	// reads; the canonical pair for all rate formulas.
	TSCur  uint64
	TSPrev uint64
}

// New discovers the device's engines and opens the three counter groups.
// The IRQ counter anchors the engine group and its open failure is fatal;
// every other counter degrades to absent.
func New(cfg Config, logger *slog.Logger) (*Sampler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	eventsDir := filepath.Join(cfg.PMUDir, "events")
	engines, err := pmu.DiscoverEngines(eventsDir)
	if err != nil {
		return nil, fmt.Errorf("discover engines: %w", err)
	}
	if len(engines) == 0 {
		return nil, ErrNoEngines
	}

	typ, err := pmu.TypeID(cfg.PMUDir)
	if err != nil {
		return nil, fmt.Errorf("resolve PMU type: %w", err)
	}

	s := &Sampler{
		logger:  logger.With("component", "sampler"),
		engines: engines,
	}

	engineGroup := pmu.NewGroup()
	s.engineGroup = engineGroup

	s.IRQ.Config = pmu.ConfigInterrupts
	if err := engineGroup.OpenCounter(typ, &s.IRQ); err != nil {
		engineGroup.Close()
		return nil, fmt.Errorf("open interrupts counter: %w", err)
	}

	s.FreqReq.Config = pmu.ConfigRequestedFrequency
	s.openOptional(engineGroup, typ, &s.FreqReq, "requested frequency")
	s.FreqAct.Config = pmu.ConfigActualFrequency
	s.openOptional(engineGroup, typ, &s.FreqAct, "actual frequency")
	s.RC6.Config = pmu.ConfigRC6Residency
	s.openOptional(engineGroup, typ, &s.RC6, "rc6 residency")

	for _, engine := range s.engines {
		for _, cnt := range []struct {
			counter *pmu.Counter
			suffix  string
		}{
			{&engine.Busy, "busy"},
			{&engine.Wait, "wait"},
			{&engine.Sema, "sema"},
		} {
			if cnt.counter.Config == 0 {
				config, err := pmu.EventConfig(eventsDir, engine.Name+"-"+cnt.suffix)
				if err != nil {
					continue
				}
				cnt.counter.Config = config
			}
			if err := engineGroup.OpenCounter(typ, cnt.counter); err != nil {
				s.logger.Debug("engine counter unavailable",
					"engine", engine.Name, "counter", cnt.suffix, "err", err)
				continue
			}
			engine.NumCounters++
		}
	}

	raplGroup := pmu.NewGroup()
	s.raplGroup = raplGroup
	if cfg.Integrated {
		s.openEnergy(raplGroup, cfg.RaplDir, "energy-gpu", &s.PowerGPU)
		s.openEnergy(raplGroup, cfg.RaplDir, "energy-pkg", &s.PowerPkg)
	}

	imcGroup := pmu.NewGroup()
	s.imcGroup = imcGroup
	s.openBandwidth(imcGroup, cfg.IMCDir, "data_reads", &s.IMCReads)
	s.openBandwidth(imcGroup, cfg.IMCDir, "data_writes", &s.IMCWrites)

	return s, nil
}

func (s *Sampler) openOptional(group *pmu.Group, typ uint64, c *pmu.Counter, what string) {
	if err := group.OpenCounter(typ, c); err != nil {
		s.logger.Warn("counter unavailable", "counter", what, "err", err)
	}
}

func (s *Sampler) openEnergy(group *pmu.Group, dir, domain string, c *pmu.Counter) {
	attr, err := pmu.ResolveAttr(dir, domain)
	if err != nil {
		s.logger.Debug("energy counter unavailable", "domain", domain, "err", err)
		return
	}
	if attr.Unit != expectedRaplUnit {
		s.logger.Warn("unexpected RAPL unit",
			"domain", domain, "unit", attr.Unit, "want", expectedRaplUnit)
	}
	c.Config = attr.Config
	c.Scale = attr.Scale
	c.Unit = attr.Unit
	if err := group.OpenCounter(attr.Type, c); err != nil {
		s.logger.Debug("energy counter open refused", "domain", domain, "err", err)
	}
}

func (s *Sampler) openBandwidth(group *pmu.Group, dir, domain string, c *pmu.Counter) {
	attr, err := pmu.ResolveAttr(dir, domain)
	if err != nil {
		s.logger.Debug("bandwidth counter unavailable", "domain", domain, "err", err)
		return
	}
	c.Config = attr.Config
	c.Scale = attr.Scale
	c.Unit = attr.Unit
	if err := group.OpenCounter(attr.Type, c); err != nil {
		s.logger.Debug("bandwidth counter open refused", "domain", domain, "err", err)
	}
}

// Engines returns the per-instance engine table in (class, instance) order.
func (s *Sampler) Engines() []*pmu.Engine {
	return s.engines
}

// ClassEngines folds the per-instance table into one synthetic engine per
// class. The view is created on first use and refreshed from the latest
// counter pairs on every call.
func (s *Sampler) ClassEngines() []*pmu.Engine {
	if s.classView == nil {
		s.classView = NewClassView(s.engines)
	}
	s.classView.Refresh()
	return s.classView.Engines()
}

// Sample issues one grouped read per non-empty group, in the fixed order
// engine, RAPL, IMC, and shifts all current values into previous slots.
// The first call after New produces a zero-delta priming sample.
func (s *Sampler) Sample() error {
	ts, vals, err := s.engineGroup.Read()
	if err != nil {
		return fmt.Errorf("sample engine group: %w", err)
	}

	s.TSPrev = s.TSCur
	s.TSCur = ts

	s.FreqReq.UpdateFrom(vals)
	s.FreqAct.UpdateFrom(vals)
	s.IRQ.UpdateFrom(vals)
	s.RC6.UpdateFrom(vals)

	for _, engine := range s.engines {
		engine.Busy.UpdateFrom(vals)
		engine.Sema.UpdateFrom(vals)
		engine.Wait.UpdateFrom(vals)
	}

	if s.raplGroup.Len() > 0 {
		if _, vals, err = s.raplGroup.Read(); err != nil {
			return fmt.Errorf("sample RAPL group: %w", err)
		}
		s.PowerGPU.UpdateFrom(vals)
		s.PowerPkg.UpdateFrom(vals)
	}

	if s.imcGroup.Len() > 0 {
		if _, vals, err = s.imcGroup.Read(); err != nil {
			return fmt.Errorf("sample IMC group: %w", err)
		}
		s.IMCReads.UpdateFrom(vals)
		s.IMCWrites.UpdateFrom(vals)
	}

	return nil
}

// Interval returns the wall-time delta of the last two samples in seconds.
func (s *Sampler) Interval() float64 {
	return float64(s.TSCur-s.TSPrev) / 1e9
}

// Primed reports whether at least two samples were taken, i.e. whether
// rate computation has a meaningful delta to work with.
func (s *Sampler) Primed() bool {
	return s.TSPrev != 0
}

// HasPower reports whether at least one RAPL counter opened.
func (s *Sampler) HasPower() bool {
	return s.raplGroup != nil && s.raplGroup.Len() > 0
}

// HasIMC reports whether at least one memory-controller counter opened.
func (s *Sampler) HasIMC() bool {
	return s.imcGroup != nil && s.imcGroup.Len() > 0
}

// Close releases every perf descriptor. Safe for repeated use.
func (s *Sampler) Close() {
	for _, group := range []groupReader{s.engineGroup, s.raplGroup, s.imcGroup} {
		if group != nil {
			group.Close()
		}
	}
}
