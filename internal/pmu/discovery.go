package pmu

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
)

// Engine is one discovered GPU execution engine. Immutable after discovery
// except for the three counter slots, which the sampler updates each tick.
type Engine struct {
	Name        string
	DisplayName string
	ShortName   string

	Class    int
	Instance int

	// NumCounters is the number of per-engine events that opened
	// successfully; an engine with zero open counters is skipped in output.
	NumCounters int

	Busy Counter
	Wait Counter
	Sema Counter
}

const busySuffix = "-busy"

// DiscoverEngines scans a PMU events directory for `<engine>-busy` entries
// and derives class and instance from each event's config bits. The result
// is sorted by (class, instance) and is byte-identical across runs for
// identical sysfs contents. An empty result means the kernel exposes no
// engine events for this device.
func DiscoverEngines(eventsDir string) ([]*Engine, error) {
	entries, err := os.ReadDir(eventsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read events dir: %w", err)
	}

	var engines []*Engine
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		stem, ok := strings.CutSuffix(entry.Name(), busySuffix)
		if !ok || len(stem) < 4 {
			continue
		}

		config, err := EventConfig(eventsDir, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("engine %s: %w", stem, err)
		}

		class := configClass(config)
		instance := configInstance(config)
		engine := &Engine{
			Name:        stem,
			DisplayName: fmt.Sprintf("%s/%d", ClassDisplayName(class), instance),
			ShortName:   fmt.Sprintf("%s/%d", ClassShortName(class), instance),
			Class:       class,
			Instance:    instance,
		}
		engine.Busy.Config = config
		engines = append(engines, engine)
	}

	sort.SliceStable(engines, func(i, j int) bool {
		if engines[i].Class != engines[j].Class {
			return engines[i].Class < engines[j].Class
		}
		return engines[i].Instance < engines[j].Instance
	})

	return engines, nil
}
