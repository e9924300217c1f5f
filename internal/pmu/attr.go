package pmu

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Failure kinds surfaced by the attribute resolver. Callers classify with
// errors.Is; optional counters swallow all three and stay absent.
var (
	ErrNotFound  = errors.New("event description not found")
	ErrMalformed = errors.New("malformed event description")
	ErrBadScale  = errors.New("bad event scale")
)

// Attr is everything needed to open one perf event: the PMU type id, the
// event config, and the display scale and unit advertised next to it. The
// resolver only produces the descriptor; it never opens the counter.
type Attr struct {
	Type   uint64
	Config uint64
	Scale  float64
	Unit   string
}

// ResolveAttr reads the four perf metadata files for the named event below
// a PMU sysfs directory: type, events/<name>, events/<name>.scale and
// events/<name>.unit. Values are parsed with strconv, which matches the
// kernel's C-locale formatting regardless of the process environment.
func ResolveAttr(dir, name string) (Attr, error) {
	var attr Attr

	raw, err := readSysfs(filepath.Join(dir, "type"))
	if err != nil {
		return Attr{}, err
	}
	attr.Type, err = strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return Attr{}, fmt.Errorf("%w: type %q", ErrMalformed, raw)
	}

	raw, err = readSysfs(filepath.Join(dir, "events", name))
	if err != nil {
		return Attr{}, err
	}
	attr.Config, err = parseEventConfig(raw)
	if err != nil {
		return Attr{}, err
	}

	raw, err = readSysfs(filepath.Join(dir, "events", name+".scale"))
	if err != nil {
		return Attr{}, err
	}
	attr.Scale, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return Attr{}, fmt.Errorf("%w: scale %q", ErrMalformed, raw)
	}
	if math.IsNaN(attr.Scale) || math.IsInf(attr.Scale, 0) || attr.Scale == 0 {
		return Attr{}, fmt.Errorf("%w: %v", ErrBadScale, attr.Scale)
	}

	raw, err = readSysfs(filepath.Join(dir, "events", name+".unit"))
	if err != nil {
		return Attr{}, err
	}
	if fields := strings.Fields(raw); len(fields) > 0 {
		attr.Unit = fields[0]
	}

	return attr, nil
}

// TypeID reads the perf type id of a PMU device directory.
func TypeID(deviceDir string) (uint64, error) {
	raw, err := readSysfs(filepath.Join(deviceDir, "type"))
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: type %q", ErrMalformed, raw)
	}
	return id, nil
}

// EventConfig reads the raw config value of a single named event file.
func EventConfig(eventsDir, name string) (uint64, error) {
	raw, err := readSysfs(filepath.Join(eventsDir, name))
	if err != nil {
		return 0, err
	}
	return parseEventConfig(raw)
}

// parseEventConfig extracts the config from an "event=0xHEX" description.
// Descriptions may carry additional comma-separated terms.
func parseEventConfig(raw string) (uint64, error) {
	for _, field := range strings.Split(raw, ",") {
		value, ok := strings.CutPrefix(strings.TrimSpace(field), "event=")
		if !ok {
			continue
		}
		config, err := strconv.ParseUint(value, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: event config %q", ErrMalformed, value)
		}
		return config, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrMalformed, raw)
}

func readSysfs(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
