// Package config parses the command line and environment overrides.
package config

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Mode selects the output renderer.
type Mode int

const (
	ModeInteractive Mode = iota
	ModeText
	ModeJSON
	ModePrometheus
)

func (m Mode) String() string {
	switch m {
	case ModeInteractive:
		return "interactive"
	case ModeText:
		return "text"
	case ModeJSON:
		return "json"
	case ModePrometheus:
		return "prometheus"
	default:
		return "unknown"
	}
}

// DefaultPeriodMS is the default sample period in milliseconds.
const DefaultPeriodMS = 1000

// Config carries runtime options.
type Config struct {
	Period       time.Duration
	OutputPath   string
	Mode         Mode
	ListDevices  bool
	DeviceFilter string
	SysfsRoot    string
	LogLevel     slog.Level
}

// Load parses flags and environment overrides. A help request surfaces as
// flag.ErrHelp after the usage text has been printed.
func Load(args []string) (Config, error) {
	cfg := Config{
		Period:    DefaultPeriodMS * time.Millisecond,
		SysfsRoot: "/sys",
		LogLevel:  slog.LevelWarn,
	}

	fs := flag.NewFlagSet("intel_gpu_top", flag.ContinueOnError)
	fs.Usage = func() { usage(fs.Output()) }

	periodMS := fs.Int("s", DefaultPeriodMS, "refresh period in milliseconds")
	fs.StringVar(&cfg.OutputPath, "o", "", "output to specified file or '-' for standard out")
	jsonMode := fs.Bool("J", false, "output JSON formatted data")
	textMode := fs.Bool("l", false, "list plain text data")
	promMode := fs.Bool("p", false, "print in format of Prometheus metrics")
	fs.BoolVar(&cfg.ListDevices, "L", false, "list all cards")
	fs.StringVar(&cfg.DeviceFilter, "d", "", "device filter")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	if *periodMS <= 0 {
		return Config{}, fmt.Errorf("refresh period must be > 0, got %d", *periodMS)
	}
	cfg.Period = time.Duration(*periodMS) * time.Millisecond

	switch {
	case *promMode:
		cfg.Mode = ModePrometheus
	case *jsonMode:
		cfg.Mode = ModeJSON
	case *textMode:
		cfg.Mode = ModeText
	}

	if value := strings.TrimSpace(os.Getenv("APP_SYSFS_ROOT")); value != "" {
		cfg.SysfsRoot = value
	}

	if value := strings.TrimSpace(os.Getenv("APP_LOG_LEVEL")); value != "" {
		level, err := parseLogLevel(value)
		if err != nil {
			return Config{}, fmt.Errorf("parse APP_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

func usage(out io.Writer) {
	fmt.Fprintf(out, `intel_gpu_top - Display a top-like summary of Intel GPU usage

Usage: intel_gpu_top [parameters]

	The following parameters are optional:

	[-h]            Show this help text.
	[-J]            Output JSON formatted data.
	[-l]            List plain text data.
	[-p]            Print in format of Prometheus metrics.
	[-o <file|->]   Output to specified file or '-' for standard out.
	[-s <ms>]       Refresh period in milliseconds (default %dms).
	[-L]            List all cards.
	[-d <device>]   Device filter, e.g. a card id or pci:vendor=8086,device=56a0.

`, DefaultPeriodMS)
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
