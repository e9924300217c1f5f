// Command pmu-test exercises device discovery and the PMU event tree
// without starting the full sampling loop. Useful against fake sysfs
// roots and for checking what a kernel exposes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/skobkin/intelgputop/internal/gpu"
	"github.com/skobkin/intelgputop/internal/pmu"
	"github.com/skobkin/intelgputop/internal/sampler"
)

type options struct {
	sysfsRoot  string
	filter     string
	jsonOutput bool
	sample     bool
}

func parseFlags() options {
	defaultSysfs := envOrDefault("APP_SYSFS_ROOT", "/sys")

	var opts options
	flag.StringVar(&opts.sysfsRoot, "sysfs", defaultSysfs, "Path to sysfs root")
	flag.StringVar(&opts.filter, "d", "", "Device filter expression")
	flag.BoolVar(&opts.jsonOutput, "json", false, "Emit discovery result as JSON")
	flag.BoolVar(&opts.sample, "sample", false, "Open the counters and take one sample")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cards, err := gpu.Scan(opts.sysfsRoot, logger.With("component", "gpu_discovery"))
	if err != nil {
		logger.Error("device scan failed", "err", err)
		os.Exit(1)
	}

	card, err := gpu.Match(cards, opts.filter)
	if err != nil {
		logger.Error("no matching device", "filter", opts.filter, "err", err)
		os.Exit(1)
	}

	pmuDir := filepath.Join(opts.sysfsRoot, "devices", card.PMUName())
	engines, err := pmu.DiscoverEngines(filepath.Join(pmuDir, "events"))
	if err != nil {
		logger.Error("engine discovery failed", "err", err)
		os.Exit(1)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		payload := struct {
			Card    gpu.Card      `json:"card"`
			PMU     string        `json:"pmu"`
			Engines []*pmu.Engine `json:"engines"`
		}{card, card.PMUName(), engines}
		if err := enc.Encode(payload); err != nil {
			logger.Error("encode discovery output", "err", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("Device %s (%s) via PMU %s\n", card.ID, card.Name, card.PMUName())
		if len(engines) == 0 {
			fmt.Println("No engines discovered")
		}
		for _, engine := range engines {
			fmt.Printf("- %-16s class=%d instance=%d config=%#x\n",
				engine.DisplayName, engine.Class, engine.Instance, engine.Busy.Config)
		}
	}

	if !opts.sample {
		return
	}

	s, err := sampler.New(sampler.Config{
		PMUDir:     pmuDir,
		RaplDir:    filepath.Join(opts.sysfsRoot, "devices", "power"),
		IMCDir:     filepath.Join(opts.sysfsRoot, "devices", "uncore_imc"),
		Integrated: card.Integrated(),
	}, logger)
	if err != nil {
		logger.Error("counter init failed", "err", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := s.Sample(); err != nil {
		logger.Error("sample failed", "err", err)
		os.Exit(1)
	}

	fmt.Printf("timestamp=%d ns, irq=%d, rc6=%d\n", s.TSCur, s.IRQ.Cur, s.RC6.Cur)
	for _, engine := range s.Engines() {
		fmt.Printf("%-16s busy=%d wait=%d sema=%d\n",
			engine.DisplayName, engine.Busy.Cur, engine.Wait.Cur, engine.Sema.Cur)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
