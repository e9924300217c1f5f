// Package app wires up the sampler and renderers and runs the main loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/skobkin/intelgputop/internal/config"
	"github.com/skobkin/intelgputop/internal/gpu"
	"github.com/skobkin/intelgputop/internal/render"
	"github.com/skobkin/intelgputop/internal/sampler"
	"github.com/skobkin/intelgputop/internal/version"
)

// Run bootstraps the application lifecycle: device selection, counter
// init, one priming sample, then the mode-specific output loop.
func Run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	appLogger := logger.With("component", "app")

	cards, err := gpu.Scan(cfg.SysfsRoot, logger.With("component", "gpu_discovery"))
	if err != nil {
		return fmt.Errorf("scan devices: %w", err)
	}

	if cfg.ListDevices {
		for _, card := range cards {
			fmt.Printf("card=%s, slot=%s, id=%s, name=%s\n",
				card.ID, card.PCISlot, card.PCIID, card.Name)
		}
		return nil
	}

	card, err := gpu.Match(cards, cfg.DeviceFilter)
	if err != nil {
		if cfg.DeviceFilter != "" {
			fmt.Fprintf(os.Stderr, "Requested device %s not found!\n", cfg.DeviceFilter)
		} else {
			fmt.Fprintln(os.Stderr, "No device filter specified and no discrete/integrated i915 devices found")
		}
		return err
	}
	appLogger.Info("attached to device",
		"card", card.ID, "pmu", card.PMUName(), "version", version.Current().String())

	mode := cfg.Mode
	if mode == config.ModeInteractive &&
		(cfg.OutputPath != "" || !term.IsTerminal(int(os.Stdout.Fd()))) {
		mode = config.ModeText
	}

	out := io.Writer(os.Stdout)
	if cfg.OutputPath != "" && cfg.OutputPath != "-" {
		file, err := os.Create(cfg.OutputPath)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	s, err := sampler.New(sampler.Config{
		PMUDir:     filepath.Join(cfg.SysfsRoot, "devices", card.PMUName()),
		RaplDir:    filepath.Join(cfg.SysfsRoot, "devices", "power"),
		IMCDir:     filepath.Join(cfg.SysfsRoot, "devices", "uncore_imc"),
		Integrated: card.Integrated(),
	}, logger)
	if err != nil {
		if errors.Is(err, sampler.ErrNoEngines) {
			fmt.Fprintln(os.Stderr,
				"Failed to detect engines! (Kernel 4.16 or newer is required for i915 PMU support.)")
		}
		return err
	}
	defer s.Close()

	l := &loop{
		mode:    mode,
		period:  cfg.Period,
		out:     out,
		sampler: s,
		card:    card,
		logger:  appLogger,
	}

	switch mode {
	case config.ModeInteractive:
		l.term = render.NewTermRenderer()
		l.screen = render.NewScreen(os.Stdout)
		l.classView = true
		stdin, err := newRawStdin()
		if err != nil {
			appLogger.Warn("interactive stdin unavailable", "err", err)
			l.mode = config.ModeText
			l.renderer = render.NewTextRenderer(out)
		} else {
			l.stdin = stdin
			defer stdin.restore()
		}
	case config.ModeText:
		l.renderer = render.NewTextRenderer(out)
	case config.ModeJSON:
		l.renderer = render.NewJSONRenderer(out)
	case config.ModePrometheus:
		l.renderer = render.NewPromRenderer(out)
	}

	return l.run(ctx)
}

// loop holds the per-run output state. Single-threaded: one suspension
// point per tick, either the scheduled sleep or the stdin poll.
type loop struct {
	mode    config.Mode
	period  time.Duration
	out     io.Writer
	sampler *sampler.Sampler
	card    gpu.Card
	logger  *slog.Logger

	renderer  render.Renderer
	term      *render.TermRenderer
	screen    *render.Screen
	stdin     *rawStdin
	classView bool
	stop      bool
}

func (l *loop) run(ctx context.Context) error {
	// Priming sample: establishes the previous slots and the first
	// timestamp; the zero-delta frame is never rendered interactively.
	if err := l.sampler.Sample(); err != nil {
		return err
	}

	for ctx.Err() == nil && !l.stop {
		if l.mode == config.ModeInteractive {
			l.screen.UpdateSize(int(os.Stdout.Fd()))
		}

		// Prometheus is scraped one-shot: delay first so the sample
		// covers the requested period.
		if l.mode == config.ModePrometheus {
			if !sleepCtx(ctx, l.period) {
				break
			}
		}

		if err := l.sampler.Sample(); err != nil {
			return err
		}
		t := l.sampler.Interval()

		if ctx.Err() != nil {
			break
		}

		engines := l.sampler.Engines()
		if l.classView {
			engines = l.sampler.ClassEngines()
		}
		frame := render.Build(l.sampler, engines, t, l.mode == config.ModeJSON)

		if l.mode == config.ModeInteractive {
			if l.sampler.Primed() {
				render.Emit(l.term, frame)
				l.screen.Draw(frame, l.card.Name, l.card.ID,
					l.sampler.HasPower(), l.classView)
			}
		} else {
			for !render.Emit(l.renderer, frame) {
			}
		}

		if l.mode == config.ModePrometheus {
			fmt.Fprintln(l.out)
			break
		}

		if l.mode == config.ModeInteractive {
			l.processStdin()
		} else if !sleepCtx(ctx, l.period) {
			break
		}
	}

	return nil
}

// processStdin waits up to one period for keystrokes: 'q' quits, '1'
// toggles the per-class view.
func (l *loop) processStdin() {
	keys, err := l.stdin.poll(l.period)
	if err != nil {
		l.stop = true
		return
	}
	for _, key := range keys {
		switch key {
		case 'q':
			l.stop = true
		case '1':
			l.classView = !l.classView
		}
	}
}

// sleepCtx sleeps for d, reporting false if the context was canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
