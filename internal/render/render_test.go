package render

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/skobkin/intelgputop/internal/pmu"
	"github.com/skobkin/intelgputop/internal/sampler"
)

// testSampler fabricates a sampler holding one primed render engine plus
// the frequency/irq/rc6 counters. Busy advanced 5e8 ns over a 1 s tick.
func testSampler() (*sampler.Sampler, []*pmu.Engine) {
	s := &sampler.Sampler{}
	s.TSPrev = 1e9
	s.TSCur = 2e9

	s.IRQ = pmu.Counter{Present: true, Prev: 100, Cur: 1124}
	s.FreqReq = pmu.Counter{Present: true, Prev: 0, Cur: 450}
	s.FreqAct = pmu.Counter{Present: true, Prev: 0, Cur: 300}
	s.RC6 = pmu.Counter{Present: true, Prev: 0, Cur: 25e7}

	engine := &pmu.Engine{
		Name:        "rcs0",
		DisplayName: "Render/3D/0",
		ShortName:   "RCS/0",
		Class:       pmu.ClassRender,
		NumCounters: 3,
	}
	engine.Busy = pmu.Counter{Present: true, Prev: 0, Cur: 5e8}
	engine.Sema = pmu.Counter{Present: true}
	engine.Wait = pmu.Counter{Present: true}

	return s, []*pmu.Engine{engine}
}

func TestTextRendererHeadersThenData(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, false)

	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	if Emit(r, frame) {
		t.Fatalf("first emit must be the group-name header row")
	}
	if Emit(r, frame) {
		t.Fatalf("second emit must be the unit header row")
	}
	if !Emit(r, frame) {
		t.Fatalf("third emit must produce data")
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 rows, got %d: %q", len(lines), lines)
	}

	if !strings.Contains(lines[0], "Freq MHz") || !strings.Contains(lines[0], "RCS/0") {
		t.Errorf("unexpected group header row: %q", lines[0])
	}
	if !strings.Contains(lines[1], "req") || !strings.Contains(lines[1], "act") ||
		!strings.Contains(lines[1], "se") || !strings.Contains(lines[1], "wa") {
		t.Errorf("unexpected unit header row: %q", lines[1])
	}
	if !strings.Contains(lines[2], " 50.00") {
		t.Errorf("expected busy=50.00 in data row: %q", lines[2])
	}
	if !strings.Contains(lines[2], "1024") {
		t.Errorf("expected 1024 irq/s in data row: %q", lines[2])
	}
}

func TestTextRendererHeaderRepeat(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, false)

	var buf bytes.Buffer
	r := NewTextRenderer(&buf)

	rows := 0
	for rows < textHeaderRepeat+1 {
		if Emit(r, frame) {
			rows++
		}
	}

	headerRows := 0
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, "Freq MHz") {
			headerRows++
		}
	}
	if headerRows != 2 {
		t.Fatalf("expected the header to repeat once after %d data rows, found %d header rows",
			textHeaderRepeat, headerRows)
	}
}

func TestTextRendererSkipsAbsentGroups(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, false)

	var buf bytes.Buffer
	r := NewTextRenderer(&buf)
	for !Emit(r, frame) {
	}

	out := buf.String()
	if strings.Contains(out, "Power") {
		t.Errorf("absent power group must not appear: %q", out)
	}
	if strings.Contains(out, "imc") {
		t.Errorf("absent imc group must not appear: %q", out)
	}
}

func TestJSONRendererShape(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, true)

	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)
	if !Emit(r, frame) {
		t.Fatalf("json emit must always consume")
	}

	var sample map[string]any
	if err := json.Unmarshal(buf.Bytes(), &sample); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}

	period, ok := sample["period"].(map[string]any)
	if !ok {
		t.Fatalf("missing period object: %v", sample)
	}
	if period["duration"] != 1000.0 {
		t.Errorf("unexpected duration: %v", period["duration"])
	}
	if period["unit"] != "ms" {
		t.Errorf("unexpected period unit: %v", period["unit"])
	}

	freq, ok := sample["frequency"].(map[string]any)
	if !ok {
		t.Fatalf("missing frequency object")
	}
	if freq["requested"] != 450.0 {
		t.Errorf("unexpected requested frequency: %v", freq["requested"])
	}

	engines2, ok := sample["engines"].(map[string]any)
	if !ok {
		t.Fatalf("missing engines object")
	}
	rcs, ok := engines2["Render/3D/0"].(map[string]any)
	if !ok {
		t.Fatalf("missing Render/3D/0 object: %v", engines2)
	}
	if rcs["busy"] != 50.0 {
		t.Errorf("unexpected busy: %v", rcs["busy"])
	}

	if _, ok := sample["power"]; ok {
		t.Errorf("absent power group must be skipped")
	}

	if !strings.Contains(buf.String(), "\t\"frequency\"") {
		t.Errorf("members must be tab-indented:\n%s", buf.String())
	}
}

func TestJSONRendererStreamsWholeObjects(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, true)

	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)
	Emit(r, frame)
	Emit(r, frame)

	dec := json.NewDecoder(&buf)
	for i := 0; i < 2; i++ {
		var sample map[string]any
		if err := dec.Decode(&sample); err != nil {
			t.Fatalf("sample %d failed to decode: %v", i, err)
		}
	}
}

func TestPromRendererExposition(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, false)

	var buf bytes.Buffer
	r := NewPromRenderer(&buf)
	if !Emit(r, frame) {
		t.Fatalf("prometheus emit must always consume")
	}
	out := buf.String()

	metricLine := regexp.MustCompile(`(?m)^intel_gpu_top_[a-z0-9_]+_[a-z0-9_]+ `)
	if !metricLine.MatchString(out) {
		t.Fatalf("no sanitised metric lines found:\n%s", out)
	}

	for _, want := range []string{
		"# HELP intel_gpu_top_frequency_requested",
		"# TYPE intel_gpu_top_frequency_requested gauge",
		"# TYPE intel_gpu_top_interrupts_count gauge",
		"# TYPE intel_gpu_top_render_3d_0_busy gauge",
		"intel_gpu_top_render_3d_0_busy 50",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition:\n%s", want, out)
		}
	}

	if strings.Contains(out, "intel_gpu_top_power") {
		t.Errorf("absent power counters must not be exported:\n%s", out)
	}

	// Every emitted name stays within the sanitised alphabet.
	badName := regexp.MustCompile(`(?m)^intel_gpu_top_\S*[^a-z0-9_\s]`)
	if badName.MatchString(out) {
		t.Errorf("metric name escaped the sanitised alphabet:\n%s", out)
	}
}

func TestMetricKey(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Render/3D/0":   "render_3d_0",
		"imc-bandwidth": "imc_bandwidth",
		"Package":       "package",
		"rc6":           "rc6",
	}
	for in, want := range tests {
		if got := metricKey(in); got != want {
			t.Errorf("metricKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPercentageBar(t *testing.T) {
	t.Parallel()

	full := percentageBar(100, 10)
	if !strings.HasPrefix(full, "|") || !strings.HasSuffix(full, "|") {
		t.Fatalf("bar must be bracketed: %q", full)
	}
	if got := strings.Count(full, "█"); got != 8 {
		t.Errorf("full bar must fill all cells, got %d: %q", got, full)
	}

	empty := percentageBar(0, 10)
	if strings.Contains(empty, "█") {
		t.Errorf("empty bar must have no fill: %q", empty)
	}
	if len([]rune(empty)) != 10 {
		t.Errorf("bar width must be constant, got %d", len([]rune(empty)))
	}

	half := percentageBar(50, 10)
	if got := strings.Count(half, "█"); got != 4 {
		t.Errorf("half bar must fill half the cells, got %d: %q", got, half)
	}

	if percentageBar(50, 2) != "" {
		t.Errorf("degenerate widths must render nothing")
	}
}

func TestScreenDraw(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, false)
	Emit(NewTermRenderer(), frame)

	var buf bytes.Buffer
	screen := NewScreen(&buf)
	screen.Draw(frame, "AlderLake-P", "card0", false, false)
	out := buf.String()

	if !strings.HasPrefix(out, "\033[H\033[J") {
		t.Fatalf("draw must start with the clear sequence")
	}
	if !strings.Contains(out, "intel-gpu-top: AlderLake-P @ card0") {
		t.Errorf("missing summary line:\n%q", out)
	}
	if !strings.Contains(out, " 300/ 450 MHz") {
		t.Errorf("missing act/req frequencies:\n%q", out)
	}
	if strings.Contains(out, "W; ") {
		t.Errorf("power segment must be omitted without RAPL:\n%q", out)
	}
	if !strings.Contains(out, "\033[7m") || !strings.Contains(out, "ENGINE     BUSY") {
		t.Errorf("missing inverse-video engine header:\n%q", out)
	}
	if !strings.Contains(out, "Render/3D/0") || !strings.Contains(out, " 50.00% ") {
		t.Errorf("missing engine row:\n%q", out)
	}
	if !strings.Contains(out, "MI_SEMA MI_WAIT") {
		t.Errorf("missing sema/wait header:\n%q", out)
	}
}

func TestScreenDrawClassViewHeader(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	frame := Build(s, engines, 1.0, false)
	Emit(NewTermRenderer(), frame)

	var buf bytes.Buffer
	screen := NewScreen(&buf)
	screen.Draw(frame, "AlderLake-P", "card0", false, true)

	if !strings.Contains(buf.String(), "ENGINES     BUSY") {
		t.Errorf("class view must relabel the engine column:\n%q", buf.String())
	}
}

func TestTermRendererAbsentCounters(t *testing.T) {
	t.Parallel()

	s, engines := testSampler()
	s.RC6.Present = false
	frame := Build(s, engines, 1.0, false)
	Emit(NewTermRenderer(), frame)

	if frame.RC6.Items[0].buf != "---" {
		t.Errorf("absent rc6 must render dashes, got %q", frame.RC6.Items[0].buf)
	}
}
