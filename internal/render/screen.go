package render

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Serial consoles report a zero window size; fall back to a classic
// terminal.
const (
	fallbackWidth  = 80
	fallbackHeight = 24
)

var barGlyphs = []string{" ", "▏", "▎", "▍", "▌", "▋", "▊", "▉", "█"}

// Screen draws the interactive dashboard: clear sequence, summary line,
// optional IMC lines, inverse-video engine header and one bar row per
// engine, clipped to the terminal height.
type Screen struct {
	out    io.Writer
	Width  int
	Height int
	lines  int
}

// NewScreen returns a screen drawing to out with fallback dimensions.
func NewScreen(out io.Writer) *Screen {
	return &Screen{out: out, Width: fallbackWidth, Height: fallbackHeight}
}

// UpdateSize refreshes the terminal dimensions from fd.
func (s *Screen) UpdateSize(fd int) {
	w, h, err := term.GetSize(fd)
	if err != nil || (w == 0 && h == 0) {
		w, h = fallbackWidth, fallbackHeight
	}
	s.Width, s.Height = w, h
}

// Draw renders one frame. Item buffers must already be filled by the
// TermRenderer for this frame.
func (s *Screen) Draw(f *Frame, codename, card string, hasPower, classView bool) {
	s.lines = 0
	io.WriteString(s.out, "\033[H\033[J")

	if s.line() {
		fmt.Fprintf(s.out, "intel-gpu-top: %s @ %s - ", codename, card)
		fmt.Fprintf(s.out, "%s/%s MHz;  %s%% RC6; ",
			f.Freq.Items[1].buf, f.Freq.Items[0].buf, f.RC6.Items[0].buf)
		if hasPower {
			fmt.Fprintf(s.out, "%s/%s W; ", f.Power.Items[0].buf, f.Power.Items[1].buf)
		}
		fmt.Fprintf(s.out, "%s irqs/s\n", f.IRQ.Items[0].buf)
	}
	if s.line() {
		fmt.Fprintln(s.out)
	}

	if f.IMC != nil {
		unit := strings.TrimSuffix(f.IMC.Items[2].Unit, "/s")
		if s.line() {
			fmt.Fprintf(s.out, "      IMC reads:   %s %s/s\n", f.IMC.Items[0].buf, unit)
		}
		if s.line() {
			fmt.Fprintf(s.out, "     IMC writes:   %s %s/s\n", f.IMC.Items[1].buf, unit)
		}
		if s.line() {
			fmt.Fprintln(s.out)
		}
	}

	if len(f.Engines) > 0 && s.line() {
		s.engineHeader(classView)
	}

	for _, g := range f.Engines {
		if s.lines >= s.Height {
			break
		}
		s.engineRow(g)
		s.lines++
	}

	if s.line() {
		fmt.Fprintln(s.out)
	}
}

// line reserves one output line, reporting false past the bottom edge.
func (s *Screen) line() bool {
	if s.lines >= s.Height {
		return false
	}
	s.lines++
	return true
}

func (s *Screen) engineHeader(classView bool) {
	left := "          ENGINE     BUSY  "
	if classView {
		left = "         ENGINES     BUSY  "
	}
	right := " MI_SEMA MI_WAIT"
	pad := s.Width - 1 - len(left) - len(right)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(s.out, "\033[7m%s%*s%s\033[0m\n", left, pad, " ", right)
}

func (s *Screen) engineRow(g *Group) {
	busy, sema, wait := g.Items[0], g.Items[1], g.Items[2]

	tail := fmt.Sprintf("    %s%%    %s%%", sema.buf, wait.buf)
	head := fmt.Sprintf("%16s %s%% ", g.Name, busy.buf)
	io.WriteString(s.out, head)

	barWidth := s.Width - 1 - len(head) - len(tail)
	io.WriteString(s.out, percentageBar(busy.Value(), barWidth))
	fmt.Fprintf(s.out, "%s\n", tail)
}

// percentageBar renders a bracketed fill bar using eighth-block glyphs;
// each cell holds eight fill steps.
func percentageBar(percent float64, maxLen int) string {
	if maxLen < 3 {
		return ""
	}
	barLen := int(percent * float64(8*(maxLen-2)) / 100.0)

	var b strings.Builder
	b.WriteByte('|')
	i := barLen
	for ; i >= 8; i -= 8 {
		b.WriteString(barGlyphs[8])
	}
	if i > 0 {
		b.WriteString(barGlyphs[i])
	}
	for n := maxLen - 2 - (barLen+7)/8; n > 0; n-- {
		b.WriteByte(' ')
	}
	b.WriteByte('|')
	return b.String()
}
