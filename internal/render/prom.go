package render

import (
	"io"
	"strings"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

const promPrefix = "intel_gpu_top"

// PromRenderer writes one Prometheus text exposition snapshot. Every item
// becomes a gauge family named intel_gpu_top_<group>_<item>, encoded in
// emission order; the renderer performs no HTTP.
type PromRenderer struct {
	out io.Writer
}

// NewPromRenderer returns a Prometheus exposition renderer.
func NewPromRenderer(out io.Writer) *PromRenderer {
	return &PromRenderer{out: out}
}

func (p *PromRenderer) headersPass() int {
	return 0
}

func (p *PromRenderer) OpenStruct(name string) {}

func (p *PromRenderer) CloseStruct() {}

func (p *PromRenderer) AddMember(g *Group, it *Item, headers int) {
	if it.Counter == nil || !it.Counter.Present {
		return
	}

	name := promPrefix + "_" + metricKey(g.Name) + "_" + metricKey(it.Name)
	help := strings.TrimSpace(g.DisplayName + " " + it.Name)
	if it.Unit != "" {
		help += " (" + it.Unit + ")"
	}

	family := &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: proto.Float64(it.Value())}},
		},
	}
	expfmt.MetricFamilyToText(p.out, family)
}

func (p *PromRenderer) PrintGroup(g *Group, headers int) {
	printGroup(p, g, headers)
}

// metricKey lowercases a source string and maps every character outside
// [a-z0-9] to underscore.
func metricKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
