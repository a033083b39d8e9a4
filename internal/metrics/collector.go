// Package metrics provides a small Prometheus-compatible registry for the
// relay. It renders the text exposition format directly.
package metrics

import (
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry served on the metrics endpoint.
var Collector = NewRegistry()

type metricType string

const (
	typeCounter   metricType = "counter"
	typeGauge     metricType = "gauge"
	typeHistogram metricType = "histogram"
)

// series is one labelled sample set within a family.
type series interface {
	write(sb *strings.Builder, name, labels string)
}

// family groups every series sharing a metric name, so HELP and TYPE are
// written once and samples of one name stay contiguous.
type family struct {
	name   string
	help   string
	typ    metricType
	series map[string]series // labels -> series
}

// Registry holds metric families keyed by name.
type Registry struct {
	mu        sync.Mutex
	families  map[string]*family
	startTime time.Time
}

// NewRegistry creates an empty registry. Its uptime starts now.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]*family), startTime: time.Now()}
}

// Uptime returns how long the registry has existed.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.startTime)
}

// register returns the series for name/labels, creating it with mk when
// missing. Reusing a name with another type is a programming error.
func (r *Registry) register(name, help string, typ metricType, labels string, mk func() series) series {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.families[name]
	if !ok {
		f = &family{name: name, help: help, typ: typ, series: make(map[string]series)}
		r.families[name] = f
	} else if f.typ != typ {
		panic(fmt.Sprintf("metrics: %s registered as %s, requested as %s", name, f.typ, typ))
	}
	s, ok := f.series[labels]
	if !ok {
		s = mk()
		f.series[labels] = s
	}
	return s
}

// Counter returns or creates the counter name{labels}. labels is the
// rendered label set, e.g. `result="ok"`, or empty.
func (r *Registry) Counter(name, help, labels string) *Counter {
	return r.register(name, help, typeCounter, labels, func() series { return &Counter{} }).(*Counter)
}

// Gauge returns or creates the gauge name{labels}.
func (r *Registry) Gauge(name, help, labels string) *Gauge {
	return r.register(name, help, typeGauge, labels, func() series { return &Gauge{} }).(*Gauge)
}

// Histogram returns or creates the histogram name{labels}. Bounds are upper
// bucket limits; the +Inf bucket is implicit.
func (r *Registry) Histogram(name, help, labels string, bounds []float64) *Histogram {
	return r.register(name, help, typeHistogram, labels, func() series {
		b := slices.Clone(bounds)
		sort.Float64s(b)
		return &Histogram{bounds: b, counts: make([]int64, len(b))}
	}).(*Histogram)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

func (c *Counter) write(sb *strings.Builder, name, labels string) {
	writeSample(sb, name, labels, strconv.FormatInt(c.Value(), 10))
}

// Gauge is a value that can go up and down.
type Gauge struct {
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

func (g *Gauge) write(sb *strings.Builder, name, labels string) {
	writeSample(sb, name, labels, strconv.FormatInt(g.Value(), 10))
}

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	mu     sync.Mutex
	bounds []float64
	counts []int64 // counts[i] = observations <= bounds[i]
	count  int64
	sum    float64
}

// Observe records a value.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

func (h *Histogram) write(sb *strings.Builder, name, labels string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, le := range h.bounds {
		writeSample(sb, name+"_bucket", joinLabels(labels, `le="`+formatFloat(le)+`"`), strconv.FormatInt(h.counts[i], 10))
	}
	writeSample(sb, name+"_bucket", joinLabels(labels, `le="+Inf"`), strconv.FormatInt(h.count, 10))
	writeSample(sb, name+"_sum", labels, formatFloat(h.sum))
	writeSample(sb, name+"_count", labels, strconv.FormatInt(h.count, 10))
}

// Handler renders every family in Prometheus text format, sorted by name
// and label set.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, r.render())
	}
}

func (r *Registry) render() string {
	var sb strings.Builder
	sb.WriteString("# HELP memosy_uptime_seconds Time since start in seconds\n")
	sb.WriteString("# TYPE memosy_uptime_seconds gauge\n")
	writeSample(&sb, "memosy_uptime_seconds", "", strconv.FormatInt(int64(r.Uptime().Seconds()), 10))

	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f := r.families[name]
		fmt.Fprintf(&sb, "# HELP %s %s\n", f.name, f.help)
		fmt.Fprintf(&sb, "# TYPE %s %s\n", f.name, f.typ)
		labelSets := make([]string, 0, len(f.series))
		for labels := range f.series {
			labelSets = append(labelSets, labels)
		}
		sort.Strings(labelSets)
		for _, labels := range labelSets {
			f.series[labels].write(&sb, f.name, labels)
		}
	}
	return sb.String()
}

func writeSample(sb *strings.Builder, name, labels, value string) {
	sb.WriteString(name)
	if labels != "" {
		sb.WriteString("{" + labels + "}")
	}
	sb.WriteString(" " + value + "\n")
}

func joinLabels(labels, extra string) string {
	if labels == "" {
		return extra
	}
	return labels + "," + extra
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
