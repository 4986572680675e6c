package metrics

// OTel metrics bridge: implements Provider on top of an OTel MeterProvider.
// Gauges simulate Set semantics via an UpDownCounter delta, since OTel has
// no native settable gauge instrument in the stable metric API.

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// OTelProviderOptions configures the bridge.
type OTelProviderOptions struct {
	ServiceName      string
	CardinalityLimit int
}

// NewOTelProvider returns a Provider backed by an OTel MeterProvider.
func NewOTelProvider(opts OTelProviderOptions) Provider {
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "displayhelper"
	}
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	meter := mp.Meter("displayhelper")
	limit := opts.CardinalityLimit
	if limit <= 0 {
		limit = 100
	}
	return &otelProvider{mp: mp, meter: meter, cardLimit: limit, cardinality: make(map[string]map[string]struct{})}
}

type otelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter

	mu          sync.Mutex
	cardinality map[string]map[string]struct{}
	cardLimit   int
}

func (p *otelProvider) NewCounter(opts CounterOpts) Counter {
	name := opts.dotted()
	inst, err := p.meter.Float64Counter(name, metric.WithDescription(opts.Help))
	if err != nil {
		return noopCounter{}
	}
	return &otelCounter{c: inst, labelKeys: opts.Labels}
}
func (p *otelProvider) NewGauge(opts GaugeOpts) Gauge {
	name := opts.dotted()
	inst, err := p.meter.Float64UpDownCounter(name, metric.WithDescription(opts.Help))
	if err != nil {
		return noopGauge{}
	}
	return &otelGauge{g: inst, labelKeys: opts.Labels}
}
func (p *otelProvider) NewHistogram(opts HistogramOpts) Histogram {
	name := opts.dotted()
	inst, err := p.meter.Float64Histogram(name, metric.WithDescription(opts.Help))
	if err != nil {
		return noopHistogram{}
	}
	return &otelHistogram{h: inst, labelKeys: opts.Labels}
}
func (p *otelProvider) NewTimer(h HistogramOpts) func() Timer {
	hist := p.NewHistogram(h)
	return func() Timer { return &otelTimer{h: hist, start: time.Now()} }
}
func (p *otelProvider) Health(ctx context.Context) error { return nil }

func attrsFor(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	kv := make([]attribute.KeyValue, 0, n)
	for i := 0; i < n; i++ {
		kv = append(kv, attribute.String(keys[i], values[i]))
	}
	return kv
}

type otelCounter struct {
	c         metric.Float64Counter
	labelKeys []string
}

func (c *otelCounter) Inc(delta float64, labels ...string) {
	c.c.Add(context.Background(), delta, metric.WithAttributes(attrsFor(c.labelKeys, labels)...))
}

type otelGauge struct {
	g         metric.Float64UpDownCounter
	labelKeys []string
	mu        sync.Mutex
	last      map[string]float64
}

func (g *otelGauge) Set(v float64, labels ...string) {
	key := labelKey(labels)
	g.mu.Lock()
	if g.last == nil {
		g.last = make(map[string]float64)
	}
	prev := g.last[key]
	g.last[key] = v
	g.mu.Unlock()
	g.g.Add(context.Background(), v-prev, metric.WithAttributes(attrsFor(g.labelKeys, labels)...))
}
func (g *otelGauge) Add(delta float64, labels ...string) {
	key := labelKey(labels)
	g.mu.Lock()
	if g.last == nil {
		g.last = make(map[string]float64)
	}
	g.last[key] += delta
	g.mu.Unlock()
	g.g.Add(context.Background(), delta, metric.WithAttributes(attrsFor(g.labelKeys, labels)...))
}

func labelKey(labels []string) string {
	s := ""
	for _, l := range labels {
		s += l + "\x00"
	}
	return s
}

type otelHistogram struct {
	h         metric.Float64Histogram
	labelKeys []string
}

func (h *otelHistogram) Observe(v float64, labels ...string) {
	h.h.Record(context.Background(), v, metric.WithAttributes(attrsFor(h.labelKeys, labels)...))
}

type otelTimer struct {
	h     Histogram
	start time.Time
}

func (t *otelTimer) ObserveDuration(labels ...string) {
	t.h.Observe(time.Since(t.start).Seconds(), labels...)
}
