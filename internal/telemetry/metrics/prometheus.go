package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusProviderOptions tunes the registry used by NewPrometheusProvider.
type PrometheusProviderOptions struct {
	Registerer prometheus.Registerer
}

// NewPrometheusProvider returns a Provider backed by client_golang. When
// opts.Registerer is nil, prometheus.DefaultRegisterer is used.
func NewPrometheusProvider(opts PrometheusProviderOptions) Provider {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &promProvider{reg: reg}
}

type promProvider struct {
	reg prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func (p *promProvider) NewCounter(opts CounterOpts) Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counters == nil {
		p.counters = make(map[string]*prometheus.CounterVec)
	}
	name := opts.dotted()
	cv, ok := p.counters[name]
	if !ok {
		cv = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help,
		}, opts.Labels)
		_ = p.reg.Register(cv)
		p.counters[name] = cv
	}
	return &promCounter{cv: cv}
}

func (p *promProvider) NewGauge(opts GaugeOpts) Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gauges == nil {
		p.gauges = make(map[string]*prometheus.GaugeVec)
	}
	name := opts.dotted()
	gv, ok := p.gauges[name]
	if !ok {
		gv = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help,
		}, opts.Labels)
		_ = p.reg.Register(gv)
		p.gauges[name] = gv
	}
	return &promGauge{gv: gv}
}

func (p *promProvider) NewHistogram(opts HistogramOpts) Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.histograms == nil {
		p.histograms = make(map[string]*prometheus.HistogramVec)
	}
	name := opts.dotted()
	hv, ok := p.histograms[name]
	if !ok {
		buckets := opts.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		hv = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace, Subsystem: opts.Subsystem, Name: opts.Name, Help: opts.Help, Buckets: buckets,
		}, opts.Labels)
		_ = p.reg.Register(hv)
		p.histograms[name] = hv
	}
	return &promHistogram{hv: hv}
}

func (p *promProvider) NewTimer(h HistogramOpts) func() Timer {
	hist := p.NewHistogram(h)
	return func() Timer { return &promTimer{h: hist, start: time.Now()} }
}

func (p *promProvider) Health(ctx context.Context) error { return nil }

type promCounter struct{ cv *prometheus.CounterVec }

func (c *promCounter) Inc(delta float64, labels ...string) { c.cv.WithLabelValues(labels...).Add(delta) }

type promGauge struct{ gv *prometheus.GaugeVec }

func (g *promGauge) Set(v float64, labels ...string) { g.gv.WithLabelValues(labels...).Set(v) }
func (g *promGauge) Add(delta float64, labels ...string) {
	g.gv.WithLabelValues(labels...).Add(delta)
}

type promHistogram struct{ hv *prometheus.HistogramVec }

func (h *promHistogram) Observe(v float64, labels ...string) { h.hv.WithLabelValues(labels...).Observe(v) }

type promTimer struct {
	h     Histogram
	start time.Time
}

func (t *promTimer) ObserveDuration(labels ...string) {
	t.h.Observe(time.Since(t.start).Seconds(), labels...)
}
