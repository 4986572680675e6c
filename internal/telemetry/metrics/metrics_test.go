package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoopProviderDiscardsEverything(t *testing.T) {
	p := NewNoopProvider()

	counter := p.NewCounter(CounterOpts{CommonOpts{Name: "applies"}})
	assert.NotPanics(t, func() { counter.Inc(1, "ok") })

	gauge := p.NewGauge(GaugeOpts{CommonOpts{Name: "armed"}})
	assert.NotPanics(t, func() { gauge.Set(1); gauge.Add(-1) })

	hist := p.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{Name: "latency"}})
	assert.NotPanics(t, func() { hist.Observe(0.5) })

	stop := p.NewTimer(HistogramOpts{CommonOpts: CommonOpts{Name: "apply_duration"}})
	assert.NotPanics(t, func() { stop().ObserveDuration() })

	assert.NoError(t, p.Health(context.Background()))
}

func TestCommonOptsDottedName(t *testing.T) {
	cases := []struct {
		opts CommonOpts
		want string
	}{
		{CommonOpts{Namespace: "displayhelper", Subsystem: "apply", Name: "attempts"}, "displayhelper.apply.attempts"},
		{CommonOpts{Namespace: "displayhelper", Name: "attempts"}, "displayhelper.attempts"},
		{CommonOpts{Namespace: "displayhelper"}, "displayhelper"},
		{CommonOpts{Subsystem: "apply", Name: "attempts"}, "apply.attempts"},
		{CommonOpts{Subsystem: "apply"}, "apply"},
		{CommonOpts{Name: "attempts"}, "attempts"},
		{CommonOpts{}, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.opts.dotted())
	}
}
