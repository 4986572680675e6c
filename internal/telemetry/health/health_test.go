package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateAggregatesWorstStatus(t *testing.T) {
	eval := NewEvaluator(time.Minute,
		ProbeFunc(func(context.Context) ProbeResult { return Healthy("ipc") }),
		ProbeFunc(func(context.Context) ProbeResult { return Degraded("recovery", "armed") }),
	)

	snap := eval.Evaluate(context.Background())
	assert.Equal(t, StatusDegraded, snap.Overall)
	require.Len(t, snap.Probes, 2)
}

func TestEvaluateEscalatesToUnhealthy(t *testing.T) {
	eval := NewEvaluator(time.Minute,
		ProbeFunc(func(context.Context) ProbeResult { return Degraded("recovery", "armed") }),
		ProbeFunc(func(context.Context) ProbeResult { return Unhealthy("ipc", "disconnected") }),
	)

	snap := eval.Evaluate(context.Background())
	assert.Equal(t, StatusUnhealthy, snap.Overall)
}

func TestEvaluateWithNoProbesIsUnknown(t *testing.T) {
	eval := NewEvaluator(time.Minute)
	snap := eval.Evaluate(context.Background())
	assert.Equal(t, StatusUnknown, snap.Overall)
	assert.Empty(t, snap.Probes)
}

func TestEvaluateCachesWithinTTL(t *testing.T) {
	calls := 0
	eval := NewEvaluator(time.Hour, ProbeFunc(func(context.Context) ProbeResult {
		calls++
		return Healthy("ipc")
	}))

	eval.Evaluate(context.Background())
	eval.Evaluate(context.Background())
	assert.Equal(t, 1, calls)
}

func TestForceInvalidateRecomputes(t *testing.T) {
	calls := 0
	eval := NewEvaluator(time.Hour, ProbeFunc(func(context.Context) ProbeResult {
		calls++
		return Healthy("ipc")
	}))

	eval.Evaluate(context.Background())
	eval.ForceInvalidate()
	eval.Evaluate(context.Background())
	assert.Equal(t, 2, calls)
}

func TestRegisterAddsProbeToFutureEvaluations(t *testing.T) {
	eval := NewEvaluator(time.Hour)
	eval.Register(ProbeFunc(func(context.Context) ProbeResult { return Healthy("late") }))

	snap := eval.Evaluate(context.Background())
	require.Len(t, snap.Probes, 1)
	assert.Equal(t, "late", snap.Probes[0].Name)
}

func TestRegisterNilProbeIsIgnored(t *testing.T) {
	eval := NewEvaluator(time.Hour)
	eval.Register(nil)
	snap := eval.Evaluate(context.Background())
	assert.Empty(t, snap.Probes)
}

func TestNewEvaluatorDefaultsTTL(t *testing.T) {
	eval := NewEvaluator(0)
	assert.Equal(t, 2*time.Second, eval.ttl)
}
