package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nonary/displayhelper/internal/types"
)

func TestFakeClockAdvancesOnSleep(t *testing.T) {
	clock := NewFakeClock(time.Unix(100, 0))
	before := clock.Now()
	clock.Sleep(context.Background(), 5*time.Second)
	assert.Equal(t, 5*time.Second, clock.Now().Sub(before))
}

func TestFakeClockSleepRespectsCancelledContext(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := clock.Now()
	clock.Sleep(ctx, time.Second)
	assert.Equal(t, before, clock.Now(), "sleep on an already-cancelled context must not advance time")
}

func TestRealClockNowAdvances(t *testing.T) {
	clock := RealClock()
	first := clock.Now()
	clock.Sleep(context.Background(), time.Millisecond)
	assert.True(t, clock.Now().After(first) || clock.Now().Equal(first))
}

func TestFakeDisplaySettingsDefaultApplyTopologySetsState(t *testing.T) {
	d := NewFakeDisplaySettings()
	status := d.ApplyTopology(context.Background(), types.Topology{{"dp-1"}})
	assert.Equal(t, types.StatusOk, status)

	current, err := d.CurrentTopology(context.Background())
	assert.NoError(t, err)
	assert.True(t, current.Equal(types.Topology{{"dp-1"}}))
}

func TestFakeDisplaySettingsInjectableFunctions(t *testing.T) {
	d := NewFakeDisplaySettings()
	d.ApplyTopoFn = func(types.Topology) types.ApplyStatus { return types.StatusFatal }
	assert.Equal(t, types.StatusFatal, d.ApplyTopology(context.Background(), nil))

	d.ValidateFn = func(types.Topology) bool { return false }
	assert.False(t, d.ValidateTopology(context.Background(), nil))
}

func TestFakeDisplaySettingsMatchesCurrentDefaultsToSnapshotEquality(t *testing.T) {
	d := NewFakeDisplaySettings()
	snap := types.NewSnapshot()
	snap.Topology = types.Topology{{"dp-1"}}
	d.Snapshot = snap

	assert.True(t, d.MatchesCurrent(context.Background(), snap))

	other := types.NewSnapshot()
	other.Topology = types.Topology{{"dp-2"}}
	assert.False(t, d.MatchesCurrent(context.Background(), other))
}

func TestFakeVirtualDisplayDriverTracksCallsAndErrors(t *testing.T) {
	vd := &FakeVirtualDisplayDriver{}
	assert.NoError(t, vd.Disable(context.Background()))
	assert.NoError(t, vd.Enable(context.Background()))
	enabled, err := vd.Probe(context.Background())
	assert.NoError(t, err)
	assert.True(t, enabled)
	assert.Equal(t, 1, vd.DisableCalls)
	assert.Equal(t, 1, vd.EnableCalls)

	vd.EnableErr = assertFakeErr("enable failed")
	assert.Error(t, vd.Enable(context.Background()))
}

func TestFakeScheduledTaskLifecycle(t *testing.T) {
	st := &FakeScheduledTask{}
	exists, err := st.Exists(context.Background())
	assert.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, st.Create(context.Background(), "user"))
	exists, _ = st.Exists(context.Background())
	assert.True(t, exists)

	assert.NoError(t, st.Delete(context.Background()))
	exists, _ = st.Exists(context.Background())
	assert.False(t, exists)
}

func TestFakeSessionStateToggles(t *testing.T) {
	s := NewFakeSessionState(false)
	assert.False(t, s.Interactive(context.Background()))
	s.SetInteractive(true)
	assert.True(t, s.Interactive(context.Background()))
}

func TestBestEffortPrincipalIsEmptyStub(t *testing.T) {
	assert.Equal(t, "", BestEffortPrincipal())
}

type assertFakeErr string

func (e assertFakeErr) Error() string { return string(e) }
