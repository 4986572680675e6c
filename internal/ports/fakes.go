package ports

import (
	"context"
	"sync"
	"time"

	"github.com/nonary/displayhelper/internal/types"
)

// FakeClock is a manually-advanced Clock for deterministic tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock { return &FakeClock{now: start} }

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Sleep on a FakeClock advances virtual time immediately rather than blocking,
// so operation tests run at full speed while still exercising real delays.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
		return
	default:
	}
	c.Advance(d)
}

// FakeDisplaySettings is an in-memory DisplaySettings used by operation and
// state-machine tests.
type FakeDisplaySettings struct {
	mu sync.Mutex

	Devices        []Device
	Topology       types.Topology
	Snapshot       types.Snapshot
	ApplyTopoFn    func(types.Topology) types.ApplyStatus
	ApplyConfigFn  func(types.SingleDisplayConfiguration) types.ApplyStatus
	ValidateFn     func(types.Topology) bool
	MatchesFn      func(types.Snapshot) bool
	ConfigMatchFn  func(types.SingleDisplayConfiguration) bool
	ExpectedTopoFn func(types.SingleDisplayConfiguration, types.Topology) (types.Topology, error)
	SetOriginErr   error
}

func NewFakeDisplaySettings() *FakeDisplaySettings {
	return &FakeDisplaySettings{Snapshot: types.NewSnapshot()}
}

func (f *FakeDisplaySettings) EnumerateDevices(ctx context.Context) ([]Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Device(nil), f.Devices...), nil
}

func (f *FakeDisplaySettings) ApplyTopology(ctx context.Context, t types.Topology) types.ApplyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ApplyTopoFn != nil {
		return f.ApplyTopoFn(t)
	}
	f.Topology = t
	return types.StatusOk
}

func (f *FakeDisplaySettings) ApplyConfiguration(ctx context.Context, cfg types.SingleDisplayConfiguration) types.ApplyStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ApplyConfigFn != nil {
		return f.ApplyConfigFn(cfg)
	}
	return types.StatusOk
}

func (f *FakeDisplaySettings) SetOrigin(ctx context.Context, deviceID string, origin types.Point) error {
	return f.SetOriginErr
}

func (f *FakeDisplaySettings) ExpectedTopology(ctx context.Context, cfg types.SingleDisplayConfiguration, current types.Topology) (types.Topology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExpectedTopoFn != nil {
		return f.ExpectedTopoFn(cfg, current)
	}
	return current, nil
}

func (f *FakeDisplaySettings) ValidateTopology(ctx context.Context, t types.Topology) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ValidateFn != nil {
		return f.ValidateFn(t)
	}
	return true
}

func (f *FakeDisplaySettings) CurrentTopology(ctx context.Context) (types.Topology, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Topology, nil
}

func (f *FakeDisplaySettings) ConfigurationMatches(ctx context.Context, cfg types.SingleDisplayConfiguration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigMatchFn != nil {
		return f.ConfigMatchFn(cfg)
	}
	return true
}

func (f *FakeDisplaySettings) CaptureSnapshot(ctx context.Context) (types.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Snapshot, nil
}

func (f *FakeDisplaySettings) MatchesCurrent(ctx context.Context, s types.Snapshot) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MatchesFn != nil {
		return f.MatchesFn(s)
	}
	return s.Equal(f.Snapshot)
}

// FakeVirtualDisplayDriver is an in-memory VirtualDisplayDriver.
type FakeVirtualDisplayDriver struct {
	mu           sync.Mutex
	DisableErr   error
	EnableErr    error
	Enabled      bool
	DisableCalls int
	EnableCalls  int
}

func (f *FakeVirtualDisplayDriver) Disable(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DisableCalls++
	if f.DisableErr != nil {
		return f.DisableErr
	}
	f.Enabled = false
	return nil
}
func (f *FakeVirtualDisplayDriver) Enable(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.EnableCalls++
	if f.EnableErr != nil {
		return f.EnableErr
	}
	f.Enabled = true
	return nil
}
func (f *FakeVirtualDisplayDriver) Probe(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Enabled, nil
}

// FakeScheduledTask is an in-memory ScheduledTask.
type FakeScheduledTask struct {
	mu          sync.Mutex
	created     bool
	CreateCalls int
	DeleteCalls int
}

func (f *FakeScheduledTask) Create(ctx context.Context, principal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = true
	f.CreateCalls++
	return nil
}
func (f *FakeScheduledTask) Delete(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = false
	f.DeleteCalls++
	return nil
}
func (f *FakeScheduledTask) Exists(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.created, nil
}

// FakeWorkarounds is an in-memory Workarounds.
type FakeWorkarounds struct {
	mu            sync.Mutex
	HDRBlankCalls int
	RefreshCalls  int
	HDRBlankErr   error
	RefreshErr    error
}

func (f *FakeWorkarounds) HDRBlankNudge(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.HDRBlankCalls++
	return f.HDRBlankErr
}
func (f *FakeWorkarounds) RefreshShell(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	return f.RefreshErr
}

// FakeSessionState reports the interactivity it was constructed with, or
// the last value passed to SetInteractive.
type FakeSessionState struct {
	mu          sync.Mutex
	interactive bool
}

func NewFakeSessionState(interactive bool) *FakeSessionState {
	return &FakeSessionState{interactive: interactive}
}
func (f *FakeSessionState) Interactive(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interactive
}
func (f *FakeSessionState) SetInteractive(v bool) {
	f.mu.Lock()
	f.interactive = v
	f.mu.Unlock()
}
