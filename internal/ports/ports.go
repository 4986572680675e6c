// Package ports declares the small capability interfaces the coordinator is
// parameterized over: display settings, virtual-display driver, scheduled
// task, platform workarounds, clock, and session state. Concrete OS
// bindings live outside this module; this package only ships the
// interfaces plus a RealClock and in-memory fakes used by tests.
package ports

import (
	"context"
	"time"

	"github.com/nonary/displayhelper/internal/types"
)

// Clock abstracts monotonic time and cooperative sleep so operations and
// policies are deterministically testable.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

type realClock struct{}

// RealClock is the wall-clock Clock used in production.
func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }
func (realClock) Sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// DisplaySettings is the façade over the concrete OS display API bindings:
// enumerate devices, apply configuration/topology, capture/apply/compare
// snapshots, compute the expected post-apply topology, and validate a
// topology.
type DisplaySettings interface {
	EnumerateDevices(ctx context.Context) ([]Device, error)
	ApplyTopology(ctx context.Context, t types.Topology) types.ApplyStatus
	ApplyConfiguration(ctx context.Context, cfg types.SingleDisplayConfiguration) types.ApplyStatus
	SetOrigin(ctx context.Context, deviceID string, origin types.Point) error
	ExpectedTopology(ctx context.Context, cfg types.SingleDisplayConfiguration, current types.Topology) (types.Topology, error)
	ValidateTopology(ctx context.Context, t types.Topology) bool
	CurrentTopology(ctx context.Context) (types.Topology, error)
	ConfigurationMatches(ctx context.Context, cfg types.SingleDisplayConfiguration) bool
	CaptureSnapshot(ctx context.Context) (types.Snapshot, error)
	MatchesCurrent(ctx context.Context, s types.Snapshot) bool
}

// Device is one enumerated display device.
type Device struct {
	ID   string
	Name string
}

// VirtualDisplayDriver controls the virtual display's driver control plane.
type VirtualDisplayDriver interface {
	Disable(ctx context.Context) error
	Enable(ctx context.Context) error
	Probe(ctx context.Context) (bool, error)
}

// ScheduledTask manages the logon-triggered task that re-invokes the helper
// with --restore after a crash or reboot.
type ScheduledTask interface {
	Create(ctx context.Context, principal string) error
	Delete(ctx context.Context) error
	Exists(ctx context.Context) (bool, error)
}

// Workarounds bundles the small platform-specific nudges: the post-apply
// HDR blank and the shell/topology refresh broadcast.
type Workarounds interface {
	HDRBlankNudge(ctx context.Context) error
	RefreshShell(ctx context.Context) error
}

// SessionState answers whether the interactive session can accept display
// changes right now (fast user switching and locked sessions defer
// commands). The OS binding behind it lives outside this module, same as
// the rest of this package.
type SessionState interface {
	Interactive(ctx context.Context) bool
}

// BestEffortPrincipal returns a best-effort label for the interactive user,
// or "" when none can be determined. The coordinator never reasons about
// user identity itself; this is a stub a real OS binding would replace.
func BestEffortPrincipal() string { return "" }
