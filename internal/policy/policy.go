// Package policy holds the small decision rules the apply/recovery
// operations consult: max attempts, retry delay, and the virtual-display
// reset cooldown. The retry delay is deliberately constant rather than
// exponential; the surrounding protocol already has its own timers.
package policy

import (
	"sync"
	"time"

	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/types"
)

const (
	MaxApplyAttempts       = 3
	RetryDelay             = 300 * time.Millisecond
	VirtualDisplayCooldown = 30 * time.Second
)

// VDDecision is the outcome of maybe_reset_virtual_display.
type VDDecision int

const (
	Proceed VDDecision = iota
	ResetVirtualDisplay
)

// ApplyPolicy tracks the last virtual-display reset time and answers the
// retry and reset decisions for apply and recovery.
type ApplyPolicy struct {
	mu        sync.Mutex
	clock     ports.Clock
	lastReset time.Time
}

// NewApplyPolicy builds a policy using clock for cooldown comparisons.
func NewApplyPolicy(clock ports.Clock) *ApplyPolicy {
	return &ApplyPolicy{clock: clock}
}

// MaybeResetVirtualDisplay returns ResetVirtualDisplay (and updates the
// cooldown timestamp) only when status needs it, a virtual display was
// requested, and the cooldown has elapsed since the last reset.
func (p *ApplyPolicy) MaybeResetVirtualDisplay(status types.ApplyStatus, vdRequested bool) VDDecision {
	if status != types.StatusNeedsVirtualDisplayReset || !vdRequested {
		return Proceed
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.clock.Now()
	if !p.lastReset.IsZero() && now.Sub(p.lastReset) < VirtualDisplayCooldown {
		return Proceed
	}
	p.lastReset = now
	return ResetVirtualDisplay
}

// ShouldSkipTier reports whether a recovery tier walk should abandon this
// tier rather than retry it, for the given apply status.
func ShouldSkipTier(status types.ApplyStatus) bool {
	return status == types.StatusInvalidRequest || status == types.StatusFatal
}

// CanRetryApply reports whether another apply attempt is allowed.
func CanRetryApply(attempt int) bool { return attempt < MaxApplyAttempts }

// RetryDelayFor is the constant, intentionally non-exponential retry delay.
func RetryDelayFor(attempt int) time.Duration { return RetryDelay }
