package operations

import (
	"context"
	"time"

	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/policy"
	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/snapshot"
	"github.com/nonary/displayhelper/internal/types"
)

const (
	recoveryMatchSettle    = 250 * time.Millisecond
	recoveryMismatchSettle = 300 * time.Millisecond
	recoveryMaxAttempts    = 2
)

// Recover walks persistence.RecoveryOrder(preferGoldenFirst), attempting
// each available and valid tier up to two times before moving on. Tiers
// referencing unplugged devices load as absent and are skipped.
func Recover(ctx context.Context, clock ports.Clock, display ports.DisplaySettings, persist *snapshot.Persistence, svc *snapshot.Service, preferGoldenFirst bool, token dispatch.Token) types.RecoveryOutcome {
	available, err := availableDeviceSet(ctx, display)
	if err != nil {
		return types.RecoveryOutcome{Success: false}
	}

	for _, tier := range persist.RecoveryOrder(preferGoldenFirst) {
		if token.Cancelled() {
			return types.RecoveryOutcome{Success: false}
		}
		snap, ok, err := persist.Load(ctx, tier, available)
		if err != nil || !ok {
			continue
		}
		if !svc.Validate(ctx, snap) {
			continue
		}

		succeeded := false
		for attempt := 0; attempt < recoveryMaxAttempts; attempt++ {
			if token.Cancelled() {
				return types.RecoveryOutcome{Success: false}
			}
			status := svc.Apply(ctx, snap, token)
			if policy.ShouldSkipTier(status) {
				break
			}
			if status != types.StatusOk {
				clock.Sleep(ctx, recoveryMismatchSettle)
				continue
			}
			clock.Sleep(ctx, recoveryMatchSettle)
			if token.Cancelled() {
				return types.RecoveryOutcome{Success: false}
			}
			if svc.MatchesCurrent(ctx, snap) {
				succeeded = true
				break
			}
			clock.Sleep(ctx, recoveryMismatchSettle)
		}
		if succeeded {
			snapCopy := snap
			return types.RecoveryOutcome{Success: true, RestoredSnapshot: &snapCopy, RestoredTier: tier}
		}
	}
	return types.RecoveryOutcome{Success: false}
}

// ValidateRecovery reconfirms, after a settle delay, that the restored
// snapshot still matches live state. Used by the RecoveryValidation state.
func ValidateRecovery(ctx context.Context, clock ports.Clock, svc *snapshot.Service, restored *types.Snapshot, token dispatch.Token) bool {
	if restored == nil || token.Cancelled() {
		return false
	}
	clock.Sleep(ctx, recoveryMatchSettle)
	if token.Cancelled() {
		return false
	}
	return svc.MatchesCurrent(ctx, *restored)
}

func availableDeviceSet(ctx context.Context, display ports.DisplaySettings) (map[string]struct{}, error) {
	devices, err := display.EnumerateDevices(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		id := d.ID
		if id == "" {
			id = d.Name
		}
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set, nil
}
