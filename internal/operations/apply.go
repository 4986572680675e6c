// Package operations implements the operation bodies the dispatcher runs
// off the state-machine goroutine: Apply, Verify, Recover, and
// ValidateRecovery. Each is a plain function over ports and a cancellation
// token, carrying no state beyond what's passed in.
package operations

import (
	"context"

	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/telemetry/logging"
	"github.com/nonary/displayhelper/internal/types"
)

// Apply runs the apply algorithm against the display port.
func Apply(ctx context.Context, display ports.DisplaySettings, req types.ApplyRequest, token dispatch.Token, logger logging.Logger) types.ApplyOutcome {
	if token.Cancelled() {
		return types.ApplyOutcome{Status: types.StatusFatal}
	}
	if req.Configuration == nil {
		return types.ApplyOutcome{Status: types.StatusInvalidRequest}
	}

	outcome := types.ApplyOutcome{VirtualDisplayWanted: req.WantsVirtualDisplay()}

	current, err := display.CurrentTopology(ctx)
	if err != nil {
		current = types.Topology{}
	}
	if req.Topology != nil {
		expected := *req.Topology
		outcome.ExpectedTopology = &expected
	} else if expected, err := display.ExpectedTopology(ctx, *req.Configuration, current); err != nil {
		// Verification skips the topology check when no expectation could
		// be computed, so leave the outcome's topology absent.
		logger.WarnCtx(ctx, "expected topology computation failed", "error", err)
	} else {
		outcome.ExpectedTopology = &expected
	}

	if req.Topology != nil {
		status := display.ApplyTopology(ctx, *req.Topology)
		if status != types.StatusOk {
			outcome.Status = status
			return outcome
		}
	}

	status := display.ApplyConfiguration(ctx, *req.Configuration)
	outcome.Status = status

	for _, mp := range req.MonitorPositions {
		if mp.DeviceID == "" {
			continue
		}
		if err := display.SetOrigin(ctx, mp.DeviceID, mp.Origin); err != nil {
			logger.WarnCtx(ctx, "set monitor origin failed", "device_id", mp.DeviceID, "error", err)
		}
	}

	return outcome
}
