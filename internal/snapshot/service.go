package snapshot

import (
	"context"

	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/types"
)

// Service is the thin adapter the snapshot pipeline uses to talk to the
// display port: capture, apply, validate, compare-with-live.
type Service struct {
	display ports.DisplaySettings
}

// NewService wraps a DisplaySettings port.
func NewService(display ports.DisplaySettings) *Service {
	return &Service{display: display}
}

// Capture returns the display port's current snapshot.
func (s *Service) Capture(ctx context.Context) (types.Snapshot, error) {
	return s.display.CaptureSnapshot(ctx)
}

// Apply applies snap's topology via the display port. Fatal if token is
// already cancelled, InvalidRequest if the topology doesn't validate,
// Retryable if the port's apply reports failure, Ok otherwise.
func (s *Service) Apply(ctx context.Context, snap types.Snapshot, token dispatch.Token) types.ApplyStatus {
	if token.Cancelled() {
		return types.StatusFatal
	}
	if !s.display.ValidateTopology(ctx, snap.Topology) {
		return types.StatusInvalidRequest
	}
	if s.display.ApplyTopology(ctx, snap.Topology) != types.StatusOk {
		return types.StatusRetryable
	}
	return types.StatusOk
}

// Validate reports whether the port accepts the snapshot's topology.
func (s *Service) Validate(ctx context.Context, snap types.Snapshot) bool {
	return s.display.ValidateTopology(ctx, snap.Topology)
}

// MatchesCurrent delegates to the port.
func (s *Service) MatchesCurrent(ctx context.Context, snap types.Snapshot) bool {
	return s.display.MatchesCurrent(ctx, snap)
}
