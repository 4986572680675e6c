package operations

import (
	"context"
	"time"

	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/types"
)

// VerifySettle is the settle delay before the OS state is trusted.
const VerifySettle = 250 * time.Millisecond

// Verify waits out the settle delay, then confirms the expected topology
// and/or configuration actually took.
func Verify(ctx context.Context, clock ports.Clock, display ports.DisplaySettings, req types.ApplyRequest, expected *types.Topology, token dispatch.Token) bool {
	if token.Cancelled() {
		return false
	}
	clock.Sleep(ctx, VerifySettle)
	if token.Cancelled() {
		return false
	}
	if expected != nil {
		current, err := display.CurrentTopology(ctx)
		if err != nil || !current.Equal(*expected) {
			return false
		}
	}
	if req.Configuration != nil {
		if !display.ConfigurationMatches(ctx, *req.Configuration) {
			return false
		}
	}
	return true
}
