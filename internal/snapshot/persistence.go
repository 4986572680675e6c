package snapshot

import (
	"context"

	"github.com/nonary/displayhelper/internal/types"
)

// Persistence wraps Storage with tier ordering policy, blacklist-aware
// filtering on save, and device-availability-aware refusal on load. It is
// the one place that knows about tiers; Storage itself is tier-agnostic.
type Persistence struct {
	storage Storage
}

// NewPersistence wraps storage with tier policy.
func NewPersistence(storage Storage) *Persistence {
	return &Persistence{storage: storage}
}

// RecoveryOrder returns the tier walk order: Current, Previous, Golden by
// default, or Golden, Current, Previous when preferGoldenFirst is set.
func (p *Persistence) RecoveryOrder(preferGoldenFirst bool) []types.Tier {
	if preferGoldenFirst {
		return []types.Tier{types.TierGolden, types.TierCurrent, types.TierPrevious}
	}
	return []types.Tier{types.TierCurrent, types.TierPrevious, types.TierGolden}
}

// filterSnapshot drops every device in blacklist from topology groups
// (dropping groups left empty), from modes, from hdr_states, and clears
// primary_device if it was blacklisted.
func filterSnapshot(snap types.Snapshot, blacklist map[string]struct{}) types.Snapshot {
	if len(blacklist) == 0 {
		return snap
	}
	out := types.NewSnapshot()
	out.PrimaryDevice = snap.PrimaryDevice
	if _, blocked := blacklist[out.PrimaryDevice]; blocked {
		out.PrimaryDevice = ""
	}
	for _, group := range snap.Topology {
		filtered := make([]string, 0, len(group))
		for _, id := range group {
			if _, blocked := blacklist[id]; !blocked {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) > 0 {
			out.Topology = append(out.Topology, filtered)
		}
	}
	for id, mode := range snap.Modes {
		if _, blocked := blacklist[id]; !blocked {
			out.Modes[id] = mode
		}
	}
	for id, hdr := range snap.HDRStates {
		if _, blocked := blacklist[id]; !blocked {
			out.HDRStates[id] = hdr
		}
	}
	return out
}

// Save filters snap by blacklist and persists it to tier. It refuses (and
// leaves the file untouched) when the filtered result has neither topology
// groups nor modes.
func (p *Persistence) Save(ctx context.Context, tier types.Tier, snap types.Snapshot, blacklist map[string]struct{}) (bool, error) {
	filtered := filterSnapshot(snap, blacklist)
	if filtered.Topology.Empty() && len(filtered.Modes) == 0 {
		return false, nil
	}
	if err := p.storage.Save(ctx, tier, filtered); err != nil {
		return false, err
	}
	return true, nil
}

// missingDevices returns the snapshot's device references that are not in available.
func missingDevices(snap types.Snapshot, available map[string]struct{}) []string {
	var missing []string
	for _, id := range snap.DeviceReferences() {
		if _, ok := available[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// Load returns tier's snapshot only if every device it references is
// present in available; otherwise it behaves as if no snapshot existed.
func (p *Persistence) Load(ctx context.Context, tier types.Tier, available map[string]struct{}) (types.Snapshot, bool, error) {
	snap, ok, err := p.storage.Load(ctx, tier)
	if err != nil || !ok {
		return types.Snapshot{}, false, err
	}
	if len(missingDevices(snap, available)) > 0 {
		return types.Snapshot{}, false, nil
	}
	return snap, true, nil
}

// MissingDevices exposes missingDevices for callers that need the list of
// unavailable devices, not just Load's refusal.
func (p *Persistence) MissingDevices(snap types.Snapshot, available map[string]struct{}) []string {
	return missingDevices(snap, available)
}

// RotateCurrentToPrevious loads Current (if present) and saves it,
// unfiltered, as Previous.
func (p *Persistence) RotateCurrentToPrevious(ctx context.Context) error {
	cur, ok, err := p.storage.Load(ctx, types.TierCurrent)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return p.storage.Save(ctx, types.TierPrevious, cur)
}

// Remove deletes a tier's file, if any.
func (p *Persistence) Remove(ctx context.Context, tier types.Tier) error {
	return p.storage.Delete(ctx, tier)
}

// BlacklistSet builds a lookup set from a device id list.
func BlacklistSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
