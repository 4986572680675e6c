package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopologyEqual(t *testing.T) {
	a := Topology{{"dp-1", "dp-2"}, {"dp-3"}}
	b := Topology{{"dp-1", "dp-2"}, {"dp-3"}}
	c := Topology{{"dp-2", "dp-1"}, {"dp-3"}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "group member order matters")
	assert.False(t, a.Equal(Topology{{"dp-1", "dp-2"}}))
}

func TestTopologyEmptyAndDeviceIDs(t *testing.T) {
	var empty Topology
	assert.True(t, empty.Empty())

	topo := Topology{{"dp-1", "dp-2"}, {"dp-3"}}
	assert.False(t, topo.Empty())
	assert.Equal(t, []string{"dp-1", "dp-2", "dp-3"}, topo.DeviceIDs())
}

func TestSnapshotEqualConsidersHDRStates(t *testing.T) {
	on := HDREnabled
	off := HDRDisabled

	a := NewSnapshot()
	a.HDRStates["dp-1"] = &on

	b := NewSnapshot()
	b.HDRStates["dp-1"] = &on

	assert.True(t, a.Equal(b))

	c := NewSnapshot()
	c.HDRStates["dp-1"] = &off
	assert.False(t, a.Equal(c))

	d := NewSnapshot()
	d.HDRStates["dp-1"] = nil
	e := NewSnapshot()
	e.HDRStates["dp-1"] = nil
	assert.True(t, d.Equal(e), "absent-vs-absent HDR state must compare equal")
}

func TestSnapshotEqualRequiresSameModesAndPrimary(t *testing.T) {
	a := NewSnapshot()
	a.Modes["dp-1"] = Mode{Resolution: Resolution{Width: 1920, Height: 1080}}
	a.PrimaryDevice = "dp-1"

	b := NewSnapshot()
	b.Modes["dp-1"] = Mode{Resolution: Resolution{Width: 1920, Height: 1080}}
	b.PrimaryDevice = "dp-1"
	assert.True(t, a.Equal(b))

	b.PrimaryDevice = "dp-2"
	assert.False(t, a.Equal(b))
}

func TestSnapshotDeviceReferencesPrefersTopology(t *testing.T) {
	snap := NewSnapshot()
	snap.Topology = Topology{{"dp-1", "dp-2"}}
	snap.Modes["dp-3"] = Mode{}
	assert.ElementsMatch(t, []string{"dp-1", "dp-2"}, snap.DeviceReferences())
}

func TestSnapshotDeviceReferencesFallsBackToModes(t *testing.T) {
	snap := NewSnapshot()
	snap.Modes["dp-3"] = Mode{}
	snap.Modes["dp-4"] = Mode{}
	assert.ElementsMatch(t, []string{"dp-3", "dp-4"}, snap.DeviceReferences())
}

func TestApplyRequestWantsVirtualDisplay(t *testing.T) {
	req := ApplyRequest{}
	assert.False(t, req.WantsVirtualDisplay())

	layout := "extend"
	req.VirtualLayout = &layout
	assert.True(t, req.WantsVirtualDisplay())
}
