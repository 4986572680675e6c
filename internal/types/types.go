// Package types holds the data model shared by every helper component:
// display configurations, topologies, snapshots, and the outcome/status
// enums operations produce. None of these types carry behavior that
// touches the OS; that lives behind internal/ports.
package types

// DevicePrepMode selects how far the helper goes in preparing the target
// device before applying modes.
type DevicePrepMode string

const (
	PrepDisabled          DevicePrepMode = "disabled"
	PrepVerifyOnly        DevicePrepMode = "verify_only"
	PrepEnsureActive      DevicePrepMode = "ensure_active"
	PrepEnsurePrimary     DevicePrepMode = "ensure_primary"
	PrepEnsureOnlyDisplay DevicePrepMode = "ensure_only_display"
)

// HDRState is the target HDR toggle for a device.
type HDRState string

const (
	HDREnabled  HDRState = "on"
	HDRDisabled HDRState = "off"
)

// Resolution is a pixel width/height pair.
type Resolution struct {
	Width  uint32 `json:"w"`
	Height uint32 `json:"h"`
}

// RefreshRate is either a decimal or a rational numerator/denominator pair.
// Exactly one representation is expected to be populated; equality and
// tolerance between the two forms are the display port's concern, never
// compared here.
type RefreshRate struct {
	Decimal      float64 `json:"decimal,omitempty"`
	Numerator    uint32  `json:"num,omitempty"`
	Denominator  uint32  `json:"den,omitempty"`
	HasNumerator bool    `json:"-"`
}

// SingleDisplayConfiguration describes the desired state of one display
// device: preparation mode, optional resolution, refresh rate, and HDR.
type SingleDisplayConfiguration struct {
	DeviceID    string         `json:"device_id"`
	DevicePrep  DevicePrepMode `json:"device_prep"`
	Resolution  *Resolution    `json:"resolution,omitempty"`
	RefreshRate *RefreshRate   `json:"refresh_rate,omitempty"`
	HDRState    *HDRState      `json:"hdr_state,omitempty"`
}

// Topology is an ordered sequence of clone/duplicate groups.
type Topology [][]string

// Equal reports sequence equality (group order and device order both matter).
func (t Topology) Equal(o Topology) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if len(t[i]) != len(o[i]) {
			return false
		}
		for j := range t[i] {
			if t[i][j] != o[i][j] {
				return false
			}
		}
	}
	return true
}

// Empty reports whether the topology has no groups.
func (t Topology) Empty() bool { return len(t) == 0 }

// DeviceIDs returns every device id referenced by the topology, in order,
// without de-duplicating (callers that need a set should build one).
func (t Topology) DeviceIDs() []string {
	out := make([]string, 0, len(t)*2)
	for _, group := range t {
		out = append(out, group...)
	}
	return out
}

// Point is a monitor origin coordinate.
type Point struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// MonitorPosition pairs a device with the origin it should be placed at.
type MonitorPosition struct {
	DeviceID string
	Origin   Point
}

// Mode is a device's resolution + refresh rate.
type Mode struct {
	Resolution  Resolution  `json:"resolution"`
	RefreshRate RefreshRate `json:"refresh_rate"`
}

// Snapshot is a point-in-time record of topology + per-device mode + HDR + primary.
type Snapshot struct {
	Topology      Topology
	Modes         map[string]Mode
	HDRStates     map[string]*HDRState
	PrimaryDevice string
}

// NewSnapshot returns an empty, ready-to-populate snapshot.
func NewSnapshot() Snapshot {
	return Snapshot{Modes: make(map[string]Mode), HDRStates: make(map[string]*HDRState)}
}

// Equal is structural: topologies sequence-equal, modes maps agree on every
// key, hdr_states maps agree (including absent-vs-absent), primaries match.
func (s Snapshot) Equal(o Snapshot) bool {
	if !s.Topology.Equal(o.Topology) {
		return false
	}
	if s.PrimaryDevice != o.PrimaryDevice {
		return false
	}
	if len(s.Modes) != len(o.Modes) {
		return false
	}
	for k, v := range s.Modes {
		ov, ok := o.Modes[k]
		if !ok || ov != v {
			return false
		}
	}
	if len(s.HDRStates) != len(o.HDRStates) {
		return false
	}
	for k, v := range s.HDRStates {
		ov, ok := o.HDRStates[k]
		if !ok {
			return false
		}
		if (v == nil) != (ov == nil) {
			return false
		}
		if v != nil && ov != nil && *v != *ov {
			return false
		}
	}
	return true
}

// DeviceReferences returns the device ids this snapshot refers to: the
// topology's device ids, or (if the topology is empty) the modes map keys.
// Availability checks before a restore consult this list.
func (s Snapshot) DeviceReferences() []string {
	if !s.Topology.Empty() {
		return s.Topology.DeviceIDs()
	}
	out := make([]string, 0, len(s.Modes))
	for id := range s.Modes {
		out = append(out, id)
	}
	return out
}

// Tier identifies which snapshot file is in play.
type Tier string

const (
	TierCurrent  Tier = "current"
	TierPrevious Tier = "previous"
	TierGolden   Tier = "golden"
)

// ApplyRequest is the full envelope of one apply command: the device
// configuration plus topology override, monitor origins, and workaround flags.
type ApplyRequest struct {
	Configuration     *SingleDisplayConfiguration
	Topology          *Topology
	MonitorPositions  []MonitorPosition
	HDRBlank          bool
	PreferGoldenFirst bool
	VirtualLayout     *string
}

// WantsVirtualDisplay reports whether the request expects a virtual display.
func (r ApplyRequest) WantsVirtualDisplay() bool { return r.VirtualLayout != nil }

// ApplyStatus classifies an apply attempt's outcome; the retry and recovery
// policies branch on it.
type ApplyStatus string

const (
	StatusOk                       ApplyStatus = "ok"
	StatusHelperUnavailable        ApplyStatus = "helper_unavailable"
	StatusInvalidRequest           ApplyStatus = "invalid_request"
	StatusVerificationFailed       ApplyStatus = "verification_failed"
	StatusNeedsVirtualDisplayReset ApplyStatus = "needs_virtual_display_reset"
	StatusRetryable                ApplyStatus = "retryable"
	StatusFatal                    ApplyStatus = "fatal"
)

// ApplyOutcome is what an apply attempt reports back to the state machine.
type ApplyOutcome struct {
	Status               ApplyStatus
	ExpectedTopology     *Topology
	VirtualDisplayWanted bool
}

// RecoveryOutcome reports whether a tier walk restored anything, and what.
type RecoveryOutcome struct {
	Success          bool
	RestoredSnapshot *Snapshot
	RestoredTier     Tier
}

// DeviceExcludeList wraps a device-exclude list. The IPC payload parser for
// ExportGolden/SnapshotCurrent returns the ids as a plain []string.
type DeviceExcludeList struct {
	Devices []string
}
