package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/nonary/displayhelper/internal/types"
)

// rawApplyRequest mirrors the wire JSON: the sunshine_*/wa_* extension
// fields plus the SingleDisplayConfiguration fields inline (the wire format
// is flat, not nested under a "configuration" key).
type rawApplyRequest struct {
	DeviceID    string          `json:"device_id"`
	DevicePrep  string          `json:"device_prep"`
	Resolution  *rawResolution  `json:"resolution"`
	RefreshRate json.RawMessage `json:"refresh_rate"`
	HDRState    *string         `json:"hdr_state"`

	WAHdrToggle                     bool                `json:"wa_hdr_toggle"`
	SunshineVirtualLayout           *string             `json:"sunshine_virtual_layout"`
	SunshineMonitorPositions        map[string]rawPoint `json:"sunshine_monitor_positions"`
	SunshineSnapshotExcludeDevices  json.RawMessage     `json:"sunshine_snapshot_exclude_devices"`
	SunshineTopology                [][]string          `json:"sunshine_topology"`
	SunshineAlwaysRestoreFromGolden bool                `json:"sunshine_always_restore_from_golden"`
}

type rawResolution struct {
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

type rawPoint struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// ParseApplyRequest decodes the wire JSON into an ApplyRequest plus any
// devices the caller flagged for snapshot-exclusion via
// sunshine_snapshot_exclude_devices. A parse failure is returned verbatim
// so the caller can surface ApplyResult(failure).
func ParseApplyRequest(body []byte) (types.ApplyRequest, []string, error) {
	var raw rawApplyRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return types.ApplyRequest{}, nil, fmt.Errorf("decode apply request: %w", err)
	}

	// device_id may legitimately be empty ("no specific device"); only a
	// structurally empty body is rejected.
	if raw.DeviceID == "" && raw.DevicePrep == "" && raw.Resolution == nil && len(raw.RefreshRate) == 0 && raw.HDRState == nil {
		return types.ApplyRequest{}, nil, fmt.Errorf("decode apply request: configuration missing")
	}

	cfg := types.SingleDisplayConfiguration{
		DeviceID:   raw.DeviceID,
		DevicePrep: types.DevicePrepMode(raw.DevicePrep),
	}
	if raw.Resolution != nil {
		cfg.Resolution = &types.Resolution{Width: raw.Resolution.Width, Height: raw.Resolution.Height}
	}
	if len(raw.RefreshRate) > 0 {
		rr, err := parseRefreshRate(raw.RefreshRate)
		if err != nil {
			return types.ApplyRequest{}, nil, fmt.Errorf("decode apply request: %w", err)
		}
		cfg.RefreshRate = rr
	}
	if raw.HDRState != nil {
		hdr := types.HDRState(*raw.HDRState)
		cfg.HDRState = &hdr
	}

	req := types.ApplyRequest{
		Configuration:     &cfg,
		HDRBlank:          raw.WAHdrToggle,
		PreferGoldenFirst: raw.SunshineAlwaysRestoreFromGolden,
		VirtualLayout:     raw.SunshineVirtualLayout,
	}
	if len(raw.SunshineTopology) > 0 {
		topo := types.Topology(raw.SunshineTopology)
		req.Topology = &topo
	}
	for id, pt := range raw.SunshineMonitorPositions {
		req.MonitorPositions = append(req.MonitorPositions, types.MonitorPosition{
			DeviceID: id,
			Origin:   types.Point{X: pt.X, Y: pt.Y},
		})
	}
	var excludeDevices []string
	if len(raw.SunshineSnapshotExcludeDevices) > 0 {
		ids, err := ParseDeviceExcludeList(raw.SunshineSnapshotExcludeDevices)
		if err != nil {
			return types.ApplyRequest{}, nil, fmt.Errorf("decode apply request: %w", err)
		}
		excludeDevices = ids
	}
	return req, excludeDevices, nil
}

// parseRefreshRate accepts either a bare decimal number or a {"num","den"}
// rational object.
func parseRefreshRate(raw json.RawMessage) (*types.RefreshRate, error) {
	var decimal float64
	if err := json.Unmarshal(raw, &decimal); err == nil {
		return &types.RefreshRate{Decimal: decimal}, nil
	}
	var rational struct {
		Num uint32 `json:"num"`
		Den uint32 `json:"den"`
	}
	if err := json.Unmarshal(raw, &rational); err != nil {
		return nil, fmt.Errorf("refresh_rate: %w", err)
	}
	return &types.RefreshRate{Numerator: rational.Num, Denominator: rational.Den, HasNumerator: true}, nil
}

// ParseDeviceExcludeList accepts an array of strings, an array of
// {"device_id"|"id": string} objects, or a wrapper object
// {"exclude_devices": […]} / {"devices": […]} around either array form.
func ParseDeviceExcludeList(body []byte) ([]string, error) {
	var wrapper struct {
		ExcludeDevices json.RawMessage `json:"exclude_devices"`
		Devices        json.RawMessage `json:"devices"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if len(wrapper.ExcludeDevices) > 0 {
			return parseDeviceArray(wrapper.ExcludeDevices)
		}
		if len(wrapper.Devices) > 0 {
			return parseDeviceArray(wrapper.Devices)
		}
	}
	return parseDeviceArray(body)
}

func parseDeviceArray(body []byte) ([]string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode device list: %w", err)
	}
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s != "" {
				ids = append(ids, s)
			}
			continue
		}
		var obj struct {
			DeviceID string `json:"device_id"`
			ID       string `json:"id"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, fmt.Errorf("decode device list entry: %w", err)
		}
		id := obj.DeviceID
		if id == "" {
			id = obj.ID
		}
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
