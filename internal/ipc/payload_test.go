package ipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonary/displayhelper/internal/types"
)

func TestParseApplyRequestMinimal(t *testing.T) {
	req, excludeDevices, err := ParseApplyRequest([]byte(`{"device_id":"dp-1"}`))
	require.NoError(t, err)
	assert.Empty(t, excludeDevices)
	require.NotNil(t, req.Configuration)
	assert.Equal(t, "dp-1", req.Configuration.DeviceID)
}

func TestParseApplyRequestRejectsEmptyConfiguration(t *testing.T) {
	_, _, err := ParseApplyRequest([]byte(`{}`))
	assert.Error(t, err)
}

func TestParseApplyRequestAllowsEmptyDeviceID(t *testing.T) {
	req, _, err := ParseApplyRequest([]byte(`{"device_prep":"EnsureActive"}`))
	require.NoError(t, err)
	assert.Equal(t, "", req.Configuration.DeviceID)
}

func TestParseApplyRequestRejectsMalformedJSON(t *testing.T) {
	_, _, err := ParseApplyRequest([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseApplyRequestDecimalRefreshRate(t *testing.T) {
	req, _, err := ParseApplyRequest([]byte(`{"device_id":"dp-1","refresh_rate":59.94}`))
	require.NoError(t, err)
	require.NotNil(t, req.Configuration.RefreshRate)
	assert.Equal(t, 59.94, req.Configuration.RefreshRate.Decimal)
	assert.False(t, req.Configuration.RefreshRate.HasNumerator)
}

func TestParseApplyRequestRationalRefreshRate(t *testing.T) {
	req, _, err := ParseApplyRequest([]byte(`{"device_id":"dp-1","refresh_rate":{"num":60000,"den":1001}}`))
	require.NoError(t, err)
	require.NotNil(t, req.Configuration.RefreshRate)
	assert.True(t, req.Configuration.RefreshRate.HasNumerator)
	assert.Equal(t, uint32(60000), req.Configuration.RefreshRate.Numerator)
	assert.Equal(t, uint32(1001), req.Configuration.RefreshRate.Denominator)
}

func TestParseApplyRequestTopologyAndMonitorPositions(t *testing.T) {
	body := `{
		"device_id": "dp-1",
		"sunshine_topology": [["dp-1", "dp-2"]],
		"sunshine_monitor_positions": {"dp-1": {"x": 10, "y": 20}},
		"sunshine_virtual_layout": "extend",
		"wa_hdr_toggle": true,
		"sunshine_always_restore_from_golden": true
	}`
	req, _, err := ParseApplyRequest([]byte(body))
	require.NoError(t, err)
	require.NotNil(t, req.Topology)
	assert.True(t, req.Topology.Equal(types.Topology{{"dp-1", "dp-2"}}))
	require.Len(t, req.MonitorPositions, 1)
	assert.Equal(t, "dp-1", req.MonitorPositions[0].DeviceID)
	assert.Equal(t, int32(10), req.MonitorPositions[0].Origin.X)
	require.NotNil(t, req.VirtualLayout)
	assert.Equal(t, "extend", *req.VirtualLayout)
	assert.True(t, req.HDRBlank)
	assert.True(t, req.PreferGoldenFirst)
}

func TestParseApplyRequestExcludeDevicesAsBareArray(t *testing.T) {
	body := `{"device_id":"dp-1","sunshine_snapshot_exclude_devices":["dp-2","dp-3"]}`
	_, excludeDevices, err := ParseApplyRequest([]byte(body))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dp-2", "dp-3"}, excludeDevices)
}

func TestParseApplyRequestExcludeDevicesAsObjectArray(t *testing.T) {
	body := `{"device_id":"dp-1","sunshine_snapshot_exclude_devices":[{"device_id":"dp-2"},{"id":"dp-3"}]}`
	_, excludeDevices, err := ParseApplyRequest([]byte(body))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dp-2", "dp-3"}, excludeDevices)
}

func TestParseDeviceExcludeListWrapperVariants(t *testing.T) {
	ids, err := ParseDeviceExcludeList([]byte(`{"exclude_devices":["a","b"]}`))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)

	ids, err = ParseDeviceExcludeList([]byte(`{"devices":["c"]}`))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c"}, ids)

	ids, err = ParseDeviceExcludeList([]byte(`["d","e"]`))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"d", "e"}, ids)
}

func TestParseDeviceExcludeListRejectsGarbage(t *testing.T) {
	_, err := ParseDeviceExcludeList([]byte(`{"exclude_devices":[123]}`))
	assert.Error(t, err)
}
