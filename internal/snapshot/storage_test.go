package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonary/displayhelper/internal/types"
)

func TestJSONStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage, err := NewJSONStorage(filepath.Join(t.TempDir(), "snaps"))
	require.NoError(t, err)

	snap := types.NewSnapshot()
	snap.Topology = types.Topology{{"dp-1", "dp-2"}}
	snap.Modes["dp-1"] = types.Mode{Resolution: types.Resolution{Width: 1920, Height: 1080}}
	snap.PrimaryDevice = "dp-1"

	require.NoError(t, storage.Save(ctx, types.TierCurrent, snap))

	loaded, ok, err := storage.Load(ctx, types.TierCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Equal(loaded))
}

func TestJSONStorageUsesTierFileNames(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage, err := NewJSONStorage(dir)
	require.NoError(t, err)

	snap := types.NewSnapshot()
	snap.Topology = types.Topology{{"dp-1"}}
	require.NoError(t, storage.Save(ctx, types.TierCurrent, snap))
	require.NoError(t, storage.Save(ctx, types.TierPrevious, snap))
	require.NoError(t, storage.Save(ctx, types.TierGolden, snap))

	for _, name := range []string{
		"display_session_current.json",
		"display_session_previous.json",
		"display_golden_restore.json",
	} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestJSONStoragePreservesRationalRefreshRate(t *testing.T) {
	ctx := context.Background()
	storage, err := NewJSONStorage(t.TempDir())
	require.NoError(t, err)

	snap := types.NewSnapshot()
	snap.Topology = types.Topology{{"dp-1"}}
	snap.Modes["dp-1"] = types.Mode{
		Resolution:  types.Resolution{Width: 2560, Height: 1440},
		RefreshRate: types.RefreshRate{Numerator: 119982, Denominator: 1000, HasNumerator: true},
	}
	hdr := types.HDREnabled
	snap.HDRStates["dp-1"] = &hdr
	snap.HDRStates["dp-2"] = nil

	require.NoError(t, storage.Save(ctx, types.TierCurrent, snap))
	loaded, ok, err := storage.Load(ctx, types.TierCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Equal(loaded))
}

func TestJSONStorageTreatsMalformedFileAsAbsent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage, err := NewJSONStorage(dir)
	require.NoError(t, err)

	path := filepath.Join(dir, "display_session_current.json")

	for name, contents := range map[string]string{
		"unknown field": `{"topology":[],"modes":{},"hdr":{},"primary":"","extra":1}`,
		"missing field": `{"topology":[],"modes":{}}`,
		"not json":      `}{`,
	} {
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
		_, ok, err := storage.Load(ctx, types.TierCurrent)
		require.NoError(t, err, name)
		assert.False(t, ok, name)
	}
}

func TestMigrateLegacyLayoutRenamesOldRestoreFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	legacy := `{"topology":[["dp-1"]],"modes":{},"hdr":{},"primary":"dp-1"}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "display_session_restore.json"), []byte(legacy), 0o644))

	require.NoError(t, MigrateLegacyLayout(dir))

	storage, err := NewJSONStorage(dir)
	require.NoError(t, err)
	snap, ok, err := storage.Load(ctx, types.TierCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dp-1", snap.PrimaryDevice)

	_, statErr := os.Stat(filepath.Join(dir, "display_session_restore.json"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestMigrateLegacyLayoutKeepsExistingCurrentFile(t *testing.T) {
	dir := t.TempDir()
	current := `{"topology":[["dp-new"]],"modes":{},"hdr":{},"primary":""}`
	legacy := `{"topology":[["dp-old"]],"modes":{},"hdr":{},"primary":""}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "display_session_current.json"), []byte(current), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "display_session_restore.json"), []byte(legacy), 0o644))

	require.NoError(t, MigrateLegacyLayout(dir))

	storage, err := NewJSONStorage(dir)
	require.NoError(t, err)
	snap, ok, err := storage.Load(context.Background(), types.TierCurrent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dp-new", snap.Topology.DeviceIDs()[0])
}

func TestJSONStorageLoadMissingTierIsNotError(t *testing.T) {
	ctx := context.Background()
	storage, err := NewJSONStorage(t.TempDir())
	require.NoError(t, err)

	snap, ok, err := storage.Load(ctx, types.TierGolden)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, snap.Topology.Empty())
}

func TestJSONStorageDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	storage, err := NewJSONStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, storage.Delete(ctx, types.TierPrevious))
	require.NoError(t, storage.Save(ctx, types.TierPrevious, types.NewSnapshot()))
	require.NoError(t, storage.Delete(ctx, types.TierPrevious))
	require.NoError(t, storage.Delete(ctx, types.TierPrevious))

	_, ok, err := storage.Load(ctx, types.TierPrevious)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	snap := types.NewSnapshot()
	snap.Topology = types.Topology{{"dp-1"}}
	require.NoError(t, storage.Save(ctx, types.TierGolden, snap))

	loaded, ok, err := storage.Load(ctx, types.TierGolden)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, snap.Equal(loaded))

	require.NoError(t, storage.Delete(ctx, types.TierGolden))
	_, ok, err = storage.Load(ctx, types.TierGolden)
	require.NoError(t, err)
	assert.False(t, ok)
}
