// Package snapshot implements the tiered snapshot ledger: current/previous/
// golden JSON files, device-availability filtering on load, and the
// blacklist-filtered save path. Storage knows only files; Persistence owns
// tier policy; Service talks to the display port.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nonary/displayhelper/internal/types"
)

// Storage persists and loads a single snapshot tier.
type Storage interface {
	Load(ctx context.Context, tier types.Tier) (types.Snapshot, bool, error)
	Save(ctx context.Context, tier types.Tier, snap types.Snapshot) error
	Delete(ctx context.Context, tier types.Tier) error
}

// Tier file names. The golden tier keeps its historical "restore" name so
// operator-exported baselines from older installs remain readable.
var tierFileNames = map[types.Tier]string{
	types.TierCurrent:  "display_session_current.json",
	types.TierPrevious: "display_session_previous.json",
	types.TierGolden:   "display_golden_restore.json",
}

// legacyCurrentFileName is the pre-rename current-tier file, migrated once
// at startup when the new file is absent.
const legacyCurrentFileName = "display_session_restore.json"

// MigrateLegacyLayout renames the legacy current-tier file to its new name.
// A missing legacy file, or an already-present new file, is a no-op.
func MigrateLegacyLayout(dir string) error {
	current := filepath.Join(dir, tierFileNames[types.TierCurrent])
	if _, err := os.Stat(current); err == nil {
		return nil
	}
	legacy := filepath.Join(dir, legacyCurrentFileName)
	if _, err := os.Stat(legacy); err != nil {
		return nil
	}
	return os.Rename(legacy, current)
}

// diskSnapshot is the wire schema of a persisted snapshot. Every field is a
// pointer so the loader can tell an absent field from an empty one; a
// record missing any field is treated as no-snapshot rather than decoded
// partially.
type diskSnapshot struct {
	Topology *[][]string          `json:"topology"`
	Modes    *map[string]diskMode `json:"modes"`
	HDR      *map[string]*string  `json:"hdr"`
	Primary  *string              `json:"primary"`
}

type diskMode struct {
	W   uint32 `json:"w"`
	H   uint32 `json:"h"`
	Num uint32 `json:"num"`
	Den uint32 `json:"den"`
}

func encodeSnapshot(snap types.Snapshot) ([]byte, error) {
	topology := [][]string(snap.Topology)
	if topology == nil {
		topology = [][]string{}
	}
	modes := make(map[string]diskMode, len(snap.Modes))
	for id, mode := range snap.Modes {
		num, den := mode.RefreshRate.Numerator, mode.RefreshRate.Denominator
		if !mode.RefreshRate.HasNumerator && mode.RefreshRate.Decimal != 0 {
			num = uint32(mode.RefreshRate.Decimal*1000 + 0.5)
			den = 1000
		}
		modes[id] = diskMode{W: mode.Resolution.Width, H: mode.Resolution.Height, Num: num, Den: den}
	}
	hdr := make(map[string]*string, len(snap.HDRStates))
	for id, state := range snap.HDRStates {
		if state == nil {
			hdr[id] = nil
			continue
		}
		s := string(*state)
		hdr[id] = &s
	}
	primary := snap.PrimaryDevice
	return json.MarshalIndent(diskSnapshot{
		Topology: &topology,
		Modes:    &modes,
		HDR:      &hdr,
		Primary:  &primary,
	}, "", "  ")
}

// decodeSnapshot parses the on-disk schema. Any decode failure, unknown
// field, or absent required field reports ok=false: a malformed snapshot
// reads the same as no snapshot at all.
func decodeSnapshot(data []byte) (types.Snapshot, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var disk diskSnapshot
	if err := dec.Decode(&disk); err != nil {
		return types.Snapshot{}, false
	}
	if disk.Topology == nil || disk.Modes == nil || disk.HDR == nil || disk.Primary == nil {
		return types.Snapshot{}, false
	}
	snap := types.NewSnapshot()
	snap.Topology = types.Topology(*disk.Topology)
	snap.PrimaryDevice = *disk.Primary
	for id, mode := range *disk.Modes {
		snap.Modes[id] = types.Mode{
			Resolution: types.Resolution{Width: mode.W, Height: mode.H},
			RefreshRate: types.RefreshRate{
				Numerator:    mode.Num,
				Denominator:  mode.Den,
				HasNumerator: mode.Den != 0,
			},
		}
	}
	for id, state := range *disk.HDR {
		if state == nil {
			snap.HDRStates[id] = nil
			continue
		}
		hdr := types.HDRState(*state)
		snap.HDRStates[id] = &hdr
	}
	return snap, true
}

// JSONStorage persists each tier as its own JSON file in a directory.
// Writes go to a temp file then rename, so a crash mid-write never corrupts
// the tier it's replacing.
type JSONStorage struct {
	mu  sync.Mutex
	dir string
}

// NewJSONStorage returns a Storage rooted at dir, creating it if needed.
func NewJSONStorage(dir string) (*JSONStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &JSONStorage{dir: dir}, nil
}

func (s *JSONStorage) path(tier types.Tier) string {
	name, ok := tierFileNames[tier]
	if !ok {
		name = string(tier) + ".json"
	}
	return filepath.Join(s.dir, name)
}

func (s *JSONStorage) Load(ctx context.Context, tier types.Tier) (types.Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path(tier))
	if err != nil {
		if os.IsNotExist(err) {
			return types.NewSnapshot(), false, nil
		}
		return types.Snapshot{}, false, fmt.Errorf("read %s snapshot: %w", tier, err)
	}
	snap, ok := decodeSnapshot(data)
	if !ok {
		return types.NewSnapshot(), false, nil
	}
	return snap, true, nil
}

func (s *JSONStorage) Save(ctx context.Context, tier types.Tier, snap types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", tier, err)
	}
	tmp := s.path(tier) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s snapshot: %w", tier, err)
	}
	if err := os.Rename(tmp, s.path(tier)); err != nil {
		return fmt.Errorf("commit %s snapshot: %w", tier, err)
	}
	return nil
}

func (s *JSONStorage) Delete(ctx context.Context, tier types.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(tier)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s snapshot: %w", tier, err)
	}
	return nil
}

// MemoryStorage is an in-process Storage for tests.
type MemoryStorage struct {
	mu   sync.Mutex
	data map[types.Tier]types.Snapshot
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[types.Tier]types.Snapshot)}
}

func (m *MemoryStorage) Load(ctx context.Context, tier types.Tier) (types.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.data[tier]
	if !ok {
		return types.NewSnapshot(), false, nil
	}
	return snap, true, nil
}

func (m *MemoryStorage) Save(ctx context.Context, tier types.Tier, snap types.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[tier] = snap
	return nil
}

func (m *MemoryStorage) Delete(ctx context.Context, tier types.Tier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, tier)
	return nil
}
