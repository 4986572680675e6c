package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonary/displayhelper/internal/telemetry/events"
	"github.com/nonary/displayhelper/internal/telemetry/logging"
)

func TestDefaultTimersAndBudgets(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.HeartbeatTimeout)
	assert.Equal(t, 30*time.Second, cfg.DisconnectGrace)
	assert.Equal(t, 500*time.Millisecond, cfg.EventDebounce)
	assert.Equal(t, 3, cfg.MaxApplyAttempts)
	assert.Equal(t, 300*time.Millisecond, cfg.ApplyRetryDelay)
	assert.Equal(t, 30*time.Second, cfg.VirtualDisplayCooldown)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().MaxApplyAttempts, cfg.MaxApplyAttempts)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_apply_attempts: 7\nlog_level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxApplyAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unmentioned fields still fall back to the default.
	assert.Equal(t, Default().HeartbeatTimeout, cfg.HeartbeatTimeout)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("DISPLAYHELPER_LOG_LEVEL", "warn")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestWatcherReloadPublishesEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: info\n"), 0o644))

	bus := events.NewBus()
	received := make(chan events.Event, 1)
	bus.Subscribe(func(ev events.Event) { received <- ev })

	w, err := NewWatcher(path, bus, logging.Nop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o644))
	w.reload(context.Background())

	select {
	case ev := <-received:
		assert.Equal(t, "config", ev.Category)
		assert.Equal(t, "reloaded", ev.Type)
	default:
		t.Fatal("reload must publish an event synchronously")
	}
	assert.Equal(t, "debug", w.Current().LogLevel)
}
