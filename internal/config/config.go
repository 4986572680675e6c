// Package config layers a YAML file with environment-variable overrides and
// watches the file for changes, publishing a reload event on the telemetry
// bus rather than mutating state directly. The process reads SnapshotDir,
// ListenAddress and MetricsBackend once at startup; the timer, retry and
// log-level fields are not read by the state machine, apply policy or
// reconnect timers, which use their own built-in constants, so a reload
// changes no running or later operation.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/nonary/displayhelper/internal/telemetry/events"
	"github.com/nonary/displayhelper/internal/telemetry/logging"
)

// Config is the helper's tunable surface. Every field has a built-in
// default; the file and environment layers only override, never require.
type Config struct {
	SnapshotDir            string        `yaml:"snapshot_dir"`
	ListenAddress          string        `yaml:"listen_address"`
	HeartbeatTimeout       time.Duration `yaml:"heartbeat_timeout"`
	DisconnectGrace        time.Duration `yaml:"disconnect_grace"`
	EventDebounce          time.Duration `yaml:"event_debounce"`
	MaxApplyAttempts       int           `yaml:"max_apply_attempts"`
	ApplyRetryDelay        time.Duration `yaml:"apply_retry_delay"`
	VirtualDisplayCooldown time.Duration `yaml:"virtual_display_cooldown"`
	LogLevel               string        `yaml:"log_level"`
	MetricsBackend         string        `yaml:"metrics_backend"` // "noop" | "prometheus" | "otel"
}

// Default returns the built-in timer and retry constants as the zero-config
// baseline.
func Default() Config {
	return Config{
		SnapshotDir:            "./display-helper",
		ListenAddress:          "",
		HeartbeatTimeout:       30 * time.Second,
		DisconnectGrace:        30 * time.Second,
		EventDebounce:          500 * time.Millisecond,
		MaxApplyAttempts:       3,
		ApplyRetryDelay:        300 * time.Millisecond,
		VirtualDisplayCooldown: 30 * time.Second,
		LogLevel:               "info",
		MetricsBackend:         "noop",
	}
}

// Load reads path (if it exists) over the default, then applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DISPLAYHELPER_SNAPSHOT_DIR"); v != "" {
		cfg.SnapshotDir = v
	}
	if v := os.Getenv("DISPLAYHELPER_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}
	if v := os.Getenv("DISPLAYHELPER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("DISPLAYHELPER_METRICS_BACKEND"); v != "" {
		cfg.MetricsBackend = v
	}
	if v := os.Getenv("DISPLAYHELPER_MAX_APPLY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxApplyAttempts = n
		}
	}
}

// Watcher reloads Config from a file on write and publishes a
// config/reloaded event carrying the file path. It never reaches into
// running operations; Current() returns the most recently loaded values.
type Watcher struct {
	mu      sync.RWMutex
	path    string
	current Config
	bus     events.Bus
	logger  logging.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher loads path once and arms an fsnotify watch on its directory.
func NewWatcher(path string, bus events.Bus, logger logging.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{path: path, current: cfg, bus: bus, logger: logger}
	if path == "" {
		return w, nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch config dir %s: %w", dir, err)
	}
	w.watcher = fw
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run watches for writes to the config file until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if w.watcher == nil {
		<-ctx.Done()
		return
	}
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload(ctx)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WarnCtx(ctx, "config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.WarnCtx(ctx, "config reload failed, keeping previous config", "error", err)
		return
	}
	w.mu.Lock()
	w.current = cfg
	w.mu.Unlock()
	if w.bus != nil {
		w.bus.Publish(events.Event{Category: "config", Type: "reloaded", Fields: map[string]any{"path": w.path}})
	}
	w.logger.InfoCtx(ctx, "config reloaded", "path", w.path)
}
