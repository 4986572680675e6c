// Command displayhelper runs the display-settings coordinator: a
// long-lived process that applies, verifies, and autonomously reverts OS
// display configurations on behalf of a game-streaming host, communicating
// over a length-prefixed IPC byte stream (see internal/ipc).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/nonary/displayhelper/internal/config"
	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/eventpump"
	"github.com/nonary/displayhelper/internal/ipc"
	"github.com/nonary/displayhelper/internal/policy"
	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/reconnect"
	"github.com/nonary/displayhelper/internal/singleton"
	"github.com/nonary/displayhelper/internal/snapshot"
	"github.com/nonary/displayhelper/internal/statemachine"
	"github.com/nonary/displayhelper/internal/telemetry/events"
	"github.com/nonary/displayhelper/internal/telemetry/health"
	"github.com/nonary/displayhelper/internal/telemetry/logging"
	"github.com/nonary/displayhelper/internal/telemetry/metrics"
)

func main() {
	var (
		restore          bool
		noStartupRestore bool
		configPath       string
		listenAddress    string
		snapshotDir      string
	)
	flag.BoolVar(&restore, "restore", false, "one-shot mode: push a Revert command and exit on completion")
	flag.BoolVar(&noStartupRestore, "no-startup-restore", false, "accepted but ignored (legacy)")
	flag.StringVar(&configPath, "config", "", "path to the YAML config file")
	flag.StringVar(&listenAddress, "listen", "", "IPC listen address override")
	flag.StringVar(&snapshotDir, "snapshot-dir", "", "snapshot ledger directory override")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(runOptions{
		restore:          restore,
		noStartupRestore: noStartupRestore,
		configPath:       configPath,
		listenAddress:    listenAddress,
		snapshotDir:      snapshotDir,
	}); err != nil {
		logger.Error("fatal startup error", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	restore          bool
	noStartupRestore bool
	configPath       string
	listenAddress    string
	snapshotDir      string
}

func run(opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.snapshotDir != "" {
		cfg.SnapshotDir = opts.snapshotDir
	}
	if opts.listenAddress != "" {
		cfg.ListenAddress = opts.listenAddress
	}

	logger := logging.New(slog.Default())
	bus := events.NewBus()

	lockPath := filepath.Join(cfg.SnapshotDir, "displayhelper.lock")
	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	lock, err := singleton.Acquire(lockPath)
	if err != nil {
		if _, conflict := err.(singleton.ErrAlreadyRunning); conflict {
			logger.ErrorCtx(context.Background(), "another instance is already running")
			os.Exit(singleton.ExitCodeConflict)
		}
		return fmt.Errorf("acquire singleton lock: %w", err)
	}
	defer lock.Release()

	metricsProvider := buildMetricsProvider(cfg)
	instrumentBus(bus, metricsProvider)

	if err := snapshot.MigrateLegacyLayout(cfg.SnapshotDir); err != nil {
		logger.WarnCtx(context.Background(), "legacy snapshot migration failed", "error", err)
	}
	storage, err := snapshot.NewJSONStorage(cfg.SnapshotDir)
	if err != nil {
		return fmt.Errorf("open snapshot storage: %w", err)
	}

	persistence := snapshot.NewPersistence(storage)

	clock := ports.RealClock()
	var display ports.DisplaySettings = ports.NewFakeDisplaySettings() // real OS binding is out of scope; see internal/ports
	vd := &ports.FakeVirtualDisplayDriver{}
	scheduledTask := &ports.FakeScheduledTask{}
	workarounds := &ports.FakeWorkarounds{}
	session := ports.NewFakeSessionState(true)

	svc := snapshot.NewService(display)
	applyPolicy := policy.NewApplyPolicy(clock)
	dispatcher := dispatch.NewDispatcher(clock, vd)
	defer dispatcher.Stop()

	heartbeat := reconnect.NewHeartbeatMonitor(clock)
	reconnectCtl := reconnect.NewReconnectController(clock)
	results := &resultSink{}

	gen := &dispatch.Generation{}
	machine := statemachine.New(statemachine.Deps{
		Dispatcher:    dispatcher,
		Generation:    gen,
		Persistence:   persistence,
		Service:       svc,
		Display:       display,
		ScheduledTask: scheduledTask,
		Workarounds:   workarounds,
		Session:       session,
		Heartbeat:     heartbeat,
		Policy:        applyPolicy,
		Clock:         clock,
		Logger:        logger,
		Events:        bus,
	}, statemachine.Callbacks{
		OnApplyResult: func(success bool, errMsg string) {
			logger.InfoCtx(context.Background(), "apply result", "success", success, "error", errMsg)
			results.writeApplyResult(success, errMsg)
		},
		OnVerificationResult: func(success bool) {
			logger.InfoCtx(context.Background(), "verification result", "success", success)
			results.writeVerificationResult(success)
		},
		OnExit: func(code int) {
			os.Exit(code)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go machine.Run(ctx)

	if opts.restore {
		machine.Post(statemachine.Message{Kind: statemachine.MsgRevert})
		<-ctx.Done()
		return nil
	}

	pump := eventpump.NewDebouncer(func(src eventpump.Source) {
		machine.Post(statemachine.Message{Kind: statemachine.MsgDisplayEvent})
	})
	_ = pump // no OS display-change source feeds it here; OS notifications are out of scope

	go heartbeatLoop(ctx, heartbeat, reconnectCtl, machine)

	if cfg.ListenAddress != "" {
		listener, err := net.Listen("tcp", cfg.ListenAddress)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
		}
		defer listener.Close()
		go serveIPC(ctx, listener, machine, reconnectCtl, results, logger)
	}

	healthEval := health.NewEvaluator(2*time.Second,
		health.ProbeFunc(func(context.Context) health.ProbeResult {
			if results.connected() {
				return health.Healthy("ipc")
			}
			return health.Degraded("ipc", "no host connection")
		}),
		health.ProbeFunc(func(context.Context) health.ProbeResult {
			return health.Healthy("state:" + machine.State().String())
		}),
	)
	go healthLoop(ctx, healthEval, logger)

	watcher, err := config.NewWatcher(opts.configPath, bus, logger)
	if err != nil {
		logger.WarnCtx(ctx, "config watcher unavailable", "error", err)
	} else {
		go watcher.Run(ctx)
	}

	waitForShutdownSignal(logger)
	return nil
}

func serveIPC(ctx context.Context, listener net.Listener, machine *statemachine.Machine, rc *reconnect.ReconnectController, results *resultSink, logger logging.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.WarnCtx(ctx, "ipc accept failed", "error", err)
			continue
		}
		rc.UpdateConnection(true)
		go func() {
			defer conn.Close()
			reader := ipc.NewLengthPrefixedReader(conn)
			writer := ipc.NewWriter(conn)
			results.set(writer)
			router := ipc.NewRouter(reader, writer, machine, logger)
			if err := router.Serve(ctx); err != nil {
				logger.WarnCtx(ctx, "ipc connection closed", "error", err)
			}
			results.clear(writer)
			if rc.UpdateConnection(false) {
				machine.Post(statemachine.Message{Kind: statemachine.MsgRevert})
			}
		}()
	}
}

// resultSink routes state-machine result callbacks to whichever IPC
// connection is live. With no connection the results are log-only; the host
// that disconnected mid-apply learns the final state from the display
// itself (or from the autonomous revert).
type resultSink struct {
	mu sync.Mutex
	w  *ipc.Writer
}

func (s *resultSink) set(w *ipc.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// clear drops the writer only if it is still the active one, so a newer
// connection's writer survives an older connection's teardown.
func (s *resultSink) clear(w *ipc.Writer) {
	s.mu.Lock()
	if s.w == w {
		s.w = nil
	}
	s.mu.Unlock()
}

func (s *resultSink) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w != nil
}

func (s *resultSink) writeApplyResult(success bool, errMsg string) {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w != nil {
		_ = w.WriteApplyResult(success, errMsg)
	}
}

func (s *resultSink) writeVerificationResult(success bool) {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w != nil {
		_ = w.WriteVerificationResult(success)
	}
}

func healthLoop(ctx context.Context, eval *health.Evaluator, logger logging.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := eval.Evaluate(ctx)
			if snap.Overall != health.StatusHealthy {
				logger.WarnCtx(ctx, "health degraded", "overall", string(snap.Overall))
			}
		}
	}
}

// instrumentBus counts state-machine outcomes off the telemetry bus so the
// machine itself stays free of metrics plumbing.
func instrumentBus(bus events.Bus, provider metrics.Provider) {
	applyResults := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "displayhelper", Subsystem: "apply", Name: "results_total", Help: "Apply results by outcome.", Labels: []string{"success"},
	}})
	verifyResults := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "displayhelper", Subsystem: "verification", Name: "results_total", Help: "Verification results by outcome.", Labels: []string{"success"},
	}})
	bus.Subscribe(func(ev events.Event) {
		if ev.Type != "result" {
			return
		}
		success, _ := ev.Fields["success"].(bool)
		label := "false"
		if success {
			label = "true"
		}
		switch ev.Category {
		case "apply":
			applyResults.Inc(1, label)
		case "verification":
			verifyResults.Inc(1, label)
		}
	})
}

func heartbeatLoop(ctx context.Context, hb *reconnect.HeartbeatMonitor, rc *reconnect.ReconnectController, machine *statemachine.Machine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if hb.CheckTimeout() {
				machine.Post(statemachine.Message{Kind: statemachine.MsgHeartbeatTimeout})
			}
			if rc.CheckDisconnectGrace() {
				machine.Post(statemachine.Message{Kind: statemachine.MsgRevert})
			}
		}
	}
}

func buildMetricsProvider(cfg config.Config) metrics.Provider {
	switch cfg.MetricsBackend {
	case "prometheus":
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	case "otel":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{ServiceName: "displayhelper"})
	default:
		return metrics.NewNoopProvider()
	}
}

func waitForShutdownSignal(logger logging.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.InfoCtx(context.Background(), "shutdown signal received, waiting for graceful exit")
	go func() {
		<-sigCh
		logger.ErrorCtx(context.Background(), "second shutdown signal received, forcing exit")
		os.Exit(1)
	}()
}
