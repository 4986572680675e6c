// Package statemachine holds the single-threaded coordinator: one FIFO
// message queue, one handler, explicit state. Every command, OS event, and
// operation completion flows through the same run loop, so transitions
// never race.
package statemachine

import (
	"context"
	"fmt"
	"sync"

	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/policy"
	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/reconnect"
	"github.com/nonary/displayhelper/internal/snapshot"
	"github.com/nonary/displayhelper/internal/telemetry/events"
	"github.com/nonary/displayhelper/internal/telemetry/logging"
	"github.com/nonary/displayhelper/internal/types"
)

// Deps bundles everything the machine needs to do its work. Display-facing
// calls always go through Dispatcher so they run off this goroutine.
type Deps struct {
	Dispatcher    *dispatch.Dispatcher
	Generation    *dispatch.Generation
	Persistence   *snapshot.Persistence
	Service       *snapshot.Service
	Display       ports.DisplaySettings
	ScheduledTask ports.ScheduledTask
	Workarounds   ports.Workarounds
	Session       ports.SessionState
	Heartbeat     *reconnect.HeartbeatMonitor
	Policy        *policy.ApplyPolicy
	Clock         ports.Clock
	Logger        logging.Logger
	Events        events.Bus
}

// Callbacks surface results to the embedder. OnApplyResult and
// OnVerificationResult fire at most once per apply.
type Callbacks struct {
	OnApplyResult        func(success bool, errMsg string)
	OnVerificationResult func(success bool)
	OnExit               func(code int)
}

// Machine is the single-threaded coordinator. All mutable state below is
// only ever touched from the run-loop goroutine.
type Machine struct {
	deps Deps
	cb   Callbacks

	queue chan Message

	mu    sync.Mutex // guards only fields read by Health/Snapshot probes from other goroutines
	state State

	currentRequest    *types.ApplyRequest
	attempt           int
	expectedTopology  *types.Topology
	recoveryArmed     bool
	pendingRecovery   *types.Snapshot
	pendingPreApply   *types.Snapshot
	blacklist         map[string]struct{}
	preferGoldenFirst bool
	pendingCommand    *Message
}

// New constructs a Waiting-state machine. Call Run in its own goroutine.
func New(deps Deps, cb Callbacks) *Machine {
	return &Machine{
		deps:      deps,
		cb:        cb,
		queue:     make(chan Message, 256),
		state:     StateWaiting,
		blacklist: make(map[string]struct{}),
	}
}

// Post enqueues a message for the run loop. Safe to call from any goroutine,
// including dispatcher completion callbacks.
func (m *Machine) Post(msg Message) {
	select {
	case m.queue <- msg:
	default:
		// Queue is saturated; drop rather than block a foreign goroutine
		// forever. A saturated 256-deep queue indicates a stuck consumer,
		// which no amount of buffering fixes.
		m.deps.Logger.WarnCtx(context.Background(), "state machine queue saturated, dropping message", "kind", msg.Kind)
	}
}

// State returns the current state (safe for concurrent read).
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
	m.publishEvent("state", "transition", map[string]any{"state": s.String()})
}

// Run consumes the queue until ctx is cancelled.
func (m *Machine) Run(ctx context.Context) {
	for {
		select {
		case msg := <-m.queue:
			m.handle(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Machine) handle(ctx context.Context, msg Message) {
	if msg.isCompletion() && dispatch.Stale(m.deps.Generation, msg.Generation) {
		return
	}

	switch msg.Kind {
	case MsgDisarm:
		m.handleDisarm(ctx)
		return
	case MsgExportGolden:
		m.handleExportGolden(ctx, msg.ExcludeDevices)
		return
	case MsgSnapshotCurrent:
		m.handleSnapshotCurrent(ctx, msg.ExcludeDevices)
		return
	case MsgPing:
		m.deps.Heartbeat.RecordPing()
		return
	case MsgStop:
		if m.cb.OnExit != nil {
			m.cb.OnExit(0)
		}
		return
	case MsgApply:
		m.handleApply(ctx, msg.ApplyRequest, msg.ExcludeDevices)
		return
	case MsgRevert:
		m.handleRevert(ctx)
		return
	case MsgSessionChanged:
		m.handleSessionChanged(ctx)
		return
	case msgCaptureCompleted:
		m.handleCaptureCompleted(ctx, msg.CaptureTier, msg.CaptureSnapshot)
		return
	case msgPreApplyCaptured:
		m.pendingPreApply = msg.CaptureSnapshot
		return
	}

	switch m.state {
	case StateInProgress:
		if msg.Kind == msgApplyCompleted {
			m.handleApplyCompleted(ctx, msg.ApplyOutcome)
		}
	case StateVerification:
		if msg.Kind == msgVerificationCompleted {
			m.handleVerificationCompleted(ctx, msg.VerificationSuccess)
		}
	case StateRecovery:
		if msg.Kind == msgRecoveryCompleted {
			m.handleRecoveryCompleted(ctx, msg.RecoveryOutcome)
		}
	case StateRecoveryValidation:
		if msg.Kind == msgRecoveryValidationCompleted {
			m.handleRecoveryValidationCompleted(ctx, msg.VerificationSuccess)
		}
	case StateEventLoop:
		switch msg.Kind {
		case MsgDisplayEvent, MsgHeartbeatTimeout:
			m.handleArmedEvent(ctx)
		}
	}
}

// handleApply implements the "Apply pre-empts every state" decision
// recorded for the Apply-vs-Recovery open question: Apply cancels whatever
// is running, regardless of current state, and restarts from InProgress.
func (m *Machine) handleApply(ctx context.Context, req *types.ApplyRequest, excludeDevices []string) {
	if req == nil {
		if m.cb.OnApplyResult != nil {
			m.cb.OnApplyResult(false, "apply request missing")
		}
		return
	}
	if m.deps.Session != nil && !m.deps.Session.Interactive(ctx) {
		pending := Message{Kind: MsgApply, ApplyRequest: req, ExcludeDevices: excludeDevices}
		m.pendingCommand = &pending
		return
	}

	if len(excludeDevices) > 0 {
		m.updateBlacklist(excludeDevices)
	}
	m.deps.Generation.Bump()
	m.currentRequest = req
	m.attempt = 1
	m.preferGoldenFirst = req.PreferGoldenFirst
	if m.deps.ScheduledTask != nil {
		if err := m.deps.ScheduledTask.Create(ctx, ports.BestEffortPrincipal()); err != nil {
			m.deps.Logger.WarnCtx(ctx, "create restore task failed", "error", err)
		}
	}
	// The Current tier must record the state the machine would revert to,
	// so it's captured before the apply mutates anything. The worker runs
	// tasks in enqueue order, which puts the capture ahead of the apply.
	// Persisting waits until verification succeeds; while already armed the
	// pristine pre-session snapshot is kept instead of re-capturing.
	if !m.recoveryArmed {
		m.dispatchCapture(msgPreApplyCaptured, types.TierCurrent)
	}
	m.setState(StateInProgress)
	m.dispatchApply(0, false)
}

func (m *Machine) handleRevert(ctx context.Context) {
	if m.state != StateWaiting {
		return
	}
	if m.deps.Session != nil && !m.deps.Session.Interactive(ctx) {
		pending := Message{Kind: MsgRevert}
		m.pendingCommand = &pending
		return
	}
	m.deps.Generation.Bump()
	m.recoveryArmed = true
	m.deps.Heartbeat.Arm()
	if m.deps.ScheduledTask != nil {
		_ = m.deps.ScheduledTask.Delete(ctx)
	}
	m.setState(StateRecovery)
	m.dispatchRecover()
}

func (m *Machine) handleDisarm(ctx context.Context) {
	m.deps.Generation.Bump()
	m.recoveryArmed = false
	m.deps.Heartbeat.Disarm()
	if m.deps.ScheduledTask != nil {
		_ = m.deps.ScheduledTask.Delete(ctx)
	}
	m.pendingRecovery = nil
	m.pendingPreApply = nil
	m.setState(StateWaiting)
}

func (m *Machine) handleSessionChanged(ctx context.Context) {
	if m.pendingCommand == nil {
		return
	}
	if m.deps.Session != nil && !m.deps.Session.Interactive(ctx) {
		return
	}
	cmd := *m.pendingCommand
	m.pendingCommand = nil
	m.handle(ctx, cmd)
}

func (m *Machine) handleExportGolden(ctx context.Context, exclude []string) {
	m.updateBlacklist(exclude)
	m.dispatchCapture(msgCaptureCompleted, types.TierGolden)
}

func (m *Machine) handleSnapshotCurrent(ctx context.Context, exclude []string) {
	m.updateBlacklist(exclude)
	if err := m.deps.Persistence.RotateCurrentToPrevious(ctx); err != nil {
		m.deps.Logger.WarnCtx(ctx, "rotate current to previous failed", "error", err)
	}
	m.dispatchCapture(msgCaptureCompleted, types.TierCurrent)
}

func (m *Machine) updateBlacklist(exclude []string) {
	m.blacklist = snapshot.BlacklistSet(exclude)
}

// dispatchCapture snapshots the live display state on the async worker (the
// capture is an OS call) and posts the result back as kind. Ledger writes
// stay on this goroutine; only the capture leaves it.
func (m *Machine) dispatchCapture(kind Kind, tier types.Tier) {
	token := dispatch.NewToken(m.deps.Generation)
	gen := m.deps.Generation.Current()
	m.deps.Dispatcher.Dispatch(dispatch.Task{
		Token: token,
		Op: func(opCtx context.Context, tok dispatch.Token) any {
			snap, err := m.deps.Service.Capture(opCtx)
			if err != nil {
				m.deps.Logger.WarnCtx(opCtx, "snapshot capture failed", "tier", tier, "error", err)
				return nil
			}
			return &snap
		},
		OnComplete: func(result any) {
			snap, _ := result.(*types.Snapshot)
			if snap == nil {
				return
			}
			m.Post(Message{Kind: kind, Generation: gen, CaptureTier: tier, CaptureSnapshot: snap})
		},
	})
}

// handleCaptureCompleted persists a captured snapshot for its tier, applying
// the blacklist filter as of now, not as of capture time.
func (m *Machine) handleCaptureCompleted(ctx context.Context, tier types.Tier, snap *types.Snapshot) {
	if snap == nil {
		return
	}
	m.persistSnapshot(ctx, tier, *snap)
}

func (m *Machine) persistSnapshot(ctx context.Context, tier types.Tier, snap types.Snapshot) {
	saved, err := m.deps.Persistence.Save(ctx, tier, snap, m.blacklist)
	if err != nil {
		m.deps.Logger.WarnCtx(ctx, "persist snapshot failed", "tier", tier, "error", err)
		return
	}
	if !saved {
		m.deps.Logger.WarnCtx(ctx, "snapshot not persisted, blacklist filter left it empty", "tier", tier)
	}
}

func (m *Machine) handleArmedEvent(ctx context.Context) {
	if !m.recoveryArmed {
		return
	}
	m.deps.Generation.Bump()
	m.setState(StateRecovery)
	m.dispatchRecover()
}

func applyFailureMessage(status types.ApplyStatus) string {
	return fmt.Sprintf("apply failed: %s", status)
}

func (m *Machine) publishEvent(category, typ string, fields map[string]any) {
	if m.deps.Events == nil {
		return
	}
	m.deps.Events.Publish(events.Event{Category: category, Type: typ, Fields: fields})
}
