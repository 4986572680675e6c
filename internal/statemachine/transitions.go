package statemachine

import (
	"context"
	"time"

	"github.com/nonary/displayhelper/internal/dispatch"
	"github.com/nonary/displayhelper/internal/operations"
	"github.com/nonary/displayhelper/internal/policy"
	"github.com/nonary/displayhelper/internal/types"
)

// dispatchApply sends the apply operation to the dispatcher. resetVD
// requests the virtual-display bounce before the apply body runs.
func (m *Machine) dispatchApply(preDelay time.Duration, resetVD bool) {
	req := *m.currentRequest
	token := dispatch.NewToken(m.deps.Generation)
	gen := m.deps.Generation.Current()
	m.deps.Dispatcher.Dispatch(dispatch.Task{
		PreDelay: preDelay,
		ResetVD:  resetVD,
		Token:    token,
		Op: func(ctx context.Context, tok dispatch.Token) any {
			return operations.Apply(ctx, m.deps.Display, req, tok, m.deps.Logger)
		},
		OnComplete: func(result any) {
			outcome, _ := result.(types.ApplyOutcome)
			m.Post(Message{Kind: msgApplyCompleted, Generation: gen, ApplyOutcome: outcome})
		},
	})
}

func (m *Machine) dispatchVerify() {
	req := *m.currentRequest
	expected := m.expectedTopology
	token := dispatch.NewToken(m.deps.Generation)
	gen := m.deps.Generation.Current()
	m.deps.Dispatcher.Dispatch(dispatch.Task{
		Token: token,
		Op: func(ctx context.Context, tok dispatch.Token) any {
			return operations.Verify(ctx, m.deps.Clock, m.deps.Display, req, expected, tok)
		},
		OnComplete: func(result any) {
			success, _ := result.(bool)
			m.Post(Message{Kind: msgVerificationCompleted, Generation: gen, VerificationSuccess: success})
		},
	})
}

func (m *Machine) dispatchRecover() {
	token := dispatch.NewToken(m.deps.Generation)
	gen := m.deps.Generation.Current()
	preferGolden := m.preferGoldenFirst
	m.deps.Dispatcher.Dispatch(dispatch.Task{
		Token: token,
		Op: func(ctx context.Context, tok dispatch.Token) any {
			return operations.Recover(ctx, m.deps.Clock, m.deps.Display, m.deps.Persistence, m.deps.Service, preferGolden, tok)
		},
		OnComplete: func(result any) {
			outcome, _ := result.(types.RecoveryOutcome)
			m.Post(Message{Kind: msgRecoveryCompleted, Generation: gen, RecoveryOutcome: outcome})
		},
	})
}

func (m *Machine) dispatchRecoverValidate() {
	restored := m.pendingRecovery
	token := dispatch.NewToken(m.deps.Generation)
	gen := m.deps.Generation.Current()
	m.deps.Dispatcher.Dispatch(dispatch.Task{
		Token: token,
		Op: func(ctx context.Context, tok dispatch.Token) any {
			return operations.ValidateRecovery(ctx, m.deps.Clock, m.deps.Service, restored, tok)
		},
		OnComplete: func(result any) {
			success, _ := result.(bool)
			m.Post(Message{Kind: msgRecoveryValidationCompleted, Generation: gen, VerificationSuccess: success})
		},
	})
}

func (m *Machine) handleApplyCompleted(ctx context.Context, outcome types.ApplyOutcome) {
	switch outcome.Status {
	case types.StatusOk:
		if m.cb.OnApplyResult != nil {
			m.cb.OnApplyResult(true, "")
		}
		m.publishEvent("apply", "result", map[string]any{"success": true})
		m.expectedTopology = outcome.ExpectedTopology
		m.setState(StateVerification)
		m.dispatchVerify()
		return
	case types.StatusNeedsVirtualDisplayReset:
		if m.deps.Policy.MaybeResetVirtualDisplay(outcome.Status, outcome.VirtualDisplayWanted) == policy.ResetVirtualDisplay {
			m.dispatchApply(0, true)
			return
		}
		// Bounce declined (cooldown, or no virtual display requested):
		// retry as a plain transient failure.
		if policy.CanRetryApply(m.attempt) {
			m.attempt++
			m.dispatchApply(policy.RetryDelayFor(m.attempt), false)
			return
		}
	case types.StatusRetryable, types.StatusVerificationFailed:
		if policy.CanRetryApply(m.attempt) {
			m.attempt++
			m.dispatchApply(policy.RetryDelayFor(m.attempt), false)
			return
		}
	}
	if m.cb.OnApplyResult != nil {
		m.cb.OnApplyResult(false, applyFailureMessage(outcome.Status))
	}
	m.publishEvent("apply", "result", map[string]any{"success": false, "status": string(outcome.Status)})
	m.setState(StateWaiting)
}

func (m *Machine) handleVerificationCompleted(ctx context.Context, success bool) {
	if m.cb.OnVerificationResult != nil {
		m.cb.OnVerificationResult(success)
	}
	m.publishEvent("verification", "result", map[string]any{"success": success})
	if success {
		m.recoveryArmed = true
		m.deps.Heartbeat.Arm()
		if m.pendingPreApply != nil {
			m.persistSnapshot(ctx, types.TierCurrent, *m.pendingPreApply)
			m.pendingPreApply = nil
		}
		if m.deps.Workarounds != nil {
			if err := m.deps.Workarounds.RefreshShell(ctx); err != nil {
				m.deps.Logger.WarnCtx(ctx, "refresh shell workaround failed", "error", err)
			}
			if m.currentRequest != nil && m.currentRequest.HDRBlank {
				m.dispatchHDRBlank()
			}
		}
	}
	m.setState(StateWaiting)
}

func (m *Machine) dispatchHDRBlank() {
	token := dispatch.NewToken(m.deps.Generation)
	m.deps.Dispatcher.Dispatch(dispatch.Task{
		PreDelay: 1000 * time.Millisecond,
		Token:    token,
		Op: func(ctx context.Context, tok dispatch.Token) any {
			if tok.Cancelled() {
				return nil
			}
			if err := m.deps.Workarounds.HDRBlankNudge(ctx); err != nil {
				m.deps.Logger.WarnCtx(ctx, "hdr blank nudge failed", "error", err)
			}
			return nil
		},
	})
}

func (m *Machine) handleRecoveryCompleted(ctx context.Context, outcome types.RecoveryOutcome) {
	if outcome.Success {
		m.pendingRecovery = outcome.RestoredSnapshot
		m.setState(StateRecoveryValidation)
		m.dispatchRecoverValidate()
		return
	}
	m.setState(StateEventLoop)
}

func (m *Machine) handleRecoveryValidationCompleted(ctx context.Context, success bool) {
	if success {
		m.recoveryArmed = false
		m.deps.Heartbeat.Disarm()
		if m.deps.ScheduledTask != nil {
			_ = m.deps.ScheduledTask.Delete(ctx)
		}
		if m.cb.OnExit != nil {
			m.cb.OnExit(0)
		}
		return
	}
	m.setState(StateEventLoop)
}
