package statemachine

import "github.com/nonary/displayhelper/internal/types"

// Kind identifies what a Message carries: an external command, an OS event,
// or an internal operation completion.
type Kind int

const (
	MsgApply Kind = iota
	MsgRevert
	MsgDisarm
	MsgExportGolden
	MsgSnapshotCurrent
	MsgPing
	MsgStop
	MsgDisplayEvent
	MsgHeartbeatTimeout
	MsgSessionChanged
	msgApplyCompleted
	msgVerificationCompleted
	msgRecoveryCompleted
	msgRecoveryValidationCompleted
	msgCaptureCompleted
	msgPreApplyCaptured
)

// Message is the single envelope every external command and internal
// completion flows through, consumed strictly FIFO by the machine's run loop.
type Message struct {
	Kind Kind

	// External command payloads.
	ApplyRequest   *types.ApplyRequest
	ExcludeDevices []string

	// Internal completion payloads; Generation is checked against the
	// machine's current cancellation generation before anything else.
	Generation          uint64
	ApplyOutcome        types.ApplyOutcome
	VerificationSuccess bool
	RecoveryOutcome     types.RecoveryOutcome
	CaptureTier         types.Tier
	CaptureSnapshot     *types.Snapshot
}

func (m Message) isCompletion() bool {
	switch m.Kind {
	case msgApplyCompleted, msgVerificationCompleted, msgRecoveryCompleted,
		msgRecoveryValidationCompleted, msgCaptureCompleted, msgPreApplyCaptured:
		return true
	default:
		return false
	}
}
