package ipc

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"

	"github.com/nonary/displayhelper/internal/statemachine"
	"github.com/nonary/displayhelper/internal/telemetry/logging"
)

// MachinePoster is the subset of *statemachine.Machine the router needs;
// narrowed to an interface so router tests can use a recording fake.
type MachinePoster interface {
	Post(msg statemachine.Message)
}

// Router reads frames from a FrameReader and turns each into a
// statemachine.Message, stamping a correlation id on every inbound command
// so a multi-command sequence can be followed through the logs.
type Router struct {
	reader  FrameReader
	writer  *Writer
	machine MachinePoster
	logger  logging.Logger
}

// NewRouter builds a router over reader/writer, posting decoded messages to machine.
func NewRouter(reader FrameReader, writer *Writer, machine MachinePoster, logger logging.Logger) *Router {
	return &Router{reader: reader, writer: writer, machine: machine, logger: logger}
}

// Serve reads frames until the reader errors or ctx is cancelled.
func (r *Router) Serve(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		frame, err := r.reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		r.dispatch(ctx, frame)
	}
}

func (r *Router) dispatch(ctx context.Context, frame Frame) {
	correlationID := uuid.NewString()
	ctx = context.WithValue(ctx, correlationIDKey{}, correlationID)

	switch frame.Tag {
	case TagApply:
		req, excludeDevices, err := ParseApplyRequest(frame.Body)
		if err != nil {
			r.logger.WarnCtx(ctx, "apply payload parse failed", "correlation_id", correlationID, "error", err)
			if r.writer != nil {
				_ = r.writer.WriteApplyResult(false, err.Error())
			}
			return
		}
		r.logger.InfoCtx(ctx, "apply command received", "correlation_id", correlationID, "device_id", req.Configuration.DeviceID)
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgApply, ApplyRequest: &req, ExcludeDevices: excludeDevices})
	case TagRevert:
		r.logger.InfoCtx(ctx, "revert command received", "correlation_id", correlationID)
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgRevert})
	case TagReset:
		// deprecated no-op
	case TagExportGolden:
		ids, err := ParseDeviceExcludeList(frame.Body)
		if err != nil {
			r.logger.WarnCtx(ctx, "export golden payload parse failed", "correlation_id", correlationID, "error", err)
			return
		}
		r.logger.InfoCtx(ctx, "export golden command received", "correlation_id", correlationID)
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgExportGolden, ExcludeDevices: ids})
	case TagDisarm:
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgDisarm})
	case TagSnapshotCurrent:
		ids, err := ParseDeviceExcludeList(frame.Body)
		if err != nil {
			r.logger.WarnCtx(ctx, "snapshot current payload parse failed", "correlation_id", correlationID, "error", err)
			return
		}
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgSnapshotCurrent, ExcludeDevices: ids})
	case TagPing:
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgPing})
		if r.writer != nil {
			_ = r.writer.WritePing()
		}
	case TagStop:
		r.machine.Post(statemachine.Message{Kind: statemachine.MsgStop})
	default:
		r.logger.WarnCtx(ctx, "unrecognized ipc tag dropped", "tag", frame.Tag)
	}
}

type correlationIDKey struct{}
