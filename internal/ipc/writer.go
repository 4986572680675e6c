package ipc

import (
	"encoding/binary"
	"io"
	"sync"
)

// Writer emits length-prefixed outbound frames, serializing writes so two
// goroutines (the router replying to Ping, the machine emitting
// ApplyResult) never interleave partial frames.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

func (w *Writer) writeFrame(tag Tag, body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := uint32(len(body) + 1)
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], n)
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write([]byte{byte(tag)}); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := w.w.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// WriteApplyResult emits tag 6: one success byte plus an optional UTF-8 error.
func (w *Writer) WriteApplyResult(success bool, errMsg string) error {
	body := make([]byte, 0, 1+len(errMsg))
	if success {
		body = append(body, 1)
	} else {
		body = append(body, 0)
	}
	body = append(body, []byte(errMsg)...)
	return w.writeFrame(TagApplyResult, body)
}

// WriteVerificationResult emits tag 9: one success byte.
func (w *Writer) WriteVerificationResult(success bool) error {
	b := byte(0)
	if success {
		b = 1
	}
	return w.writeFrame(TagVerificationResult, []byte{b})
}

// WritePing echoes tag 0xFE with an empty body.
func (w *Writer) WritePing() error {
	return w.writeFrame(TagPing, nil)
}
