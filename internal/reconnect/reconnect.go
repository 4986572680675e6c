// Package reconnect implements the disconnect-grace, reconnect, and
// heartbeat controllers. Each is a small latch-with-timestamp state
// machine: armed on failure, cleared on a subsequent success, firing at
// most once per arm.
package reconnect

import (
	"sync"
	"time"

	"github.com/nonary/displayhelper/internal/ports"
)

// Liveness windows for the IPC connection to the streaming host.
const (
	DisconnectGracePeriod = 30 * time.Second
	HeartbeatTimeout      = 30 * time.Second
)

// DisconnectGrace arms a one-shot timer when a disconnect is observed and
// reports whether the grace window has elapsed.
type DisconnectGrace struct {
	mu           sync.Mutex
	clock        ports.Clock
	armed        bool
	triggered    bool
	disconnectAt time.Time
}

func NewDisconnectGrace(clock ports.Clock) *DisconnectGrace {
	return &DisconnectGrace{clock: clock}
}

// Arm starts the grace window from now.
func (g *DisconnectGrace) Arm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = true
	g.triggered = false
	g.disconnectAt = g.clock.Now()
}

// Clear disarms the grace window (e.g. on reconnect).
func (g *DisconnectGrace) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.armed = false
	g.triggered = false
}

// ShouldTrigger returns true at most once per arm, the first time it's
// called after the grace window has elapsed.
func (g *DisconnectGrace) ShouldTrigger() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.armed || g.triggered {
		return false
	}
	if g.clock.Now().Sub(g.disconnectAt) < DisconnectGracePeriod {
		return false
	}
	g.triggered = true
	return true
}

// ReconnectController tracks IPC connection transitions and decides when a
// sustained disconnect should produce a Revert.
type ReconnectController struct {
	mu           sync.Mutex
	grace        *DisconnectGrace
	wasConnected bool
	everObserved bool
	restartPipe  bool
}

func NewReconnectController(clock ports.Clock) *ReconnectController {
	return &ReconnectController{grace: NewDisconnectGrace(clock)}
}

// UpdateConnection records a new observed connection state and returns true
// exactly once when the grace window has elapsed with no reconnect.
func (c *ReconnectController) UpdateConnection(connected bool) bool {
	c.mu.Lock()
	wasConnected, everObserved := c.wasConnected, c.everObserved
	c.wasConnected = connected
	c.everObserved = true
	c.mu.Unlock()

	if connected {
		if !everObserved || !wasConnected {
			c.grace.Clear()
		}
		return false
	}
	if !everObserved || wasConnected {
		c.grace.Arm()
	}
	return c.grace.ShouldTrigger()
}

// CheckDisconnectGrace polls the armed grace window independent of any new
// connection transition, so a sustained disconnect with no further IPC
// activity still triggers a revert once the window elapses.
func (c *ReconnectController) CheckDisconnectGrace() bool {
	return c.grace.ShouldTrigger()
}

// OnBroken and OnError both request a pipe restart and re-arm the grace window.
func (c *ReconnectController) OnBroken() {
	c.mu.Lock()
	c.restartPipe = true
	c.mu.Unlock()
	c.grace.Arm()
}

func (c *ReconnectController) OnError() { c.OnBroken() }

// ConsumeRestartPipe reports and clears the pending pipe-restart request.
func (c *ReconnectController) ConsumeRestartPipe() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.restartPipe
	c.restartPipe = false
	return v
}

// HeartbeatMonitor detects a 30s silence between pings while armed.
type HeartbeatMonitor struct {
	mu        sync.Mutex
	clock     ports.Clock
	armed     bool
	triggered bool
	lastPing  time.Time
}

func NewHeartbeatMonitor(clock ports.Clock) *HeartbeatMonitor {
	return &HeartbeatMonitor{clock: clock}
}

// Arm starts a fresh 30s countdown.
func (h *HeartbeatMonitor) Arm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed = true
	h.triggered = false
	h.lastPing = h.clock.Now()
}

// Disarm clears the countdown and any latched timeout.
func (h *HeartbeatMonitor) Disarm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed = false
	h.triggered = false
}

// RecordPing resets the countdown.
func (h *HeartbeatMonitor) RecordPing() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.armed {
		h.lastPing = h.clock.Now()
		h.triggered = false
	}
}

// CheckTimeout returns true exactly once when more than 30s have elapsed
// since the last ping while armed.
func (h *HeartbeatMonitor) CheckTimeout() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.armed || h.triggered {
		return false
	}
	if h.clock.Now().Sub(h.lastPing) <= HeartbeatTimeout {
		return false
	}
	h.triggered = true
	return true
}
