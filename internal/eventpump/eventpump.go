// Package eventpump coalesces bursty OS display/power/device signals into a
// single debounced display-change notification: each new signal re-arms the
// timer, and the callback fires only once the burst goes quiet.
package eventpump

import (
	"sync"
	"time"
)

// DebounceInterval is the coalescing window.
const DebounceInterval = 500 * time.Millisecond

// Source identifies which OS signal triggered a notification.
type Source string

const (
	SourceDisplayChange Source = "display_change"
	SourcePowerResume   Source = "power_resume"
	SourceDeviceArrival Source = "device_arrival"
	SourceDeviceRemoval Source = "device_removal"
)

// Debouncer coalesces any number of Notify calls arriving within
// DebounceInterval of each other into a single fire of the callback.
type Debouncer struct {
	mu      sync.Mutex
	timer   *time.Timer
	onFire  func(Source)
	lastSrc Source
	stopped bool
}

// NewDebouncer returns a debouncer that invokes onFire after the interval
// elapses with no further Notify calls.
func NewDebouncer(onFire func(Source)) *Debouncer {
	return &Debouncer{onFire: onFire}
}

// Notify records a signal and (re)arms the debounce window.
func (d *Debouncer) Notify(src Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.lastSrc = src
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(DebounceInterval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	src := d.lastSrc
	onFire := d.onFire
	stopped := d.stopped
	d.mu.Unlock()
	if !stopped && onFire != nil {
		onFire(src)
	}
}

// Stop prevents any pending or future fire from invoking the callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
