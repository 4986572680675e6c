// Package dispatch runs long-running display operations off the
// state-machine goroutine: exactly one FIFO worker, a cancellation
// generation fence so stale completions are ignored, and an optional
// virtual-display bounce before the operation body runs.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/types"
)

// Generation is a monotonically increasing cancellation fence. The state
// machine bumps it when a command replaces or cancels in-flight work (Apply,
// Revert, Disarm, an armed display event); any task stamped with a stale
// generation is dropped by the state machine before its completion is acted
// on.
type Generation struct {
	mu  sync.Mutex
	gen uint64
}

// Current returns the active generation.
func (g *Generation) Current() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// Bump increments and returns the new generation, invalidating any work
// dispatched against an older one.
func (g *Generation) Bump() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	return g.gen
}

// Token is a cancellation handle tied to one generation snapshot.
type Token struct {
	gen     *Generation
	stamped uint64
}

// NewToken stamps a token with the generation's current value.
func NewToken(gen *Generation) Token {
	return Token{gen: gen, stamped: gen.Current()}
}

// Cancelled reports whether the generation has moved past this token's stamp.
func (t Token) Cancelled() bool {
	return t.gen.Current() != t.stamped
}

// Stale reports whether a message generation differs from the current one.
func Stale(gen *Generation, messageGen uint64) bool {
	return gen.Current() != messageGen
}

// Task is one unit of dispatched work.
type Task struct {
	PreDelay   time.Duration
	ResetVD    bool
	Op         func(ctx context.Context, token Token) any
	Token      Token
	OnComplete func(result any)
}

// Dispatcher serializes task execution on a single worker goroutine, so
// every OS-effecting operation runs in enqueue order.
type Dispatcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan Task
	wg     sync.WaitGroup
	clock  ports.Clock
	vd     ports.VirtualDisplayDriver
}

// NewDispatcher starts the worker goroutine. clock is used for pre-delay
// and VD-bounce sleeps so tests can run with a FakeClock.
func NewDispatcher(clock ports.Clock, vd ports.VirtualDisplayDriver) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{ctx: ctx, cancel: cancel, queue: make(chan Task, 64), clock: clock, vd: vd}
	d.wg.Add(1)
	go d.run()
	return d
}

// Dispatch enqueues a task. Tasks execute strictly in enqueue order.
func (d *Dispatcher) Dispatch(t Task) {
	select {
	case d.queue <- t:
	case <-d.ctx.Done():
	}
}

// Stop drains in-flight work and exits the worker; pending queued tasks may
// be dropped.
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case task, ok := <-d.queue:
			if !ok {
				return
			}
			d.execute(task)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) execute(task Task) {
	if task.PreDelay > 0 {
		d.clock.Sleep(d.ctx, task.PreDelay)
	}
	if task.ResetVD {
		if result, handled := d.bounceVirtualDisplay(task); handled {
			if task.OnComplete != nil {
				task.OnComplete(result)
			}
			return
		}
	}
	var result any
	if task.Op != nil {
		result = task.Op(d.ctx, task.Token)
	}
	if task.OnComplete != nil {
		task.OnComplete(result)
	}
}

// bounceVirtualDisplay disables, sleeps 500ms, enables, sleeps 1000ms.
// Returns handled=true (with a Fatal apply outcome) if either step fails,
// short-circuiting the operation body.
func (d *Dispatcher) bounceVirtualDisplay(task Task) (any, bool) {
	if err := d.vd.Disable(d.ctx); err != nil {
		return types.ApplyOutcome{Status: types.StatusFatal}, true
	}
	d.clock.Sleep(d.ctx, 500*time.Millisecond)
	if err := d.vd.Enable(d.ctx); err != nil {
		return types.ApplyOutcome{Status: types.StatusFatal}, true
	}
	d.clock.Sleep(d.ctx, 1000*time.Millisecond)
	return nil, false
}
