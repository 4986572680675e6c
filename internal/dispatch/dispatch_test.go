package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonary/displayhelper/internal/ports"
	"github.com/nonary/displayhelper/internal/types"
)

func TestGenerationBumpInvalidatesToken(t *testing.T) {
	gen := &Generation{}
	tok := NewToken(gen)
	assert.False(t, tok.Cancelled())

	gen.Bump()
	assert.True(t, tok.Cancelled())
}

func TestStaleComparesAgainstCurrentGeneration(t *testing.T) {
	gen := &Generation{}
	assert.False(t, Stale(gen, gen.Current()))
	stampedAt := gen.Current()
	gen.Bump()
	assert.True(t, Stale(gen, stampedAt))
}

func TestDispatcherRunsTasksInOrder(t *testing.T) {
	clock := ports.NewFakeClock(time.Unix(0, 0))
	d := NewDispatcher(clock, &ports.FakeVirtualDisplayDriver{})
	defer d.Stop()

	done := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		d.Dispatch(Task{
			Op: func(ctx context.Context, tok Token) any { return i },
			OnComplete: func(result any) {
				done <- result.(int)
			},
		})
	}
	for i := 0; i < 3; i++ {
		select {
		case got := <-done:
			require.Equal(t, i, got)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for task completion")
		}
	}
}

func TestDispatcherVirtualDisplayBounceSucceeds(t *testing.T) {
	clock := ports.NewFakeClock(time.Unix(0, 0))
	vd := &ports.FakeVirtualDisplayDriver{}
	d := NewDispatcher(clock, vd)
	defer d.Stop()

	done := make(chan any, 1)
	d.Dispatch(Task{
		ResetVD: true,
		Op:      func(ctx context.Context, tok Token) any { return "ran" },
		OnComplete: func(result any) {
			done <- result
		},
	})

	select {
	case result := <-done:
		assert.Equal(t, "ran", result)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	assert.Equal(t, 1, vd.DisableCalls)
	assert.Equal(t, 1, vd.EnableCalls)
}

func TestDispatcherVirtualDisplayBounceFailureShortCircuits(t *testing.T) {
	clock := ports.NewFakeClock(time.Unix(0, 0))
	vd := &ports.FakeVirtualDisplayDriver{DisableErr: assertError("disable failed")}
	d := NewDispatcher(clock, vd)
	defer d.Stop()

	opCalled := false
	done := make(chan any, 1)
	d.Dispatch(Task{
		ResetVD: true,
		Op: func(ctx context.Context, tok Token) any {
			opCalled = true
			return nil
		},
		OnComplete: func(result any) {
			done <- result
		},
	})

	select {
	case result := <-done:
		outcome, ok := result.(types.ApplyOutcome)
		require.True(t, ok)
		assert.Equal(t, types.StatusFatal, outcome.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	assert.False(t, opCalled, "operation body must not run after a failed VD bounce")
}

func TestDispatcherStopDrainsWorker(t *testing.T) {
	clock := ports.NewFakeClock(time.Unix(0, 0))
	d := NewDispatcher(clock, &ports.FakeVirtualDisplayDriver{})
	d.Stop()
	// Dispatching after Stop must not block or panic; the context is done.
	d.Dispatch(Task{Op: func(ctx context.Context, tok Token) any { return nil }})
}

type assertError string

func (e assertError) Error() string { return string(e) }
