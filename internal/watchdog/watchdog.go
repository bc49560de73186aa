// Package watchdog bounds dashboard loads with a fixed timeout. A load that
// misses its deadline is abandoned: the caller sees ErrTimeout right away
// and a result that arrives later is dropped.
package watchdog

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is reported when a load does not finish within the timeout.
var ErrTimeout = errors.New("watchdog: load timed out")

// ErrSuperseded is returned by a load overtaken by a newer one.
var ErrSuperseded = errors.New("watchdog: load superseded")

// State is the lifecycle of a Loader.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Loader runs one load at a time and remembers its outcome. Every Load
// takes a new generation; only the result carrying the current generation
// may change the loader's state.
type Loader[T any] struct {
	timeout time.Duration

	mu        sync.Mutex
	gen       uint64
	state     State
	value     T
	err       error
	discarded uint64
}

// New creates a loader with the given timeout. A non-positive timeout
// disables the watchdog.
func New[T any](timeout time.Duration) *Loader[T] {
	return &Loader[T]{timeout: timeout}
}

type result[T any] struct {
	value T
	err   error
}

// Load runs fn under a context that is cancelled when the timeout fires,
// when ctx is done, or when Load returns. fn should honor cancellation,
// but a result it produces after the deadline is ignored either way.
func (l *Loader[T]) Load(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	gen := l.begin()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := fn(runCtx)
		if !l.commit(gen, v, err) {
			var zero T
			done <- result[T]{value: zero, err: ErrSuperseded}
			return
		}
		done <- result[T]{value: v, err: err}
	}()

	var timer <-chan time.Time
	if l.timeout > 0 {
		t := time.NewTimer(l.timeout)
		defer t.Stop()
		timer = t.C
	}

	var zero T
	select {
	case r := <-done:
		return r.value, r.err
	case <-timer:
		if ok, err := l.abandon(gen, ErrTimeout); ok {
			return zero, err
		}
	case <-ctx.Done():
		if ok, err := l.abandon(gen, ctx.Err()); ok {
			return zero, err
		}
	}
	// fn committed just before the deadline.
	r := <-done
	return r.value, r.err
}

func (l *Loader[T]) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.state = Loading
	l.err = nil
	return l.gen
}

// commit records a finished load if it is still current.
func (l *Loader[T]) commit(gen uint64, v T, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.state != Loading {
		l.discarded++
		return false
	}
	if err != nil {
		var zero T
		l.state, l.value, l.err = Failed, zero, err
		return true
	}
	l.state, l.value, l.err = Ready, v, nil
	return true
}

// abandon fails the load gen if it is still running and returns the error
// Load should report. A load overtaken by a newer one reports
// ErrSuperseded. ok is false when the load already committed.
func (l *Loader[T]) abandon(gen uint64, err error) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return true, ErrSuperseded
	}
	if l.state != Loading {
		return false, nil
	}
	var zero T
	l.state, l.value, l.err = Failed, zero, err
	return true, err
}

// Snapshot returns the current state with the last value and error.
func (l *Loader[T]) Snapshot() (State, T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.value, l.err
}

// Generation returns the number of loads started so far.
func (l *Loader[T]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}

// Discarded returns how many results arrived too late and were dropped.
func (l *Loader[T]) Discarded() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.discarded
}
