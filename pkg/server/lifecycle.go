package server

import (
	"context"
	"sync"

	"go.uber.org/atomic"
)

type State int32

const (
	StateUnstarted State = iota
	StateStarting
	StateListening
	StateDraining
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// lifecycle guards the state transitions of a Server. Transitions are serialized by mu,
// the current state can be read without locking.
type lifecycle struct {
	mu      sync.Mutex
	state   *atomic.Int32
	started chan struct{}
	drained chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		state:   atomic.NewInt32(int32(StateUnstarted)),
		started: make(chan struct{}),
		drained: make(chan struct{}),
	}
}

func (l *lifecycle) State() State {
	return State(l.state.Load())
}

// transition moves from one state to another and reports whether the current state was from.
func (l *lifecycle) transition(from, to State) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if State(l.state.Load()) != from {
		return false
	}
	l.state.Store(int32(to))
	return true
}

// listening moves from Starting to Listening.
func (l *lifecycle) listening() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Store(int32(StateListening))
	close(l.started)
}

// beginDrain moves to Draining. It returns the state it left, the drain only has to be done
// when that state was Listening.
func (l *lifecycle) beginDrain() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	previous := State(l.state.Load())
	switch previous {
	case StateListening:
		l.state.Store(int32(StateDraining))
	case StateUnstarted:
		l.state.Store(int32(StateStopped))
		close(l.drained)
	}
	return previous
}

// fail moves from Starting to the terminal Failed state.
func (l *lifecycle) fail() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Store(int32(StateFailed))
	close(l.started)
}

// stop moves from Draining to Stopped and releases everyone waiting for the drain.
func (l *lifecycle) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Store(int32(StateStopped))
	close(l.drained)
}

// waitStarted blocks until a running Start has finished or ctx is done.
func (l *lifecycle) waitStarted(ctx context.Context) error {
	select {
	case <-l.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitDrained blocks until a running drain has finished or ctx is done.
func (l *lifecycle) waitDrained(ctx context.Context) error {
	select {
	case <-l.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
