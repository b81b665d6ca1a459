package endpoint

import (
	"fmt"
	"sync"
)

// State is the position of a Source in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateOpened
	StateEnumerating
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateEnumerating:
		return "enumerating"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Lifecycle tracks Created -> Opened -> Enumerating -> Closed for a Source.
type Lifecycle struct {
	mu    sync.Mutex
	state State
}

// NewLifecycle starts in StateCreated.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Open moves Created to Opened. Other states are left alone.
func (l *Lifecycle) Open() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateCreated {
		l.state = StateOpened
	}
}

// Begin moves Opened to Enumerating. It fails with ErrSourceClosed after
// Close and ErrSourceExhausted on a second call.
func (l *Lifecycle) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch l.state {
	case StateOpened:
		l.state = StateEnumerating
		return nil
	case StateEnumerating:
		return ErrSourceExhausted
	case StateClosed:
		return ErrSourceClosed
	}
	return fmt.Errorf("source not opened (state %s)", l.state)
}

// Close moves to Closed and reports whether this call did the transition, so
// resources are released exactly once.
func (l *Lifecycle) Close() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateClosed {
		return false
	}
	l.state = StateClosed
	return true
}

// Closed reports whether Close has been called.
func (l *Lifecycle) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == StateClosed
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

type guardedIterator[T any] struct {
	Iterator[T]
	lc  *Lifecycle
	err error
}

// Guard stops it once lc is closed; Err then reports ErrSourceClosed.
func Guard[T any](lc *Lifecycle, it Iterator[T]) Iterator[T] {
	return &guardedIterator[T]{Iterator: it, lc: lc}
}

func (g *guardedIterator[T]) Next() bool {
	if g.err != nil {
		return false
	}
	if g.lc.Closed() {
		g.err = ErrSourceClosed
		return false
	}
	return g.Iterator.Next()
}

func (g *guardedIterator[T]) Err() error {
	if g.err != nil {
		return g.err
	}
	return g.Iterator.Err()
}
