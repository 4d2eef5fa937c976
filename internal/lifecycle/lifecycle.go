// Package lifecycle guards the start and end of the remote session.
//
// A session moves NotStarted → Starting → Active → Ending → Ended at most
// once per client. A failed start goes back to NotStarted so it can be
// retried. Once the host unmounts, no start is allowed any more, but an
// active session may still be ended exactly once.
package lifecycle

import (
	"log/slog"
	"sync"
)

// State is the lifecycle state of the session.
type State int

const (
	NotStarted State = iota
	Starting
	Active
	Ending
	Ended
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Starting:
		return "starting"
	case Active:
		return "active"
	case Ending:
		return "ending"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Machine is the session state machine. It is safe for concurrent use.
type Machine struct {
	mu        sync.Mutex
	state     State
	unmounted bool
}

// NewMachine returns a machine in NotStarted.
func NewMachine() *Machine {
	return &Machine{}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Unmounted reports whether Unmount was called.
func (m *Machine) Unmounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unmounted
}

// BeginStart moves NotStarted → Starting. It returns false, changing nothing,
// in any other state or after Unmount.
func (m *Machine) BeginStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted || m.state != NotStarted {
		return false
	}
	m.transition(Starting)
	return true
}

// CompleteStart settles a start begun with BeginStart: Active on success,
// back to NotStarted on failure. It returns the resulting state.
func (m *Machine) CompleteStart(ok bool) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Starting {
		return m.state
	}
	if ok {
		m.transition(Active)
	} else {
		m.transition(NotStarted)
	}
	return m.state
}

// BeginEnd moves Active → Ending. It returns false in any other state.
func (m *Machine) BeginEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Active {
		return false
	}
	m.transition(Ending)
	return true
}

// CompleteEnd moves Ending → Ended, whatever the outcome of the request.
func (m *Machine) CompleteEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ending {
		return
	}
	m.transition(Ended)
}

// Unmount records that the host is going away. It returns true only for the
// first call.
func (m *Machine) Unmount() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unmounted {
		return false
	}
	m.unmounted = true
	slog.Debug("session host unmounted", "state", m.state)
	return true
}

func (m *Machine) transition(to State) {
	slog.Debug("session state", "from", m.state, "to", to)
	m.state = to
}
