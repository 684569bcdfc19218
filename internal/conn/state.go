package conn

import (
	"fmt"
	"slices"
	"sync"

	"github.com/brunodmn/ripple/internal/bus"
)

// State represents the chat connection's lifecycle state.
type State string

const (
	// Connecting means a dial attempt is in progress.
	Connecting State = "CONNECTING"
	// Open means the transport is live and frames flow.
	Open State = "OPEN"
	// Reconnecting means the transport closed and a retry is scheduled.
	Reconnecting State = "RECONNECTING"
	// Closed means the client shut the connection down on purpose; no
	// reconnect will be scheduled.
	Closed State = "CLOSED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Connecting:   {Open, Reconnecting, Closed},
	Open:         {Reconnecting, Closed},
	Reconnecting: {Connecting, Closed},
	Closed:       {Connecting},
}

// Machine tracks and enforces connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Connecting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Connecting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		cur := m.current
		m.mu.Unlock()
		return fmt.Errorf("invalid transition from %s to %s", cur, to)
	}
	from := m.current
	m.current = to
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Emit(bus.ConnStateChanged, StateChange{
			From: from,
			To:   to,
		})
	}
	return nil
}

// StateChange is the payload for conn.state_changed events.
type StateChange struct {
	From State
	To   State
}
