package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/imv/internal/bus"
)

// State is the daemon's view of its chat.db.
type State string

const (
	Booting     State = "BOOTING"
	Opening     State = "OPENING"
	Ready       State = "READY"
	Unavailable State = "UNAVAILABLE"
	Error       State = "ERROR"
)

var validTransitions = map[State][]State{
	Booting:     {Opening, Error},
	Opening:     {Ready, Unavailable, Error},
	Ready:       {Unavailable, Error},
	Unavailable: {Ready, Error},
	Error:       {Booting},
}

// Snapshot is the current state together with when it was entered and,
// for Unavailable and Error, why.
type Snapshot struct {
	State  State
	Since  time.Time
	Reason string
}

// Machine enforces the state transitions and publishes every change on the bus.
type Machine struct {
	mu   sync.RWMutex
	snap Snapshot
	bus  *bus.Bus
	now  func() time.Time
}

// NewMachine creates a machine in Booting. b may be nil.
func NewMachine(b *bus.Bus) *Machine {
	m := &Machine{bus: b, now: time.Now}
	m.snap = Snapshot{State: Booting, Since: m.now()}
	return m
}

func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.State
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Transition moves to the given state without a reason.
func (m *Machine) Transition(to State) error {
	return m.TransitionReason(to, "")
}

// TransitionReason moves to the given state, recording reason. Moving to
// the current state only updates the reason and publishes nothing.
func (m *Machine) TransitionReason(to State, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.snap.State
	if from == to {
		m.snap.Reason = reason
		return nil
	}
	if !slices.Contains(validTransitions[from], to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	m.snap = Snapshot{State: to, Since: m.now(), Reason: reason}
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindStatusChanged,
			Timestamp: m.snap.Since,
			Payload:   StatusChange{From: from, To: to, Reason: reason},
		})
	}
	return nil
}

// StatusChange is the payload of bus.KindStatusChanged.
type StatusChange struct {
	From   State
	To     State
	Reason string
}
