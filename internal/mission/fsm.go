package mission

import (
	"sync"
	"time"

	"github.com/kestrel-uas/kestrel/internal/monitoring"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// State is a mission phase.
type State string

const (
	StateIdle      State = "IDLE"
	StateSearching State = "SEARCHING"
	StateTracking  State = "TRACKING"
	StateLocking   State = "LOCKING"
	StateLocked    State = "LOCKED"
	StateKamikaze  State = "KAMIKAZE"
	StateEscaping  State = "ESCAPING"
	StateEmergency State = "EMERGENCY"
)

// Transition records one state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// stateHistoryCap bounds the retained transition log.
const stateHistoryCap = 100

// Machine is the guarded mission state machine. Commands move it between
// phases; the pipeline also drives the passive perception states
// (SEARCHING, TRACKING, LOCKING, LOCKED) directly from tracker and lock
// output via Set.
type Machine struct {
	mu sync.Mutex

	clock    timeutil.Clock
	state    State
	previous State
	hasPrev  bool
	changed  time.Time
	history  []Transition

	// Data attached by accepted commands.
	data map[string]any
}

// NewMachine creates a state machine in IDLE.
func NewMachine(clock timeutil.Clock) *Machine {
	return &Machine{
		clock:   clock,
		state:   StateIdle,
		changed: clock.Now(),
		data:    make(map[string]any),
	}
}

// State returns the current mission phase.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Previous returns the phase before the last transition, if any.
func (m *Machine) Previous() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous, m.hasPrev
}

// StateDuration returns how long the machine has held the current phase.
func (m *Machine) StateDuration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock.Since(m.changed)
}

// Set transitions to the given phase unconditionally. Setting the current
// phase is a no-op and records nothing.
func (m *Machine) Set(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(s)
}

func (m *Machine) set(s State) {
	if s == m.state {
		return
	}
	m.previous = m.state
	m.hasPrev = true
	m.state = s
	m.changed = m.clock.Now()
	m.history = append(m.history, Transition{From: m.previous, To: s, At: m.changed})
	if len(m.history) > stateHistoryCap {
		m.history = m.history[len(m.history)-stateHistoryCap:]
	}
	monitoring.Logf("mission: state %s -> %s", m.previous, s)
}

// Apply runs a command against the transition guards. It returns true when
// the command was accepted. Rejected commands change nothing.
//
// Guards:
//
//	KAMIKAZE        from LOCKED or TRACKING
//	ESCAPE          from any phase except EMERGENCY
//	LOCK            from TRACKING only
//	MISSION_UPDATE  always accepted, merges parameters, no transition
//	STATUS_REQUEST  always accepted, no transition
func (m *Machine) Apply(cmd *Command) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch cmd.Type {
	case CommandKamikaze:
		if m.state == StateLocked || m.state == StateTracking {
			m.set(StateKamikaze)
			m.data["kamikaze_target"] = cmd.Parameters["target_id"]
			return true
		}

	case CommandEscape:
		if m.state != StateEmergency {
			m.set(StateEscaping)
			m.data["escape_direction"] = cmd.Parameters["direction"]
			return true
		}

	case CommandLock:
		if m.state == StateTracking {
			m.set(StateLocking)
			m.data["lock_target"] = cmd.Parameters["target_id"]
			return true
		}

	case CommandMissionUpdate:
		for k, v := range cmd.Parameters {
			m.data[k] = v
		}
		return true

	case CommandStatusRequest:
		return true
	}

	monitoring.Logf("mission: rejected %s in state %s", cmd.Type, m.state)
	return false
}

// Data returns a copy of the accumulated mission data.
func (m *Machine) Data() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// History returns a copy of the transition log, oldest first.
func (m *Machine) History() []Transition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Transition, len(m.history))
	copy(out, m.history)
	return out
}

// Reset returns the machine to IDLE and clears history and mission data.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.previous = ""
	m.hasPrev = false
	m.changed = m.clock.Now()
	m.history = nil
	m.data = make(map[string]any)
}
