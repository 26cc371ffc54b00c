package mission

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrel-uas/kestrel/internal/monitoring"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// Priority orders missions for scheduling. Higher values preempt lower.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// MissionType classifies what a mission does.
type MissionType string

const (
	MissionScan       MissionType = "SCAN"
	MissionTrack      MissionType = "TRACK"
	MissionLock       MissionType = "LOCK"
	MissionKamikaze   MissionType = "KAMIKAZE"
	MissionEscape     MissionType = "ESCAPE"
	MissionReturnHome MissionType = "RETURN_HOME"
)

// DefaultPriority returns the scheduling priority for a mission type.
func (t MissionType) DefaultPriority() Priority {
	switch t {
	case MissionScan:
		return PriorityLow
	case MissionTrack, MissionReturnHome:
		return PriorityMedium
	case MissionLock, MissionKamikaze:
		return PriorityHigh
	case MissionEscape:
		return PriorityCritical
	}
	return PriorityLow
}

// MissionStatus is the execution status of a mission.
type MissionStatus string

const (
	StatusPending     MissionStatus = "PENDING"
	StatusActive      MissionStatus = "ACTIVE"
	StatusCompleted   MissionStatus = "COMPLETED"
	StatusFailed      MissionStatus = "FAILED"
	StatusInterrupted MissionStatus = "INTERRUPTED"
)

func (s MissionStatus) terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusInterrupted
}

// Record is one mission's bookkeeping entry.
type Record struct {
	ID             uuid.UUID
	Type           MissionType
	Priority       Priority
	Status         MissionStatus
	StartTime      time.Time
	CompletionTime time.Time
	TargetID       string
	Parameters     map[string]any
}

// Duration returns the mission's runtime, using now for missions that have
// not yet reached a terminal status.
func (r Record) Duration(now time.Time) time.Duration {
	if r.CompletionTime.IsZero() {
		return now.Sub(r.StartTime)
	}
	return r.CompletionTime.Sub(r.StartTime)
}

// Stats summarizes the manager's history.
type Stats struct {
	Total       int
	Active      int
	Completed   int
	Failed      int
	Interrupted int

	// SuccessRate is completed over total, in percent.
	SuccessRate float64
}

// Manager schedules missions by priority. At most one mission is current;
// a strictly higher priority pending mission preempts it. All terminal
// missions, including interrupted ones, move to history.
type Manager struct {
	mu      sync.Mutex
	clock   timeutil.Clock
	active  map[uuid.UUID]*Record
	history []Record
	current *Record
}

// NewManager creates an empty mission manager.
func NewManager(clock timeutil.Clock) *Manager {
	return &Manager{
		clock:  clock,
		active: make(map[uuid.UUID]*Record),
	}
}

// Create registers a pending mission. A zero priority takes the type's
// default.
func (m *Manager) Create(t MissionType, targetID string, priority Priority, parameters map[string]any) Record {
	if priority == 0 {
		priority = t.DefaultPriority()
	}
	if parameters == nil {
		parameters = map[string]any{}
	}
	rec := &Record{
		ID:         uuid.New(),
		Type:       t,
		Priority:   priority,
		Status:     StatusPending,
		StartTime:  m.clock.Now(),
		TargetID:   targetID,
		Parameters: parameters,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[rec.ID] = rec
	return *rec
}

// UpdateStatus moves a mission to a new status. Terminal statuses stamp the
// completion time, archive the record, and clear it as current if needed.
// Unknown IDs are ignored.
func (m *Manager) UpdateStatus(id uuid.UUID, status MissionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateStatus(id, status)
}

func (m *Manager) updateStatus(id uuid.UUID, status MissionStatus) {
	rec, ok := m.active[id]
	if !ok {
		return
	}
	rec.Status = status
	if !status.terminal() {
		return
	}
	rec.CompletionTime = m.clock.Now()
	m.history = append(m.history, *rec)
	delete(m.active, id)
	if m.current != nil && m.current.ID == id {
		m.current = nil
	}
}

// Interrupt marks the current mission interrupted, if there is one.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interrupt()
}

func (m *Manager) interrupt() {
	if m.current == nil {
		return
	}
	monitoring.Logf("mission: interrupting %s (%s)", m.current.Type, m.current.Priority)
	m.updateStatus(m.current.ID, StatusInterrupted)
}

// Update runs one scheduling pass: activate the highest priority pending
// mission when idle, or preempt the current mission when a pending one has
// strictly higher priority. It returns the current mission, if any.
func (m *Manager) Update() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	best := m.highestPending()
	if best != nil {
		if m.current == nil {
			best.Status = StatusActive
			m.current = best
		} else if best.Priority > m.current.Priority {
			m.interrupt()
			best.Status = StatusActive
			m.current = best
		}
	}

	if m.current == nil {
		return Record{}, false
	}
	return *m.current, true
}

// highestPending returns the highest priority pending mission, breaking
// ties by earliest start time.
func (m *Manager) highestPending() *Record {
	var best *Record
	for _, rec := range m.active {
		if rec.Status != StatusPending {
			continue
		}
		if best == nil || rec.Priority > best.Priority ||
			(rec.Priority == best.Priority && rec.StartTime.Before(best.StartTime)) {
			best = rec
		}
	}
	return best
}

// Current returns the current mission, if any.
func (m *Manager) Current() (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Record{}, false
	}
	return *m.current, true
}

// Stats returns mission counts and success rate over everything the manager
// has seen.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Total:  len(m.history) + len(m.active),
		Active: len(m.active),
	}
	for _, rec := range m.history {
		switch rec.Status {
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		case StatusInterrupted:
			st.Interrupted++
		}
	}
	st.SuccessRate = float64(st.Completed) / float64(max(1, st.Total)) * 100
	return st
}

// History returns archived missions, oldest first, optionally filtered by
// type and status. Empty filter values match everything.
func (m *Manager) History(t MissionType, status MissionStatus) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Record, 0, len(m.history))
	for _, rec := range m.history {
		if t != "" && rec.Type != t {
			continue
		}
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	return out
}
