// Package mission owns command intake, the mission state machine, and
// priority-based mission scheduling.
package mission

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// CommandType is a mission command carried in a QR payload.
type CommandType string

const (
	CommandKamikaze      CommandType = "KAMIKAZE"
	CommandEscape        CommandType = "ESCAPE"
	CommandLock          CommandType = "LOCK"
	CommandMissionUpdate CommandType = "MISSION_UPDATE"
	CommandStatusRequest CommandType = "STATUS_REQUEST"
)

func (c CommandType) valid() bool {
	switch c {
	case CommandKamikaze, CommandEscape, CommandLock, CommandMissionUpdate, CommandStatusRequest:
		return true
	}
	return false
}

// Command is one accepted command with its parameters and intake time.
type Command struct {
	Type       CommandType
	Timestamp  time.Time
	Raw        string
	Parameters map[string]any
}

// commandHistoryCap bounds the retained command log.
const commandHistoryCap = 50

// Processor parses QR payloads into commands and enforces the repeat
// cooldown. Payloads that are not valid JSON, lack a command field, or name
// an unknown command are dropped silently; a hostile arena paints plenty of
// junk codes and none of them deserve a log line per frame.
type Processor struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	cooldown time.Duration

	lastType CommandType
	lastTime time.Time
	hasLast  bool
	history  []Command
}

// NewProcessor creates a command processor with the tuning cooldown.
func NewProcessor(tc *config.TuningConfig, clock timeutil.Clock) *Processor {
	return &Processor{
		clock:    clock,
		cooldown: tc.GetCommandCooldown(),
	}
}

type commandPayload struct {
	Command    *string        `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

// Process parses one QR payload. It returns the accepted command and true,
// or nil and false when the payload is invalid or suppressed by cooldown.
// A repeat of the last command type within the cooldown window is dropped;
// a different command type passes immediately.
func (p *Processor) Process(text string) (*Command, bool) {
	var payload commandPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, false
	}
	if payload.Command == nil {
		return nil, false
	}
	ct := CommandType(*payload.Command)
	if !ct.valid() {
		return nil, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.hasLast && p.lastType == ct && now.Sub(p.lastTime) < p.cooldown {
		return nil, false
	}

	params := payload.Parameters
	if params == nil {
		params = map[string]any{}
	}
	cmd := Command{
		Type:       ct,
		Timestamp:  now,
		Raw:        text,
		Parameters: params,
	}

	p.lastType = ct
	p.lastTime = now
	p.hasLast = true
	p.history = append(p.history, cmd)
	if len(p.history) > commandHistoryCap {
		p.history = p.history[len(p.history)-commandHistoryCap:]
	}

	return &cmd, true
}

// History returns a copy of the retained command log, oldest first.
func (p *Processor) History() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Command, len(p.history))
	copy(out, p.history)
	return out
}

// ClearHistory drops the command log and the cooldown anchor.
func (p *Processor) ClearHistory() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = nil
	p.hasLast = false
	p.lastType = ""
	p.lastTime = time.Time{}
}

// EncodeCommand renders a command payload string, for generating test codes.
func EncodeCommand(ct CommandType, parameters map[string]any) string {
	if parameters == nil {
		parameters = map[string]any{}
	}
	b, _ := json.Marshal(map[string]any{
		"command":    string(ct),
		"parameters": parameters,
	})
	return string(b)
}
