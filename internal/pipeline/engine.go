// Package pipeline drives one control cycle per camera frame: QR command
// intake, tracking, lock evaluation, mission scheduling, maneuver guidance,
// and gimbal pointing, in that order.
package pipeline

import (
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/detect"
	"github.com/kestrel-uas/kestrel/internal/gimbal"
	"github.com/kestrel-uas/kestrel/internal/lock"
	"github.com/kestrel-uas/kestrel/internal/maneuver"
	"github.com/kestrel-uas/kestrel/internal/mission"
	"github.com/kestrel-uas/kestrel/internal/monitoring"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
	"github.com/kestrel-uas/kestrel/internal/track"
)

// FrameInput is everything the engine consumes for one cycle: the frame's
// detector and QR output plus the rig's world state from telemetry.
type FrameInput struct {
	Frame detect.Frame

	// Own position and velocity in arena metres.
	Position r3.Vec
	Velocity r3.Vec

	// Hostile UAV telemetry, when known.
	ThreatPosition r3.Vec
	HasThreat      bool
	ThreatHeading  r3.Vec
	HasHeading     bool

	// Engagement target position in arena metres, when known.
	TargetPosition r3.Vec
	HasTarget      bool
}

// FrameResult is the engine's output for one cycle.
type FrameResult struct {
	State    mission.State
	Tracked  []track.Tracked
	Lock     lock.Status
	Guidance maneuver.Command
	Zones    maneuver.ViolationReport
	Camera   gimbal.Command
}

// Stats aggregates lock outcomes across the run.
type Stats struct {
	TotalFrames     int
	SuccessfulLocks int
	LockAttempts    int

	// LockSuccessRate is successful locks over attempts, in percent.
	LockSuccessRate float64
}

// Engine owns the per-frame control cycle and all the state behind it.
type Engine struct {
	mu sync.Mutex

	commands  *mission.Processor
	machine   *mission.Machine
	missions  *mission.Manager
	tracker   *track.Tracker
	evaluator *lock.Evaluator
	escape    *maneuver.Escape
	kamikaze  *maneuver.Kamikaze
	guidance  maneuver.Selector
	zones     *maneuver.NoFlyZones
	camera    *gimbal.Camera
	servo     *gimbal.Servo

	totalFrames     int
	lockFrames      int
	successfulLocks int
	lockAttempts    int

	currentMission uuid.UUID
	hasMission     bool
}

// NewEngine wires a full control pipeline from tuning parameters. The servo
// loop is not started; callers own its lifecycle.
func NewEngine(tc *config.TuningConfig, clock timeutil.Clock, actuator gimbal.Actuator) *Engine {
	e := &Engine{
		commands:  mission.NewProcessor(tc, clock),
		machine:   mission.NewMachine(clock),
		missions:  mission.NewManager(clock),
		tracker:   track.NewTracker(track.ConfigFromTuning(tc)),
		evaluator: lock.NewEvaluator(tc, clock),
		escape:    maneuver.NewEscape(tc, clock),
		kamikaze:  maneuver.NewKamikaze(tc),
		zones:     maneuver.NewNoFlyZones(tc, clock),
		camera:    gimbal.NewCamera(tc, clock),
		servo:     gimbal.NewServo(tc, clock, actuator),
	}
	e.guidance = maneuver.Selector{Escape: e.escape, Kamikaze: e.kamikaze}
	return e
}

// Servo returns the gimbal servo loop for lifecycle management.
func (e *Engine) Servo() *gimbal.Servo { return e.servo }

// Zones returns the no-fly-zone controller for zone registration.
func (e *Engine) Zones() *maneuver.NoFlyZones { return e.zones }

// Machine returns the mission state machine.
func (e *Engine) Machine() *mission.Machine { return e.machine }

// Missions returns the mission manager.
func (e *Engine) Missions() *mission.Manager { return e.missions }

// CommandHistory returns the accepted QR command log.
func (e *Engine) CommandHistory() []mission.Command { return e.commands.History() }

// UAVStats returns the lock evaluator's per-target history.
func (e *Engine) UAVStats() map[int]lock.Stats { return e.evaluator.UAVStats() }

// ProcessFrame runs one control cycle.
func (e *Engine) ProcessFrame(in FrameInput) FrameResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.totalFrames++

	// Commands first: a QR command in this frame shapes how the rest of
	// the frame is handled.
	for _, qr := range in.Frame.QR {
		cmd, ok := e.commands.Process(qr.Text)
		if !ok {
			continue
		}
		if e.machine.Apply(cmd) {
			e.startMissionFor(cmd)
		}
	}

	tracked := e.tracker.Update(in.Frame.Detections)

	res := FrameResult{Tracked: tracked}

	state := e.machine.State()
	switch state {
	case mission.StateKamikaze:
		res.Guidance = e.guidance.ForState(state, e.maneuverInput(in))
		e.settleKamikaze(res.Guidance)
	case mission.StateEscaping:
		res.Guidance = e.guidance.ForState(state, e.maneuverInput(in))
		e.settleEscape(res.Guidance)
	case mission.StateEmergency:
		// Hold: only a reset leaves EMERGENCY.
	default:
		res.Lock = e.evaluator.Update(tracked)
		e.advancePerception(tracked, res.Lock)
		e.accountLock(res.Lock)
	}

	res.Zones = e.zones.CheckViolations(in.Position)
	if res.Zones.EmergencyLandingRequired && e.machine.State() != mission.StateEmergency {
		monitoring.Logf("pipeline: zone violation limit reached, emergency landing")
		e.machine.Set(mission.StateEmergency)
		e.missions.Interrupt()
		e.hasMission = false
	}

	res.Camera = e.pointCamera(tracked)
	e.missions.Update()

	res.State = e.machine.State()
	return res
}

// startMissionFor creates the mission record backing an accepted command.
func (e *Engine) startMissionFor(cmd *mission.Command) {
	var mt mission.MissionType
	switch cmd.Type {
	case mission.CommandKamikaze:
		mt = mission.MissionKamikaze
	case mission.CommandEscape:
		mt = mission.MissionEscape
	case mission.CommandLock:
		mt = mission.MissionLock
	default:
		return
	}
	target, _ := cmd.Parameters["target_id"].(string)
	rec := e.missions.Create(mt, target, 0, cmd.Parameters)
	e.currentMission = rec.ID
	e.hasMission = true
}

// advancePerception moves the passive states with tracker and lock output.
// Command-driven states are never overridden here.
func (e *Engine) advancePerception(tracked []track.Tracked, st lock.Status) {
	switch e.machine.State() {
	case mission.StateIdle, mission.StateSearching, mission.StateTracking,
		mission.StateLocking, mission.StateLocked:
	default:
		return
	}

	switch {
	case st.IsLocked:
		e.machine.Set(mission.StateLocked)
	case st.HasTarget:
		e.machine.Set(mission.StateLocking)
	case len(tracked) > 0:
		e.machine.Set(mission.StateTracking)
	default:
		e.machine.Set(mission.StateSearching)
	}
}

// accountLock maintains the run-level lock statistics: a lock attempt ends
// either in a successful lock or in losing the target after trying.
func (e *Engine) accountLock(st lock.Status) {
	if st.IsLocked {
		e.lockFrames++
		if e.lockFrames == 1 {
			e.successfulLocks++
			monitoring.Logf("pipeline: lock achieved on %s after %s", st.UAVLabel, st.LockDuration)
		}
		return
	}
	if e.lockFrames > 0 {
		e.lockAttempts++
	}
	e.lockFrames = 0
}

// settleKamikaze completes the kamikaze mission once the pull-up finishes.
func (e *Engine) settleKamikaze(cmd maneuver.Command) {
	if cmd.Message != "Reached safe altitude" {
		return
	}
	if e.hasMission {
		e.missions.UpdateStatus(e.currentMission, mission.StatusCompleted)
		e.hasMission = false
	}
	e.kamikaze.Reset()
	e.machine.Set(mission.StateSearching)
}

// settleEscape completes the escape mission once the threat is gone.
func (e *Engine) settleEscape(cmd maneuver.Command) {
	if cmd.Active {
		return
	}
	if e.hasMission {
		e.missions.UpdateStatus(e.currentMission, mission.StatusCompleted)
		e.hasMission = false
	}
	e.escape.Reset()
	e.machine.Set(mission.StateSearching)
}

// pointCamera drives the gimbal at the first tracked object, or reports
// target loss when the frame is empty.
func (e *Engine) pointCamera(tracked []track.Tracked) gimbal.Command {
	if len(tracked) == 0 {
		return e.camera.LostTarget()
	}
	cmd := e.camera.Update(tracked[0].X, tracked[0].Y)
	e.servo.SetTargets(cmd.PanAngle, cmd.TiltAngle)
	return cmd
}

// maneuverInput translates frame input into a generator world snapshot,
// folding in this frame's QR decode if any.
func (e *Engine) maneuverInput(in FrameInput) maneuver.Input {
	mi := maneuver.Input{
		Position:       in.Position,
		Velocity:       in.Velocity,
		ThreatPosition: in.ThreatPosition,
		HasThreat:      in.HasThreat,
		ThreatHeading:  in.ThreatHeading,
		HasHeading:     in.HasHeading,
		TargetPosition: in.TargetPosition,
		HasTarget:      in.HasTarget,
	}
	if len(in.Frame.QR) > 0 {
		mi.QRDecoded = true
		mi.QRText = in.Frame.QR[0].Text
	}
	return mi
}

// Stats returns the run-level lock statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Stats{
		TotalFrames:     e.totalFrames,
		SuccessfulLocks: e.successfulLocks,
		LockAttempts:    e.lockAttempts,
	}
	st.LockSuccessRate = float64(st.SuccessfulLocks) / float64(max(1, st.LockAttempts)) * 100
	return st
}

// Reset returns the engine to its initial state. Zone definitions and
// accrued penalties are kept; penalties are a property of the run, not of
// the mission attempt.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.Reset()
	e.tracker.Reset()
	e.evaluator.ResetLock()
	e.escape.Reset()
	e.kamikaze.Reset()
	e.camera.Reset()
	e.commands.ClearHistory()
	e.totalFrames = 0
	e.lockFrames = 0
	e.successfulLocks = 0
	e.lockAttempts = 0
	e.hasMission = false
}
