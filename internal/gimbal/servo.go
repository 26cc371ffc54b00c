package gimbal

import (
	"sync"
	"time"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/monitoring"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// Servo travel limits. Pan sweeps the full half circle; the tilt cradle is
// mechanically limited to half that.
const (
	panPulseMin, panPulseMax   = 500, 2500
	tiltPulseMin, tiltPulseMax = 500, 2500
	panAngleMin, panAngleMax   = -90.0, 90.0
	tiltAngleMin, tiltAngleMax = -45.0, 45.0
)

// Status is a snapshot of the servo loop state.
type Status struct {
	CurrentPan  float64
	CurrentTilt float64
	TargetPan   float64
	TargetTilt  float64
	Running     bool
}

// Servo runs the actuation loop on its own clock, independent of the frame
// pipeline. Each tick it eases the current angles a fixed fraction toward
// the targets, clamps to the travel limits, and writes pulse widths to the
// actuator.
type Servo struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	actuator Actuator

	updateRate  float64
	smoothing   float64
	settleDelay time.Duration

	targetPan, targetTilt   float64
	currentPan, currentTilt float64

	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewServo creates a servo loop from tuning parameters.
func NewServo(tc *config.TuningConfig, clock timeutil.Clock, actuator Actuator) *Servo {
	return &Servo{
		clock:       clock,
		actuator:    actuator,
		updateRate:  tc.GetServoUpdateRateHz(),
		smoothing:   tc.GetServoSmoothing(),
		settleDelay: tc.GetServoSettleDelay(),
	}
}

// SetTargets sets the target angles in degrees, clamped to travel limits.
func (s *Servo) SetTargets(pan, tilt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetPan = clamp(pan, panAngleMin, panAngleMax)
	s.targetTilt = clamp(tilt, tiltAngleMin, tiltAngleMax)
}

// Status returns a snapshot of the loop state.
func (s *Servo) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		CurrentPan:  s.currentPan,
		CurrentTilt: s.currentTilt,
		TargetPan:   s.targetPan,
		TargetTilt:  s.targetTilt,
		Running:     s.running,
	}
}

// Start launches the actuation loop. Starting a running servo is a no-op.
func (s *Servo) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.loop(s.stop, s.done)
	monitoring.Logf("gimbal: servo loop started at %.0f Hz", s.updateRate)
}

func (s *Servo) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := s.clock.NewTicker(time.Duration(float64(time.Second) / s.updateRate))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			s.step()
		}
	}
}

// step eases the current angles toward the targets and writes the actuator.
func (s *Servo) step() {
	s.mu.Lock()
	s.currentPan += (s.targetPan - s.currentPan) * s.smoothing
	s.currentTilt += (s.targetTilt - s.currentTilt) * s.smoothing
	s.currentPan = clamp(s.currentPan, panAngleMin, panAngleMax)
	s.currentTilt = clamp(s.currentTilt, tiltAngleMin, tiltAngleMax)
	pan, tilt := s.currentPan, s.currentTilt
	s.mu.Unlock()

	s.writeAngles(pan, tilt)
}

func (s *Servo) writeAngles(pan, tilt float64) {
	if err := s.actuator.SetPulse(ChannelPan, angleToPulse(pan, panPulseMin, panPulseMax, panAngleMin, panAngleMax)); err != nil {
		monitoring.Logf("gimbal: pan write: %v", err)
	}
	if err := s.actuator.SetPulse(ChannelTilt, angleToPulse(tilt, tiltPulseMin, tiltPulseMax, tiltAngleMin, tiltAngleMax)); err != nil {
		monitoring.Logf("gimbal: tilt write: %v", err)
	}
}

// Stop halts the loop, recenters both axes, waits out the settle delay, and
// cuts the pulse trains. Stopping a stopped servo is a no-op.
func (s *Servo) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		monitoring.Logf("gimbal: servo loop did not exit in time")
	}

	s.writeAngles(0, 0)
	s.clock.Sleep(s.settleDelay)
	if err := s.actuator.Disable(ChannelPan); err != nil {
		monitoring.Logf("gimbal: pan disable: %v", err)
	}
	if err := s.actuator.Disable(ChannelTilt); err != nil {
		monitoring.Logf("gimbal: tilt disable: %v", err)
	}

	s.mu.Lock()
	s.currentPan, s.currentTilt = 0, 0
	s.targetPan, s.targetTilt = 0, 0
	s.mu.Unlock()
	monitoring.Logf("gimbal: servo loop stopped")
}

// angleToPulse maps an angle linearly onto the servo pulse range.
func angleToPulse(angle, pulseMin, pulseMax, angleMin, angleMax float64) int {
	angle = clamp(angle, angleMin, angleMax)
	normalized := (angle - angleMin) / (angleMax - angleMin)
	return int(pulseMin + normalized*(pulseMax-pulseMin))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
