package gimbal

import (
	"sync"
	"time"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// Standard gimbal loop gains. Tilt is slower than pan because the mount's
// vertical travel is half the horizontal.
const (
	panKp, panKi, panKd    = 0.05, 0.01, 0.02
	tiltKp, tiltKi, tiltKd = 0.04, 0.008, 0.015
)

// trackingHistoryCap bounds the retained pointing history.
const trackingHistoryCap = 100

// Command is one frame of camera pointing output. Pan and Tilt are rates in
// degrees per second; PanAngle and TiltAngle are the integrated pointing
// angles.
type Command struct {
	Pan       float64
	Tilt      float64
	PanAngle  float64
	TiltAngle float64
	InZone    bool
	Tracking  bool
}

// HistoryEntry records one pointing update.
type HistoryEntry struct {
	Time      time.Time
	X, Y      float64
	PanAngle  float64
	TiltAngle float64
	InZone    bool
}

// Camera converts target pixel error into pan/tilt rate commands. A
// dead zone around the frame centre stops the gimbal hunting once the
// target is centred.
type Camera struct {
	mu    sync.Mutex
	clock timeutil.Clock

	centerX, centerY float64
	zoneX1, zoneY1   float64
	zoneX2, zoneY2   float64

	panPID  *PID
	tiltPID *PID

	tracking   bool
	panAngle   float64
	tiltAngle  float64
	lastUpdate time.Time
	primed     bool
	history    []HistoryEntry
}

// NewCamera creates a camera controller from tuning parameters.
func NewCamera(tc *config.TuningConfig, clock timeutil.Clock) *Camera {
	w := float64(tc.GetFrameWidth())
	h := float64(tc.GetFrameHeight())
	cx, cy := w/2, h/2
	marginX := w * tc.GetTargetZoneMargin()
	marginY := h * tc.GetTargetZoneMargin()
	maxPan := tc.GetMaxPanRate()
	maxTilt := tc.GetMaxTiltRate()

	return &Camera{
		clock:   clock,
		centerX: cx, centerY: cy,
		zoneX1: cx - marginX, zoneY1: cy - marginY,
		zoneX2: cx + marginX, zoneY2: cy + marginY,
		panPID:  NewPID(panKp, panKi, panKd, -maxPan, maxPan),
		tiltPID: NewPID(tiltKp, tiltKi, tiltKd, -maxTilt, maxTilt),
	}
}

// InZone reports whether (x, y) sits inside the centre dead zone.
func (c *Camera) InZone(x, y float64) bool {
	return c.zoneX1 <= x && x <= c.zoneX2 && c.zoneY1 <= y && y <= c.zoneY2
}

// Update computes pointing commands toward the target at pixel (x, y).
// The first call primes the time baseline and commands nothing. A target
// inside the dead zone while already tracking also commands nothing, so a
// centred target does not jitter the mount.
func (c *Camera) Update(x, y float64) Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if !c.primed {
		c.primed = true
		c.lastUpdate = now
		return Command{}
	}

	inZone := c.InZone(x, y)
	if inZone && c.tracking {
		return Command{
			PanAngle:  c.panAngle,
			TiltAngle: c.tiltAngle,
			InZone:    true,
			Tracking:  true,
		}
	}

	panRate := c.panPID.Compute(c.centerX, x, now)
	tiltRate := c.tiltPID.Compute(c.centerY, y, now)

	dt := now.Sub(c.lastUpdate).Seconds()
	c.panAngle += panRate * dt
	c.tiltAngle += tiltRate * dt

	c.tracking = true
	c.lastUpdate = now

	c.history = append(c.history, HistoryEntry{
		Time: now, X: x, Y: y,
		PanAngle: c.panAngle, TiltAngle: c.tiltAngle,
		InZone: inZone,
	})
	if len(c.history) > trackingHistoryCap {
		c.history = c.history[len(c.history)-trackingHistoryCap:]
	}

	return Command{
		Pan:       panRate,
		Tilt:      tiltRate,
		PanAngle:  c.panAngle,
		TiltAngle: c.tiltAngle,
		InZone:    inZone,
		Tracking:  true,
	}
}

// LostTarget tells the controller there is nothing to point at. Tracking
// stops but the integrated angles hold so the mount stays where it was.
func (c *Camera) LostTarget() Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = false
	return Command{PanAngle: c.panAngle, TiltAngle: c.tiltAngle}
}

// Tracking reports whether the controller is actively following a target.
func (c *Camera) Tracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracking
}

// History returns a copy of the recent pointing history, oldest first.
func (c *Camera) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Reset returns the controller to its initial state.
func (c *Camera) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracking = false
	c.panAngle = 0
	c.tiltAngle = 0
	c.lastUpdate = time.Time{}
	c.primed = false
	c.history = nil
	c.panPID.Reset()
	c.tiltPID.Reset()
}
