// Package lock evaluates whether a tracked target qualifies as locked.
//
// Two nested rectangles partition the frame: the target hit area, inset 25%
// horizontally and 10% vertically from the frame edges, and the lock zone,
// inset a further 5% of the frame on each side within the hit area. The
// target's filtered centroid must sit inside the lock zone for a continuous
// required duration before the evaluator reports a lock. A hysteresis
// counter absorbs single-frame excursions so momentary detector jitter does
// not restart the timer.
package lock

import (
	"fmt"
	"sync"
	"time"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
	"github.com/kestrel-uas/kestrel/internal/track"
)

// Rect is an axis-aligned rectangle in pixel coordinates.
type Rect struct {
	X1, Y1, X2, Y2 float64
}

// ContainsPoint reports whether (x, y) lies strictly inside the rectangle.
// Boundary points do not count.
func (r Rect) ContainsPoint(x, y float64) bool {
	return r.X1 < x && x < r.X2 && r.Y1 < y && y < r.Y2
}

// Expand grows the rectangle by dx on each horizontal side and dy on each
// vertical side.
func (r Rect) Expand(dx, dy float64) Rect {
	return Rect{X1: r.X1 - dx, Y1: r.Y1 - dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Area returns the rectangle's area, or 0 if degenerate.
func (r Rect) Area() float64 {
	if r.X2 <= r.X1 || r.Y2 <= r.Y1 {
		return 0
	}
	return (r.X2 - r.X1) * (r.Y2 - r.Y1)
}

// Intersect returns the overlapping region of two rectangles. The result
// may be degenerate; check Area.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
}

// Overlaps reports whether the rectangles share any area.
func (r Rect) Overlaps(o Rect) bool {
	return !(o.X2 < r.X1 || o.X1 > r.X2 || o.Y2 < r.Y1 || o.Y1 > r.Y2)
}

// Hysteresis bounds. The counter climbs to at most +5 while the target
// holds the lock zone and falls to at least -3 outside it; hitting the
// floor resets lock state entirely.
const (
	hysteresisMax   = 5
	hysteresisMin   = -3
	hysteresisArmed = 2 // timing starts once the counter reaches this
)

// Stats is the per-target tracking history kept across lock resets.
type Stats struct {
	Label         string
	FirstSeen     time.Time
	TrackedFrames int
	TotalLockTime time.Duration
}

// Status is the evaluator's output for one frame.
type Status struct {
	IsLocked     bool
	TargetID     int
	HasTarget    bool
	UAVLabel     string
	LockDuration time.Duration

	// Zone geometry, for display and gimbal pointing.
	LockZone      Rect
	TargetHitArea Rect

	// InTargetArea reports whether the current target's box overlaps the
	// tolerance-expanded hit area at all.
	InTargetArea bool

	TotalTrackedUAVs int
}

// Evaluator runs the hysteresis lock state machine over tracker output.
type Evaluator struct {
	mu    sync.Mutex
	clock timeutil.Clock

	frameW, frameH   float64
	requiredLockTime time.Duration
	tolerance        float64

	hitArea  Rect
	lockZone Rect

	hysteresis   int
	lockStart    time.Time
	hasLockStart bool
	targetID     int
	hasTarget    bool
	isLocked     bool
	lockDuration time.Duration

	// Identity labels survive lock resets. A track ID that reappears keeps
	// its label; new track IDs get the next label in sequence.
	uavCounter int
	uavs       map[int]*Stats
}

// NewEvaluator creates a lock evaluator from tuning parameters.
func NewEvaluator(tc *config.TuningConfig, clock timeutil.Clock) *Evaluator {
	w := float64(tc.GetFrameWidth())
	h := float64(tc.GetFrameHeight())

	// Insets truncate to whole pixels, matching the on-screen overlays.
	marginX := float64(int(0.25 * w))
	marginY := float64(int(0.10 * h))
	hitArea := Rect{X1: marginX, Y1: marginY, X2: w - marginX, Y2: h - marginY}

	lockMarginX := float64(int(0.05 * w))
	lockMarginY := float64(int(0.05 * h))
	lockZone := Rect{
		X1: hitArea.X1 + lockMarginX,
		Y1: hitArea.Y1 + lockMarginY,
		X2: hitArea.X2 - lockMarginX,
		Y2: hitArea.Y2 - lockMarginY,
	}

	return &Evaluator{
		clock:            clock,
		frameW:           w,
		frameH:           h,
		requiredLockTime: tc.GetRequiredLockTime(),
		tolerance:        tc.GetLockTolerance(),
		hitArea:          hitArea,
		lockZone:         lockZone,
		uavs:             make(map[int]*Stats),
	}
}

// LockZone returns the inner zone the target centroid must hold.
func (e *Evaluator) LockZone() Rect {
	return e.lockZone
}

// TargetHitArea returns the outer zone.
func (e *Evaluator) TargetHitArea() Rect {
	return e.hitArea
}

// Update ingests one frame of tracker output and advances the lock state
// machine. Only the first (lowest-ID) tracked object is evaluated; the
// tracker has already filtered identity, and the rig engages one target
// at a time.
func (e *Evaluator) Update(objects []track.Tracked) Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(objects) == 0 {
		e.decay()
		return e.status(false)
	}

	obj := objects[0]
	st, ok := e.uavs[obj.ID]
	if !ok {
		e.uavCounter++
		st = &Stats{
			Label:     fmt.Sprintf("UAV_%03d", e.uavCounter),
			FirstSeen: e.clock.Now(),
		}
		e.uavs[obj.ID] = st
	}
	st.TrackedFrames++

	inLockZone := e.lockZone.ContainsPoint(obj.X, obj.Y)
	inTargetArea := e.boxInExpandedHitArea(obj)

	if inLockZone {
		e.hysteresis = min(e.hysteresis+1, hysteresisMax)
		if e.hysteresis >= hysteresisArmed {
			if !e.hasLockStart {
				e.lockStart = e.clock.Now()
				e.hasLockStart = true
				e.targetID = obj.ID
				e.hasTarget = true
			}
			e.lockDuration = e.clock.Since(e.lockStart)
			e.isLocked = e.lockDuration >= e.requiredLockTime
			if e.isLocked {
				st.TotalLockTime = e.lockDuration
			}
		}
	} else {
		e.decay()
	}

	return e.status(inTargetArea)
}

// decay steps the hysteresis counter down and resets lock state at the floor.
func (e *Evaluator) decay() {
	e.hysteresis = max(e.hysteresis-1, hysteresisMin)
	if e.hysteresis <= hysteresisMin {
		e.resetLockLocked()
	}
}

// boxInExpandedHitArea reports any overlap between the object's box and the
// hit area expanded by the lock tolerance fraction of the frame.
func (e *Evaluator) boxInExpandedHitArea(obj track.Tracked) bool {
	expanded := e.hitArea.Expand(e.frameW*e.tolerance, e.frameH*e.tolerance)
	return expanded.Overlaps(Rect{X1: obj.X1, Y1: obj.Y1, X2: obj.X2, Y2: obj.Y2})
}

// BoxInTargetArea reports whether a box overlaps the hit area significantly:
// either 30% of the box or 1% of the hit area is covered.
func (e *Evaluator) BoxInTargetArea(box Rect) bool {
	inter := box.Intersect(e.hitArea).Area()
	if inter <= 0 {
		return false
	}
	boxArea := box.Area()
	if boxArea > 0 && inter/boxArea >= 0.3 {
		return true
	}
	return inter/e.hitArea.Area() >= 0.01
}

// ResetLock clears lock progress and target binding. Identity labels and
// per-target stats are retained.
func (e *Evaluator) ResetLock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLockLocked()
}

func (e *Evaluator) resetLockLocked() {
	e.targetID = 0
	e.hasTarget = false
	e.lockStart = time.Time{}
	e.hasLockStart = false
	e.isLocked = false
	e.lockDuration = 0
}

// UAVStats returns a copy of the per-target tracking history keyed by
// tracker ID.
func (e *Evaluator) UAVStats() map[int]Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[int]Stats, len(e.uavs))
	for id, st := range e.uavs {
		out[id] = *st
	}
	return out
}

func (e *Evaluator) status(inTargetArea bool) Status {
	var label string
	if e.hasTarget {
		if st, ok := e.uavs[e.targetID]; ok {
			label = st.Label
		}
	}
	return Status{
		IsLocked:         e.isLocked,
		TargetID:         e.targetID,
		HasTarget:        e.hasTarget,
		UAVLabel:         label,
		LockDuration:     e.lockDuration,
		LockZone:         e.lockZone,
		TargetHitArea:    e.hitArea,
		InTargetArea:     inTargetArea,
		TotalTrackedUAVs: len(e.uavs),
	}
}
