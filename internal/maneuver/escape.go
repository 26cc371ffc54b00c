package maneuver

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// trajectoryCap bounds the retained evasion path.
const trajectoryCap = 50

// Escape generates evasion vectors while a hostile UAV holds an attack
// position on us. The escape direction blends the straight-away vector with
// a perpendicular jink whose side is held between random resamples, so the
// path weaves rather than running a predictable straight line.
type Escape struct {
	mu    sync.Mutex
	clock timeutil.Clock

	minAltitude  float64
	maxAltitude  float64
	escapeSpeed  float64
	safeDistance float64

	escaping    bool
	escapeStart time.Time
	perpSign    float64
	trajectory  [][2]float64

	// randFloat is swappable for deterministic tests.
	randFloat func() float64
}

// NewEscape creates an escape generator from tuning parameters.
func NewEscape(tc *config.TuningConfig, clock timeutil.Clock) *Escape {
	return &Escape{
		clock:        clock,
		minAltitude:  tc.GetEscapeMinAltitude(),
		maxAltitude:  tc.GetEscapeMaxAltitude(),
		escapeSpeed:  tc.GetEscapeSpeed(),
		safeDistance: tc.GetSafeDistance(),
		perpSign:     1,
		randFloat:    rand.Float64,
	}
}

// threatDetected reports whether the hostile UAV is in an attack position:
// close enough, and either holding the altitude advantage or facing us.
// An unknown heading counts as facing us.
func (e *Escape) threatDetected(in Input) bool {
	if !in.HasThreat {
		return false
	}
	distance := norm(r3.Sub(in.ThreatPosition, in.Position))
	inRange := distance < e.safeDistance*2
	above := in.ThreatPosition.Z > in.Position.Z

	facing := true
	if in.HasHeading {
		toUs := r3.Sub(in.Position, in.ThreatPosition)
		denom := norm(in.ThreatHeading) * norm(toUs)
		if denom > 0 {
			angle := math.Acos(r3.Dot(in.ThreatHeading, toUs) / denom)
			facing = math.Abs(angle) < math.Pi/3
		}
	}

	return (inRange && above) || (inRange && facing)
}

// Update produces this frame's evasion command. While no threat is detected
// the generator idles and clears its escape state.
func (e *Escape) Update(in Input) Command {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.threatDetected(in) {
		e.escaping = false
		e.escapeStart = time.Time{}
		e.trajectory = nil
		return Command{Message: "Monitoring"}
	}

	if !e.escaping {
		e.escaping = true
		e.escapeStart = e.clock.Now()
		e.trajectory = nil
	}

	vec := e.escapeVector(in.Position, in.ThreatPosition)

	e.trajectory = append(e.trajectory, [2]float64{in.Position.X, in.Position.Y})
	if len(e.trajectory) > trajectoryCap {
		e.trajectory = e.trajectory[len(e.trajectory)-trajectoryCap:]
	}

	return Command{
		Vector:  vec,
		Message: "Executing escape maneuver",
		Active:  true,
	}
}

func (e *Escape) escapeVector(our, threat r3.Vec) r3.Vec {
	away := r3.Sub(our, threat)
	distance := norm(away)
	if distance == 0 {
		return r3.Vec{}
	}
	dir := r3.Scale(1/distance, away)

	// Perpendicular jink in the horizontal plane. The side persists
	// between resamples so the weave is coherent frame to frame.
	perp := r3.Vec{X: -dir.Y, Y: dir.X}
	if e.randFloat() < 0.1 {
		if e.randFloat() < 0.5 {
			e.perpSign = 1
		} else {
			e.perpSign = -1
		}
	}
	dir = r3.Add(r3.Scale(0.6, dir), r3.Scale(0.4*e.perpSign, perp))

	// Hold the altitude band, dithering inside it.
	switch {
	case our.Z < e.minAltitude:
		dir.Z = 0.4
	case our.Z > e.maxAltitude:
		dir.Z = -0.4
	default:
		t := e.clock.Since(e.escapeStart).Seconds()
		dir.Z = 0.2 * math.Sin(t*2)
	}

	return r3.Scale(e.escapeSpeed*1.5, unit(dir))
}

// Trajectory returns a copy of the recent evasion path as (x, y) points.
func (e *Escape) Trajectory() [][2]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][2]float64, len(e.trajectory))
	copy(out, e.trajectory)
	return out
}

// Escaping reports whether an evasion is in progress.
func (e *Escape) Escaping() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escaping
}

// Reset clears all escape state.
func (e *Escape) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.escaping = false
	e.escapeStart = time.Time{}
	e.trajectory = nil
	e.perpSign = 1
}
