package maneuver

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/monitoring"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

// ZoneType classifies a no-fly zone.
type ZoneType string

const (
	ZoneAirDefense    ZoneType = "AIR_DEFENSE"
	ZoneSignalJamming ZoneType = "SIGNAL_JAMMING"
)

// Zone is a cylindrical no-fly zone. Containment is evaluated in the
// horizontal plane only.
type Zone struct {
	ID     string
	Type   ZoneType
	Center r3.Vec
	Radius float64

	Active         bool
	ActivatedAt    time.Time
	TotalViolation time.Duration

	lastCheck time.Time
}

// ViolationReport is the per-update accounting of zone violations.
type ViolationReport struct {
	InViolation   bool
	ViolatedZones []string

	// TotalPenaltyPoints accrues across all zones for the whole run.
	TotalPenaltyPoints float64

	// MaxViolationTime is the longest cumulative dwell in any single zone.
	MaxViolationTime time.Duration

	// EmergencyLandingRequired is set once MaxViolationTime crosses the
	// configured limit. The mission layer responds by entering EMERGENCY.
	EmergencyLandingRequired bool
}

// NoFlyZones tracks zone definitions, accrues violation penalties, and
// produces potential-field avoidance vectors.
type NoFlyZones struct {
	mu    sync.Mutex
	clock timeutil.Clock

	penaltyPerSecond float64
	maxViolation     time.Duration
	safetyMargin     float64

	zones             map[string]*Zone
	totalPenalty      float64
	currentViolations []string
}

// NewNoFlyZones creates a zone controller from tuning parameters.
func NewNoFlyZones(tc *config.TuningConfig, clock timeutil.Clock) *NoFlyZones {
	return &NoFlyZones{
		clock:            clock,
		penaltyPerSecond: tc.GetPenaltyPointsPerSecond(),
		maxViolation:     tc.GetMaxViolationTime(),
		safetyMargin:     tc.GetSafetyMargin(),
		zones:            make(map[string]*Zone),
	}
}

// AddZone registers a zone. New zones start inactive.
func (n *NoFlyZones) AddZone(id string, zt ZoneType, center r3.Vec, radius float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.zones[id] = &Zone{
		ID:     id,
		Type:   zt,
		Center: center,
		Radius: radius,
	}
}

// ActivateZone turns a zone on. Unknown IDs are ignored.
func (n *NoFlyZones) ActivateZone(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	z, ok := n.zones[id]
	if !ok {
		return
	}
	z.Active = true
	z.ActivatedAt = n.clock.Now()
}

// DeactivateZone turns a zone off. Its accumulated violation time remains.
func (n *NoFlyZones) DeactivateZone(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if z, ok := n.zones[id]; ok {
		z.Active = false
		z.lastCheck = time.Time{}
	}
}

// Zones returns a snapshot of all registered zones, ordered by ID.
func (n *NoFlyZones) Zones() []Zone {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Zone, 0, len(n.zones))
	for _, z := range n.zones {
		out = append(out, *z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// horizontalDistance is the 2D distance from p to the zone centre.
func horizontalDistance(p r3.Vec, z *Zone) float64 {
	return math.Hypot(p.X-z.Center.X, p.Y-z.Center.Y)
}

// AvoidanceVector computes a horizontal potential-field vector steering
// clear of active zones. Each zone within its safety-margin-extended radius
// contributes a repulsion away from its centre with strength falling off
// linearly to zero at the extended boundary; contributions are averaged by
// total influence. When a target is given and any repulsion exists, the
// result blends equally with the target direction. The returned vector is
// unit length, or zero when nothing influences the position. It also
// returns the IDs of zones whose radius the position is actually inside.
func (n *NoFlyZones) AvoidanceVector(pos r3.Vec, target *r3.Vec) (r3.Vec, []string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	var avoidance r3.Vec
	totalInfluence := 0.0
	var violated []string

	ids := make([]string, 0, len(n.zones))
	for id := range n.zones {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		z := n.zones[id]
		if !z.Active {
			continue
		}
		distance := horizontalDistance(pos, z)
		extended := z.Radius + n.safetyMargin
		if distance > extended {
			continue
		}
		if distance > 0 {
			away := unit(r3.Vec{X: pos.X - z.Center.X, Y: pos.Y - z.Center.Y})
			strength := 1 - distance/extended
			avoidance = r3.Add(avoidance, r3.Scale(strength, away))
			totalInfluence += strength
		}
		if distance <= z.Radius {
			violated = append(violated, id)
		}
	}

	if totalInfluence > 0 {
		avoidance = r3.Scale(1/totalInfluence, avoidance)
	}

	if target != nil && norm(avoidance) > 0 {
		toTarget := r3.Vec{X: target.X - pos.X, Y: target.Y - pos.Y}
		if norm(toTarget) > 0 {
			avoidance = r3.Add(r3.Scale(0.5, avoidance), r3.Scale(0.5, unit(toTarget)))
		}
	}

	return unit(avoidance), violated
}

// CheckViolations accrues violation time and penalty points for the given
// position. Dwell time accrues from the previous check while inside a zone;
// leaving a zone stops the accrual but keeps the total.
func (n *NoFlyZones) CheckViolations(pos r3.Vec) ViolationReport {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock.Now()
	var violations []string

	for _, z := range n.zones {
		if !z.Active {
			continue
		}
		if horizontalDistance(pos, z) <= z.Radius {
			violations = append(violations, z.ID)
			if z.lastCheck.IsZero() {
				monitoring.Logf("nofly: entered zone %s", z.ID)
			} else {
				delta := now.Sub(z.lastCheck)
				z.TotalViolation += delta
				n.totalPenalty += delta.Seconds() * n.penaltyPerSecond
			}
			z.lastCheck = now
		} else {
			if !z.lastCheck.IsZero() {
				monitoring.Logf("nofly: left zone %s after %s total", z.ID, z.TotalViolation)
			}
			z.lastCheck = time.Time{}
		}
	}
	sort.Strings(violations)
	n.currentViolations = violations

	var maxViolation time.Duration
	for _, z := range n.zones {
		if z.TotalViolation > maxViolation {
			maxViolation = z.TotalViolation
		}
	}

	return ViolationReport{
		InViolation:              len(violations) > 0,
		ViolatedZones:            violations,
		TotalPenaltyPoints:       n.totalPenalty,
		MaxViolationTime:         maxViolation,
		EmergencyLandingRequired: maxViolation >= n.maxViolation,
	}
}

// CurrentViolations returns the zone IDs violated at the last check.
func (n *NoFlyZones) CurrentViolations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.currentViolations))
	copy(out, n.currentViolations)
	return out
}

// TotalPenaltyPoints returns the penalty accrued so far.
func (n *NoFlyZones) TotalPenaltyPoints() float64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.totalPenalty
}
