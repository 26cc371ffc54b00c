// Package maneuver generates 3D guidance vectors for the active mission
// phases: evasion under threat, kamikaze dives, and no-fly-zone avoidance.
// Generators are pure control logic; the flight controller consuming the
// vectors lives outside this module.
package maneuver

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/mission"
)

// Input is the world snapshot a generator sees each frame. Optional fields
// carry a Has flag rather than pointers so Inputs stay copyable values.
type Input struct {
	// Own state, in arena metres.
	Position r3.Vec
	Velocity r3.Vec

	// Hostile UAV, when one is known.
	ThreatPosition r3.Vec
	HasThreat      bool
	ThreatHeading  r3.Vec
	HasHeading     bool

	// Engagement target, when one is known.
	TargetPosition r3.Vec
	HasTarget      bool

	// QR decode result for this frame, if any.
	QRText    string
	QRDecoded bool
}

// Command is one frame of guidance output.
type Command struct {
	// Vector is the commanded velocity direction, scaled by the
	// generator's speed factor. Zero means hold.
	Vector r3.Vec

	// Message describes the generator's current action.
	Message string

	// Active reports whether the generator is commanding movement at all.
	Active bool

	// QRPayload is the decoded QR text surfaced this frame, if any.
	QRPayload string

	// Distance to the engagement target in metres, when known.
	Distance float64
}

// Generator produces guidance from world snapshots.
type Generator interface {
	Update(in Input) Command
	Reset()
}

// Selector dispatches to the generator matching the mission phase.
type Selector struct {
	Escape   Generator
	Kamikaze Generator
}

// ForState returns the guidance command for the given mission phase. Phases
// with no active maneuver return an inactive command.
func (s *Selector) ForState(state mission.State, in Input) Command {
	switch state {
	case mission.StateEscaping:
		return s.Escape.Update(in)
	case mission.StateKamikaze:
		return s.Kamikaze.Update(in)
	}
	return Command{Message: "Monitoring"}
}

func norm(v r3.Vec) float64 {
	return r3.Norm(v)
}

// unit returns v normalized, or zero if v is zero.
func unit(v r3.Vec) r3.Vec {
	n := norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
