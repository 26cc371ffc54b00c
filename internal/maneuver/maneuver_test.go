package maneuver

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/mission"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

func TestSelectorDispatch(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	tc := config.EmptyTuningConfig()
	s := Selector{Escape: NewEscape(tc, clock), Kamikaze: NewKamikaze(tc)}

	in := Input{
		Position:       r3.Vec{Z: 60},
		ThreatPosition: r3.Vec{X: 20, Z: 80},
		HasThreat:      true,
		TargetPosition: r3.Vec{X: 100, Z: 40},
		HasTarget:      true,
	}

	cmd := s.ForState(mission.StateEscaping, in)
	assert.Equal(t, "Executing escape maneuver", cmd.Message)

	cmd = s.ForState(mission.StateKamikaze, in)
	assert.Equal(t, "Approaching target", cmd.Message)

	cmd = s.ForState(mission.StateSearching, in)
	assert.False(t, cmd.Active)
	assert.Equal(t, "Monitoring", cmd.Message)
	assert.Zero(t, r3.Norm(cmd.Vector))
}

func TestUnitZeroVector(t *testing.T) {
	t.Parallel()
	assert.Equal(t, r3.Vec{}, unit(r3.Vec{}))
}
