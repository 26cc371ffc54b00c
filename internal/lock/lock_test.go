package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
	"github.com/kestrel-uas/kestrel/internal/track"
)

const frameInterval = time.Second / 30

func newTestEvaluator(t *testing.T) (*Evaluator, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewEvaluator(config.EmptyTuningConfig(), clock), clock
}

// centred returns a tracked object whose centroid sits at frame centre,
// well inside the lock zone for the default 1280x720 geometry.
func centred(id int) track.Tracked {
	return track.Tracked{ID: id, X: 640, Y: 360, X1: 620, Y1: 340, X2: 660, Y2: 380, Confidence: 0.9}
}

// outside returns a tracked object near the frame corner, outside both zones.
func outside(id int) track.Tracked {
	return track.Tracked{ID: id, X: 10, Y: 10, X1: 0, Y1: 0, X2: 20, Y2: 20, Confidence: 0.9}
}

func step(e *Evaluator, clock *timeutil.MockClock, obj ...track.Tracked) Status {
	st := e.Update(obj)
	clock.Advance(frameInterval)
	return st
}

func TestZoneGeometry(t *testing.T) {
	t.Parallel()

	e, _ := newTestEvaluator(t)
	assert.Equal(t, Rect{X1: 320, Y1: 72, X2: 960, Y2: 648}, e.TargetHitArea())
	assert.Equal(t, Rect{X1: 384, Y1: 108, X2: 896, Y2: 612}, e.LockZone())
}

func TestLockRequiresContinuousHold(t *testing.T) {
	t.Parallel()

	e, clock := newTestEvaluator(t)

	// At 30 fps a 5 second hold is 150 frames. The timer arms on the second
	// in-zone frame, so give two arming frames then run out the clock.
	var st Status
	for i := 0; i < 2+150; i++ {
		st = step(e, clock, centred(0))
		if i < 151 {
			assert.False(t, st.IsLocked, "locked too early at frame %d", i)
		}
	}
	assert.True(t, st.IsLocked)
	assert.True(t, st.HasTarget)
	assert.Equal(t, 0, st.TargetID)
	assert.Equal(t, "UAV_001", st.UAVLabel)
	assert.GreaterOrEqual(t, st.LockDuration, 5*time.Second)
}

func TestLockSurvivesSingleFrameExcursion(t *testing.T) {
	t.Parallel()

	e, clock := newTestEvaluator(t)

	for i := 0; i < 90; i++ {
		step(e, clock, centred(0))
	}
	// One frame outside the lock zone must not reset the timer.
	st := step(e, clock, outside(0))
	assert.True(t, st.HasTarget)

	for i := 0; i < 70; i++ {
		st = step(e, clock, centred(0))
	}
	assert.True(t, st.IsLocked, "lock should complete despite one bad frame")
}

func TestLockResetsAfterSustainedLoss(t *testing.T) {
	t.Parallel()

	e, clock := newTestEvaluator(t)

	for i := 0; i < 160; i++ {
		step(e, clock, centred(0))
	}
	// Counter sits at +5; eight consecutive misses drive it to -3.
	var st Status
	for i := 0; i < 8; i++ {
		st = step(e, clock)
	}
	assert.False(t, st.IsLocked)
	assert.False(t, st.HasTarget)
	assert.Zero(t, st.LockDuration)

	// Identity history survives the reset.
	assert.Equal(t, 1, st.TotalTrackedUAVs)
	st = step(e, clock, centred(0))
	assert.Equal(t, 1, st.TotalTrackedUAVs)

	stats := e.UAVStats()
	require.Contains(t, stats, 0)
	assert.Equal(t, "UAV_001", stats[0].Label)
}

func TestLabelsAppendOnly(t *testing.T) {
	t.Parallel()

	e, clock := newTestEvaluator(t)

	step(e, clock, centred(0))
	step(e, clock, centred(3))
	step(e, clock, centred(0))

	stats := e.UAVStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "UAV_001", stats[0].Label)
	assert.Equal(t, "UAV_002", stats[3].Label)
	assert.Equal(t, 2, stats[0].TrackedFrames)
	assert.Equal(t, 1, stats[3].TrackedFrames)
}

func TestTimerArmsOnSecondFrame(t *testing.T) {
	t.Parallel()

	e, clock := newTestEvaluator(t)

	st := step(e, clock, centred(0))
	assert.False(t, st.HasTarget, "one in-zone frame must not bind a target")
	st = step(e, clock, centred(0))
	assert.True(t, st.HasTarget)
}

func TestInTargetAreaUsesToleranceExpansion(t *testing.T) {
	t.Parallel()

	e, clock := newTestEvaluator(t)

	// Hit area starts at x=320; with 15% tolerance it extends to x=128.
	// A box ending at x=130 overlaps the expanded area but not the raw one.
	obj := track.Tracked{ID: 0, X: 110, Y: 360, X1: 90, Y1: 340, X2: 130, Y2: 380}
	st := step(e, clock, obj)
	assert.True(t, st.InTargetArea)

	st = step(e, clock, outside(0))
	assert.False(t, st.InTargetArea)
}

func TestBoxInTargetAreaOverlapPolicy(t *testing.T) {
	t.Parallel()

	e, _ := newTestEvaluator(t)

	t.Run("well inside", func(t *testing.T) {
		assert.True(t, e.BoxInTargetArea(Rect{X1: 600, Y1: 300, X2: 700, Y2: 400}))
	})
	t.Run("30 percent of box", func(t *testing.T) {
		// 100x100 box straddling the left edge at x=320 with 40px inside.
		assert.True(t, e.BoxInTargetArea(Rect{X1: 280, Y1: 300, X2: 380, Y2: 400}))
	})
	t.Run("barely touching", func(t *testing.T) {
		// 5px inside a 100px wide box: 5% of box, ~0.1% of the hit area.
		assert.False(t, e.BoxInTargetArea(Rect{X1: 225, Y1: 300, X2: 325, Y2: 400}))
	})
	t.Run("disjoint", func(t *testing.T) {
		assert.False(t, e.BoxInTargetArea(Rect{X1: 0, Y1: 0, X2: 100, Y2: 50}))
	})
}

func TestStatusWithNoObjects(t *testing.T) {
	t.Parallel()

	e, _ := newTestEvaluator(t)
	st := e.Update(nil)
	assert.False(t, st.IsLocked)
	assert.False(t, st.HasTarget)
	assert.Empty(t, st.UAVLabel)
	assert.Zero(t, st.TotalTrackedUAVs)
}
