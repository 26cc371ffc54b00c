package gimbal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

func newTestServo(t *testing.T) (*Servo, *SimActuator, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	act := NewSimActuator()
	return NewServo(config.EmptyTuningConfig(), clock, act), act, clock
}

func TestServoSmoothingStep(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServo(t)
	s.SetTargets(30, -10)

	// Each step closes 30% of the remaining gap.
	s.step()
	st := s.Status()
	assert.InDelta(t, 9.0, st.CurrentPan, 1e-9)
	assert.InDelta(t, -3.0, st.CurrentTilt, 1e-9)

	s.step()
	st = s.Status()
	assert.InDelta(t, 15.3, st.CurrentPan, 1e-9)
	assert.InDelta(t, -5.1, st.CurrentTilt, 1e-9)
}

func TestServoTargetClamping(t *testing.T) {
	t.Parallel()

	s, _, _ := newTestServo(t)
	s.SetTargets(500, -500)
	st := s.Status()
	assert.Equal(t, 90.0, st.TargetPan)
	assert.Equal(t, -45.0, st.TargetTilt)
}

func TestServoPulseMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		angle float64
		pulse int
	}{
		{"pan centre", 0, 1500},
		{"pan min", -90, 500},
		{"pan max", 90, 2500},
		{"pan clamped", 180, 2500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := angleToPulse(tc.angle, panPulseMin, panPulseMax, panAngleMin, panAngleMax)
			assert.Equal(t, tc.pulse, got)
		})
	}

	// Tilt spans half the angle range over the same pulse range.
	assert.Equal(t, 1500, angleToPulse(0, tiltPulseMin, tiltPulseMax, tiltAngleMin, tiltAngleMax))
	assert.Equal(t, 2500, angleToPulse(45, tiltPulseMin, tiltPulseMax, tiltAngleMin, tiltAngleMax))
}

func TestServoStepWritesActuator(t *testing.T) {
	t.Parallel()

	s, act, _ := newTestServo(t)
	s.SetTargets(90, 0)
	s.step()

	// One step toward 90 degrees is 27 degrees: 500 + (117/180)*2000.
	pulse, ok := act.LastPulse(ChannelPan)
	require.True(t, ok)
	assert.Equal(t, 1800, pulse)

	pulse, ok = act.LastPulse(ChannelTilt)
	require.True(t, ok)
	assert.Equal(t, 1500, pulse)
}

func TestServoLoopRunsOnTicker(t *testing.T) {
	s, act, clock := newTestServo(t)
	s.SetTargets(30, 10)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		clock.Advance(20 * time.Millisecond)
		_, ok := act.LastPulse(ChannelPan)
		return ok
	}, time.Second, time.Millisecond)

	assert.True(t, s.Status().Running)
}

func TestServoStartIsIdempotent(t *testing.T) {
	s, _, _ := newTestServo(t)
	s.Start()
	s.Start()
	s.Stop()
	assert.False(t, s.Status().Running)
}

func TestServoStopRecentersAndDisables(t *testing.T) {
	s, act, clock := newTestServo(t)
	s.SetTargets(45, 20)
	s.Start()

	require.Eventually(t, func() bool {
		clock.Advance(20 * time.Millisecond)
		_, ok := act.LastPulse(ChannelPan)
		return ok
	}, time.Second, time.Millisecond)

	s.Stop()

	pulse, _ := act.LastPulse(ChannelPan)
	assert.Equal(t, 1500, pulse, "recentered before disable")
	assert.False(t, act.Enabled(ChannelPan))
	assert.False(t, act.Enabled(ChannelTilt))
	assert.Contains(t, clock.Sleeps(), 500*time.Millisecond, "settle delay observed")

	st := s.Status()
	assert.False(t, st.Running)
	assert.Zero(t, st.CurrentPan)

	// Stopping again is a no-op.
	s.Stop()
}
