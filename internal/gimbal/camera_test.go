package gimbal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/timeutil"
)

func newTestCamera(t *testing.T) (*Camera, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewCamera(config.EmptyTuningConfig(), clock), clock
}

func TestCameraFirstUpdatePrimes(t *testing.T) {
	t.Parallel()

	c, _ := newTestCamera(t)
	cmd := c.Update(100, 100)
	assert.Zero(t, cmd.Pan)
	assert.Zero(t, cmd.Tilt)
	assert.False(t, cmd.Tracking)
}

// drive primes the controller and its PID loops on a fixed target, then
// returns the first command with live rates.
func drive(c *Camera, clock *timeutil.MockClock, x, y float64) Command {
	c.Update(x, y) // primes the controller
	clock.Advance(33 * time.Millisecond)
	c.Update(x, y) // primes the PID loops
	clock.Advance(33 * time.Millisecond)
	return c.Update(x, y)
}

func TestCameraDrivesTowardTarget(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	// Target left of and above centre (640, 360).
	cmd := drive(c, clock, 400, 200)

	require.True(t, cmd.Tracking)
	assert.False(t, cmd.InZone)
	// Error center-target is positive on both axes, so both rates are
	// positive and the angles integrate upward.
	assert.Positive(t, cmd.Pan)
	assert.Positive(t, cmd.Tilt)
	assert.Positive(t, cmd.PanAngle)
	assert.Positive(t, cmd.TiltAngle)
}

func TestCameraRatesClamped(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	// Huge error would exceed the rate limits without the clamp.
	cmd := drive(c, clock, -5000, -5000)
	assert.LessOrEqual(t, cmd.Pan, 30.0)
	assert.LessOrEqual(t, cmd.Tilt, 20.0)
}

func TestCameraDeadZoneIdlesWhileTracking(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	cmd := drive(c, clock, 400, 200)
	require.True(t, cmd.Tracking)
	angle := cmd.PanAngle
	require.Positive(t, angle)

	// Default zone margin 0.1: dead zone is (512..768, 288..432).
	clock.Advance(33 * time.Millisecond)
	cmd = c.Update(640, 360)
	assert.True(t, cmd.InZone)
	assert.Zero(t, cmd.Pan)
	assert.Zero(t, cmd.Tilt)
	assert.Equal(t, angle, cmd.PanAngle, "angles hold while idling in zone")
}

func TestCameraInZoneBeforeTrackingStillDrives(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	c.Update(640, 360)
	clock.Advance(33 * time.Millisecond)
	// Not yet tracking, so the in-zone shortcut does not apply.
	cmd := c.Update(640, 360)
	assert.True(t, cmd.Tracking)
	assert.True(t, cmd.InZone)
}

func TestCameraLostTarget(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	drive(c, clock, 400, 200)
	require.True(t, c.Tracking())

	cmd := c.LostTarget()
	assert.False(t, c.Tracking())
	assert.Positive(t, cmd.PanAngle, "pointing angles survive target loss")
}

func TestCameraHistoryBounded(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	for i := 0; i < trackingHistoryCap+30; i++ {
		c.Update(400, 200)
		clock.Advance(33 * time.Millisecond)
	}
	assert.Len(t, c.History(), trackingHistoryCap)
}

func TestCameraReset(t *testing.T) {
	t.Parallel()

	c, clock := newTestCamera(t)
	drive(c, clock, 400, 200)

	c.Reset()
	assert.False(t, c.Tracking())
	assert.Empty(t, c.History())
	cmd := c.Update(400, 200)
	assert.Zero(t, cmd.Pan, "reset controller primes again")
}
