package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClockAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	assert.Equal(t, start, clock.Now())

	clock.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), clock.Now())
	assert.Equal(t, 90*time.Second, clock.Since(start))
}

func TestMockClockSleepRecords(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Now())
	done := make(chan struct{})
	go func() {
		clock.Sleep(time.Hour) // returns immediately
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Sleep blocked on a mock clock")
	}
	assert.Equal(t, []time.Duration{time.Hour}, clock.Sleeps())
}

func TestMockTickerFiresOnAdvance(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	ticker := clock.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
		t.Fatal("ticker fired before its period elapsed")
	default:
	}

	clock.Advance(50 * time.Millisecond)
	select {
	case <-ticker.C():
		t.Fatal("ticker fired early")
	default:
	}

	clock.Advance(50 * time.Millisecond)
	select {
	case tick := <-ticker.C():
		assert.Equal(t, clock.Now(), tick)
	default:
		t.Fatal("ticker did not fire after a full period")
	}
}

func TestMockTickerStop(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Now())
	ticker := clock.NewTicker(10 * time.Millisecond)
	ticker.Stop()

	clock.Advance(time.Second)
	select {
	case <-ticker.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockTickerTrigger(t *testing.T) {
	t.Parallel()

	clock := NewMockClock(time.Now())
	ticker, ok := clock.NewTicker(time.Hour).(*MockTicker)
	require.True(t, ok)

	at := clock.Now()
	ticker.Trigger(at)
	select {
	case tick := <-ticker.C():
		assert.Equal(t, at, tick)
	default:
		t.Fatal("manual trigger did not deliver a tick")
	}
}

func TestRealClock(t *testing.T) {
	t.Parallel()

	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, clock.Since(before), time.Duration(0))

	ticker := clock.NewTicker(time.Millisecond)
	defer ticker.Stop()
	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("real ticker did not fire")
	}
}
