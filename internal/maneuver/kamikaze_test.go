package maneuver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
)

func TestKamikazeDivePath(t *testing.T) {
	t.Parallel()

	k := NewKamikaze(config.EmptyTuningConfig())
	cmd := k.Update(Input{
		Position:       r3.Vec{X: 0, Y: 0, Z: 50},
		TargetPosition: r3.Vec{X: 100, Y: 0, Z: 0},
		HasTarget:      true,
	})

	assert.Equal(t, "Approaching target", cmd.Message)
	assert.True(t, cmd.Active)
	assert.InDelta(t, math.Hypot(100, 50), cmd.Distance, 1e-9)

	// Unit direction scaled by approach_speed (1.0): descending toward +x.
	assert.InDelta(t, 1.0, r3.Norm(cmd.Vector), 1e-9)
	assert.Positive(t, cmd.Vector.X)
	assert.Negative(t, cmd.Vector.Z)
	assert.InDelta(t, 0.0, cmd.Vector.Y, 1e-9)

	// The dive direction keeps the horizontal bearing to the target with
	// the descent fixed at sin(45deg) before the final normalization.
	want := r3.Scale(1/math.Sqrt(0.8+0.5), r3.Vec{X: 2 / math.Sqrt(5), Z: -math.Sin(math.Pi / 4)})
	assert.InDelta(t, want.X, cmd.Vector.X, 1e-9)
	assert.InDelta(t, want.Z, cmd.Vector.Z, 1e-9)
}

func TestKamikazeQRReadIsSticky(t *testing.T) {
	t.Parallel()

	k := NewKamikaze(config.EmptyTuningConfig())
	in := Input{
		Position:       r3.Vec{Z: 10},
		TargetPosition: r3.Vec{X: 50},
		HasTarget:      true,
	}

	cmd := k.Update(in)
	require.Equal(t, "Approaching target", cmd.Message)

	in.QRDecoded = true
	in.QRText = "payload-7"
	cmd = k.Update(in)
	assert.Equal(t, "Ascending after QR read", cmd.Message)
	assert.Equal(t, r3.Vec{Z: 1}, cmd.Vector)
	assert.Equal(t, "payload-7", cmd.QRPayload)

	// The flag holds even when later frames decode nothing.
	in.QRDecoded = false
	in.QRText = ""
	cmd = k.Update(in)
	assert.Equal(t, "Ascending after QR read", cmd.Message)
	assert.Equal(t, "payload-7", cmd.QRPayload)
}

func TestKamikazeAscentStopsAtSafeAltitude(t *testing.T) {
	t.Parallel()

	k := NewKamikaze(config.EmptyTuningConfig())
	k.Update(Input{Position: r3.Vec{Z: 10}, QRDecoded: true, QRText: "x"})

	// Default kamikaze_min_altitude is 20m.
	cmd := k.Update(Input{Position: r3.Vec{Z: 25}})
	assert.Equal(t, "Reached safe altitude", cmd.Message)
	assert.Equal(t, r3.Vec{}, cmd.Vector)
}

func TestKamikazeStopsAtGround(t *testing.T) {
	t.Parallel()

	k := NewKamikaze(config.EmptyTuningConfig())
	cmd := k.Update(Input{
		Position:       r3.Vec{Z: 0},
		TargetPosition: r3.Vec{X: 50},
		HasTarget:      true,
	})
	assert.Equal(t, "Reached ground level", cmd.Message)
	assert.Equal(t, r3.Vec{}, cmd.Vector)
}

func TestKamikazeReset(t *testing.T) {
	t.Parallel()

	k := NewKamikaze(config.EmptyTuningConfig())
	k.Update(Input{Position: r3.Vec{Z: 10}, QRDecoded: true, QRText: "x"})
	_, read := k.QRRead()
	require.True(t, read)

	k.Reset()
	_, read = k.QRRead()
	assert.False(t, read)

	cmd := k.Update(Input{Position: r3.Vec{Z: 10}, TargetPosition: r3.Vec{X: 50}, HasTarget: true})
	assert.Equal(t, "Approaching target", cmd.Message)
}
