package maneuver

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kestrel-uas/kestrel/internal/config"
)

// Kamikaze generates dive vectors toward the engagement target, then an
// ascent once the target's QR payload has been read. The QR-read flag is
// sticky: one successful decode flips the generator to the ascent phase for
// the rest of the attack.
type Kamikaze struct {
	mu sync.Mutex

	minAltitude   float64
	diveAngleRad  float64
	approachSpeed float64

	qrRead    bool
	qrPayload string
}

// NewKamikaze creates a kamikaze generator from tuning parameters.
func NewKamikaze(tc *config.TuningConfig) *Kamikaze {
	return &Kamikaze{
		minAltitude:   tc.GetKamikazeMinAltitude(),
		diveAngleRad:  tc.GetDiveAngleDeg() * math.Pi / 180,
		approachSpeed: tc.GetApproachSpeed(),
	}
}

// Update produces this frame's attack command.
//
// Phases, in precedence order: after a QR read, ascend until the safe
// altitude then hold; at or below ground level, hold; otherwise dive toward
// the target at the configured dive angle.
func (k *Kamikaze) Update(in Input) Command {
	k.mu.Lock()
	defer k.mu.Unlock()

	if in.QRDecoded {
		k.qrRead = true
		k.qrPayload = in.QRText
	}

	distance := 0.0
	if in.HasTarget {
		distance = norm(r3.Sub(in.TargetPosition, in.Position))
	}

	var dir r3.Vec
	var message string
	switch {
	case k.qrRead:
		dir = r3.Vec{Z: 1}
		message = "Ascending after QR read"
		if in.Position.Z >= k.minAltitude {
			dir = r3.Vec{}
			message = "Reached safe altitude"
		}
	case in.Position.Z <= 0:
		message = "Reached ground level"
	case in.HasTarget:
		dir = k.divePath(in.Position, in.TargetPosition)
		message = "Approaching target"
	default:
		message = "Idle"
	}

	return Command{
		Vector:    r3.Scale(k.approachSpeed, dir),
		Message:   message,
		Active:    true,
		QRPayload: k.qrPayload,
		Distance:  distance,
	}
}

// divePath points at the target in the horizontal plane with the descent
// component fixed by the dive angle.
func (k *Kamikaze) divePath(our, target r3.Vec) r3.Vec {
	toTarget := r3.Sub(target, our)
	if norm(toTarget) == 0 {
		return r3.Vec{}
	}
	dir := unit(toTarget)
	return unit(r3.Vec{X: dir.X, Y: dir.Y, Z: -math.Sin(k.diveAngleRad)})
}

// QRRead reports whether the attack has decoded the target's QR payload.
func (k *Kamikaze) QRRead() (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.qrPayload, k.qrRead
}

// Reset clears the attack state, including the sticky QR-read flag.
func (k *Kamikaze) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.qrRead = false
	k.qrPayload = ""
}
