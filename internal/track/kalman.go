package track

// kalman is a constant-velocity Kalman filter over pixel coordinates.
// State vector: [x, y, vx, vy]. Only position is ever measured.
//
// The transition and measurement matrices are fixed, so the predict and
// correct steps are written out directly instead of through a general
// matrix library.
type kalman struct {
	// State
	x, y, vx, vy float64

	// Covariance (4x4, row-major)
	p [16]float64

	// Fixed time step between frames (seconds)
	dt float64

	// Noise
	processNoise     float64 // q, applied to every state dimension
	measurementNoise float64 // r, applied to both measured dimensions
}

func newKalman(x, y, dt, processNoise, measurementNoise float64) *kalman {
	k := &kalman{
		x:                x,
		y:                y,
		dt:               dt,
		processNoise:     processNoise,
		measurementNoise: measurementNoise,
	}
	// High initial position uncertainty, lower velocity uncertainty.
	k.p = [16]float64{
		10, 0, 0, 0,
		0, 10, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	return k
}

// predict advances the state by one frame interval and returns the
// predicted position.
//
// F = [1 0 dt  0]
//     [0 1  0 dt]
//     [0 0  1  0]
//     [0 0  0  1]
func (k *kalman) predict() (x, y float64) {
	dt := k.dt

	// x' = F * x
	k.x += k.vx * dt
	k.y += k.vy * dt

	// P' = F * P * F^T + Q, computed directly.
	p := k.p
	var fp [16]float64
	for j := 0; j < 4; j++ {
		fp[0*4+j] = p[0*4+j] + dt*p[2*4+j]
		fp[1*4+j] = p[1*4+j] + dt*p[3*4+j]
		fp[2*4+j] = p[2*4+j]
		fp[3*4+j] = p[3*4+j]
	}
	for i := 0; i < 4; i++ {
		k.p[i*4+0] = fp[i*4+0] + dt*fp[i*4+2]
		k.p[i*4+1] = fp[i*4+1] + dt*fp[i*4+3]
		k.p[i*4+2] = fp[i*4+2]
		k.p[i*4+3] = fp[i*4+3]
	}
	for i := 0; i < 4; i++ {
		k.p[i*4+i] += k.processNoise
	}

	return k.x, k.y
}

// correct applies the measurement update with an observed position.
// H extracts position only: H = [1 0 0 0; 0 1 0 0].
func (k *kalman) correct(zx, zy float64) {
	// Innovation
	yx := zx - k.x
	yy := zy - k.y

	// Innovation covariance S = H * P * H^T + R
	s00 := k.p[0*4+0] + k.measurementNoise
	s01 := k.p[0*4+1]
	s10 := k.p[1*4+0]
	s11 := k.p[1*4+1] + k.measurementNoise

	det := s00*s11 - s01*s10
	if det == 0 {
		return // singular, skip update
	}
	invS00 := s11 / det
	invS01 := -s01 / det
	invS10 := -s10 / det
	invS11 := s00 / det

	// Kalman gain K = P * H^T * S^-1 (4x2)
	var gain [8]float64
	for i := 0; i < 4; i++ {
		gain[i*2+0] = k.p[i*4+0]*invS00 + k.p[i*4+1]*invS10
		gain[i*2+1] = k.p[i*4+0]*invS01 + k.p[i*4+1]*invS11
	}

	// x' = x + K * y
	k.x += gain[0*2+0]*yx + gain[0*2+1]*yy
	k.y += gain[1*2+0]*yx + gain[1*2+1]*yy
	k.vx += gain[2*2+0]*yx + gain[2*2+1]*yy
	k.vy += gain[3*2+0]*yx + gain[3*2+1]*yy

	// P' = (I - K*H) * P. K*H only has non-zero columns 0 and 1.
	var iMinusKH [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			identity := 0.0
			if i == j {
				identity = 1
			}
			var kh float64
			switch j {
			case 0:
				kh = gain[i*2+0]
			case 1:
				kh = gain[i*2+1]
			}
			iMinusKH[i*4+j] = identity - kh
		}
	}
	var newP [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for l := 0; l < 4; l++ {
				sum += iMinusKH[i*4+l] * k.p[l*4+j]
			}
			newP[i*4+j] = sum
		}
	}
	k.p = newP
}
