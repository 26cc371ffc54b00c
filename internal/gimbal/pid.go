// Package gimbal points the camera at the engaged target. A pair of PID
// loops converts pixel error into pan/tilt rates, and an independently
// clocked servo loop smooths the commanded angles onto the hardware.
package gimbal

import "time"

// PID is a basic proportional-integral-derivative controller with output
// clamping. No anti-windup: the integral accumulates freely and the clamp
// applies to the final output only.
type PID struct {
	kp, ki, kd     float64
	minOut, maxOut float64

	prevErr  float64
	integral float64
	lastTime time.Time
	primed   bool
}

// NewPID creates a controller with the given gains and output bounds.
func NewPID(kp, ki, kd, minOut, maxOut float64) *PID {
	return &PID{kp: kp, ki: ki, kd: kd, minOut: minOut, maxOut: maxOut}
}

// Compute returns the control output for the given setpoint and process
// variable at time now. The first call only primes the error and time
// baseline and returns 0; so does any call with a non-advancing clock.
func (p *PID) Compute(setpoint, pv float64, now time.Time) float64 {
	if !p.primed {
		p.primed = true
		p.lastTime = now
		p.prevErr = setpoint - pv
		return 0
	}

	dt := now.Sub(p.lastTime).Seconds()
	if dt <= 0 {
		return 0
	}

	err := setpoint - pv
	p.integral += err * dt
	derivative := (err - p.prevErr) / dt

	out := p.kp*err + p.ki*p.integral + p.kd*derivative
	if out < p.minOut {
		out = p.minOut
	} else if out > p.maxOut {
		out = p.maxOut
	}

	p.prevErr = err
	p.lastTime = now
	return out
}

// Reset clears the controller state.
func (p *PID) Reset() {
	p.prevErr = 0
	p.integral = 0
	p.lastTime = time.Time{}
	p.primed = false
}
