package gimbal

import (
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/kestrel-uas/kestrel/internal/monitoring"
)

// Channel identifies a servo output.
type Channel byte

const (
	ChannelPan  Channel = 0
	ChannelTilt Channel = 1
)

// Actuator drives the physical pan/tilt servos. Implementations must be
// safe for calls from the servo loop goroutine.
type Actuator interface {
	// SetPulse commands a servo pulse width in microseconds.
	SetPulse(ch Channel, micros int) error

	// Disable cuts the servo's pulse train so it stops holding position.
	Disable(ch Channel) error

	Close() error
}

// SimActuator records commanded pulses without touching hardware. It stands
// in for the serial board in dev mode and tests.
type SimActuator struct {
	mu      sync.Mutex
	pulses  map[Channel]int
	enabled map[Channel]bool
}

// NewSimActuator creates an actuator that only records commands.
func NewSimActuator() *SimActuator {
	return &SimActuator{
		pulses:  make(map[Channel]int),
		enabled: make(map[Channel]bool),
	}
}

// SetPulse records the pulse width.
func (s *SimActuator) SetPulse(ch Channel, micros int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulses[ch] = micros
	s.enabled[ch] = true
	return nil
}

// Disable records that the channel's pulse train is off.
func (s *SimActuator) Disable(ch Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[ch] = false
	return nil
}

// Close is a no-op.
func (s *SimActuator) Close() error { return nil }

// LastPulse returns the last commanded pulse width for a channel.
func (s *SimActuator) LastPulse(ch Channel) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pulses[ch]
	return p, ok
}

// Enabled reports whether the channel's pulse train is on.
func (s *SimActuator) Enabled(ch Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[ch]
}

// SerialActuator drives a Pololu Maestro style servo board over a serial
// port using the compact protocol. Write failures degrade the actuator to
// recording mode rather than propagating: losing the gimbal must not take
// down the control loop mid-engagement.
type SerialActuator struct {
	mu       sync.Mutex
	port     serial.Port
	degraded bool
	fallback *SimActuator
}

// OpenSerialActuator opens the servo board on the named port.
func OpenSerialActuator(device string, baud int) (*SerialActuator, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("opening servo port %s: %w", device, err)
	}
	return &SerialActuator{port: port, fallback: NewSimActuator()}, nil
}

// SetPulse sends a compact-protocol set-target command. The board takes
// targets in quarter microseconds.
func (a *SerialActuator) SetPulse(ch Channel, micros int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.degraded {
		return a.fallback.SetPulse(ch, micros)
	}
	target := micros * 4
	frame := []byte{0x84, byte(ch), byte(target & 0x7F), byte((target >> 7) & 0x7F)}
	if _, err := a.port.Write(frame); err != nil {
		monitoring.Logf("gimbal: servo write failed, degrading to sim: %v", err)
		a.degraded = true
		return a.fallback.SetPulse(ch, micros)
	}
	return nil
}

// Disable sends a zero target, which stops the pulse train.
func (a *SerialActuator) Disable(ch Channel) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.degraded {
		return a.fallback.Disable(ch)
	}
	frame := []byte{0x84, byte(ch), 0, 0}
	if _, err := a.port.Write(frame); err != nil {
		monitoring.Logf("gimbal: servo disable failed, degrading to sim: %v", err)
		a.degraded = true
		return a.fallback.Disable(ch)
	}
	return nil
}

// Close closes the serial port.
func (a *SerialActuator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.port.Close()
}
