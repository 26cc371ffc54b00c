// Package detect defines the records emitted by the external detector and
// QR adapters, and the source interfaces the pipeline consumes them through.
// The neural-network detector and QR decoder themselves live outside this
// module; anything that can produce these records per frame can drive the
// control loop.
package detect

// Detection is a single object detection for one frame. It is ephemeral:
// the tracker consumes it and assigns persistent identity separately.
type Detection struct {
	// Bounding box in pixel coordinates.
	X1, Y1, X2, Y2 float64

	// Confidence in [0, 1].
	Confidence float64

	// ClassLabel is the detector's class name (e.g. "uav").
	ClassLabel string
}

// Centroid returns the geometric centre of the detection's bounding box.
func (d Detection) Centroid() (x, y float64) {
	return (d.X1 + d.X2) / 2, (d.Y1 + d.Y2) / 2
}

// BoxValid reports whether the bounding box is well-formed (non-inverted).
func (d Detection) BoxValid() bool {
	return d.X2 >= d.X1 && d.Y2 >= d.Y1
}

// QRObservation is one decoded QR payload with decode metadata. Text is the
// raw decoded UTF-8 string; the command processor decides whether it carries
// a valid mission command.
type QRObservation struct {
	Text string

	// Polygon is the detected quad outline in pixel coordinates, if known.
	Polygon [][2]float64

	// AngleDeg is the in-plane rotation of the code, if known.
	AngleDeg float64

	// Quality is the decoder's quality score, if known.
	Quality float64
}

// Frame is one frame's worth of adapter output.
type Frame struct {
	Detections []Detection
	QR         []QRObservation
}

// Source yields frames of adapter output. Next returns false when the
// source is exhausted.
type Source interface {
	Next() (Frame, bool)
}

// ScriptedSource replays a fixed sequence of frames. Used for dev mode and
// tests in place of real detector hardware.
type ScriptedSource struct {
	frames []Frame
	pos    int
}

// NewScriptedSource creates a source that plays back the given frames once.
func NewScriptedSource(frames []Frame) *ScriptedSource {
	return &ScriptedSource{frames: frames}
}

// Next returns the next scripted frame.
func (s *ScriptedSource) Next() (Frame, bool) {
	if s.pos >= len(s.frames) {
		return Frame{}, false
	}
	f := s.frames[s.pos]
	s.pos++
	return f, true
}
