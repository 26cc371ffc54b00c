package track

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kestrel-uas/kestrel/internal/config"
	"github.com/kestrel-uas/kestrel/internal/detect"
)

// Config carries the tracker tuning parameters.
type Config struct {
	// MaxDisappeared is how many consecutive frames a track may coast
	// without a matched detection before it is removed.
	MaxDisappeared int

	// MaxDistance is the association gate in pixels. A detection farther
	// than this from every track centroid starts a new track.
	MaxDistance float64

	// FrameRate fixes the filter time step to 1/FrameRate seconds.
	FrameRate float64

	// Kalman noise parameters.
	ProcessNoise     float64
	MeasurementNoise float64
}

// DefaultConfig returns the standard tracker configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning extracts the tracker parameters from a tuning config.
func ConfigFromTuning(tc *config.TuningConfig) Config {
	return Config{
		MaxDisappeared:   tc.GetMaxDisappeared(),
		MaxDistance:      tc.GetMaxDistance(),
		FrameRate:        tc.GetFrameRate(),
		ProcessNoise:     tc.GetProcessNoise(),
		MeasurementNoise: tc.GetMeasurementNoise(),
	}
}

// Tracked is one tracker output for the current frame: a persistent track
// ID bound to the filtered position and the frame's box for that object.
type Tracked struct {
	ID int

	// X, Y is the filter's predicted centroid for this frame, not the raw
	// detection centroid. Downstream consumers (lock evaluation, gimbal
	// pointing) always see the filtered position.
	X, Y float64

	// Bounding box. Matched tracks carry the detection's box verbatim;
	// coasting tracks carry a synthetic box centred on the prediction.
	X1, Y1, X2, Y2 float64

	// Confidence is the detection confidence, or 0.5 while coasting.
	Confidence float64

	// Coasting reports whether this frame had no matched detection.
	Coasting bool
}

type trackState struct {
	filter      *kalman
	disappeared int
}

// Tracker assigns persistent integer identities to per-frame detections.
// Safe for concurrent use, though the pipeline drives it from one goroutine.
type Tracker struct {
	mu     sync.Mutex
	cfg    Config
	nextID int
	tracks map[int]*trackState
}

// coasting tracks report a fixed synthetic box and confidence because no
// detection exists to take them from.
const (
	coastBoxSize    = 100.0
	coastConfidence = 0.5
)

// NewTracker creates a tracker with the given configuration.
func NewTracker(cfg Config) *Tracker {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = 30.0
	}
	return &Tracker{
		cfg:    cfg,
		tracks: make(map[int]*trackState),
	}
}

// ActiveCount returns the number of live tracks, including coasting ones.
func (t *Tracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}

// Reset drops all tracks. The ID counter is not reset, so identities from
// before the reset are never reused.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = make(map[int]*trackState)
}

// Update ingests one frame of detections and returns the tracked objects
// for that frame, sorted by track ID.
//
// Inverted bounding boxes indicate a broken detector adapter and panic
// rather than silently corrupting track state.
func (t *Tracker) Update(detections []detect.Detection) []Tracked {
	for i, d := range detections {
		if !d.BoxValid() {
			panic(fmt.Sprintf("track: inverted bounding box in detection %d: (%f,%f)-(%f,%f)",
				i, d.X1, d.Y1, d.X2, d.Y2))
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(detections) == 0 {
		return t.coastAll()
	}

	if len(t.tracks) == 0 {
		for _, d := range detections {
			t.register(d)
		}
		return t.snapshotFresh(detections)
	}

	matched := t.associate(detections)

	out := make([]Tracked, 0, len(t.tracks))
	for id, st := range t.tracks {
		if di, ok := matched[id]; ok {
			d := detections[di]
			px, py := st.filter.predict()
			mx, my := d.Centroid()
			st.filter.correct(mx, my)
			st.disappeared = 0
			out = append(out, Tracked{
				ID: id, X: px, Y: py,
				X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2,
				Confidence: d.Confidence,
			})
		} else {
			st.disappeared++
			if st.disappeared > t.cfg.MaxDisappeared {
				delete(t.tracks, id)
				continue
			}
			out = append(out, t.coast(id, st))
		}
	}

	// Unmatched detections start new tracks.
	used := make(map[int]bool, len(matched))
	for _, di := range matched {
		used[di] = true
	}
	for di, d := range detections {
		if used[di] {
			continue
		}
		id := t.register(d)
		cx, cy := d.Centroid()
		out = append(out, Tracked{
			ID: id, X: cx, Y: cy,
			X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2,
			Confidence: d.Confidence,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// associate greedily pairs tracks with detections by predicted-centroid
// distance. Tracks are considered in order of their closest candidate, so
// the strongest matches claim detections first. Pairs beyond MaxDistance
// are never matched.
func (t *Tracker) associate(detections []detect.Detection) map[int]int {
	ids := make([]int, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	type pred struct{ x, y float64 }
	preds := make([]pred, len(ids))
	for i, id := range ids {
		st := t.tracks[id]
		// Peek at the prediction without advancing the filter; the real
		// predict happens in Update for matched and coasting tracks alike.
		preds[i] = pred{
			x: st.filter.x + st.filter.vx*st.filter.dt,
			y: st.filter.y + st.filter.vy*st.filter.dt,
		}
	}

	dist := make([][]float64, len(ids))
	for i := range ids {
		dist[i] = make([]float64, len(detections))
		for j, d := range detections {
			cx, cy := d.Centroid()
			dist[i][j] = math.Hypot(preds[i].x-cx, preds[i].y-cy)
		}
	}

	// Order track rows by each row's minimum distance, ascending.
	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	rowMin := make([]float64, len(ids))
	for i := range ids {
		m := math.Inf(1)
		for j := range detections {
			if dist[i][j] < m {
				m = dist[i][j]
			}
		}
		rowMin[i] = m
	}
	sort.Slice(order, func(a, b int) bool { return rowMin[order[a]] < rowMin[order[b]] })

	matched := make(map[int]int)
	usedDet := make(map[int]bool)
	for _, i := range order {
		best := -1
		bestDist := math.Inf(1)
		for j := range detections {
			if usedDet[j] {
				continue
			}
			if dist[i][j] < bestDist {
				bestDist = dist[i][j]
				best = j
			}
		}
		if best == -1 || bestDist > t.cfg.MaxDistance {
			continue
		}
		matched[ids[i]] = best
		usedDet[best] = true
	}
	return matched
}

func (t *Tracker) register(d detect.Detection) int {
	cx, cy := d.Centroid()
	id := t.nextID
	t.nextID++
	t.tracks[id] = &trackState{
		filter: newKalman(cx, cy, 1/t.cfg.FrameRate, t.cfg.ProcessNoise, t.cfg.MeasurementNoise),
	}
	return id
}

// coastAll handles an empty frame: every track's disappearance counter
// advances, expired tracks drop, survivors report predictions.
func (t *Tracker) coastAll() []Tracked {
	out := make([]Tracked, 0, len(t.tracks))
	for id, st := range t.tracks {
		st.disappeared++
		if st.disappeared > t.cfg.MaxDisappeared {
			delete(t.tracks, id)
			continue
		}
		out = append(out, t.coast(id, st))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *Tracker) coast(id int, st *trackState) Tracked {
	px, py := st.filter.predict()
	half := coastBoxSize / 2
	return Tracked{
		ID: id, X: px, Y: py,
		X1: px - half, Y1: py - half, X2: px + half, Y2: py + half,
		Confidence: coastConfidence,
		Coasting:   true,
	}
}

// snapshotFresh reports newly registered tracks in detection order. Track
// IDs were assigned sequentially, so this is already ID order.
func (t *Tracker) snapshotFresh(detections []detect.Detection) []Tracked {
	out := make([]Tracked, 0, len(detections))
	id := t.nextID - len(detections)
	for _, d := range detections {
		cx, cy := d.Centroid()
		out = append(out, Tracked{
			ID: id, X: cx, Y: cy,
			X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2,
			Confidence: d.Confidence,
		})
		id++
	}
	return out
}
