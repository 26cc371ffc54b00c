// Package track owns frame-to-frame identity assignment.
//
// Responsibilities: constant-velocity Kalman filtering per track, greedy
// nearest-neighbour association of detections to tracks, and track
// lifecycle (registration, coasting via disappearance counters, removal).
// Key types: Tracker, Tracked.
//
// Track IDs are monotonically assigned integers and are never reused.
package track
