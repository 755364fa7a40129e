// Package pose describes the output of the external pose estimator: one
// Result per video frame carrying the frame image and, when detection
// succeeded, the normalized body landmarks.
package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Landmark indices read by the elbow tracker. The estimator returns 33
// landmarks; only the left arm chain is used.
const (
	LeftShoulder = 11
	LeftElbow    = 13
	LeftWrist    = 15

	// MinLandmarks is the shortest landmark sequence that still holds
	// every index above.
	MinLandmarks = LeftWrist + 1
)

// Landmark is a body joint position normalized to the frame: X and Y lie in
// [0,1] relative to frame width and height.
type Landmark struct {
	X          float64  `json:"x" msgpack:"x"`
	Y          float64  `json:"y" msgpack:"y"`
	Z          float64  `json:"z,omitempty" msgpack:"z,omitempty"`
	Visibility *float64 `json:"visibility,omitempty" msgpack:"visibility,omitempty"`
}

// Vec returns the landmark's normalized 2D position.
func (l Landmark) Vec() r2.Vec {
	return r2.Vec{X: l.X, Y: l.Y}
}

// Finite reports whether both coordinates are usable numbers.
func (l Landmark) Finite() bool {
	return !math.IsNaN(l.X) && !math.IsInf(l.X, 0) && !math.IsNaN(l.Y) && !math.IsInf(l.Y, 0)
}

// Image is the frame the landmarks were detected on. Data holds the encoded
// frame (JPEG or PNG) and may be empty when the client only reports
// dimensions.
type Image struct {
	Width  int    `json:"width" msgpack:"width"`
	Height int    `json:"height" msgpack:"height"`
	Data   []byte `json:"data,omitempty" msgpack:"data,omitempty"`
}

// Result is one frame's estimator output. PoseLandmarks is nil when nothing
// was detected on the frame.
type Result struct {
	Image         Image      `json:"image" msgpack:"image"`
	PoseLandmarks []Landmark `json:"poseLandmarks,omitempty" msgpack:"poseLandmarks,omitempty"`
}

// Triple is the shoulder, elbow and wrist of one arm for a single frame.
type Triple struct {
	Shoulder Landmark `json:"shoulder"`
	Elbow    Landmark `json:"elbow"`
	Wrist    Landmark `json:"wrist"`
}

// Triple selects the left arm landmarks. It reports false when the frame has
// no landmarks or the sequence is too short to hold the required indices.
func (r *Result) Triple() (Triple, bool) {
	if r == nil || len(r.PoseLandmarks) < MinLandmarks {
		return Triple{}, false
	}
	return Triple{
		Shoulder: r.PoseLandmarks[LeftShoulder],
		Elbow:    r.PoseLandmarks[LeftElbow],
		Wrist:    r.PoseLandmarks[LeftWrist],
	}, true
}
