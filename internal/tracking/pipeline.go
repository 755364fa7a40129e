// Package tracking runs the per-frame elbow angle pipeline and owns the
// lifecycle of tracking sessions.
package tracking

import (
	"fmt"

	"github.com/kdimtricp/elbowtrack/internal/geometry"
	"github.com/kdimtricp/elbowtrack/internal/overlay"
	"github.com/kdimtricp/elbowtrack/internal/pose"
)

const (
	TargetAngle          = 90
	TargetReachedMessage = "90° angle reached!"
)

// DisplayState is what the user sees: the latest angle and a status line.
// A nil Angle means no frame has been measured yet.
type DisplayState struct {
	Angle   *int   `json:"angle"`
	Message string `json:"message"`
}

// Readout formats the angle line shown under the video.
func (d DisplayState) Readout() string {
	if d.Angle == nil {
		return "Calculating..."
	}
	return fmt.Sprintf("Angle: %d°", *d.Angle)
}

func (d DisplayState) Equal(o DisplayState) bool {
	if d.Message != o.Message {
		return false
	}
	if d.Angle == nil || o.Angle == nil {
		return d.Angle == nil && o.Angle == nil
	}
	return *d.Angle == *o.Angle
}

type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipNoLandmarks SkipReason = "no_landmarks"
	SkipDegenerate  SkipReason = "degenerate"
)

// Outcome is the result of processing one frame. Commands is empty when
// nothing is drawn. Changed reports whether State differs from the input.
type Outcome struct {
	State    DisplayState      `json:"display"`
	Commands []overlay.Command `json:"commands"`
	Skipped  SkipReason        `json:"skipped,omitempty"`
	Changed  bool              `json:"changed"`
}

// Process is the frame callback: it derives the overlay and the next display
// state from the previous state and one estimator result. It has no side
// effects and the same input always gives the same outcome.
//
// Frames without a usable left arm leave the state untouched and draw
// nothing. A degenerate arm (a segment of zero length) is drawn but does not
// update the angle.
func Process(prev DisplayState, r *pose.Result) Outcome {
	triple, ok := r.Triple()
	if !ok || r.Image.Width <= 0 || r.Image.Height <= 0 {
		return Outcome{State: prev, Skipped: SkipNoLandmarks}
	}
	if !triple.Shoulder.Finite() || !triple.Elbow.Finite() || !triple.Wrist.Finite() {
		return Outcome{State: prev, Skipped: SkipNoLandmarks}
	}

	cmds := overlay.Build(r.Image.Width, r.Image.Height, triple)

	angle, err := geometry.JointAngle(triple.Shoulder.Vec(), triple.Elbow.Vec(), triple.Wrist.Vec())
	if err != nil {
		return Outcome{State: prev, Commands: cmds, Skipped: SkipDegenerate}
	}

	next := DisplayState{Angle: &angle}
	if angle == TargetAngle {
		next.Message = TargetReachedMessage
	}
	return Outcome{
		State:    next,
		Commands: cmds,
		Changed:  !next.Equal(prev),
	}
}
