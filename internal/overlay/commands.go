// Package overlay turns a landmark triple into drawing commands and
// executes them on a raster surface.
//
// Commands are plain data so the same list can be replayed by a browser
// canvas or by Canvas on the server.
package overlay

import (
	"github.com/kdimtricp/elbowtrack/internal/pose"
)

type Op string

const (
	OpResize    Op = "resize"
	OpClear     Op = "clear"
	OpDrawImage Op = "drawImage"
	OpCircle    Op = "circle"
	OpLine      Op = "line"
)

// Color names are CSS color keywords understood by the browser canvas.
const (
	ColorJoint   = "blue"
	ColorPivot   = "red"
	ColorSegment = "white"
)

const (
	MarkerRadius = 5.0
	LineWidth    = 2.0
)

// Command is a single drawing step. Width and Height apply to resize and
// drawImage; X1/Y1 is the circle center or line start, X2/Y2 the line end.
type Command struct {
	Op        Op      `json:"op"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	X1        float64 `json:"x1,omitempty"`
	Y1        float64 `json:"y1,omitempty"`
	X2        float64 `json:"x2,omitempty"`
	Y2        float64 `json:"y2,omitempty"`
	Radius    float64 `json:"radius,omitempty"`
	LineWidth float64 `json:"lineWidth,omitempty"`
	Color     string  `json:"color,omitempty"`
}

// Build returns the overlay for one frame of width×height pixels: the frame
// as background, a marker on each joint and the two arm segments.
func Build(width, height int, t pose.Triple) []Command {
	w, h := float64(width), float64(height)
	sx, sy := t.Shoulder.X*w, t.Shoulder.Y*h
	ex, ey := t.Elbow.X*w, t.Elbow.Y*h
	wx, wy := t.Wrist.X*w, t.Wrist.Y*h

	return []Command{
		{Op: OpResize, Width: width, Height: height},
		{Op: OpClear},
		{Op: OpDrawImage, Width: width, Height: height},
		circle(sx, sy, ColorJoint),
		circle(ex, ey, ColorPivot),
		circle(wx, wy, ColorJoint),
		line(sx, sy, ex, ey),
		line(ex, ey, wx, wy),
	}
}

func circle(x, y float64, color string) Command {
	return Command{Op: OpCircle, X1: x, Y1: y, Radius: MarkerRadius, Color: color}
}

func line(x1, y1, x2, y2 float64) Command {
	return Command{Op: OpLine, X1: x1, Y1: y1, X2: x2, Y2: y2, LineWidth: LineWidth, Color: ColorSegment}
}
