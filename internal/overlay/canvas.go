package overlay

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

var (
	ErrNoSurface    = errors.New("overlay: drawing before the surface was sized")
	ErrUnknownOp    = errors.New("overlay: unknown drawing op")
	ErrUnknownColor = errors.New("overlay: unknown color")
	ErrInvalidSize  = errors.New("overlay: invalid surface size")
)

var palette = map[string]color.RGBA{
	"blue":  {R: 0, G: 0, B: 255, A: 255},
	"red":   {R: 255, G: 0, B: 0, A: 255},
	"white": {R: 255, G: 255, B: 255, A: 255},
	"green": {R: 0, G: 128, B: 0, A: 255},
	"black": {R: 0, G: 0, B: 0, A: 255},
}

// Canvas executes drawing commands on an RGBA surface. The background frame
// is drawn by OpDrawImage; without one the frame area is filled black.
type Canvas struct {
	surface    *image.RGBA
	background image.Image
}

// NewCanvas decodes the encoded frame (JPEG or PNG) used as background. An
// empty frame is allowed.
func NewCanvas(frame []byte) (*Canvas, error) {
	c := &Canvas{}
	if len(frame) == 0 {
		return c, nil
	}
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("decoding background frame: %w", err)
	}
	c.background = img
	return c, nil
}

// Execute runs the commands in order.
func (c *Canvas) Execute(cmds []Command) error {
	for i, cmd := range cmds {
		if err := c.exec(cmd); err != nil {
			return fmt.Errorf("command %d (%s): %w", i, cmd.Op, err)
		}
	}
	return nil
}

func (c *Canvas) exec(cmd Command) error {
	if cmd.Op == OpResize {
		if cmd.Width <= 0 || cmd.Height <= 0 {
			return ErrInvalidSize
		}
		c.surface = image.NewRGBA(image.Rect(0, 0, cmd.Width, cmd.Height))
		return nil
	}
	if c.surface == nil {
		return ErrNoSurface
	}

	switch cmd.Op {
	case OpClear:
		draw.Draw(c.surface, c.surface.Bounds(), image.Transparent, image.Point{}, draw.Src)
	case OpDrawImage:
		dst := image.Rect(0, 0, cmd.Width, cmd.Height).Intersect(c.surface.Bounds())
		if c.background == nil {
			draw.Draw(c.surface, dst, image.NewUniform(palette["black"]), image.Point{}, draw.Src)
			return nil
		}
		xdraw.ApproxBiLinear.Scale(c.surface, dst, c.background, c.background.Bounds(), xdraw.Over, nil)
	case OpCircle:
		col, ok := palette[cmd.Color]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColor, cmd.Color)
		}
		c.fillCircle(cmd.X1, cmd.Y1, cmd.Radius, col)
	case OpLine:
		col, ok := palette[cmd.Color]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColor, cmd.Color)
		}
		c.strokeLine(cmd.X1, cmd.Y1, cmd.X2, cmd.Y2, cmd.LineWidth, col)
	default:
		return ErrUnknownOp
	}
	return nil
}

// kappa places cubic control points so four curves approximate a circle.
const kappa = 0.5522847498

func (c *Canvas) fillCircle(cx, cy, r float64, col color.RGBA) {
	if r <= 0 {
		return
	}
	b := c.surface.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	k := r * kappa

	z.MoveTo(f32(cx+r), f32(cy))
	z.CubeTo(f32(cx+r), f32(cy+k), f32(cx+k), f32(cy+r), f32(cx), f32(cy+r))
	z.CubeTo(f32(cx-k), f32(cy+r), f32(cx-r), f32(cy+k), f32(cx-r), f32(cy))
	z.CubeTo(f32(cx-r), f32(cy-k), f32(cx-k), f32(cy-r), f32(cx), f32(cy-r))
	z.CubeTo(f32(cx+k), f32(cy-r), f32(cx+r), f32(cy-k), f32(cx+r), f32(cy))
	z.ClosePath()

	z.Draw(c.surface, b, image.NewUniform(col), image.Point{})
}

// strokeLine fills the rectangle of the given width centered on the segment.
func (c *Canvas) strokeLine(x1, y1, x2, y2, width float64, col color.RGBA) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}
	nx, ny := -dy/length*width/2, dx/length*width/2

	b := c.surface.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.MoveTo(f32(x1+nx), f32(y1+ny))
	z.LineTo(f32(x2+nx), f32(y2+ny))
	z.LineTo(f32(x2-nx), f32(y2-ny))
	z.LineTo(f32(x1-nx), f32(y1-ny))
	z.ClosePath()

	z.Draw(c.surface, b, image.NewUniform(col), image.Point{})
}

func f32(v float64) float32 { return float32(v) }

// Image returns the drawn surface, or nil before the first resize.
func (c *Canvas) Image() *image.RGBA {
	return c.surface
}

func (c *Canvas) EncodePNG(w io.Writer) error {
	if c.surface == nil {
		return ErrNoSurface
	}
	return png.Encode(w, c.surface)
}

// Render draws cmds over the encoded frame and returns the PNG bytes.
func Render(frame []byte, cmds []Command) ([]byte, error) {
	c, err := NewCanvas(frame)
	if err != nil {
		return nil, err
	}
	if err := c.Execute(cmds); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
