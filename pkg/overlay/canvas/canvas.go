// Package canvas implements the overlay surface as a transparent BGRA
// gocv Mat and composites it onto video frames.
package canvas

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/overlay"
	"github.com/teslashibe/go-moodcam/pkg/perception"
	"gocv.io/x/gocv"
)

const (
	boxThickness   = 2
	landmarkRadius = 3
	fontScale      = 0.6
	fontThickness  = 2
)

// Canvas is a transparent drawing layer.
type Canvas struct {
	mu  sync.Mutex
	mat gocv.Mat
	w   int
	h   int
}

// New creates a zero-sized canvas. Resize it before drawing.
func New() *Canvas {
	return &Canvas{mat: gocv.NewMat()}
}

// Resize reallocates the canvas at width x height, fully transparent.
func (c *Canvas) Resize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if width == c.w && height == c.h && !c.mat.Empty() {
		c.clear()
		return
	}
	c.mat.Close()
	c.mat = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC4)
	c.w, c.h = width, height
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w, c.h
}

// Clear makes every pixel transparent.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clear()
}

func (c *Canvas) clear() {
	if !c.mat.Empty() {
		c.mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
	}
}

func (c *Canvas) DrawBox(box perception.Rect, col color.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mat.Empty() {
		return
	}
	r := image.Rect(int(box.X), int(box.Y), int(box.X+box.W), int(box.Y+box.H))
	gocv.Rectangle(&c.mat, r, col, boxThickness)
}

func (c *Canvas) DrawPoint(p perception.Point, col color.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mat.Empty() {
		return
	}
	gocv.Circle(&c.mat, image.Pt(int(p.X), int(p.Y)), landmarkRadius, col, -1)
}

func (c *Canvas) DrawText(text string, at perception.Point, col color.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mat.Empty() {
		return
	}
	gocv.PutText(&c.mat, text, image.Pt(int(at.X), int(at.Y)), gocv.FontHersheySimplex, fontScale, col, fontThickness)
}

// Blank reports whether every pixel is transparent.
func (c *Canvas) Blank() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mat.Empty() {
		return true
	}
	chans := gocv.Split(c.mat)
	defer func() {
		for _, ch := range chans {
			ch.Close()
		}
	}()
	return gocv.CountNonZero(chans[3]) == 0
}

// Compose blends the canvas over frame and encodes the result as JPEG.
func (c *Canvas) Compose(frame perception.Frame, quality int) ([]byte, error) {
	img, err := c.Blend(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return EncodeJPEG(img, quality)
}

// Blend returns a copy of frame with the canvas drawn over it. When the
// canvas does not match the frame size the copy is the raw frame. The
// caller owns the returned Mat.
func (c *Canvas) Blend(frame perception.Frame) (gocv.Mat, error) {
	if !frame.Valid() {
		return gocv.NewMat(), perception.ErrInvalidFrame
	}
	src, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pixels)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("frame to mat: %w", err)
	}
	defer src.Close()

	base := src.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == frame.Width && c.h == frame.Height && !c.mat.Empty() {
		if err := c.blendInto(&base); err != nil {
			base.Close()
			return gocv.NewMat(), err
		}
	}
	return base, nil
}

// blendInto copies drawn pixels onto dst. Must be called with mu held.
func (c *Canvas) blendInto(dst *gocv.Mat) error {
	chans := gocv.Split(c.mat)
	defer func() {
		for _, ch := range chans {
			ch.Close()
		}
	}()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(c.mat, &bgr, gocv.ColorBGRAToBGR)

	return bgr.CopyToWithMask(dst, chans[3])
}

// Close frees the underlying Mat.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mat.Close()
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

var _ overlay.Surface = (*Canvas)(nil)
