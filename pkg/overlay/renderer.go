// Package overlay draws detection results onto a transparent surface that
// sits on top of the video.
package overlay

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// Surface is a drawable, transparent layer the size of the video.
type Surface interface {
	Resize(width, height int)
	Size() (width, height int)
	Clear()
	DrawBox(box perception.Rect, c color.RGBA)
	DrawPoint(p perception.Point, c color.RGBA)
	DrawText(text string, at perception.Point, c color.RGBA)
}

// Style controls overlay colors.
type Style struct {
	FaceColor     color.RGBA
	LandmarkColor color.RGBA
	ObjectColor   color.RGBA
	TextColor     color.RGBA
}

// DefaultStyle returns the standard palette.
func DefaultStyle() Style {
	return Style{
		FaceColor:     color.RGBA{R: 0, G: 200, B: 255, A: 255},
		LandmarkColor: color.RGBA{R: 255, G: 255, B: 0, A: 255},
		ObjectColor:   color.RGBA{R: 255, G: 80, B: 80, A: 255},
		TextColor:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

// textOffset lifts labels above their box.
const textOffset = 6

// Renderer draws DetectionFrames onto a Surface.
type Renderer struct {
	surface Surface
	style   Style

	mu    sync.Mutex
	sized bool
}

// NewRenderer creates a renderer drawing on s.
func NewRenderer(s Surface, style Style) *Renderer {
	return &Renderer{surface: s, style: style}
}

// Resize matches the surface to the video's native resolution. Call it
// before rendering the first frame of a session.
func (r *Renderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface.Resize(width, height)
	r.sized = true
}

// Render clears the surface and draws frame. The drawing depends only on
// frame, so previous output never leaks through.
func (r *Renderer) Render(frame perception.DetectionFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sized && frame.Width > 0 && frame.Height > 0 {
		r.surface.Resize(frame.Width, frame.Height)
		r.sized = true
	}

	r.surface.Clear()

	for _, f := range frame.Faces {
		r.surface.DrawBox(f.Box, r.style.FaceColor)
		for _, p := range f.Landmarks {
			r.surface.DrawPoint(p, r.style.LandmarkColor)
		}
		if text := FaceLabel(f); text != "" {
			r.surface.DrawText(text, labelAnchor(f.Box), r.style.TextColor)
		}
	}

	for _, o := range frame.Objects {
		r.surface.DrawBox(o.Box, r.style.ObjectColor)
		r.surface.DrawText(ObjectLabel(o), labelAnchor(o.Box), r.style.ObjectColor)
	}
}

// Clear wipes the surface. The next session resizes again.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surface.Clear()
	r.sized = false
}

// FaceLabel returns "label (conf%)" for the dominant expression of f, or
// "" when it has no expression scores.
func FaceLabel(f perception.FaceDetection) string {
	label, score, ok := f.Expressions.Top()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s (%s)", label, perception.FormatConfidence(score))
}

// ObjectLabel returns "label (score%)".
func ObjectLabel(o perception.ObjectDetection) string {
	return fmt.Sprintf("%s (%s)", o.Label, perception.FormatScore(o.Score))
}

func labelAnchor(box perception.Rect) perception.Point {
	y := box.Y - textOffset
	if y < textOffset*2 {
		y = box.Y + box.H + textOffset*2
	}
	return perception.Point{X: box.X, Y: y}
}
