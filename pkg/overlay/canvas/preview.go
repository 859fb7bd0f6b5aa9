package canvas

import (
	"context"
	"runtime"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// Blender draws the overlay onto a copy of a frame.
type Blender interface {
	Blend(frame perception.Frame) (gocv.Mat, error)
}

// Preview shows composited frames in a local window. Publish runs on the
// detection loop; Run owns the window and must stay on one OS thread.
type Preview struct {
	title  string
	src    Blender
	frames chan gocv.Mat

	shown   atomic.Uint64
	dropped atomic.Uint64
}

// NewPreview creates a preview window titled title. The window opens when
// Run is called.
func NewPreview(title string, src Blender) *Preview {
	return &Preview{title: title, src: src, frames: make(chan gocv.Mat, 1)}
}

// Publish blends frame and hands it to the window. A frame the window has
// not picked up yet is replaced.
func (p *Preview) Publish(frame perception.Frame, _ *perception.DetectionFrame) {
	img, err := p.src.Blend(frame)
	if err != nil {
		img.Close()
		return
	}
	for {
		select {
		case p.frames <- img:
			return
		default:
		}
		select {
		case old := <-p.frames:
			old.Close()
			p.dropped.Add(1)
		default:
		}
	}
}

// Run shows frames until ctx is cancelled or the window is closed with Esc.
func (p *Preview) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	window := gocv.NewWindow(p.title)
	defer window.Close()

	for {
		select {
		case <-ctx.Done():
			p.drain()
			return ctx.Err()
		case img := <-p.frames:
			window.IMShow(img)
			img.Close()
			p.shown.Add(1)
		default:
		}
		// WaitKey pumps the window's event loop.
		if window.WaitKey(10) == 27 {
			p.drain()
			return nil
		}
	}
}

func (p *Preview) drain() {
	for {
		select {
		case img := <-p.frames:
			img.Close()
		default:
			return
		}
	}
}

// Shown returns how many frames were displayed.
func (p *Preview) Shown() uint64 { return p.shown.Load() }

// Dropped returns how many frames were replaced before display.
func (p *Preview) Dropped() uint64 { return p.dropped.Load() }
