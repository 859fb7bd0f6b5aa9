// Package webcam implements camera.Device on top of gocv VideoCapture.
package webcam

import (
	"context"
	"fmt"
	"sync"

	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/perception"
	"gocv.io/x/gocv"
)

// Device opens local capture devices, files or stream URLs.
type Device struct{}

// New returns a webcam device.
func New() *Device {
	return &Device{}
}

// Acquire opens the capture source named by cfg.Device and reads one
// frame to learn the native resolution.
func (d *Device) Acquire(ctx context.Context, cfg camera.Config) (camera.Stream, error) {
	var source interface{} = cfg.Device
	if idx, ok := cfg.DeviceIndex(); ok {
		source = idx
	}

	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open %v: device not opened", source)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	if err := ctx.Err(); err != nil {
		vc.Close()
		return nil, err
	}

	s := &Stream{vc: vc, mat: gocv.NewMat(), mirror: cfg.Mirror, playing: true}
	if ok := vc.Read(&s.mat); !ok || s.mat.Empty() {
		s.Close()
		return nil, fmt.Errorf("read %v: no frames", source)
	}
	s.width, s.height = s.mat.Cols(), s.mat.Rows()
	s.pending = true
	return s, nil
}

// Stream is an open VideoCapture.
type Stream struct {
	mu      sync.Mutex
	vc      *gocv.VideoCapture
	mat     gocv.Mat
	flipped gocv.Mat
	mirror  bool
	seq     uint64
	width   int
	height  int
	playing bool
	pending bool // mat already holds the probe frame
	closed  bool

	hasFlipped bool
}

// Read grabs the next frame as packed BGR.
func (s *Stream) Read(ctx context.Context) (perception.Frame, error) {
	if err := ctx.Err(); err != nil {
		return perception.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.playing {
		return perception.Frame{}, camera.ErrStreamEnded
	}

	if s.pending {
		s.pending = false
	} else if ok := s.vc.Read(&s.mat); !ok || s.mat.Empty() {
		s.playing = false
		return perception.Frame{}, camera.ErrStreamEnded
	}

	img := s.mat
	if s.mirror {
		if !s.hasFlipped {
			s.flipped = gocv.NewMat()
			s.hasFlipped = true
		}
		gocv.Flip(s.mat, &s.flipped, 1)
		img = s.flipped
	}

	s.seq++
	return perception.Frame{
		Seq:    s.seq,
		Width:  img.Cols(),
		Height: img.Rows(),
		Pixels: img.ToBytes(),
	}, nil
}

// Playing reports whether frames are still arriving.
func (s *Stream) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing && !s.closed
}

// Size returns the native resolution observed on the first frame.
func (s *Stream) Size() (int, int) {
	return s.width, s.height
}

// Close releases the capture device.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.playing = false
	s.mat.Close()
	if s.hasFlipped {
		s.flipped.Close()
	}
	return s.vc.Close()
}

var (
	_ camera.Device = (*Device)(nil)
	_ camera.Stream = (*Stream)(nil)
)
