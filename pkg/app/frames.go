package app

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/debug"
	"github.com/teslashibe/go-moodcam/pkg/detectloop"
	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// Composer blends the overlay onto a frame and encodes it as JPEG.
type Composer interface {
	Compose(frame perception.Frame, quality int) ([]byte, error)
}

// Viewers receive encoded frames.
type Viewers interface {
	CameraClients() int
	SendCameraFrame(jpeg []byte)
}

// frameSinks publishes each frame to every sink in order.
type frameSinks []detectloop.FrameSink

func (s frameSinks) Publish(frame perception.Frame, result *perception.DetectionFrame) {
	for _, sink := range s {
		sink.Publish(frame, result)
	}
}

// framePublisher implements detectloop.FrameSink. Frames are encoded only
// while someone is watching, and at most once per interval.
type framePublisher struct {
	comp     Composer
	out      Viewers
	quality  func() int
	interval time.Duration

	mu   sync.Mutex
	last time.Time

	sent   atomic.Uint64
	failed atomic.Uint64
}

func newFramePublisher(comp Composer, out Viewers, quality func() int, rate float64) *framePublisher {
	interval := time.Duration(0)
	if rate > 0 {
		interval = time.Duration(float64(time.Second) / rate)
	}
	return &framePublisher{comp: comp, out: out, quality: quality, interval: interval}
}

// Publish runs on the loop goroutine after the overlay was rendered, so
// the overlay matches frame. result is unused: the overlay already has it.
func (p *framePublisher) Publish(frame perception.Frame, result *perception.DetectionFrame) {
	if p.out.CameraClients() == 0 {
		return
	}

	now := time.Now()
	p.mu.Lock()
	if now.Sub(p.last) < p.interval {
		p.mu.Unlock()
		return
	}
	p.last = now
	p.mu.Unlock()

	jpeg, err := p.comp.Compose(frame, p.quality())
	if err != nil {
		p.failed.Add(1)
		debug.FrameLog("compose frame %d: %v", frame.Seq, err)
		return
	}
	p.out.SendCameraFrame(jpeg)
	p.sent.Add(1)
}
