package camera

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// MockStream implements Stream for testing. It produces blank frames of
// the configured size until Close or SetPlaying(false).
type MockStream struct {
	Width, Height int

	// ReadFunc overrides frame production when set.
	ReadFunc func(ctx context.Context, seq uint64) (perception.Frame, error)

	seq     atomic.Uint64
	stopped atomic.Bool
	closed  atomic.Int32
}

// NewMockStream creates a playing stream of the given size.
func NewMockStream(width, height int) *MockStream {
	return &MockStream{Width: width, Height: height}
}

// Read returns the next frame.
func (s *MockStream) Read(ctx context.Context) (perception.Frame, error) {
	if err := ctx.Err(); err != nil {
		return perception.Frame{}, err
	}
	if !s.Playing() {
		return perception.Frame{}, ErrStreamEnded
	}
	seq := s.seq.Add(1)
	if s.ReadFunc != nil {
		return s.ReadFunc(ctx, seq)
	}
	return perception.Frame{
		Seq:    seq,
		Width:  s.Width,
		Height: s.Height,
		Pixels: make([]byte, s.Width*s.Height*3),
	}, nil
}

// Playing reports whether the stream is open and not paused.
func (s *MockStream) Playing() bool {
	return s.closed.Load() == 0 && !s.stopped.Load()
}

// SetPlaying pauses or resumes the stream.
func (s *MockStream) SetPlaying(playing bool) {
	s.stopped.Store(!playing)
}

// Size returns the configured size.
func (s *MockStream) Size() (int, int) {
	return s.Width, s.Height
}

// Close marks the stream released.
func (s *MockStream) Close() error {
	s.closed.Add(1)
	return nil
}

// CloseCount returns how many times Close was called.
func (s *MockStream) CloseCount() int {
	return int(s.closed.Load())
}

// MockDevice implements Device for testing.
type MockDevice struct {
	// AcquireFunc overrides acquisition when set.
	AcquireFunc func(ctx context.Context, cfg Config) (Stream, error)

	mu      sync.Mutex
	streams []*MockStream
}

// Acquire returns a new MockStream sized from cfg, or calls AcquireFunc.
func (d *MockDevice) Acquire(ctx context.Context, cfg Config) (Stream, error) {
	if d.AcquireFunc != nil {
		return d.AcquireFunc(ctx, cfg)
	}
	s := NewMockStream(cfg.Width, cfg.Height)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// Streams returns every stream handed out so far.
func (d *MockDevice) Streams() []*MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*MockStream{}, d.streams...)
}

var (
	_ Device = (*MockDevice)(nil)
	_ Stream = (*MockStream)(nil)
)
