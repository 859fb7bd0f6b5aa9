package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// MockSource plays scripted chunks, then silence, one buffer per
// BufferDuration, until stopped.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	script  []AudioChunk
	out     chan AudioChunk
	stop    chan struct{}
	running bool
	closed  bool
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithScript queues chunks delivered, without drops, before the silence.
func WithScript(chunks ...AudioChunk) MockSourceOption {
	return func(m *MockSource) { m.script = append(m.script, chunks...) }
}

// NewMockSource creates a mock microphone.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{cfg: cfg, logger: logger, out: make(chan AudioChunk)}
	close(m.out)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins playback of the script. The script plays once.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}
	m.running = true
	m.out = make(chan AudioChunk, 8)
	m.stop = make(chan struct{})
	script := m.script
	m.script = nil
	go m.play(ctx, m.out, m.stop, script)
	return nil
}

func (m *MockSource) play(ctx context.Context, out chan<- AudioChunk, stop chan struct{}, script []AudioChunk) {
	defer func() {
		close(out)
		m.mu.Lock()
		if m.stop == stop {
			m.running = false
		}
		m.mu.Unlock()
	}()

	for _, c := range script {
		select {
		case out <- c:
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			silence := AudioChunk{
				Samples:    make([]int16, m.cfg.BufferSize()*m.cfg.Channels),
				SampleRate: m.cfg.SampleRate,
				Channels:   m.cfg.Channels,
			}
			select {
			case out <- silence:
			default:
			}
		case <-ctx.Done():
			return
		case <-stop:
			return
		}
	}
}

// Stop ends capture. Pending Reads return io.EOF.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		m.running = false
		close(m.stop)
	}
	return nil
}

// Read returns the next chunk, or io.EOF when capture has ended.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	m.mu.Lock()
	out := m.out
	m.mu.Unlock()

	select {
	case c, ok := <-out:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return c, nil
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	}
}

// Config returns the configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return string(BackendMock) }

// Close stops capture for good.
func (m *MockSource) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// MockSink records everything written to it.
type MockSink struct {
	// WriteFunc, if set, runs before a chunk is accepted; an error fails
	// the write.
	WriteFunc func(ctx context.Context, chunk AudioChunk) error

	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	written []AudioChunk
	clears  int
	running bool
	closed  bool
}

// NewMockSink creates a mock speaker.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start accepts writes until Stop.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop rejects further writes.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// Write records chunk.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	if m.WriteFunc != nil {
		if err := m.WriteFunc(ctx, chunk); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return io.ErrClosedPipe
	}
	m.written = append(m.written, chunk)
	return nil
}

// Flush returns immediately; nothing is buffered.
func (m *MockSink) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Clear counts barge-ins.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	m.clears++
	m.mu.Unlock()
	m.logger.Debug("mock sink cleared")
	return nil
}

// Written returns every accepted chunk.
func (m *MockSink) Written() []AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AudioChunk(nil), m.written...)
}

// Clears returns how many times Clear was called.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Config returns the configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return string(BackendMock) }

// Close stops the sink for good.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.running = false
	m.mu.Unlock()
	return nil
}

var (
	_ Source = (*MockSource)(nil)
	_ Sink   = (*MockSink)(nil)
)
