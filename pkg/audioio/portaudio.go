package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// findDevice returns the first device whose name contains name and that
// has channels in the requested direction. An empty name selects the
// host default.
func findDevice(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(name)
	for _, d := range devices {
		if input && d.MaxInputChannels == 0 {
			continue
		}
		if !input && d.MaxOutputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), want) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

func openStream(cfg Config, input bool, buf []int16) (*portaudio.Stream, error) {
	dev, err := findDevice(cfg.Device, input)
	if err != nil {
		return nil, err
	}

	var p portaudio.StreamParameters
	if input {
		p = portaudio.LowLatencyParameters(dev, nil)
		p.Input.Channels = cfg.Channels
	} else {
		p = portaudio.HighLatencyParameters(nil, dev)
		p.Output.Channels = cfg.Channels
	}
	p.SampleRate = float64(cfg.SampleRate)
	p.FramesPerBuffer = cfg.BufferSize()

	return portaudio.OpenStream(p, buf)
}

// portaudioSource captures microphone audio with a blocking PortAudio stream.
type portaudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
	done     chan struct{}

	overruns atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (*portaudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &portaudioSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 32),
	}, nil
}

// Start opens the input stream and begins capture.
func (s *portaudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	buf := make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := openStream(s.cfg, true, buf)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.running = true
	s.streamCh = make(chan AudioChunk, 32)
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})

	go s.captureLoop(ctx, stream, buf, s.streamCh, s.stopCh, s.done)

	s.logger.Info("portaudio source started",
		"device", s.cfg.Device,
		"sample_rate", s.cfg.SampleRate,
		"frames", len(buf),
	)
	return nil
}

func (s *portaudioSource) captureLoop(ctx context.Context, stream *portaudio.Stream, buf []int16, out chan AudioChunk, stop, done chan struct{}) {
	defer close(done)
	defer close(out)
	defer func() {
		stream.Stop()
		stream.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				s.overruns.Add(1)
				continue
			}
			s.logger.Warn("portaudio read failed", "error", err)
			return
		}

		chunk := AudioChunk{
			Samples:    append([]int16(nil), buf...),
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		}
		select {
		case out <- chunk:
		default:
			s.overruns.Add(1)
		}
	}
}

// Stop halts capture and waits for the stream to close.
func (s *portaudioSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("portaudio source stopped", "overruns", s.overruns.Load())
	return nil
}

// Read returns the next captured chunk.
func (s *portaudioSource) Read(ctx context.Context) (AudioChunk, error) {
	s.mu.Lock()
	ch := s.streamCh
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}

func (s *portaudioSource) Config() Config { return s.cfg }

func (s *portaudioSource) Name() string { return string(BackendPortAudio) }

// Close stops capture and releases PortAudio.
func (s *portaudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return portaudio.Terminate()
}

var _ Source = (*portaudioSource)(nil)

// portaudioSink plays audio with a blocking PortAudio stream.
type portaudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	running bool
	closed  bool

	// writeMu serializes Write calls. epoch is bumped by Clear so an
	// in-flight Write stops between buffers.
	writeMu sync.Mutex
	epoch   atomic.Uint64

	underruns atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (*portaudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}
	return &portaudioSink{cfg: cfg, logger: logger}, nil
}

// Start opens the output stream.
func (s *portaudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	buf := make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := openStream(s.cfg, false, buf)
	if err != nil {
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start output stream: %w", err)
	}

	s.stream = stream
	s.buf = buf
	s.running = true
	s.logger.Info("portaudio sink started", "device", s.cfg.Device, "sample_rate", s.cfg.SampleRate)
	return nil
}

// Stop closes the output stream. Pending writes are abandoned.
func (s *portaudioSink) Stop() error {
	s.epoch.Add(1)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	err := s.stream.Stop()
	s.stream.Close()
	s.stream = nil
	s.logger.Info("portaudio sink stopped", "underruns", s.underruns.Load())
	return err
}

// Write converts chunk to the sink format and plays it. It returns early,
// without error, when Clear is called during playback.
func (s *portaudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	epoch := s.epoch.Load()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	stream, buf, running := s.stream, s.buf, s.running
	s.mu.Unlock()
	if !running {
		return io.ErrClosedPipe
	}

	samples := conform(chunk, s.cfg)
	for off := 0; off < len(samples); off += len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.epoch.Load() != epoch {
			return nil
		}

		n := copy(buf, samples[off:])
		clear(buf[n:])
		if err := stream.Write(); err != nil {
			if errors.Is(err, portaudio.OutputUnderflowed) {
				s.underruns.Add(1)
				continue
			}
			return fmt.Errorf("portaudio write: %w", err)
		}
	}

	return nil
}

// Flush waits for in-flight writes. Writes block until PortAudio has
// accepted the samples, so nothing else is buffered here.
func (s *portaudioSink) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	s.writeMu.Unlock()
	return ctx.Err()
}

// Clear interrupts the current write.
func (s *portaudioSink) Clear() error {
	s.epoch.Add(1)
	return nil
}

func (s *portaudioSink) Config() Config { return s.cfg }

func (s *portaudioSink) Name() string { return string(BackendPortAudio) }

// Close stops playback and releases PortAudio.
func (s *portaudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return portaudio.Terminate()
}

var _ Sink = (*portaudioSink)(nil)

// conform converts a chunk to the rate and channel count of cfg.
func conform(chunk AudioChunk, cfg Config) []int16 {
	samples := chunk.Samples
	channels := chunk.Channels
	if channels == 0 {
		channels = 1
	}
	if channels == 2 && cfg.Channels == 1 {
		samples = StereoToMono(samples)
		channels = 1
	}
	if chunk.SampleRate > 0 && chunk.SampleRate != cfg.SampleRate {
		if channels == 2 {
			samples = StereoToMono(samples)
			channels = 1
		}
		samples = Resample(samples, chunk.SampleRate, cfg.SampleRate)
	}
	if channels == 1 && cfg.Channels == 2 {
		samples = MonoToStereo(samples)
	}
	return samples
}
