package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is interleaved PCM16 audio.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int // 0 means mono
}

// Frames returns the number of sample frames.
func (c AudioChunk) Frames() int {
	if c.Channels > 1 {
		return len(c.Samples) / c.Channels
	}
	return len(c.Samples)
}

// Duration returns the playback length.
func (c AudioChunk) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Mono downmixes stereo chunks. Mono chunks are returned as is.
func (c AudioChunk) Mono() AudioChunk {
	if c.Channels != 2 {
		return c
	}
	return AudioChunk{Samples: StereoToMono(c.Samples), SampleRate: c.SampleRate, Channels: 1}
}

// Source captures audio. Read returns io.EOF once capture has ended.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Read(ctx context.Context) (AudioChunk, error)
	Config() Config
	Name() string
	io.Closer
}

// Sink plays audio. Write may block until the device accepts the samples.
// Clear abandons whatever is buffered or being written, for barge-in.
type Sink interface {
	Start(ctx context.Context) error
	Stop() error
	Write(ctx context.Context, chunk AudioChunk) error
	Flush(ctx context.Context) error
	Clear() error
	Config() Config
	Name() string
	io.Closer
}
