// Package audioio moves PCM16 audio between moodcam and the sound card:
// microphone capture for speech recognition and speaker playback for
// spoken feedback. PortAudio drives real devices; the mock backend stands
// in for them in tests and on headless machines.
package audioio

import (
	"fmt"
	"time"
)

// Backend names an audio implementation.
type Backend string

// Backends.
const (
	BackendAuto      Backend = "auto" // PortAudio
	BackendPortAudio Backend = "portaudio"
	BackendMock      Backend = "mock"
)

// Config describes one capture or playback stream.
type Config struct {
	Backend    Backend `yaml:"backend" json:"backend"`
	SampleRate int     `yaml:"sample_rate" json:"sample_rate"` // Hz
	Channels   int     `yaml:"channels" json:"channels"`       // 1 or 2

	// BufferDuration is the period of one device buffer.
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// Device is matched case-insensitively against device names. Empty
	// picks the system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig is 16 kHz mono capture in 32 ms buffers, one Silero
// window per buffer.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 32 * time.Millisecond,
	}
}

// PlaybackConfig is 24 kHz mono output, the native rate of the speech
// providers.
func PlaybackConfig() Config {
	cfg := DefaultConfig()
	cfg.SampleRate = 24000
	cfg.BufferDuration = 20 * time.Millisecond
	return cfg
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", BackendAuto, BackendPortAudio, BackendMock:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	case c.Channels != 1 && c.Channels != 2:
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	case c.BufferDuration <= 0:
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize is the number of frames in one device buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

func (c *Config) backend() Backend {
	if c.Backend == "" || c.Backend == BackendAuto {
		return BackendPortAudio
	}
	return c.Backend
}
