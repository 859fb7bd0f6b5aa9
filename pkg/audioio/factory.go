package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource opens a capture backend for cfg.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio source: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audio.source", "backend", cfg.backend())
	logger.Debug("opening audio source", "sample_rate", cfg.SampleRate, "buffer", cfg.BufferDuration)

	switch cfg.backend() {
	case BackendMock:
		return NewMockSource(cfg, logger), nil
	default:
		return newPortAudioSource(cfg, logger)
	}
}

// NewSink opens a playback backend for cfg.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("audio sink: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audio.sink", "backend", cfg.backend())
	logger.Debug("opening audio sink", "sample_rate", cfg.SampleRate)

	switch cfg.backend() {
	case BackendMock:
		return NewMockSink(cfg, logger), nil
	default:
		return newPortAudioSink(cfg, logger)
	}
}
