package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/teslashibe/go-moodcam/internal/config"
	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/stt"
	"github.com/teslashibe/go-moodcam/pkg/stt/silero"
	"github.com/teslashibe/go-moodcam/pkg/stt/whisper"
	"github.com/teslashibe/go-moodcam/pkg/tts"
)

// newTranscriber builds the configured speech-to-text backend. The closer
// is nil when the backend holds no native resources.
func newTranscriber(ctx context.Context, cfg *config.Config) (stt.Transcriber, io.Closer, error) {
	switch cfg.STT.Backend {
	case stt.BackendWhisper:
		t, err := whisper.New(cfg.STT.WhisperModel, cfg.STT.PrimaryLanguage())
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	case stt.BackendGoogle:
		t, err := stt.NewGoogle(ctx, cfg.GoogleAPIKey, cfg.STT)
		return t, nil, err
	case stt.BackendOpenAI:
		t, err := stt.NewOpenAI(cfg.OpenAIKey, "", cfg.STT)
		return t, nil, err
	case stt.BackendMock:
		return &stt.MockTranscriber{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("stt: unknown backend %q", cfg.STT.Backend)
	}
}

// newVoiceDetector loads the Silero gate. Without it every loud utterance
// is transcribed, so a missing model is logged rather than fatal.
func newVoiceDetector(cfg *config.Config, logger *slog.Logger) (stt.VoiceDetector, io.Closer) {
	if cfg.STT.VADModel == "" {
		return nil, nil
	}
	d, err := silero.New(cfg.STT.VADModel, cfg.STT.VADThreshold)
	if err != nil {
		logger.Warn("speech gate disabled", "model", cfg.STT.VADModel, "error", err)
		return nil, nil
	}
	return d, d
}

// newMicrophone builds the microphone recognizer.
func newMicrophone(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stt.Listener, []io.Closer, error) {
	tr, trCloser, err := newTranscriber(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("transcriber: %w", err)
	}

	src, err := audioio.NewSource(cfg.Audio, logger)
	if err != nil {
		if trCloser != nil {
			trCloser.Close()
		}
		return nil, nil, fmt.Errorf("microphone: %w", err)
	}

	closers := []io.Closer{src}
	if trCloser != nil {
		closers = append(closers, trCloser)
	}
	vad, vadCloser := newVoiceDetector(cfg, logger)
	if vadCloser != nil {
		closers = append(closers, vadCloser)
	}

	logger.Info("microphone recognizer", "backend", tr.Name(), "speech_gate", vad != nil)
	return stt.NewListener(src, tr, vad, cfg.STT, logger), closers, nil
}

// newSpeechProvider builds the configured providers, chained in order.
// It returns nil when speech is disabled.
func newSpeechProvider(ctx context.Context, cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	common := []tts.Option{
		tts.WithLanguage(cfg.TTS.Language),
		tts.WithSpeed(cfg.TTS.Speed),
		tts.WithLogger(logger),
	}
	if cfg.TTS.Format != "" {
		common = append(common, tts.WithOutputFormat(tts.Encoding(cfg.TTS.Format)))
	}

	var providers []tts.Provider
	for _, name := range cfg.TTS.Providers {
		opts := append([]tts.Option{}, common...)
		var (
			p   tts.Provider
			err error
		)
		switch name {
		case config.TTSOpenAI:
			opts = append(opts, tts.WithAPIKey(cfg.OpenAIKey))
			if cfg.TTS.OpenAIVoice != "" {
				opts = append(opts, tts.WithVoice(cfg.TTS.OpenAIVoice))
			}
			if cfg.TTS.OpenAIModel != "" {
				opts = append(opts, tts.WithModel(cfg.TTS.OpenAIModel))
			}
			p, err = tts.NewOpenAI(opts...)
		case config.TTSGoogle:
			if cfg.GoogleAPIKey != "" {
				opts = append(opts, tts.WithAPIKey(cfg.GoogleAPIKey))
			}
			if cfg.TTS.GoogleVoice != "" {
				opts = append(opts, tts.WithVoice(cfg.TTS.GoogleVoice))
			}
			p, err = tts.NewGoogle(ctx, opts)
		case config.TTSMock:
			p = tts.NewMock()
		default:
			err = fmt.Errorf("unknown provider %q", name)
		}
		if err != nil {
			return nil, fmt.Errorf("tts %s: %w", name, err)
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		return nil, nil
	case 1:
		return providers[0], nil
	default:
		return tts.NewChain(logger, providers...)
	}
}
