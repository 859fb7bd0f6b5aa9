package tts

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"
)

const providerGoogle = "google"

// Google implements Provider for Cloud Text-to-Speech.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a Google TTS provider. Without an API key, Application
// Default Credentials are used. clientOpts are appended last.
func NewGoogle(ctx context.Context, opts []Option, clientOpts ...option.ClientOption) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	switch cfg.OutputFormat {
	case EncodingPCM24, EncodingPCM16, EncodingWAV, EncodingMP3:
	default:
		return nil, fmt.Errorf("%w: google cannot produce %s", ErrUnsupportedEncoding, cfg.OutputFormat)
	}

	var auth []option.ClientOption
	switch {
	case cfg.APIKey != "":
		auth = append(auth, option.WithAPIKey(cfg.APIKey))
	case len(clientOpts) == 0:
		ts, err := google.DefaultTokenSource(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAPIKey, err)
		}
		auth = append(auth, option.WithTokenSource(ts))
	}

	svc, err := texttospeech.NewService(ctx, append(auth, clientOpts...)...)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize converts text to audio.
func (g *Google) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	encoding, format := g.audioEncoding()
	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.LanguageCode,
			Name:         g.config.VoiceID,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   encoding,
			SampleRateHertz: int64(format.SampleRate),
			SpeakingRate:    g.config.Speed,
		},
	}

	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, g.parseError(err)
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("decode audio content: %w", err))
	}
	latency := time.Since(start).Milliseconds()

	g.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", g.config.VoiceID,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// audioEncoding maps the configured output to the API encoding. LINEAR16
// responses carry a WAV header.
func (g *Google) audioEncoding() (string, AudioFormat) {
	rate := g.config.SampleRate
	if r := SampleRateFromEncoding(g.config.OutputFormat); r > 0 {
		rate = r
	}
	if g.config.OutputFormat == EncodingMP3 {
		return "MP3", AudioFormat{Encoding: EncodingMP3, SampleRate: rate}
	}
	return "LINEAR16", AudioFormat{Encoding: EncodingWAV, SampleRate: rate, Channels: 1, BitDepth: 16}
}

func (g *Google) parseError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// Health lists voices for the configured language.
func (g *Google) Health(ctx context.Context) error {
	if _, err := g.svc.Voices.List().LanguageCode(g.config.LanguageCode).Context(ctx).Do(); err != nil {
		return g.parseError(err)
	}
	return nil
}

// Close releases resources.
func (g *Google) Close() error {
	return nil
}

// Name returns "google".
func (g *Google) Name() string { return providerGoogle }

// Verify Google implements Provider at compile time.
var _ Provider = (*Google)(nil)
