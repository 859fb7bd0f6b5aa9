package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-moodcam/internal/httpc"
)

const providerOpenAI = "openai"

// Voices and models. Shimmer on tts-1 keeps latency low for short phrases.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"

	ModelTTS1   = "tts-1"
	ModelTTS1HD = "tts-1-hd"
)

// openaiFormats maps an output encoding to the API response_format and the
// audio it yields. "pcm" is 24kHz mono PCM16.
var openaiFormats = map[Encoding]struct {
	response openai.SpeechResponseFormat
	format   AudioFormat
}{
	EncodingPCM24: {openai.SpeechResponseFormat("pcm"), AudioFormat{Encoding: EncodingPCM24, SampleRate: 24000, Channels: 1, BitDepth: 16}},
	EncodingMP3:   {openai.SpeechResponseFormat("mp3"), AudioFormat{Encoding: EncodingMP3}},
	EncodingWAV:   {openai.SpeechResponseFormat("wav"), AudioFormat{Encoding: EncodingWAV}},
}

// OpenAI implements Provider for OpenAI TTS.
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI TTS provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceShimmer
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, ok := openaiFormats[cfg.OutputFormat]; !ok {
		return nil, fmt.Errorf("%w: openai cannot produce %s", ErrUnsupportedEncoding, cfg.OutputFormat)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.HTTPClient = httpc.New(cfg.Timeout)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize converts text to audio, returning the complete audio buffer.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	start := time.Now()

	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.ModelID),
		Input:          text,
		Voice:          openai.SpeechVoice(o.config.VoiceID),
		ResponseFormat: openaiFormats[o.config.OutputFormat].response,
		Speed:          o.config.Speed,
	}

	audio, err := o.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.VoiceID,
	)

	format := openaiFormats[o.config.OutputFormat].format
	result := &AudioResult{
		Audio:     audio,
		Format:    format,
		CharCount: len(text),
		LatencyMs: latency,
	}
	if format.Encoding == EncodingPCM24 {
		result.Duration = time.Duration(len(audio)/2) * time.Second / 24000
	}
	return result, nil
}

// doWithRetry performs the request, retrying rate limits and server errors.
func (o *OpenAI) doWithRetry(ctx context.Context, req openai.CreateSpeechRequest) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
		}

		resp, err := o.client.CreateSpeech(ctx, req)
		if err != nil {
			lastErr = o.parseError(err)
			var apiErr *APIError
			if errors.As(lastErr, &apiErr) && apiErr.IsRetryable() {
				o.logger.Warn("retrying request", "attempt", attempt+1, "status", apiErr.StatusCode)
				continue
			}
			return nil, lastErr
		}

		audio, err := io.ReadAll(resp)
		resp.Close()
		if err != nil {
			return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
		}
		return audio, nil
	}

	return nil, lastErr
}

// parseError maps client errors to APIError where a status is known.
func (o *OpenAI) parseError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerOpenAI,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Provider:   providerOpenAI,
		}
	}
	return WrapError(providerOpenAI, err)
}

// Health checks API connectivity by listing models.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return o.parseError(err)
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	return nil
}

// Name returns "openai".
func (o *OpenAI) Name() string { return providerOpenAI }

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
