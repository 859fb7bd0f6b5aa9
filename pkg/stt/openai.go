package stt

import (
	"bytes"
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-moodcam/internal/httpc"
	"github.com/teslashibe/go-moodcam/pkg/audioio"
)

// OpenAI transcribes with the OpenAI audio transcription API.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

// NewOpenAI creates an OpenAI transcriber. baseURL may be empty.
func NewOpenAI(apiKey, baseURL string, cfg Config) (*OpenAI, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	clientConfig := openai.DefaultConfig(apiKey)
	clientConfig.HTTPClient = httpc.New(cfg.Timeout)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
		language: cfg.PrimaryLanguage(),
	}, nil
}

// Transcribe uploads the utterance as WAV.
func (o *OpenAI) Transcribe(ctx context.Context, u Utterance) (string, error) {
	if len(u.Samples) == 0 {
		return "", ErrEmptyAudio
	}

	wav, err := audioio.EncodeWAV(u.Chunk())
	if err != nil {
		return "", &TranscribeError{Backend: o.Name(), Err: err}
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: "utterance.wav",
		Reader:   bytes.NewReader(wav),
		Language: o.language,
	})
	if err != nil {
		return "", &TranscribeError{Backend: o.Name(), Err: err}
	}
	return resp.Text, nil
}

// Name returns "openai".
func (o *OpenAI) Name() string { return BackendOpenAI }

var _ Transcriber = (*OpenAI)(nil)
