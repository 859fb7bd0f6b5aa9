package stt

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
)

// Google transcribes with Cloud Speech-to-Text v1 synchronous recognition.
type Google struct {
	svc      *speech.Service
	language string
}

// NewGoogle creates a Google transcriber. With an empty apiKey, Application
// Default Credentials are used. Extra client options (endpoint, HTTP
// client) are appended last.
func NewGoogle(ctx context.Context, apiKey string, cfg Config, opts ...option.ClientOption) (*Google, error) {
	var auth []option.ClientOption
	if apiKey != "" {
		auth = append(auth, option.WithAPIKey(apiKey))
	} else if len(opts) == 0 {
		ts, err := google.DefaultTokenSource(ctx, speech.CloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoAPIKey, err)
		}
		auth = append(auth, option.WithTokenSource(ts))
	}

	svc, err := speech.NewService(ctx, append(auth, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("speech service: %w", err)
	}

	lang := cfg.Language
	if lang == "" {
		lang = "en-US"
	}
	return &Google{svc: svc, language: lang}, nil
}

// Transcribe sends the utterance as LINEAR16 and joins the top
// alternatives.
func (g *Google) Transcribe(ctx context.Context, u Utterance) (string, error) {
	if len(u.Samples) == 0 {
		return "", ErrEmptyAudio
	}

	req := &speech.RecognizeRequest{
		Config: &speech.RecognitionConfig{
			Encoding:        "LINEAR16",
			SampleRateHertz: int64(u.SampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speech.RecognitionAudio{
			Content: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(u.Samples)),
		},
	}

	resp, err := g.svc.Speech.Recognize(req).Context(ctx).Do()
	if err != nil {
		return "", &TranscribeError{Backend: g.Name(), Err: err}
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(r.Alternatives[0].Transcript))
		}
	}
	return strings.Join(parts, " "), nil
}

// Name returns "google".
func (g *Google) Name() string { return BackendGoogle }

var _ Transcriber = (*Google)(nil)
