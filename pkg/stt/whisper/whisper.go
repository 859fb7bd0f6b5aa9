// Package whisper transcribes utterances locally with whisper.cpp.
package whisper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	wcpp "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/stt"
)

// Transcriber runs a ggml whisper model. A model context is created per
// utterance; calls are serialized.
type Transcriber struct {
	mu       sync.Mutex
	model    wcpp.Model
	language string
}

// New loads the model at path. language is a primary subtag such as "en";
// empty keeps the model default.
func New(path, language string) (*Transcriber, error) {
	model, err := wcpp.New(path)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", path, err)
	}
	return &Transcriber{model: model, language: language}, nil
}

// Transcribe decodes the utterance and joins its segments. Bracketed
// annotations such as "[BLANK_AUDIO]" and repeated segments are dropped.
func (t *Transcriber) Transcribe(ctx context.Context, u stt.Utterance) (string, error) {
	if len(u.Samples) == 0 {
		return "", stt.ErrEmptyAudio
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	samples := u.Samples
	if u.SampleRate != stt.SampleRate {
		samples = audioio.Resample(samples, u.SampleRate, stt.SampleRate)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", &stt.TranscribeError{Backend: t.Name(), Err: err}
	}
	if t.language != "" {
		if err := wctx.SetLanguage(t.language); err != nil {
			return "", &stt.TranscribeError{Backend: t.Name(), Err: err}
		}
	}

	if err := wctx.Process(audioio.Int16ToFloat32(samples), nil); err != nil {
		return "", &stt.TranscribeError{Backend: t.Name(), Err: err}
	}

	seen := make(map[string]bool)
	var parts []string
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &stt.TranscribeError{Backend: t.Name(), Err: err}
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" || annotation(text) || seen[text] {
			continue
		}
		seen[text] = true
		parts = append(parts, text)
	}
	return strings.Join(parts, " "), nil
}

func annotation(text string) bool {
	first, last := text[0], text[len(text)-1]
	return first == '(' || first == '[' || last == ')' || last == ']'
}

// Name returns "whisper".
func (t *Transcriber) Name() string { return stt.BackendWhisper }

// Close releases the model.
func (t *Transcriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model.Close()
}

var _ stt.Transcriber = (*Transcriber)(nil)
