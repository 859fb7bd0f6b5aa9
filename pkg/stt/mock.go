package stt

import (
	"context"
	"sync"
)

// MockTranscriber implements Transcriber for testing.
type MockTranscriber struct {
	// TranscribeFunc, if set, produces the result. Otherwise Texts are
	// returned in order, then "".
	TranscribeFunc func(ctx context.Context, u Utterance) (string, error)
	Texts          []string

	mu    sync.Mutex
	calls []Utterance
}

// Transcribe records the call.
func (m *MockTranscriber) Transcribe(ctx context.Context, u Utterance) (string, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, u)
	fn := m.TranscribeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, u)
	}
	if idx < len(m.Texts) {
		return m.Texts[idx], nil
	}
	return "", nil
}

// Name returns "mock".
func (m *MockTranscriber) Name() string { return BackendMock }

// Calls returns the utterances received.
func (m *MockTranscriber) Calls() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.calls...)
}

// MockDetector implements VoiceDetector for testing.
type MockDetector struct {
	DetectFunc func(samples []float32) (bool, error)
}

// DetectVoice reports speech unless DetectFunc says otherwise.
func (m *MockDetector) DetectVoice(samples []float32) (bool, error) {
	if m.DetectFunc != nil {
		return m.DetectFunc(samples)
	}
	return true, nil
}

var (
	_ Transcriber   = (*MockTranscriber)(nil)
	_ VoiceDetector = (*MockDetector)(nil)
)
