package tts

import (
	"context"
	"sync"
	"time"
)

// Mock is a scriptable Provider. NewMock returns 20 ms of 24 kHz silence
// per character.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, text string) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error
	CloseFunc      func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one method call.
type MockCall struct {
	Method string
	Text   string
	Time   time.Time
}

// NewMock creates a mock that synthesizes silence.
func NewMock() *Mock {
	return &Mock{SynthesizeFunc: silence}
}

func silence(ctx context.Context, text string) (*AudioResult, error) {
	const bytesPerChar = 960 // 480 samples
	return &AudioResult{
		Audio:     make([]byte, len(text)*bytesPerChar),
		Format:    AudioFormat{Encoding: EncodingPCM24, SampleRate: 24000, Channels: 1, BitDepth: 16},
		Duration:  time.Duration(len(text)) * 20 * time.Millisecond,
		CharCount: len(text),
	}, nil
}

// WithError returns a mock whose calls all fail with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, string) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

func (m *Mock) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	m.record("Synthesize", text)
	if m.SynthesizeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, text)
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "")
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.record("Close", "")
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

func (m *Mock) record(method, text string) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Time: time.Now()})
	m.mu.Unlock()
}

// Calls returns the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount counts calls to method.
func (m *Mock) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Texts returns the text of every Synthesize call.
func (m *Mock) Texts() []string {
	var out []string
	for _, c := range m.Calls() {
		if c.Method == "Synthesize" {
			out = append(out, c.Text)
		}
	}
	return out
}

var _ Provider = (*Mock)(nil)
