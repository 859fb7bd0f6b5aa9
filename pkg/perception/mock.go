package perception

import (
	"context"
	"sync"
	"time"
)

// MockFaceProvider implements FaceProvider for testing.
type MockFaceProvider struct {
	// DetectFunc is called for each frame. If nil, no faces are returned.
	DetectFunc func(ctx context.Context, frame Frame) ([]FaceDetection, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockObjectProvider implements ObjectProvider for testing.
type MockObjectProvider struct {
	// DetectFunc is called for each frame. If nil, no objects are returned.
	DetectFunc func(ctx context.Context, frame Frame) ([]ObjectDetection, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a provider invocation.
type MockCall struct {
	Seq   uint64
	Start time.Time
	End   time.Time
}

// DetectFaces calls DetectFunc and records the call.
func (m *MockFaceProvider) DetectFaces(ctx context.Context, frame Frame) ([]FaceDetection, error) {
	start := time.Now()
	var (
		faces []FaceDetection
		err   error
	)
	if m.DetectFunc != nil {
		faces, err = m.DetectFunc(ctx, frame)
	}
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Seq: frame.Seq, Start: start, End: time.Now()})
	m.mu.Unlock()
	return faces, err
}

// Calls returns all recorded calls.
func (m *MockFaceProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (m *MockFaceProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// DetectObjects calls DetectFunc and records the call.
func (m *MockObjectProvider) DetectObjects(ctx context.Context, frame Frame) ([]ObjectDetection, error) {
	start := time.Now()
	var (
		objs []ObjectDetection
		err  error
	)
	if m.DetectFunc != nil {
		objs, err = m.DetectFunc(ctx, frame)
	}
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Seq: frame.Seq, Start: start, End: time.Now()})
	m.mu.Unlock()
	return objs, err
}

// Calls returns all recorded calls.
func (m *MockObjectProvider) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (m *MockObjectProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var (
	_ FaceProvider   = (*MockFaceProvider)(nil)
	_ ObjectProvider = (*MockObjectProvider)(nil)
)
