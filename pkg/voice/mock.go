package voice

import (
	"context"
	"sync"
)

// MockSession scripts one recognizer session.
type MockSession struct {
	ListenErr   error        // Returned by Listen instead of a channel
	Transcripts []Transcript // Delivered in order, then the channel closes
	KeepOpen    bool         // Leave the channel open until ctx is cancelled
}

// MockRecognizer implements Recognizer for testing. Each Listen call plays
// the next scripted session. After the script runs out, Listen returns a
// session that stays open until ctx is cancelled.
type MockRecognizer struct {
	mu       sync.Mutex
	sessions []MockSession
	listens  int
}

// NewMockRecognizer creates a recognizer playing sessions in order.
func NewMockRecognizer(sessions ...MockSession) *MockRecognizer {
	return &MockRecognizer{sessions: sessions}
}

// Listen plays the next session.
func (m *MockRecognizer) Listen(ctx context.Context) (<-chan Transcript, error) {
	m.mu.Lock()
	idx := m.listens
	m.listens++
	var s MockSession
	if idx < len(m.sessions) {
		s = m.sessions[idx]
	} else {
		s = MockSession{KeepOpen: true}
	}
	m.mu.Unlock()

	if s.ListenErr != nil {
		return nil, s.ListenErr
	}

	ch := make(chan Transcript)
	go func() {
		defer close(ch)
		for _, t := range s.Transcripts {
			select {
			case ch <- t:
			case <-ctx.Done():
				return
			}
		}
		if s.KeepOpen {
			<-ctx.Done()
		}
	}()
	return ch, nil
}

// Listens returns how many sessions were opened.
func (m *MockRecognizer) Listens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listens
}

var _ Recognizer = (*MockRecognizer)(nil)
