package web

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/voice"
)

// TranscriptFeed is a voice.Recognizer fed by the browser. A page running
// the Web Speech API posts what it hears; each Listen call is one session.
type TranscriptFeed struct {
	mu      sync.Mutex
	current chan voice.Transcript
	dropped int64
}

// NewTranscriptFeed creates an empty feed.
func NewTranscriptFeed() *TranscriptFeed {
	return &TranscriptFeed{}
}

// Listen opens a session. A previous session, if any, is closed. The
// channel is closed when ctx is cancelled.
func (f *TranscriptFeed) Listen(ctx context.Context) (<-chan voice.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan voice.Transcript, 16)
	f.mu.Lock()
	if f.current != nil {
		close(f.current)
	}
	f.current = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if f.current == ch {
			close(ch)
			f.current = nil
		}
		f.mu.Unlock()
	}()
	return ch, nil
}

// Push delivers t to the open session. It reports false when no session is
// open or the session is backed up.
func (f *TranscriptFeed) Push(t voice.Transcript) bool {
	if t.At.IsZero() {
		t.At = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		f.dropped++
		return false
	}
	select {
	case f.current <- t:
		return true
	default:
		f.dropped++
		return false
	}
}

// Listening reports whether a session is open.
func (f *TranscriptFeed) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current != nil
}

// Dropped returns how many pushed transcripts had nowhere to go.
func (f *TranscriptFeed) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

var _ voice.Recognizer = (*TranscriptFeed)(nil)
