package tts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
)

// SpeakerStats counts speaker activity.
type SpeakerStats struct {
	Queued    int64     `json:"queued"`
	Spoken    int64     `json:"spoken"`
	Cancelled int64     `json:"cancelled"`
	Dropped   int64     `json:"dropped"`
	Failed    int64     `json:"failed"`
	Speaking  bool      `json:"speaking"`
	LastText  string    `json:"last_text,omitempty"`
	LastAt    time.Time `json:"last_at,omitempty"`
}

type phrase struct {
	text  string
	epoch uint64
}

// Speaker plays phrases one at a time. Speak never blocks; CancelAll
// abandons the phrase being synthesized or played and empties the queue.
type Speaker struct {
	provider Provider
	sink     audioio.Sink
	logger   *slog.Logger

	queue chan phrase

	mu      sync.Mutex
	epoch   uint64
	cancel  context.CancelFunc
	stats   SpeakerStats
	onSpeak func(text string)
}

// NewSpeaker creates a speaker. Call Run to start playback.
func NewSpeaker(provider Provider, sink audioio.Sink, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Speaker{
		provider: provider,
		sink:     sink,
		logger:   logger.With("component", "tts.speaker"),
		queue:    make(chan phrase, 8),
	}
}

// OnSpeak sets a callback fired after a phrase finishes playing.
func (s *Speaker) OnSpeak(fn func(text string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSpeak = fn
}

// Speak queues text. When the queue is full the oldest phrase is dropped.
func (s *Speaker) Speak(text string) {
	if text == "" {
		return
	}

	s.mu.Lock()
	p := phrase{text: text, epoch: s.epoch}
	s.stats.Queued++
	s.mu.Unlock()

	for {
		select {
		case s.queue <- p:
			return
		default:
		}
		select {
		case old := <-s.queue:
			s.logger.Debug("speech queue full, dropping", "text", old.text)
			s.count(func(st *SpeakerStats) { st.Dropped++ })
		default:
		}
	}
}

// CancelAll stops the current phrase and discards queued ones.
func (s *Speaker) CancelAll() {
	s.mu.Lock()
	s.epoch++
	cancel := s.cancel
	s.cancel = nil
	s.stats.Cancelled++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
drain:
	for {
		select {
		case <-s.queue:
		default:
			break drain
		}
	}
	if err := s.sink.Clear(); err != nil {
		s.logger.Debug("sink clear failed", "error", err)
	}
}

// Run plays queued phrases until ctx is cancelled.
func (s *Speaker) Run(ctx context.Context) error {
	if err := s.sink.Start(ctx); err != nil {
		return err
	}
	defer s.sink.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-s.queue:
			s.say(ctx, p)
		}
	}
}

func (s *Speaker) say(ctx context.Context, p phrase) {
	s.mu.Lock()
	if p.epoch != s.epoch {
		s.mu.Unlock()
		return
	}
	sctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stats.Speaking = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.stats.Speaking = false
		s.mu.Unlock()
		cancel()
	}()

	result, err := s.provider.Synthesize(sctx, p.text)
	if err != nil {
		if sctx.Err() == nil {
			s.count(func(st *SpeakerStats) { st.Failed++ })
			s.logger.Warn("synthesis failed", "text", p.text, "error", err)
		}
		return
	}

	chunk, err := Decode(result)
	if err != nil {
		s.count(func(st *SpeakerStats) { st.Failed++ })
		s.logger.Warn("decode failed", "error", err)
		return
	}

	if err := s.sink.Write(sctx, chunk); err != nil {
		if sctx.Err() == nil {
			s.count(func(st *SpeakerStats) { st.Failed++ })
			s.logger.Warn("playback failed", "error", err)
		}
		return
	}
	if err := s.sink.Flush(sctx); err != nil || s.stale(p.epoch) {
		return
	}

	s.mu.Lock()
	s.stats.Spoken++
	s.stats.LastText = p.text
	s.stats.LastAt = time.Now()
	fn := s.onSpeak
	s.mu.Unlock()

	s.logger.Debug("spoke", "text", p.text, "latency_ms", result.LatencyMs)
	if fn != nil {
		fn(p.text)
	}
}

func (s *Speaker) stale(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch != s.epoch
}

// Stats returns a snapshot of speaker counters.
func (s *Speaker) Stats() SpeakerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Speaker) count(fn func(*SpeakerStats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}
