package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/voice"
)

// Stats counts listener activity.
type Stats struct {
	Chunks      int64     `json:"chunks"`
	Utterances  int64     `json:"utterances"`
	Rejected    int64     `json:"rejected"` // No speech according to the VAD
	Dropped     int64     `json:"dropped"`  // Transcriber backlog full
	Transcripts int64     `json:"transcripts"`
	Failures    int64     `json:"failures"`
	Level       float64   `json:"level"` // RMS of the latest chunk
	LastText    string    `json:"last_text,omitempty"`
	LastAt      time.Time `json:"last_at,omitempty"`
}

// Listener is a voice.Recognizer over a microphone source.
type Listener struct {
	src    audioio.Source
	tr     Transcriber
	vad    VoiceDetector
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// NewListener creates a listener. vad may be nil to transcribe every
// utterance.
func NewListener(src audioio.Source, tr Transcriber, vad VoiceDetector, cfg Config, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		src:    src,
		tr:     tr,
		vad:    vad,
		cfg:    cfg,
		logger: logger.With("component", "stt", "backend", tr.Name()),
	}
}

// Stats returns a snapshot of listener counters.
func (l *Listener) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Listen starts capture and returns final transcripts until ctx is
// cancelled or the source ends. Transcriber failures are delivered as
// transcripts with Err set and do not end the session.
func (l *Listener) Listen(ctx context.Context) (<-chan voice.Transcript, error) {
	if err := l.src.Start(ctx); err != nil {
		return nil, err
	}

	out := make(chan voice.Transcript, 8)
	utterances := make(chan Utterance, 4)
	readErr := make(chan error, 1)

	go l.capture(ctx, utterances, readErr)
	go l.transcribe(ctx, utterances, readErr, out)

	return out, nil
}

// capture owns utterances and readErr; a read failure is reported through
// readErr before utterances is closed.
func (l *Listener) capture(ctx context.Context, utterances chan<- Utterance, readErr chan<- error) {
	defer close(utterances)
	defer l.src.Stop()

	seg := NewSegmenter(l.cfg, SampleRate)
	for {
		chunk, err := l.src.Read(ctx)
		if err != nil {
			if u, ok := seg.Flush(); ok && ctx.Err() == nil {
				l.enqueue(u, utterances)
			}
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				l.logger.Warn("microphone read failed", "error", err)
				readErr <- err
			}
			return
		}

		samples := chunk.Mono().Samples
		if chunk.SampleRate != SampleRate {
			samples = audioio.Resample(samples, chunk.SampleRate, SampleRate)
		}

		l.mu.Lock()
		l.stats.Chunks++
		l.stats.Level = audioio.CalculateRMS(samples)
		l.mu.Unlock()

		if u, ok := seg.Push(samples, time.Now()); ok {
			l.enqueue(u, utterances)
		}
	}
}

func (l *Listener) enqueue(u Utterance, utterances chan<- Utterance) {
	select {
	case utterances <- u:
		l.count(func(s *Stats) { s.Utterances++ })
	default:
		l.count(func(s *Stats) { s.Dropped++ })
		l.logger.Warn("transcriber busy, utterance dropped", "duration", u.Duration())
	}
}

// transcribe is the only writer of out.
func (l *Listener) transcribe(ctx context.Context, utterances <-chan Utterance, readErr <-chan error, out chan<- voice.Transcript) {
	defer close(out)
	defer func() {
		select {
		case err := <-readErr:
			select {
			case out <- voice.Transcript{Err: err, At: time.Now()}:
			case <-ctx.Done():
			}
		default:
		}
	}()

	for u := range utterances {
		if l.vad != nil {
			speech, err := l.vad.DetectVoice(u.Float32())
			if err != nil {
				l.logger.Debug("voice detection failed", "error", err)
			} else if !speech {
				l.count(func(s *Stats) { s.Rejected++ })
				continue
			}
		}

		tctx := ctx
		var cancel context.CancelFunc = func() {}
		if l.cfg.Timeout > 0 {
			tctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		}
		start := time.Now()
		text, err := l.tr.Transcribe(tctx, u)
		cancel()

		if ctx.Err() != nil {
			return
		}

		t := voice.Transcript{Final: true, At: time.Now()}
		if err != nil {
			l.count(func(s *Stats) { s.Failures++ })
			l.logger.Warn("transcription failed", "error", err)
			t.Err = err
		} else {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			t.Text = text
			l.count(func(s *Stats) {
				s.Transcripts++
				s.LastText = text
				s.LastAt = t.At
			})
			l.logger.Debug("transcribed", "text", text, "audio", u.Duration(), "took", time.Since(start))
		}

		select {
		case out <- t:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) count(fn func(*Stats)) {
	l.mu.Lock()
	fn(&l.stats)
	l.mu.Unlock()
}

var _ voice.Recognizer = (*Listener)(nil)
