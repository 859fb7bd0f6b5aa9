package stt

import (
	"time"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
)

// Segmenter splits a mono PCM16 stream into utterances by loudness. An
// utterance opens on the first chunk at or above MinLevel and closes after
// Hangover of quiet, or when it reaches MaxUtterance.
type Segmenter struct {
	rate     int
	minLevel float64
	hangover int // samples
	minLen   int // samples
	maxLen   int // samples
	preRoll  int // samples

	active  bool
	buf     []int16
	quiet   int
	started time.Time
}

// NewSegmenter creates a segmenter for audio at rate Hz.
func NewSegmenter(cfg Config, rate int) *Segmenter {
	samples := func(d time.Duration) int {
		return int(int64(rate) * int64(d) / int64(time.Second))
	}
	return &Segmenter{
		rate:     rate,
		minLevel: cfg.MinLevel,
		hangover: samples(cfg.Hangover),
		minLen:   samples(cfg.MinUtterance),
		maxLen:   samples(cfg.MaxUtterance),
		preRoll:  samples(cfg.PreRoll),
	}
}

// Active reports whether an utterance is open.
func (s *Segmenter) Active() bool {
	return s.active
}

// Push feeds one chunk and returns an utterance when one closes.
func (s *Segmenter) Push(samples []int16, now time.Time) (Utterance, bool) {
	loud := audioio.CalculateRMS(samples) >= s.minLevel

	if !s.active {
		s.buf = append(s.buf, samples...)
		if !loud {
			if over := len(s.buf) - s.preRoll; over > 0 {
				s.buf = append(s.buf[:0], s.buf[over:]...)
			}
			return Utterance{}, false
		}
		s.active = true
		s.quiet = 0
		s.started = now.Add(-time.Duration(len(s.buf)) * time.Second / time.Duration(s.rate))
		return Utterance{}, false
	}

	s.buf = append(s.buf, samples...)
	if loud {
		s.quiet = 0
	} else {
		s.quiet += len(samples)
	}

	if s.quiet >= s.hangover || len(s.buf) >= s.maxLen {
		return s.close()
	}
	return Utterance{}, false
}

// Flush closes any open utterance.
func (s *Segmenter) Flush() (Utterance, bool) {
	if !s.active {
		s.buf = s.buf[:0]
		return Utterance{}, false
	}
	return s.close()
}

func (s *Segmenter) close() (Utterance, bool) {
	// Trailing quiet beyond a short tail carries no speech.
	end := len(s.buf)
	if tail := s.quiet - s.preRoll; tail > 0 {
		end -= tail
	}

	u := Utterance{
		Samples:    append([]int16(nil), s.buf[:end]...),
		SampleRate: s.rate,
		Start:      s.started,
	}

	s.active = false
	s.quiet = 0
	s.buf = s.buf[:0]

	if end < s.minLen {
		return Utterance{}, false
	}
	return u, true
}
