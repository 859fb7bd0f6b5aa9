package stt

import (
	"testing"
	"time"
)

const chunkLen = 512

func loudChunk() []int16 {
	c := make([]int16, chunkLen)
	for i := range c {
		c[i] = 10000
	}
	return c
}

func quietChunk() []int16 {
	return make([]int16, chunkLen)
}

func segConfig() Config {
	cfg := DefaultConfig()
	cfg.MinLevel = 0.1
	cfg.Hangover = 100 * time.Millisecond    // 1600 samples
	cfg.MinUtterance = 50 * time.Millisecond // 800 samples
	cfg.MaxUtterance = time.Second           // 16000 samples
	cfg.PreRoll = 32 * time.Millisecond      // 512 samples
	return cfg
}

func TestSegmenterClosesAfterHangover(t *testing.T) {
	seg := NewSegmenter(segConfig(), SampleRate)
	now := time.Now()

	for i := 0; i < 3; i++ {
		if _, ok := seg.Push(quietChunk(), now); ok {
			t.Fatal("quiet audio produced an utterance")
		}
	}
	if seg.Active() {
		t.Fatal("segmenter active before any loud chunk")
	}

	for i := 0; i < 4; i++ {
		if _, ok := seg.Push(loudChunk(), now); ok {
			t.Fatal("utterance closed while loud")
		}
	}
	if !seg.Active() {
		t.Fatal("segmenter not active after loud chunks")
	}

	var (
		u  Utterance
		ok bool
	)
	for i := 0; i < 4 && !ok; i++ {
		u, ok = seg.Push(quietChunk(), now)
	}
	if !ok {
		t.Fatal("utterance did not close after hangover")
	}

	// pre-roll + 4 loud chunks + one chunk of trailing quiet
	if got, want := len(u.Samples), 512+4*chunkLen+512; got != want {
		t.Errorf("utterance samples: got %d, want %d", got, want)
	}
	if u.SampleRate != SampleRate {
		t.Errorf("sample rate: got %d, want %d", u.SampleRate, SampleRate)
	}
	if seg.Active() {
		t.Error("segmenter still active after close")
	}
}

func TestSegmenterDropsShortBursts(t *testing.T) {
	cfg := segConfig()
	cfg.MinUtterance = 100 * time.Millisecond // 1600 samples
	seg := NewSegmenter(cfg, SampleRate)
	now := time.Now()

	seg.Push(loudChunk(), now)
	for i := 0; i < 4; i++ {
		if _, ok := seg.Push(quietChunk(), now); ok {
			t.Fatal("short burst produced an utterance")
		}
	}
	if seg.Active() {
		t.Error("segmenter still active after dropping burst")
	}
}

func TestSegmenterCapsLength(t *testing.T) {
	seg := NewSegmenter(segConfig(), SampleRate)
	now := time.Now()

	var closedAt int
	var u Utterance
	for i := 1; i <= 40; i++ {
		if got, ok := seg.Push(loudChunk(), now); ok {
			closedAt, u = i, got
			break
		}
	}
	if closedAt != 32 {
		t.Fatalf("closed at chunk %d, want 32", closedAt)
	}
	if len(u.Samples) != 32*chunkLen {
		t.Errorf("samples: got %d, want %d", len(u.Samples), 32*chunkLen)
	}
}

func TestSegmenterFlush(t *testing.T) {
	seg := NewSegmenter(segConfig(), SampleRate)
	now := time.Now()

	if _, ok := seg.Flush(); ok {
		t.Error("Flush of idle segmenter returned an utterance")
	}

	seg.Push(loudChunk(), now)
	seg.Push(loudChunk(), now)
	u, ok := seg.Flush()
	if !ok {
		t.Fatal("Flush did not return the open utterance")
	}
	if len(u.Samples) != 2*chunkLen {
		t.Errorf("samples: got %d, want %d", len(u.Samples), 2*chunkLen)
	}
}

func TestUtteranceDuration(t *testing.T) {
	u := Utterance{Samples: make([]int16, 8000), SampleRate: SampleRate}
	if got := u.Duration(); got != 500*time.Millisecond {
		t.Errorf("Duration: got %v, want 500ms", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"google", func(c *Config) { c.Backend = BackendGoogle }, false},
		{"unknown backend", func(c *Config) { c.Backend = "vosk" }, true},
		{"negative level", func(c *Config) { c.MinLevel = -0.1 }, true},
		{"zero hangover", func(c *Config) { c.Hangover = 0 }, true},
		{"max below min", func(c *Config) { c.MaxUtterance = c.MinUtterance }, true},
		{"whisper without model", func(c *Config) { c.WhisperModel = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrimaryLanguage(t *testing.T) {
	for in, want := range map[string]string{"en-US": "en", "de_DE": "de", "fr": "fr", "": ""} {
		if got := primaryLanguage(in); got != want {
			t.Errorf("primaryLanguage(%q): got %q, want %q", in, got, want)
		}
	}
}
