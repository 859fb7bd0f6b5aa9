package stt

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/voice"
)

func chunk(samples []int16) audioio.AudioChunk {
	return audioio.AudioChunk{Samples: samples, SampleRate: SampleRate, Channels: 1}
}

// utteranceScript is one loud burst followed by enough quiet to close it.
func utteranceScript() []audioio.AudioChunk {
	var s []audioio.AudioChunk
	for i := 0; i < 4; i++ {
		s = append(s, chunk(loudChunk()))
	}
	for i := 0; i < 4; i++ {
		s = append(s, chunk(quietChunk()))
	}
	return s
}

func newSource(t *testing.T, bursts int) *audioio.MockSource {
	t.Helper()
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.BufferDuration = 2 * time.Millisecond

	var script []audioio.AudioChunk
	for i := 0; i < bursts; i++ {
		script = append(script, utteranceScript()...)
	}
	src := audioio.NewMockSource(cfg, log.Discard(), audioio.WithScript(script...))
	t.Cleanup(func() { src.Close() })
	return src
}

func receive(t *testing.T, ch <-chan voice.Transcript) voice.Transcript {
	t.Helper()
	select {
	case tr, ok := <-ch:
		require.True(t, ok, "transcript channel closed")
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript")
	}
	return voice.Transcript{}
}

func TestListenerDeliversTranscripts(t *testing.T) {
	tr := &MockTranscriber{Texts: []string{"  start camera  "}}
	l := NewListener(newSource(t, 1), tr, &MockDetector{}, segConfig(), log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.Listen(ctx)
	require.NoError(t, err)

	got := receive(t, ch)
	assert.Equal(t, "start camera", got.Text)
	assert.True(t, got.Final)
	assert.NoError(t, got.Err)

	calls := tr.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, SampleRate, calls[0].SampleRate)

	stats := l.Stats()
	assert.Equal(t, int64(1), stats.Utterances)
	assert.Equal(t, int64(1), stats.Transcripts)
	assert.Equal(t, "start camera", stats.LastText)

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}

func TestListenerSkipsNonSpeech(t *testing.T) {
	tr := &MockTranscriber{}
	vad := &MockDetector{DetectFunc: func([]float32) (bool, error) { return false, nil }}
	l := NewListener(newSource(t, 2), tr, vad, segConfig(), log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := l.Listen(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return l.Stats().Rejected == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, tr.Calls())
}

func TestListenerReportsTranscriberErrors(t *testing.T) {
	calls := 0
	tr := &MockTranscriber{TranscribeFunc: func(ctx context.Context, u Utterance) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("backend unavailable")
		}
		return "stop camera", nil
	}}
	l := NewListener(newSource(t, 2), tr, nil, segConfig(), log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := l.Listen(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Error(t, first.Err)

	second := receive(t, ch)
	assert.Equal(t, "stop camera", second.Text)
	assert.Equal(t, int64(1), l.Stats().Failures)
}

// failingSource plays its script for n reads, then fails every Read.
type failingSource struct {
	*audioio.MockSource
	n   int
	err error
}

func (s *failingSource) Read(ctx context.Context) (audioio.AudioChunk, error) {
	if s.n <= 0 {
		return audioio.AudioChunk{}, s.err
	}
	s.n--
	return s.MockSource.Read(ctx)
}

func TestListenerReportsReadErrorLast(t *testing.T) {
	src := &failingSource{MockSource: newSource(t, 1), n: len(utteranceScript()), err: errors.New("device unplugged")}
	tr := &MockTranscriber{Texts: []string{"start camera"}}
	l := NewListener(src, tr, nil, segConfig(), log.Discard())

	ch, err := l.Listen(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "start camera", receive(t, ch).Text)
	last := receive(t, ch)
	assert.EqualError(t, last.Err, "device unplugged")

	_, open := <-ch
	assert.False(t, open, "session ends after a read failure")
}

func TestListenerCancelDuringTranscribe(t *testing.T) {
	entered := make(chan struct{})
	tr := &MockTranscriber{TranscribeFunc: func(ctx context.Context, u Utterance) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	src := &failingSource{MockSource: newSource(t, 1), n: len(utteranceScript()), err: errors.New("device unplugged")}
	l := NewListener(src, tr, nil, segConfig(), log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := l.Listen(ctx)
	require.NoError(t, err)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("transcriber was not called")
	}
	cancel()

	for range ch {
	}
}

func TestListenerStartError(t *testing.T) {
	src := newSource(t, 0)
	src.Close()

	l := NewListener(src, &MockTranscriber{}, nil, segConfig(), log.Discard())
	_, err := l.Listen(context.Background())
	assert.Error(t, err)
}

func TestListenerDrivesInterpreter(t *testing.T) {
	cam := camera.NewManager(&camera.MockDevice{}, camera.LegacyConfig(), log.Discard())
	tr := &MockTranscriber{Texts: []string{"Could you please Start Camera"}}
	l := NewListener(newSource(t, 1), tr, &MockDetector{}, segConfig(), log.Discard())

	interp := voice.NewInterpreter(l, cam, voice.DefaultConfig(), log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go interp.Run(ctx)

	require.Eventually(t, func() bool { return cam.State() == camera.On }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "start_camera", interp.Metrics().Snapshot().LastCommand)
}
