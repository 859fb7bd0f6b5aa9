package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/tts"
)

func newSink() *audioio.MockSink {
	return audioio.NewMockSink(audioio.PlaybackConfig(), log.Discard())
}

func runSpeaker(t *testing.T, s *tts.Speaker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestSpeakerPlaysPhrase(t *testing.T) {
	sink := newSink()
	s := tts.NewSpeaker(tts.NewMock(), sink, log.Discard())

	var spoken []string
	spokenCh := make(chan string, 1)
	s.OnSpeak(func(text string) { spokenCh <- text })
	runSpeaker(t, s)

	s.Speak("You look happy")

	select {
	case text := <-spokenCh:
		spoken = append(spoken, text)
	case <-time.After(2 * time.Second):
		t.Fatal("phrase was not spoken")
	}
	assert.Equal(t, []string{"You look happy"}, spoken)

	written := sink.Written()
	require.Len(t, written, 1)
	assert.Equal(t, 24000, written[0].SampleRate)
	assert.Len(t, written[0].Samples, len("You look happy")*480)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Spoken)
	assert.Equal(t, "You look happy", stats.LastText)
}

func TestSpeakerCancelAll(t *testing.T) {
	mock := tts.NewMock()
	silent := mock.SynthesizeFunc
	mock.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		if text == "You look sad" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return silent(ctx, text)
	}

	sink := newSink()
	s := tts.NewSpeaker(mock, sink, log.Discard())
	runSpeaker(t, s)

	s.Speak("You look sad")
	require.Eventually(t, func() bool { return s.Stats().Speaking }, 2*time.Second, time.Millisecond)
	s.Speak("You look angry")

	s.CancelAll()
	s.Speak("You look surprised")

	require.Eventually(t, func() bool { return s.Stats().Spoken == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Spoken)
	assert.Equal(t, "You look surprised", stats.LastText)
	assert.Equal(t, int64(0), stats.Failed, "a cancelled phrase is not a failure")
	assert.Equal(t, int64(1), stats.Cancelled)
	assert.Equal(t, 1, sink.Clears())
	assert.Equal(t, 2, mock.CallCount("Synthesize"), "the queued phrase was never synthesized")
}

func TestSpeakerQueueDropsOldest(t *testing.T) {
	s := tts.NewSpeaker(tts.NewMock(), newSink(), log.Discard())

	for i := 0; i < 10; i++ {
		s.Speak("phrase")
	}
	s.Speak("")

	stats := s.Stats()
	assert.Equal(t, int64(10), stats.Queued)
	assert.Equal(t, int64(2), stats.Dropped)
}

func TestSpeakerCountsFailures(t *testing.T) {
	s := tts.NewSpeaker(tts.WithError(errors.New("quota exceeded")), newSink(), log.Discard())
	runSpeaker(t, s)

	s.Speak("You look neutral")
	require.Eventually(t, func() bool { return s.Stats().Failed == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, int64(0), s.Stats().Spoken)
}

func TestSpeakerRunFailsWhenSinkClosed(t *testing.T) {
	sink := newSink()
	sink.Close()

	s := tts.NewSpeaker(tts.NewMock(), sink, log.Discard())
	assert.Error(t, s.Run(context.Background()))
}
