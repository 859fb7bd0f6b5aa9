package tts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/tts"
)

func TestMock(t *testing.T) {
	m := tts.NewMock()
	ctx := context.Background()

	result, err := m.Synthesize(ctx, "hi")
	require.NoError(t, err)
	assert.Len(t, result.Audio, 2*960)
	assert.Equal(t, 40*time.Millisecond, result.Duration)
	assert.Equal(t, tts.EncodingPCM24, result.Format.Encoding)

	require.NoError(t, m.Health(ctx))
	require.NoError(t, m.Close())
	assert.Equal(t, 1, m.CallCount("Synthesize"))
	assert.Equal(t, []string{"hi"}, m.Texts())
	assert.Len(t, m.Calls(), 3)

	boom := errors.New("boom")
	failing := tts.WithError(boom)
	_, err = failing.Synthesize(ctx, "hi")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, failing.Health(ctx), boom)

	_, err = (&tts.Mock{}).Synthesize(ctx, "hi")
	assert.ErrorIs(t, err, tts.ErrProviderUnavailable)
}

func TestOptions(t *testing.T) {
	cfg := tts.DefaultConfig()
	assert.ErrorIs(t, cfg.Validate(), tts.ErrNoAPIKey)

	cfg.Apply(
		tts.WithAPIKey("key"),
		tts.WithVoice("nova"),
		tts.WithModel("tts-1-hd"),
		tts.WithLanguage("de-DE"),
		tts.WithSpeed(1.25),
		tts.WithOutputFormat(tts.EncodingMP3),
		tts.WithTimeout(time.Second),
		tts.WithRetry(0, time.Millisecond),
		tts.WithLogger(nil),
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "nova", cfg.VoiceID)
	assert.Equal(t, "tts-1-hd", cfg.ModelID)
	assert.Equal(t, "de-DE", cfg.LanguageCode)
	assert.Equal(t, 1.25, cfg.Speed)
	assert.Equal(t, tts.EncodingMP3, cfg.OutputFormat)
	assert.Equal(t, time.Second, cfg.Timeout)
	assert.Zero(t, cfg.MaxRetries)
	assert.NotNil(t, cfg.Logger, "nil logger falls back to the default")
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		auth      bool
	}{
		{401, false, true},
		{403, false, true},
		{404, false, false},
		{429, true, false},
		{500, true, false},
		{503, true, false},
	}
	for _, tt := range tests {
		err := &tts.APIError{Provider: "openai", StatusCode: tt.status, Message: "nope"}
		assert.Equal(t, tt.retryable, err.IsRetryable(), "status %d", tt.status)
		assert.Equal(t, tt.auth, tts.IsAuth(err), "status %d", tt.status)
	}

	err := &tts.APIError{Provider: "openai", StatusCode: 401, Code: "invalid_api_key", Message: "bad key"}
	assert.Equal(t, "tts openai: status 401 (invalid_api_key): bad key", err.Error())
	assert.True(t, tts.IsAuth(tts.WrapError("openai", err)), "auth errors are found through wrapping")
	assert.False(t, tts.IsAuth(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, tts.WrapError("google", nil))

	cause := errors.New("connection reset")
	err := tts.WrapError("google", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "tts google: connection reset", err.Error())
}

func TestSampleRateFromEncoding(t *testing.T) {
	assert.Equal(t, 16000, tts.SampleRateFromEncoding(tts.EncodingPCM16))
	assert.Equal(t, 24000, tts.SampleRateFromEncoding(tts.EncodingPCM24))
	assert.Zero(t, tts.SampleRateFromEncoding(tts.EncodingWAV))
	assert.Zero(t, tts.SampleRateFromEncoding(tts.EncodingMP3))
}

func TestChainFallsBack(t *testing.T) {
	primary := tts.WithError(errors.New("timeout"))
	backup := tts.NewMock()

	chain, err := tts.NewChain(log.Discard(), primary, backup)
	require.NoError(t, err)

	result, err := chain.Synthesize(context.Background(), "You look happy")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Audio)

	// Transient failures are retried on the next phrase.
	_, err = chain.Synthesize(context.Background(), "You look sad")
	require.NoError(t, err)
	assert.Equal(t, 2, primary.CallCount("Synthesize"))
	assert.Equal(t, 2, backup.CallCount("Synthesize"))
}

func TestChainBenchesAuthFailures(t *testing.T) {
	primary := tts.WithError(&tts.APIError{Provider: "openai", StatusCode: 401, Message: "bad key"})
	backup := tts.NewMock()

	chain, err := tts.NewChain(log.Discard(), primary, backup)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := chain.Synthesize(context.Background(), "You look happy")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, primary.CallCount("Synthesize"))
	assert.Equal(t, 3, backup.CallCount("Synthesize"))
}

func TestChainAllFail(t *testing.T) {
	auth := &tts.APIError{Provider: "google", StatusCode: 403, Message: "disabled"}
	other := errors.New("dns")

	chain, err := tts.NewChain(log.Discard(), tts.WithError(other), tts.WithError(auth))
	require.NoError(t, err)

	_, err = chain.Synthesize(context.Background(), "hi")
	var chainErr *tts.ChainError
	require.True(t, errors.As(err, &chainErr))
	assert.Len(t, chainErr.Errors, 2)
	assert.ErrorIs(t, err, other)
	var apiErr *tts.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.IsForbidden())

	assert.Error(t, chain.Health(context.Background()))
}

func TestChainStopsOnCancel(t *testing.T) {
	first := tts.NewMock()
	first.SynthesizeFunc = func(ctx context.Context, text string) (*tts.AudioResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	second := tts.NewMock()

	chain, err := tts.NewChain(log.Discard(), first, second)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err = chain.Synthesize(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, second.CallCount("Synthesize"))
}

func TestChainHealthAndClose(t *testing.T) {
	_, err := tts.NewChain(log.Discard())
	assert.ErrorIs(t, err, tts.ErrProviderUnavailable)

	healthy := tts.NewMock()
	sick := tts.WithError(errors.New("down"))
	closeErr := errors.New("close failed")
	sick.CloseFunc = func() error { return closeErr }

	chain, err := tts.NewChain(log.Discard(), sick, healthy)
	require.NoError(t, err)
	assert.NoError(t, chain.Health(context.Background()))

	assert.ErrorIs(t, chain.Close(), closeErr)
	assert.Equal(t, 1, healthy.CallCount("Close"))
}
