package perception

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpressionsTop(t *testing.T) {
	tests := []struct {
		name      string
		in        Expressions
		wantLabel ExpressionLabel
		wantScore float64
		wantOK    bool
	}{
		{"empty", Expressions{}, "", 0, false},
		{"single", Expressions{Sad: 0.7}, Sad, 0.7, true},
		{"clear winner", Expressions{Happy: 0.91, Neutral: 0.05, Sad: 0.04}, Happy, 0.91, true},
		{"tie prefers canonical order", Expressions{Surprised: 0.5, Happy: 0.5}, Happy, 0.5, true},
		{"tie neutral first", Expressions{Angry: 0.4, Neutral: 0.4, Sad: 0.2}, Neutral, 0.4, true},
		{"all zero", Expressions{Fearful: 0, Disgusted: 0}, Fearful, 0, true},
		{"unknown label after known on tie", Expressions{"contempt": 0.5, Sad: 0.5}, Sad, 0.5, true},
		{"unknown label wins when higher", Expressions{"contempt": 0.6, Sad: 0.4}, "contempt", 0.6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, score, ok := tt.in.Top()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLabel, label)
			assert.InDelta(t, tt.wantScore, score, 1e-9)
		})
	}
}

func TestExpressionsTopDeterministic(t *testing.T) {
	e := Expressions{Happy: 0.3, Sad: 0.3, Angry: 0.3, Surprised: 0.1}
	for i := 0; i < 50; i++ {
		label, _, _ := e.Top()
		require.Equal(t, Happy, label)
	}
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "91.00%", FormatConfidence(0.91))
	assert.Equal(t, "60.00%", FormatConfidence(0.6))
	assert.Equal(t, "0.00%", FormatConfidence(0))
	assert.Equal(t, "100.00%", FormatConfidence(1))
	assert.Equal(t, "87.3%", FormatScore(0.873))
}

func TestFrameValid(t *testing.T) {
	assert.True(t, Frame{Width: 2, Height: 2, Pixels: make([]byte, 12)}.Valid())
	assert.False(t, Frame{Width: 2, Height: 2, Pixels: make([]byte, 11)}.Valid())
	assert.False(t, Frame{}.Valid())
}

func TestProviderErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&ProviderError{Provider: "face", Seq: 3, Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsProviderError(err))
	assert.Contains(t, err.Error(), "face provider failed on frame 3")
}

func TestReadiness(t *testing.T) {
	r := NewReadiness()
	assert.False(t, r.Ready())
	assert.False(t, r.Resolved())

	r.MarkReady()
	r.MarkFailed(errors.New("late"))

	assert.True(t, r.Ready())
	assert.NoError(t, r.Err())
	select {
	case <-r.Done():
	default:
		t.Fatal("Done should be closed")
	}
}

func TestLoadAsyncFailure(t *testing.T) {
	r := LoadAsync(context.Background(), func(ctx context.Context) error {
		return errors.New("missing model")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := r.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.False(t, r.Ready())
	assert.True(t, r.Resolved())
}

func TestLoadAsyncPanic(t *testing.T) {
	r := LoadAsync(context.Background(), func(ctx context.Context) error {
		panic("bad weights")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.ErrorIs(t, r.Wait(ctx), ErrModelLoad)
}

func TestLoadAsyncSuccess(t *testing.T) {
	r := LoadAsync(context.Background(), func(ctx context.Context) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, r.Wait(ctx))
	assert.True(t, r.Ready())
}
