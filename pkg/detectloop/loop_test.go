package detectloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-moodcam/internal/log"
	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/expression"
	"github.com/teslashibe/go-moodcam/pkg/overlay"
	"github.com/teslashibe/go-moodcam/pkg/perception"
)

type countingSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *countingSpeaker) Speak(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
}

func (s *countingSpeaker) CancelAll() {}

func (s *countingSpeaker) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.spoken...)
}

type recordingSink struct {
	mu      sync.Mutex
	raw     int
	results []perception.DetectionFrame
}

func (s *recordingSink) Publish(frame perception.Frame, result *perception.DetectionFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result == nil {
		s.raw++
		return
	}
	s.results = append(s.results, *result)
}

func (s *recordingSink) Results() []perception.DetectionFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]perception.DetectionFrame{}, s.results...)
}

func (s *recordingSink) Raw() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw
}

type harness struct {
	manager  *camera.Manager
	loop     *Loop
	faces    *perception.MockFaceProvider
	objects  *perception.MockObjectProvider
	ready    *perception.Readiness
	surface  *overlay.Recorder
	renderer *overlay.Renderer
	agg      *expression.Aggregator
	speaker  *countingSpeaker
	sink     *recordingSink
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()

	h := &harness{
		faces:   &perception.MockFaceProvider{},
		objects: &perception.MockObjectProvider{},
		ready:   perception.NewReadiness(),
		surface: overlay.NewRecorder(),
		speaker: &countingSpeaker{},
		sink:    &recordingSink{},
	}
	h.ready.MarkReady()
	h.renderer = overlay.NewRenderer(h.surface, overlay.DefaultStyle())
	h.agg = expression.New(h.speaker, log.Discard())

	camCfg := camera.LegacyConfig()
	camCfg.Width, camCfg.Height = 160, 120
	h.manager = camera.NewManager(&camera.MockDevice{}, camCfg, log.Discard())

	h.loop = New(context.Background(), cfg, Deps{
		Faces:     h.faces,
		Objects:   h.objects,
		Ready:     h.ready,
		Lifecycle: h.manager,
		Renderer:  h.renderer,
		Expr:      h.agg,
		Sink:      h.sink,
		Logger:    log.Discard(),
	})
	h.manager.OnStart(func(s camera.Session) { h.loop.Start(s) })
	h.manager.OnStop(func() {
		h.loop.ClearOutputs(h.renderer.Clear, h.agg.Reset)
	})
	t.Cleanup(h.loop.Close)
	return h
}

func fastConfig() Config {
	return Config{RefreshRate: 500}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitLoopExit(t *testing.T, l *Loop) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		l.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}

func TestSequentialOrdering(t *testing.T) {
	h := newHarness(t, fastConfig())

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(e string) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	h.faces.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.FaceDetection, error) {
		record("face-start")
		time.Sleep(3 * time.Millisecond)
		record("face-end")
		return nil, nil
	}
	h.objects.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.ObjectDetection, error) {
		record("object-start")
		record("object-end")
		return nil, nil
	}

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitFor(t, "5 objects calls", func() bool { return h.objects.CallCount() >= 5 })
	require.NoError(t, h.manager.Stop())
	waitLoopExit(t, h.loop)

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i+3 < len(events); i += 4 {
		assert.Equal(t, []string{"face-start", "face-end", "object-start", "object-end"}, events[i:i+4])
	}
}

func TestConcurrentModeAppliesBothToSameFrame(t *testing.T) {
	h := newHarness(t, Config{RefreshRate: 500, Concurrent: true})

	objectStarted := make(chan struct{}, 1024)
	h.faces.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.FaceDetection, error) {
		select {
		case <-objectStarted:
		case <-time.After(time.Second):
			return nil, errors.New("object provider did not run in parallel")
		}
		return []perception.FaceDetection{{Expressions: perception.Expressions{perception.Happy: 0.9}}}, nil
	}
	h.objects.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.ObjectDetection, error) {
		objectStarted <- struct{}{}
		return []perception.ObjectDetection{{Label: "cup", Score: 0.8}}, nil
	}

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitFor(t, "3 results", func() bool { return len(h.sink.Results()) >= 3 })
	require.NoError(t, h.manager.Stop())
	waitLoopExit(t, h.loop)

	for _, r := range h.sink.Results() {
		assert.NoError(t, r.FacesErr)
		assert.NoError(t, r.ObjectsErr)
		assert.Len(t, r.Faces, 1)
		assert.Len(t, r.Objects, 1)
	}
}

func TestSecondStartDoesNotSpawnSecondLoop(t *testing.T) {
	h := newHarness(t, fastConfig())

	sess, err := h.manager.Start(context.Background())
	require.NoError(t, err)

	assert.False(t, h.loop.Start(sess), "same generation must not start again")
	_, err = h.manager.Start(context.Background())
	assert.ErrorIs(t, err, camera.ErrAlreadyActive)

	h.loop.mu.Lock()
	running := h.loop.running
	h.loop.mu.Unlock()
	assert.Equal(t, 1, running)

	require.NoError(t, h.manager.Stop())
	waitLoopExit(t, h.loop)
}

func TestStopTerminatesLoop(t *testing.T) {
	h := newHarness(t, fastConfig())

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitFor(t, "a face call", func() bool { return h.faces.CallCount() > 0 })

	require.NoError(t, h.manager.Stop())
	waitLoopExit(t, h.loop)

	calls := h.faces.CallCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, h.faces.CallCount(), "no provider calls after stop")
	assert.False(t, h.loop.Stats().Running)
}

func TestRestartRunsNewLoop(t *testing.T) {
	h := newHarness(t, fastConfig())

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.manager.Stop())
	waitLoopExit(t, h.loop)

	sess, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	before := h.faces.CallCount()
	waitFor(t, "calls on new session", func() bool { return h.faces.CallCount() > before+2 })
	assert.Equal(t, sess.Generation, h.loop.Stats().ActiveGeneration)
	assert.True(t, h.loop.Stats().Running)
}

func TestProviderFailureKeepsLooping(t *testing.T) {
	h := newHarness(t, fastConfig())

	var n atomic.Int32
	h.faces.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.FaceDetection, error) {
		if n.Add(1)%2 == 0 {
			return nil, errors.New("inference failed")
		}
		return []perception.FaceDetection{{Expressions: perception.Expressions{perception.Happy: 0.9}}}, nil
	}
	h.objects.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.ObjectDetection, error) {
		return nil, errors.New("object model crashed")
	}

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitFor(t, "10 processed frames", func() bool { return h.loop.Stats().Processed >= 10 })

	stats := h.loop.Stats()
	assert.Greater(t, stats.FaceFailures, uint64(0))
	assert.Greater(t, stats.ObjectFailures, uint64(0))
	assert.Equal(t, camera.On, h.manager.State())

	var sawFaceErr bool
	for _, r := range h.sink.Results() {
		assert.Nil(t, r.Objects)
		assert.True(t, perception.IsProviderError(r.ObjectsErr))
		if r.FacesErr != nil {
			sawFaceErr = true
		}
	}
	assert.True(t, sawFaceErr)
	assert.Equal(t, []string{"You look happy"}, h.speaker.Spoken())
}

func TestStaleResultDiscarded(t *testing.T) {
	h := newHarness(t, fastConfig())

	h.faces.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.FaceDetection, error) {
		h.manager.Stop()
		return []perception.FaceDetection{{
			Box:         perception.Rect{X: 1, Y: 1, W: 10, H: 10},
			Expressions: perception.Expressions{perception.Happy: 0.9},
		}}, nil
	}

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitLoopExit(t, h.loop)

	assert.Equal(t, uint64(1), h.loop.Stats().Stale)
	assert.Empty(t, h.speaker.Spoken())
	assert.Empty(t, h.sink.Results())
	assert.True(t, h.surface.Blank())
	assert.Empty(t, h.agg.Text())
}

func TestNotReadySkipsDetection(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.loop.deps.Ready = perception.NewReadiness()

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitFor(t, "raw frames", func() bool { return h.sink.Raw() >= 3 })

	assert.Equal(t, 0, h.faces.CallCount())
	assert.Equal(t, 0, h.objects.CallCount())
	assert.Greater(t, h.loop.Stats().Skipped, uint64(0))
	assert.Equal(t, camera.On, h.manager.State())
}

func TestPausedStreamSkipsIteration(t *testing.T) {
	h := newHarness(t, fastConfig())

	sess, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	stream := sess.Stream.(*camera.MockStream)
	stream.SetPlaying(false)
	before := h.faces.CallCount()

	waitFor(t, "skipped iterations", func() bool { return h.loop.Stats().Skipped >= 3 })
	assert.LessOrEqual(t, h.faces.CallCount(), before+1)

	stream.SetPlaying(true)
	waitFor(t, "resumed detection", func() bool { return h.faces.CallCount() > before+2 })
}

func TestResizeBeforeFirstFrameAndStopClears(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.faces.DetectFunc = func(ctx context.Context, f perception.Frame) ([]perception.FaceDetection, error) {
		return []perception.FaceDetection{{
			Box:         perception.Rect{X: 10, Y: 10, W: 40, H: 40},
			Expressions: perception.Expressions{perception.Sad: 0.7},
		}}, nil
	}

	_, err := h.manager.Start(context.Background())
	require.NoError(t, err)
	waitFor(t, "expression text", func() bool { return h.agg.Text() == "sad (70.00%)" })

	w, hh := h.surface.Size()
	assert.Equal(t, 160, w)
	assert.Equal(t, 120, hh)
	assert.False(t, h.surface.Blank())

	require.NoError(t, h.manager.Stop())
	waitLoopExit(t, h.loop)

	assert.True(t, h.surface.Blank())
	assert.Empty(t, h.agg.Text())
	assert.False(t, h.agg.State().Has)
	assert.Equal(t, []string{"You look sad"}, h.speaker.Spoken())
}

func TestConfigPeriod(t *testing.T) {
	assert.Equal(t, time.Second/30, Config{}.Period())
	assert.Equal(t, 10*time.Millisecond, Config{RefreshRate: 100}.Period())
}
