// Package detectloop runs face and object perception on every displayed
// frame of the active camera session.
package detectloop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/debug"
	"github.com/teslashibe/go-moodcam/pkg/expression"
	"github.com/teslashibe/go-moodcam/pkg/perception"
)

// Config holds loop settings.
type Config struct {
	// RefreshRate is the iteration cadence in Hz, normally the display refresh.
	RefreshRate float64 `yaml:"refresh_rate"`
	// Concurrent runs the face and object providers in parallel. Both
	// results still land on the same frame.
	Concurrent bool `yaml:"concurrent"`
}

// DefaultConfig returns a 30 Hz sequential loop.
func DefaultConfig() Config {
	return Config{RefreshRate: 30}
}

// Period returns the tick interval.
func (c Config) Period() time.Duration {
	if c.RefreshRate <= 0 {
		return time.Second / 30
	}
	return time.Duration(float64(time.Second) / c.RefreshRate)
}

// Lifecycle tells the loop whether its session is still the active one.
type Lifecycle interface {
	IsCurrent(generation uint64) bool
}

// Readiness reports whether the perception models have loaded.
type Readiness interface {
	Ready() bool
}

// Renderer draws results on the overlay.
type Renderer interface {
	Resize(width, height int)
	Render(frame perception.DetectionFrame)
}

// Aggregator turns results into display text and speech.
type Aggregator interface {
	Apply(frame perception.DetectionFrame) expression.Result
}

// FrameSink receives every frame the loop reads, with the detection result
// when detection ran. It is called after rendering.
type FrameSink interface {
	Publish(frame perception.Frame, result *perception.DetectionFrame)
}

// Deps are the collaborators of a Loop. Sink is optional.
type Deps struct {
	Faces     perception.FaceProvider
	Objects   perception.ObjectProvider
	Ready     Readiness
	Lifecycle Lifecycle
	Renderer  Renderer
	Expr      Aggregator
	Sink      FrameSink
	Logger    *slog.Logger
}

// Stats counts loop activity across sessions.
type Stats struct {
	Iterations       uint64 `json:"iterations"`
	Processed        uint64 `json:"processed"`
	Skipped          uint64 `json:"skipped"`
	Stale            uint64 `json:"stale"`
	FaceFailures     uint64 `json:"face_failures"`
	ObjectFailures   uint64 `json:"object_failures"`
	ReadFailures     uint64 `json:"read_failures"`
	ActiveGeneration uint64 `json:"active_generation"`
	Running          bool   `json:"running"`
}

// Loop schedules detection. At most one goroutine runs per generation and
// a goroutine exits as soon as its generation is no longer current.
type Loop struct {
	cfg    Config
	deps   Deps
	logger *slog.Logger

	mu      sync.Mutex
	base    context.Context
	cancel  context.CancelFunc
	active  uint64 // Highest generation started
	running int
	wg      sync.WaitGroup

	publishMu sync.Mutex

	iterations     atomic.Uint64
	processed      atomic.Uint64
	skipped        atomic.Uint64
	stale          atomic.Uint64
	faceFailures   atomic.Uint64
	objectFailures atomic.Uint64
	readFailures   atomic.Uint64
}

// New creates a loop. Goroutines it starts end when ctx is cancelled.
func New(ctx context.Context, cfg Config, deps Deps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base, cancel := context.WithCancel(ctx)
	return &Loop{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("component", "detectloop"),
		base:   base,
		cancel: cancel,
	}
}

// Start launches the loop for sess. It returns false without doing anything
// when a loop for the same generation was already started.
func (l *Loop) Start(sess camera.Session) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.base.Err() != nil {
		return false
	}
	if sess.Generation <= l.active {
		return false
	}
	l.active = sess.Generation
	l.running++
	l.wg.Add(1)

	go l.run(l.base, sess)
	return true
}

// Close stops every loop goroutine and waits for them.
func (l *Loop) Close() {
	l.cancel()
	l.wg.Wait()
}

// Wait blocks until every loop goroutine has exited.
func (l *Loop) Wait() {
	l.wg.Wait()
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	active, running := l.active, l.running
	l.mu.Unlock()
	return Stats{
		Iterations:       l.iterations.Load(),
		Processed:        l.processed.Load(),
		Skipped:          l.skipped.Load(),
		Stale:            l.stale.Load(),
		FaceFailures:     l.faceFailures.Load(),
		ObjectFailures:   l.objectFailures.Load(),
		ReadFailures:     l.readFailures.Load(),
		ActiveGeneration: active,
		Running:          running > 0 && l.deps.Lifecycle.IsCurrent(active),
	}
}

func (l *Loop) run(ctx context.Context, sess camera.Session) {
	defer func() {
		l.mu.Lock()
		l.running--
		l.mu.Unlock()
		l.wg.Done()
	}()

	log := l.logger.With("session", sess.ID, "generation", sess.Generation)
	log.Debug("loop started")

	if w, h := sess.Stream.Size(); w > 0 && h > 0 {
		l.deps.Renderer.Resize(w, h)
	}

	ticker := time.NewTicker(l.cfg.Period())
	defer ticker.Stop()

	for {
		if !l.deps.Lifecycle.IsCurrent(sess.Generation) {
			log.Debug("loop ended")
			return
		}

		l.iterate(ctx, sess)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Loop) iterate(ctx context.Context, sess camera.Session) {
	l.iterations.Add(1)

	if !sess.Stream.Playing() {
		l.skipped.Add(1)
		return
	}

	ready := l.deps.Ready == nil || l.deps.Ready.Ready()

	frame, err := sess.Stream.Read(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			l.readFailures.Add(1)
			debug.FrameLog("read failed: %v", err)
		}
		return
	}

	if !ready {
		l.skipped.Add(1)
		l.publishMu.Lock()
		if l.deps.Lifecycle.IsCurrent(sess.Generation) && l.deps.Sink != nil {
			l.deps.Sink.Publish(frame, nil)
		}
		l.publishMu.Unlock()
		return
	}

	result := l.detect(ctx, frame)

	l.publishMu.Lock()
	defer l.publishMu.Unlock()

	if !l.deps.Lifecycle.IsCurrent(sess.Generation) {
		l.stale.Add(1)
		return
	}

	l.deps.Renderer.Render(result)
	l.deps.Expr.Apply(result)
	if l.deps.Sink != nil {
		l.deps.Sink.Publish(frame, &result)
	}
	l.processed.Add(1)
}

// ClearOutputs runs fns while no iteration is publishing. Use it from the
// camera stop hook: once the generation is invalidated, nothing a stale
// iteration computed can be drawn after fns ran.
func (l *Loop) ClearOutputs(fns ...func()) {
	l.publishMu.Lock()
	defer l.publishMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// detect runs both providers on frame. In sequential mode the object call
// starts only after the face call returned.
func (l *Loop) detect(ctx context.Context, frame perception.Frame) perception.DetectionFrame {
	result := perception.DetectionFrame{Seq: frame.Seq, Width: frame.Width, Height: frame.Height}

	if l.cfg.Concurrent {
		var g errgroup.Group
		g.Go(func() error {
			l.detectFaces(ctx, frame, &result)
			return nil
		})
		g.Go(func() error {
			l.detectObjects(ctx, frame, &result)
			return nil
		})
		g.Wait()
		return result
	}

	l.detectFaces(ctx, frame, &result)
	l.detectObjects(ctx, frame, &result)
	return result
}

func (l *Loop) detectFaces(ctx context.Context, frame perception.Frame, out *perception.DetectionFrame) {
	faces, err := l.deps.Faces.DetectFaces(ctx, frame)
	if err != nil {
		l.faceFailures.Add(1)
		out.FacesErr = &perception.ProviderError{Provider: "face", Seq: frame.Seq, Err: err}
		l.logger.Debug("face provider failed", "seq", frame.Seq, "error", err)
		return
	}
	out.Faces = faces
}

func (l *Loop) detectObjects(ctx context.Context, frame perception.Frame, out *perception.DetectionFrame) {
	objs, err := l.deps.Objects.DetectObjects(ctx, frame)
	if err != nil {
		l.objectFailures.Add(1)
		out.ObjectsErr = &perception.ProviderError{Provider: "object", Seq: frame.Seq, Err: err}
		l.logger.Debug("object provider failed", "seq", frame.Seq, "error", err)
		return
	}
	out.Objects = objs
}
