// Package app wires moodcam together: the camera lifecycle, the detection
// loop and its outputs, voice control, speech and the dashboard.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	evbus "github.com/asaskevich/EventBus"

	"github.com/teslashibe/go-moodcam/internal/config"
	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/camera/webcam"
	"github.com/teslashibe/go-moodcam/pkg/debug"
	"github.com/teslashibe/go-moodcam/pkg/detectloop"
	"github.com/teslashibe/go-moodcam/pkg/expression"
	"github.com/teslashibe/go-moodcam/pkg/overlay"
	"github.com/teslashibe/go-moodcam/pkg/overlay/canvas"
	"github.com/teslashibe/go-moodcam/pkg/perception"
	"github.com/teslashibe/go-moodcam/pkg/perception/detection"
	"github.com/teslashibe/go-moodcam/pkg/stt"
	"github.com/teslashibe/go-moodcam/pkg/tts"
	"github.com/teslashibe/go-moodcam/pkg/voice"
	"github.com/teslashibe/go-moodcam/pkg/web"
)

// Transcript sources.
const (
	SourceMicrophone = "microphone"
	SourceBrowser    = "browser"
)

// Detector bundles the two frame providers with their model loader.
type Detector interface {
	perception.FaceProvider
	perception.ObjectProvider
	Load(ctx context.Context) error
}

// Option replaces a production component, mainly for tests.
type Option func(*options)

type options struct {
	device     camera.Device
	detector   Detector
	recognizer voice.Recognizer
	speech     tts.Provider
	sink       audioio.Sink
	surface    overlay.Surface
	composer   Composer
}

// WithDevice replaces the webcam.
func WithDevice(d camera.Device) Option {
	return func(o *options) { o.device = d }
}

// WithDetector replaces the gocv providers.
func WithDetector(d Detector) Option {
	return func(o *options) { o.detector = d }
}

// WithRecognizer replaces the microphone recognizer.
func WithRecognizer(r voice.Recognizer) Option {
	return func(o *options) { o.recognizer = r }
}

// WithSpeech replaces the configured speech providers and playback device.
func WithSpeech(p tts.Provider, sink audioio.Sink) Option {
	return func(o *options) { o.speech, o.sink = p, sink }
}

// WithSurface replaces the overlay canvas and the frame composer.
func WithSurface(s overlay.Surface, c Composer) Option {
	return func(o *options) { o.surface, o.composer = s, c }
}

// recognizer is one transcript source with its interpreter.
type recognizer struct {
	source string
	interp *voice.Interpreter
}

// App is the moodcam application.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	bus    evbus.Bus
	events events

	camera   *camera.Manager
	detector Detector
	renderer *overlay.Renderer
	agg      *expression.Aggregator
	frames   *framePublisher
	preview  *canvas.Preview
	speaker  *tts.Speaker
	feed     *web.TranscriptFeed
	server   *web.Server
	voices   []recognizer
	mic      *stt.Listener

	mu     sync.Mutex
	ready  *perception.Readiness
	loop   *detectloop.Loop
	status string

	closers []io.Closer
}

// New validates cfg and builds every component. Nothing runs until Run.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	debug.Enabled = cfg.Debug
	debug.Frames = cfg.DebugFrames

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	bus := evbus.New()
	a := &App{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		events: events{bus: bus},
	}

	if err := a.build(ctx, &o); err != nil {
		a.Close()
		return nil, err
	}
	a.subscribe()
	return a, nil
}

func (a *App) build(ctx context.Context, o *options) error {
	cfg := &a.cfg

	device := o.device
	if device == nil {
		device = webcam.New()
	}
	a.camera = camera.NewManager(device, cfg.Camera, a.logger)
	a.camera.OnStateChange(a.events.cameraState)

	a.detector = o.detector
	if a.detector == nil {
		providers := detection.New(cfg.Models)
		a.detector = providers
		a.closers = append(a.closers, providers)
	}

	surface, composer := o.surface, o.composer
	if surface == nil {
		c := canvas.New()
		a.closers = append(a.closers, c)
		surface, composer = c, c
	}
	a.renderer = overlay.NewRenderer(surface, overlay.DefaultStyle())

	if err := a.buildSpeech(ctx, o); err != nil {
		return err
	}

	// A nil *tts.Speaker must not become a non-nil interface.
	var spk expression.Speaker
	if a.speaker != nil {
		spk = a.speaker
	}
	a.agg = expression.New(spk, a.logger)
	a.agg.OnChange(a.events.expression)

	if cfg.Web.Enabled {
		if cfg.Voice.Browser {
			a.feed = web.NewTranscriptFeed()
		}
		a.server = web.NewServer(cfg.Web.Config, a.camera, a.feed, a.logger)
		a.server.Refresh = a.refresh
		if composer != nil {
			a.frames = newFramePublisher(composer, a.server, func() int {
				return a.camera.GetConfig().Quality
			}, cfg.Web.FrameRate)
		}
	}

	if cfg.Preview {
		blender, ok := composer.(canvas.Blender)
		if !ok {
			return errors.New("app: preview needs the gocv canvas")
		}
		a.preview = canvas.NewPreview("moodcam", blender)
	}

	return a.buildVoice(ctx, o)
}

func (a *App) buildSpeech(ctx context.Context, o *options) error {
	provider, sink := o.speech, o.sink
	if provider == nil {
		p, err := newSpeechProvider(ctx, &a.cfg, a.logger)
		if err != nil {
			return err
		}
		if p == nil {
			a.logger.Info("speech output disabled")
			return nil
		}
		provider = p
	}
	a.closers = append(a.closers, provider)

	if sink == nil {
		s, err := audioio.NewSink(a.cfg.Playback, a.logger)
		if err != nil {
			return fmt.Errorf("speaker: %w", err)
		}
		sink = s
	}
	a.closers = append(a.closers, sink)

	a.speaker = tts.NewSpeaker(provider, sink, a.logger)
	a.speaker.OnSpeak(a.events.spoken)
	return nil
}

func (a *App) buildVoice(ctx context.Context, o *options) error {
	cfg := &a.cfg

	if o.recognizer != nil {
		a.addVoice(SourceMicrophone, o.recognizer)
	} else if cfg.Voice.Microphone {
		mic, closers, err := newMicrophone(ctx, cfg, a.logger)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, closers...)
		a.mic = mic
		a.addVoice(SourceMicrophone, mic)
	}

	if a.feed != nil {
		a.addVoice(SourceBrowser, a.feed)
	}
	if len(a.voices) == 0 {
		return errors.New("no transcript source configured")
	}
	return nil
}

// addVoice gives each source its own interpreter so one failing source
// does not hold the other back.
func (a *App) addVoice(source string, rec voice.Recognizer) {
	interp := voice.NewInterpreter(rec, a.camera, a.cfg.Voice.Config, a.logger.With("source", source))
	interp.OnStatus(a.events.status)
	interp.OnTranscript(func(text string, cmd voice.Command) {
		a.events.transcript(source, text, cmd)
	})
	a.voices = append(a.voices, recognizer{source: source, interp: interp})
}

// Bus returns the event bus. See the Topic constants for handler
// signatures.
func (a *App) Bus() evbus.Bus {
	return a.bus
}

// Camera returns the lifecycle manager.
func (a *App) Camera() *camera.Manager {
	return a.camera
}

// Server returns the dashboard, or nil when it is disabled.
func (a *App) Server() *web.Server {
	return a.server
}

// Feed returns the browser transcript feed, or nil when it is disabled.
func (a *App) Feed() *web.TranscriptFeed {
	return a.feed
}

// Expression returns the current expression text.
func (a *App) Expression() string {
	return a.agg.Text()
}

// Readiness returns the model readiness, or nil before Run.
func (a *App) Readiness() *perception.Readiness {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// Run loads the models in the background and serves voice commands, the
// dashboard and speech until ctx is cancelled. The camera stays off until
// a start command arrives.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	if a.loop != nil {
		a.mu.Unlock()
		return errors.New("app: already running")
	}
	ready := perception.LoadAsync(ctx, a.detector.Load)
	deps := detectloop.Deps{
		Faces:     a.detector,
		Objects:   a.detector,
		Ready:     ready,
		Lifecycle: a.camera,
		Renderer:  a.renderer,
		Expr:      a.agg,
		Logger:    a.logger,
	}
	var sinks frameSinks
	if a.frames != nil {
		sinks = append(sinks, a.frames)
	}
	if a.preview != nil {
		sinks = append(sinks, a.preview)
	}
	if len(sinks) > 0 {
		deps.Sink = sinks
	}
	loop := detectloop.New(ctx, a.cfg.Loop, deps)
	a.ready, a.loop = ready, loop
	a.mu.Unlock()

	a.camera.OnStart(func(sess camera.Session) {
		loop.Start(sess)
	})
	a.camera.OnStop(func() {
		loop.ClearOutputs(a.renderer.Clear, a.agg.Reset)
	})

	var wg sync.WaitGroup
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error(name+" stopped", "error", err)
			}
		}()
	}

	run("models", func() error {
		<-ready.Done()
		err := ready.Err()
		if err != nil {
			a.logger.Error("detection disabled", "error", err)
		} else {
			a.logger.Info("detection ready")
		}
		a.events.detection(err)
		return nil
	})
	if a.speaker != nil {
		run("speaker", func() error { return a.speaker.Run(ctx) })
	}
	for _, v := range a.voices {
		interp := v.interp
		run(v.source+" voice", func() error { return interp.Run(ctx) })
	}
	if a.preview != nil {
		run("preview", func() error { return a.preview.Run(ctx) })
	}
	if a.server != nil {
		run("dashboard", func() error { return a.server.ListenAndServe(ctx) })
		a.server.AddLog("info", "moodcam started")
	}

	a.logger.Info("moodcam running", "voice_sources", len(a.voices), "speech", a.speaker != nil)
	<-ctx.Done()

	if err := a.camera.Stop(); err != nil && !errors.Is(err, camera.ErrNotActive) {
		a.logger.Warn("stop camera", "error", err)
	}
	loop.Close()
	wg.Wait()
	return nil
}

// Close releases devices and models. Call it after Run returned.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
