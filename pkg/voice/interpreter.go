package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/camera"
)

// Sentinel errors.
var (
	// ErrRecognitionTransient marks recognizer failures that are handled by
	// reopening the session.
	ErrRecognitionTransient = errors.New("voice: transient recognition error")

	// ErrSessionEnded is reported when a recognizer closes its session
	// without an error of its own.
	ErrSessionEnded = errors.New("voice: recognition session ended")
)

// Transcript is one recognition result. A transcript with Err set reports
// a recognizer problem instead of text.
type Transcript struct {
	Text  string
	Final bool
	Err   error
	At    time.Time
}

// Recognizer opens continuous speech recognition sessions. The returned
// channel is closed when the session ends. Cancelling ctx stops the session.
type Recognizer interface {
	Listen(ctx context.Context) (<-chan Transcript, error)
}

// Controller is the camera lifecycle the interpreter drives.
type Controller interface {
	Start(ctx context.Context) (camera.Session, error)
	Stop() error
}

// Interpreter listens forever and dispatches recognized commands.
type Interpreter struct {
	rec    Recognizer
	ctrl   Controller
	cfg    Config
	logger *slog.Logger

	metrics *MetricsCollector

	mu           sync.Mutex
	onStatus     func(string)
	onTranscript func(text string, cmd Command)
}

// NewInterpreter creates an interpreter.
func NewInterpreter(rec Recognizer, ctrl Controller, cfg Config, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		rec:     rec,
		ctrl:    ctrl,
		cfg:     cfg.withDefaults(),
		logger:  logger.With("component", "voice"),
		metrics: NewMetricsCollector(),
	}
}

// OnStatus sets a callback for user-facing status messages.
func (i *Interpreter) OnStatus(fn func(string)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onStatus = fn
}

// OnTranscript sets a callback for every handled transcript.
func (i *Interpreter) OnTranscript(fn func(text string, cmd Command)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onTranscript = fn
}

// Metrics returns the interpreter's counters.
func (i *Interpreter) Metrics() *MetricsCollector {
	return i.metrics
}

// Run keeps a recognition session open until ctx is cancelled. Session
// failures of any kind are logged and followed by a new session.
func (i *Interpreter) Run(ctx context.Context) error {
	delay := i.cfg.RestartDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := i.session(ctx)
		i.metrics.SetListening(false)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if i.metrics.consumeHealthy() {
			delay = i.cfg.RestartDelay
		}
		i.metrics.MarkRestart(err)
		i.logger.Warn("recognition session restarting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = i.cfg.nextDelay(delay)
	}
}

// session runs one recognizer session and returns why it ended.
func (i *Interpreter) session(ctx context.Context) error {
	ch, err := i.rec.Listen(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRecognitionTransient, err)
	}
	i.metrics.SetListening(true)
	i.logger.Debug("recognition session open")

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-ch:
			if !ok {
				if lastErr != nil {
					return lastErr
				}
				return ErrSessionEnded
			}
			if t.Err != nil {
				lastErr = fmt.Errorf("%w: %v", ErrRecognitionTransient, t.Err)
				i.logger.Debug("recognizer error", "error", t.Err)
				continue
			}
			if !t.Final && i.cfg.IgnoreInterim {
				continue
			}
			i.Handle(ctx, t.Text)
		}
	}
}

// Handle classifies text and drives the camera. It returns the command.
func (i *Interpreter) Handle(ctx context.Context, text string) Command {
	cmd := Classify(text)
	i.metrics.MarkTranscript(text, cmd)

	i.mu.Lock()
	onTranscript := i.onTranscript
	i.mu.Unlock()
	if onTranscript != nil {
		onTranscript(text, cmd)
	}

	switch cmd {
	case StartCamera:
		i.logger.Info("voice command", "command", cmd, "transcript", text)
		_, err := i.ctrl.Start(ctx)
		switch {
		case err == nil:
			i.status("Camera on")
		case errors.Is(err, camera.ErrAlreadyActive):
			i.logger.Debug("camera already active")
		case errors.Is(err, camera.ErrDeviceUnavailable):
			i.status("Camera unavailable. Check that it is connected and not in use.")
		default:
			i.logger.Warn("start camera failed", "error", err)
			i.status(fmt.Sprintf("Could not start camera: %v", err))
		}
	case StopCamera:
		i.logger.Info("voice command", "command", cmd, "transcript", text)
		switch err := i.ctrl.Stop(); {
		case err == nil:
			i.status("Camera off")
		case errors.Is(err, camera.ErrNotActive):
			i.logger.Debug("camera already off")
		default:
			i.logger.Warn("stop camera failed", "error", err)
		}
	default:
		i.logger.Debug("transcript ignored", "transcript", text)
	}
	return cmd
}

func (i *Interpreter) status(msg string) {
	i.mu.Lock()
	fn := i.onStatus
	i.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
