// Package web serves the moodcam dashboard: camera status and controls,
// the composited overlay feed, and a transcript feed for browsers that
// recognize speech themselves.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/detectloop"
	"github.com/teslashibe/go-moodcam/pkg/hub"
	"github.com/teslashibe/go-moodcam/pkg/stt"
)

// Config holds dashboard settings.
type Config struct {
	Addr      string `yaml:"addr"`       // Listen address, e.g. ":8080"
	StaticDir string `yaml:"static_dir"` // Served at "/" when set
	LogSize   int    `yaml:"log_size"`   // Log entries kept for new clients
}

// DefaultConfig returns the dashboard defaults.
func DefaultConfig() Config {
	return Config{
		Addr:      ":8080",
		StaticDir: "./web",
		LogSize:   500,
	}
}

// Status is the dashboard view of the app.
type Status struct {
	CameraState    string           `json:"camera_state"`
	Generation     uint64           `json:"generation"`
	SessionID      string           `json:"session_id,omitempty"`
	DetectionReady bool             `json:"detection_ready"`
	DetectionError string           `json:"detection_error,omitempty"`
	ExpressionText string           `json:"expression_text"`
	StatusText     string           `json:"status_text,omitempty"`
	VoiceListening bool             `json:"voice_listening"`
	LastTranscript string           `json:"last_transcript,omitempty"`
	LastCommand    string           `json:"last_command,omitempty"`
	Speaking       bool             `json:"speaking"`
	LastSpoken     string           `json:"last_spoken,omitempty"`
	Loop           detectloop.Stats `json:"loop"`
	Microphone     *stt.Stats       `json:"microphone,omitempty"`
}

// LogEntry represents a log line for the dashboard
type LogEntry struct {
	Time    string `json:"time"`
	Type    string `json:"type"` // info, command, expression, error
	Message string `json:"message"`
}

// TranscriptEvent is what the transcript websocket exchanges. Browsers send
// Text and Final; the server echoes handled transcripts with Command set.
type TranscriptEvent struct {
	Text    string `json:"text"`
	Final   *bool  `json:"final,omitempty"`
	Command string `json:"command,omitempty"`
}

// Camera is the lifecycle the dashboard controls.
type Camera interface {
	Start(ctx context.Context) (camera.Session, error)
	Stop() error
	State() camera.State
	GetConfigJSON() map[string]interface{}
	UpdateConfig(params map[string]interface{}) error
}

// Server is the web dashboard server
type Server struct {
	cfg    Config
	app    *fiber.App
	cam    Camera
	feed   *TranscriptFeed
	logger *slog.Logger

	// Base context for camera starts; replaced by Serve
	ctxMu sync.RWMutex
	ctx   context.Context

	state   Status
	stateMu sync.RWMutex

	logs   []LogEntry
	logsMu sync.RWMutex

	statusHub     *hub.Hub
	logHub        *hub.Hub
	cameraHub     *hub.Hub
	transcriptHub *hub.Hub

	// Refresh, if set, fills live fields before a status is served.
	Refresh func(*Status)
}

// NewServer creates a dashboard server. feed may be nil, in which case
// browser transcripts are rejected.
func NewServer(cfg Config, cam Camera, feed *TranscriptFeed, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = DefaultConfig().LogSize
	}
	logger = logger.With("component", "web")

	s := &Server{
		cfg:           cfg,
		cam:           cam,
		feed:          feed,
		logger:        logger,
		ctx:           context.Background(),
		logs:          make([]LogEntry, 0, cfg.LogSize),
		state:         Status{CameraState: camera.Off.String()},
		statusHub:     hub.New("status", logger),
		logHub:        hub.New("logs", logger),
		cameraHub:     hub.New("camera", logger, hub.SkipSlow()),
		transcriptHub: hub.New("transcripts", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "moodcam",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/camera/start", s.handleCameraStart)
	api.Post("/camera/stop", s.handleCameraStop)
	api.Get("/camera/config", s.handleGetCameraConfig)
	api.Put("/camera/config", s.handleUpdateCameraConfig)
	api.Post("/transcripts", s.handlePostTranscript)
	api.Get("/logs", s.handleGetLogs)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/logs", websocket.New(s.handleLogsWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))
	app.Get("/ws/transcripts", websocket.New(s.handleTranscriptsWS))

	s.app = app
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the hubs and serves ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.ctxMu.Lock()
	s.ctx = ctx
	s.ctxMu.Unlock()

	go s.statusHub.Run(ctx)
	go s.logHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	go s.transcriptHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listener(ln)
	}()
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("dashboard shutdown", "error", err)
		}
		<-errCh
		return nil
	}
}

func (s *Server) baseContext() context.Context {
	s.ctxMu.RLock()
	defer s.ctxMu.RUnlock()
	return s.ctx
}

// UpdateState updates the status and broadcasts it to status clients.
func (s *Server) UpdateState(update func(*Status)) {
	s.stateMu.Lock()
	update(&s.state)
	s.stateMu.Unlock()

	s.statusHub.BroadcastJSON(s.Snapshot())
}

// Snapshot returns the current status with live fields refreshed.
func (s *Server) Snapshot() Status {
	s.stateMu.RLock()
	st := s.state
	s.stateMu.RUnlock()
	if s.Refresh != nil {
		s.Refresh(&st)
	}
	return st
}

// AddLog adds a log entry and broadcasts to clients
func (s *Server) AddLog(logType, message string) {
	entry := LogEntry{
		Time:    time.Now().Format("15:04:05"),
		Type:    logType,
		Message: message,
	}

	s.logsMu.Lock()
	s.logs = append(s.logs, entry)
	if len(s.logs) > s.cfg.LogSize {
		s.logs = s.logs[1:]
	}
	s.logsMu.Unlock()

	s.logHub.BroadcastJSON(entry)
}

// Logs returns the buffered log entries, oldest first.
func (s *Server) Logs() []LogEntry {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return append([]LogEntry(nil), s.logs...)
}

// PublishTranscript echoes a handled transcript to transcript clients.
func (s *Server) PublishTranscript(text, command string) {
	s.transcriptHub.BroadcastJSON(TranscriptEvent{Text: text, Command: command})
}

// SendCameraFrame sends a JPEG frame to all camera clients
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// CameraClients returns the number of connected camera clients.
func (s *Server) CameraClients() int {
	return s.cameraHub.ClientCount()
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
