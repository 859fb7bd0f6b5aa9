package web

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/hub"
	"github.com/teslashibe/go-moodcam/pkg/voice"
)

// greetingLogs is how many buffered log entries a new log client receives.
const greetingLogs = 100

// handleStatus returns the current status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

// handleCameraStart starts the camera. Starting an active camera is not an
// error.
func (s *Server) handleCameraStart(c *fiber.Ctx) error {
	sess, err := s.cam.Start(s.baseContext())
	switch {
	case err == nil:
		s.AddLog("command", "Camera started from dashboard")
		return c.JSON(fiber.Map{
			"state":      s.cam.State().String(),
			"session_id": sess.ID.String(),
			"generation": sess.Generation,
		})
	case errors.Is(err, camera.ErrAlreadyActive):
		return c.JSON(fiber.Map{
			"state":   s.cam.State().String(),
			"message": "camera already active",
		})
	case errors.Is(err, camera.ErrDeviceUnavailable):
		s.AddLog("error", err.Error())
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, camera.ErrStartCancelled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

// handleCameraStop stops the camera. Stopping an inactive camera is not an
// error.
func (s *Server) handleCameraStop(c *fiber.Ctx) error {
	switch err := s.cam.Stop(); {
	case err == nil:
		s.AddLog("command", "Camera stopped from dashboard")
		return c.JSON(fiber.Map{"state": s.cam.State().String()})
	case errors.Is(err, camera.ErrNotActive):
		return c.JSON(fiber.Map{
			"state":   s.cam.State().String(),
			"message": "camera not active",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
}

// handleGetCameraConfig returns the capture settings
func (s *Server) handleGetCameraConfig(c *fiber.Ctx) error {
	return c.JSON(s.cam.GetConfigJSON())
}

// handleUpdateCameraConfig applies a partial capture settings update. It
// takes effect on the next start.
func (s *Server) handleUpdateCameraConfig(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := json.Unmarshal(c.Body(), &params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}
	if err := s.cam.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.cam.GetConfigJSON())
}

// handlePostTranscript feeds one browser transcript to the interpreter
func (s *Server) handlePostTranscript(c *fiber.Ctx) error {
	var ev TranscriptEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}
	if strings.TrimSpace(ev.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}
	if !s.push(ev) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no voice session is listening",
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

// push forwards ev to the transcript feed. Final defaults to true.
func (s *Server) push(ev TranscriptEvent) bool {
	if s.feed == nil {
		return false
	}
	final := true
	if ev.Final != nil {
		final = *ev.Final
	}
	return s.feed.Push(voice.Transcript{Text: ev.Text, Final: final})
}

// handleGetLogs returns recent log entries
func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	return c.JSON(s.Logs())
}

// handleStatusWS streams status updates, starting with the current one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	var opts []hub.ClientOption
	if data, err := json.Marshal(s.Snapshot()); err == nil {
		opts = append(opts, hub.WithGreeting(hub.JSON(data)))
	}
	if client := hub.NewClient(s.statusHub, c, opts...); client != nil {
		client.Run()
	}
}

// handleLogsWS streams log entries, starting with the most recent ones
func (s *Server) handleLogsWS(c *websocket.Conn) {
	logs := s.Logs()
	if len(logs) > greetingLogs {
		logs = logs[len(logs)-greetingLogs:]
	}
	var opts []hub.ClientOption
	for _, entry := range logs {
		if data, err := json.Marshal(entry); err == nil {
			opts = append(opts, hub.WithGreeting(hub.JSON(data)))
		}
	}
	if client := hub.NewClient(s.logHub, c, opts...); client != nil {
		client.Run()
	}
}

// handleCameraWS streams composited overlay frames as binary JPEG messages
func (s *Server) handleCameraWS(c *websocket.Conn) {
	if client := hub.NewClient(s.cameraHub, c); client != nil {
		client.Run()
	}
}

// handleTranscriptsWS reads transcripts from the browser and echoes the
// ones the interpreter handled
func (s *Server) handleTranscriptsWS(c *websocket.Conn) {
	reader := hub.WithReader(func(data []byte) {
		var ev TranscriptEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("invalid transcript message", "error", err)
			return
		}
		if strings.TrimSpace(ev.Text) == "" {
			return
		}
		if !s.push(ev) {
			s.logger.Debug("transcript dropped, no voice session", "text", ev.Text)
		}
	})
	if client := hub.NewClient(s.transcriptHub, c, reader); client != nil {
		client.Run()
	}
}
