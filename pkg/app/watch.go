package app

import (
	"fmt"

	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/voice"
	"github.com/teslashibe/go-moodcam/pkg/web"
)

// subscribe routes bus events to the log and the dashboard.
func (a *App) subscribe() {
	a.bus.Subscribe(TopicCameraState, func(prev, next camera.State) {
		a.logger.Info("camera state", "from", prev, "to", next, "generation", a.camera.Generation())
		a.dashboard(nil, "info", "camera "+next.String())
	})

	a.bus.Subscribe(TopicExpression, func(text string) {
		a.logger.Debug("expression", "text", text)
		a.dashboard(nil, "expression", text)
	})

	a.bus.Subscribe(TopicTranscript, func(source, text string, cmd voice.Command) {
		a.logger.Info("transcript", "source", source, "text", text, "command", cmd)
		if a.server == nil {
			return
		}
		a.server.PublishTranscript(text, cmd.String())
		msg := ""
		if cmd != voice.Unknown {
			msg = fmt.Sprintf("%s: %q", cmd, text)
		}
		a.dashboard(func(st *web.Status) {
			st.LastTranscript = text
			st.LastCommand = cmd.String()
		}, "command", msg)
	})

	a.bus.Subscribe(TopicStatus, func(msg string) {
		a.mu.Lock()
		a.status = msg
		a.mu.Unlock()
		a.logger.Info("voice status", "status", msg)
		a.dashboard(func(st *web.Status) { st.StatusText = msg }, "info", msg)
	})

	a.bus.Subscribe(TopicDetection, func(ready bool, reason string) {
		if ready {
			a.dashboard(nil, "info", "detection ready")
			return
		}
		a.dashboard(func(st *web.Status) { st.DetectionError = reason }, "error", "detection failed: "+reason)
	})

	a.bus.Subscribe(TopicSpoken, func(text string) {
		a.dashboard(func(st *web.Status) { st.LastSpoken = text }, "", "")
	})
}

// dashboard applies update, broadcasts the status and adds a log line when
// msg is set. It is a no-op without a server.
func (a *App) dashboard(update func(*web.Status), logType, msg string) {
	if a.server == nil {
		return
	}
	if update == nil {
		update = func(*web.Status) {}
	}
	a.server.UpdateState(update)
	if msg != "" {
		a.server.AddLog(logType, msg)
	}
}

// refresh fills the live fields of a dashboard status.
func (a *App) refresh(st *web.Status) {
	st.CameraState = a.camera.State().String()
	st.Generation = a.camera.Generation()
	st.SessionID = ""
	if sess, ok := a.camera.Session(); ok {
		st.SessionID = sess.ID.String()
	}
	st.ExpressionText = a.agg.Text()

	a.mu.Lock()
	ready, loop := a.ready, a.loop
	a.mu.Unlock()
	if ready != nil {
		st.DetectionReady = ready.Ready()
	}
	if loop != nil {
		st.Loop = loop.Stats()
	}

	st.VoiceListening = false
	for _, v := range a.voices {
		if v.interp.Metrics().Snapshot().Listening {
			st.VoiceListening = true
		}
	}

	if a.mic != nil {
		mic := a.mic.Stats()
		st.Microphone = &mic
	}

	if a.speaker != nil {
		stats := a.speaker.Stats()
		st.Speaking = stats.Speaking
		if stats.LastText != "" {
			st.LastSpoken = stats.LastText
		}
	}
}
