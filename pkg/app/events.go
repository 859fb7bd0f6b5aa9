package app

import (
	evbus "github.com/asaskevich/EventBus"

	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/voice"
)

// Bus topics. Handlers must match the listed signature exactly.
const (
	// TopicCameraState: func(prev, next camera.State)
	TopicCameraState = "camera:state"
	// TopicExpression: func(text string)
	TopicExpression = "expression:text"
	// TopicTranscript: func(source, text string, cmd voice.Command)
	TopicTranscript = "voice:transcript"
	// TopicStatus: func(msg string)
	TopicStatus = "voice:status"
	// TopicDetection: func(ready bool, reason string)
	TopicDetection = "detection:ready"
	// TopicSpoken: func(text string)
	TopicSpoken = "speech:spoken"
)

// events publishes typed notifications on the bus.
type events struct {
	bus evbus.Bus
}

func (e events) cameraState(prev, next camera.State) {
	e.bus.Publish(TopicCameraState, prev, next)
}

func (e events) expression(text string) {
	e.bus.Publish(TopicExpression, text)
}

func (e events) transcript(source, text string, cmd voice.Command) {
	e.bus.Publish(TopicTranscript, source, text, cmd)
}

func (e events) status(msg string) {
	e.bus.Publish(TopicStatus, msg)
}

func (e events) detection(err error) {
	if err != nil {
		e.bus.Publish(TopicDetection, false, err.Error())
		return
	}
	e.bus.Publish(TopicDetection, true, "")
}

func (e events) spoken(text string) {
	e.bus.Publish(TopicSpoken, text)
}
