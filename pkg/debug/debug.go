// Package debug provides global debug logging flags
package debug

import (
	"fmt"

	"github.com/teslashibe/go-moodcam/internal/log"
)

// Enabled controls whether debug logging is active
var Enabled bool

// Frames controls whether per-frame detection logs are shown.
// Use --debug-frames to enable these very verbose logs.
var Frames bool

// Log emits a debug message only if debug mode is enabled
func Log(format string, args ...interface{}) {
	if Enabled {
		log.Debug(fmt.Sprintf(format, args...))
	}
}

// FrameLog emits a message only if frame debugging is enabled
func FrameLog(format string, args ...interface{}) {
	if Frames {
		log.Info(fmt.Sprintf(format, args...), "scope", "frame")
	}
}
