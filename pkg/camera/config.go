// Package camera owns the camera lifecycle: the Off/Starting/On/Stopping
// state machine, the active session, and the capture settings.
package camera

import "strconv"

// Config holds capture settings. Changes take effect on the next start.
type Config struct {
	// Device is a capture index ("0") or a file/stream URL.
	Device    string `json:"device" yaml:"device"`
	Width     int    `json:"width" yaml:"width"`         // Requested frame width
	Height    int    `json:"height" yaml:"height"`       // Requested frame height
	Framerate int    `json:"framerate" yaml:"framerate"` // Requested FPS
	Quality   int    `json:"quality" yaml:"quality"`     // JPEG quality 1-100 for published frames
	Mirror    bool   `json:"mirror" yaml:"mirror"`       // Flip horizontally like a selfie view
}

// Capture limits.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     1280,
		Height:    720,
		Framerate: 30,
		Quality:   80,
		Mirror:    true,
	}
}

// LegacyConfig returns a 640x480 configuration for older webcams.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// DeviceIndex returns the numeric capture index, or false when Device is a
// path or URL.
func (c *Config) DeviceIndex() (int, bool) {
	n, err := strconv.Atoi(c.Device)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Device == "" {
		errors = append(errors, "device must be set")
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	return errors
}
