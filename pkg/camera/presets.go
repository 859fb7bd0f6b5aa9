package camera

import "sort"

// Named capture presets accepted by UpdateConfig's "preset" key.
const (
	PresetDefault = "default"
	PresetLegacy  = "legacy"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
	PresetLowFPS  = "lowfps"
	PresetDetect  = "detect"
)

type preset struct {
	width, height, fps, quality int
}

// Mirror and Device are kept from the current config when a preset is
// applied through the manager; the values here start from DefaultConfig.
var presets = map[string]preset{
	PresetDefault: {1280, 720, 30, 80},
	Preset720p:    {1280, 720, 30, 80},
	Preset1080p:   {1920, 1080, 30, 85},
	PresetLegacy:  {640, 480, 30, 80},
	PresetLowFPS:  {640, 480, 10, 70},
	// Matches the 640 input of the face and object models, so frames need
	// no downscale before detection.
	PresetDetect: {640, 480, 15, 75},
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns the named preset, or nil if there is none.
func GetPreset(name string) *Config {
	p, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Framerate, cfg.Quality = p.width, p.height, p.fps, p.quality
	return &cfg
}
