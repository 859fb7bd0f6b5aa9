// Package config loads moodcam settings from a YAML file, a .env file and
// the environment. Flag parsing is done in cmd/moodcam; this package is
// data only.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
	"github.com/teslashibe/go-moodcam/pkg/camera"
	"github.com/teslashibe/go-moodcam/pkg/detectloop"
	"github.com/teslashibe/go-moodcam/pkg/perception/detection"
	"github.com/teslashibe/go-moodcam/pkg/stt"
	"github.com/teslashibe/go-moodcam/pkg/voice"
	"github.com/teslashibe/go-moodcam/pkg/web"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "moodcam.yaml"

// TTS provider names.
const (
	TTSOpenAI = "openai"
	TTSGoogle = "google"
	TTSMock   = "mock"
)

// Config holds all configuration for moodcam.
type Config struct {
	LogLevel    string `yaml:"log_level"`
	Debug       bool   `yaml:"debug"`        // Verbose debug logging
	DebugFrames bool   `yaml:"debug_frames"` // Per-frame detection logs
	Preview     bool   `yaml:"preview"`      // Show composited frames in a local window

	Camera   camera.Config     `yaml:"camera"`
	Models   detection.Config  `yaml:"models"`
	Loop     detectloop.Config `yaml:"loop"`
	Voice    VoiceConfig       `yaml:"voice"`
	STT      stt.Config        `yaml:"stt"`
	Audio    audioio.Config    `yaml:"audio"`    // Microphone
	Playback audioio.Config    `yaml:"playback"` // Speaker
	TTS      TTSConfig         `yaml:"tts"`
	Web      WebConfig         `yaml:"web"`

	// API keys come from the environment only.
	OpenAIKey    string `yaml:"-"`
	GoogleAPIKey string `yaml:"-"`
}

// VoiceConfig selects the transcript sources and the interpreter settings.
type VoiceConfig struct {
	voice.Config `yaml:",inline"`

	// Microphone listens through the local speech-to-text pipeline.
	Microphone bool `yaml:"microphone"`
	// Browser accepts transcripts from the dashboard page.
	Browser bool `yaml:"browser"`
}

// TTSConfig configures speech output. Providers are tried in order; an
// empty list disables speech.
type TTSConfig struct {
	Providers []string `yaml:"providers"`
	Language  string   `yaml:"language"`
	Speed     float64  `yaml:"speed"`
	Format    string   `yaml:"format"` // pcm_24000, wav or mp3

	OpenAIVoice string `yaml:"openai_voice"`
	OpenAIModel string `yaml:"openai_model"`
	GoogleVoice string `yaml:"google_voice"` // e.g. en-US-Neural2-F; empty picks by language
}

// WebConfig configures the dashboard.
type WebConfig struct {
	web.Config `yaml:",inline"`

	Enabled bool `yaml:"enabled"`
	// FrameRate caps how often composited frames are encoded for viewers.
	FrameRate float64 `yaml:"frame_rate"`
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// DefaultConfig returns sensible defaults: local whisper recognition, the
// browser feed, OpenAI speech and the dashboard on :8080.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Camera:   camera.DefaultConfig(),
		Models:   detection.DefaultConfig(),
		Loop:     detectloop.DefaultConfig(),
		Voice: VoiceConfig{
			Config:     voice.DefaultConfig(),
			Microphone: true,
			Browser:    true,
		},
		STT:      stt.DefaultConfig(),
		Audio:    audioio.DefaultConfig(),
		Playback: audioio.PlaybackConfig(),
		TTS: TTSConfig{
			Providers: []string{TTSOpenAI},
			Language:  "en-US",
			Speed:     1.0,
			Format:    "pcm_24000",
		},
		Web: WebConfig{
			Config:    web.DefaultConfig(),
			Enabled:   true,
			FrameRate: 15,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path tries DefaultPath and tolerates its absence.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.Decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Decode merges YAML from r into c. Unknown keys are rejected.
func (c *Config) Decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv applies environment overrides using lookup (os.LookupEnv in
// production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: key, Message: fmt.Sprintf("invalid boolean %q", v)}
		}
		*dst = b
		return nil
	}

	str("OPENAI_API_KEY", &c.OpenAIKey)
	str("GOOGLE_API_KEY", &c.GoogleAPIKey)
	str("MOODCAM_LOG_LEVEL", &c.LogLevel)
	str("MOODCAM_CAMERA_DEVICE", &c.Camera.Device)
	str("MOODCAM_MODELS_DIR", &c.Models.ModelDir)
	str("MOODCAM_STT_BACKEND", &c.STT.Backend)
	str("MOODCAM_WEB_ADDR", &c.Web.Addr)

	if v, ok := lookup("MOODCAM_TTS_PROVIDERS"); ok {
		c.TTS.Providers = splitList(v)
	}

	if err := boolean("MOODCAM_DEBUG", &c.Debug); err != nil {
		return err
	}
	if err := boolean("MOODCAM_MICROPHONE", &c.Voice.Microphone); err != nil {
		return err
	}
	if err := boolean("MOODCAM_PREVIEW", &c.Preview); err != nil {
		return err
	}
	return boolean("MOODCAM_WEB", &c.Web.Enabled)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" && s != "none" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that the configuration is usable. It returns the first
// problem as a *ConfigError.
func (c *Config) Validate() error {
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "camera", Message: strings.Join(errs, "; ")}
	}
	if err := c.Models.Validate(); err != nil {
		return &ConfigError{Field: "models", Message: err.Error()}
	}
	if c.Loop.RefreshRate <= 0 {
		return &ConfigError{Field: "loop.refresh_rate", Message: "must be positive"}
	}
	if err := c.Voice.Validate(); err != nil {
		return &ConfigError{Field: "voice", Message: err.Error()}
	}
	if !c.Voice.Microphone && !(c.Voice.Browser && c.Web.Enabled) {
		return &ConfigError{Field: "voice", Message: "enable the microphone or the browser feed with the dashboard"}
	}

	if c.Voice.Microphone {
		if err := c.STT.Validate(); err != nil {
			return &ConfigError{Field: "stt", Message: err.Error()}
		}
		if err := c.Audio.Validate(); err != nil {
			return &ConfigError{Field: "audio", Message: err.Error()}
		}
		if c.STT.Backend == stt.BackendOpenAI && c.OpenAIKey == "" {
			return &ConfigError{Field: "OPENAI_API_KEY", Message: "required for the openai stt backend"}
		}
	}

	for _, p := range c.TTS.Providers {
		switch p {
		case TTSOpenAI:
			if c.OpenAIKey == "" {
				return &ConfigError{Field: "OPENAI_API_KEY", Message: "required for openai speech"}
			}
		case TTSGoogle, TTSMock:
		default:
			return &ConfigError{Field: "tts.providers", Message: fmt.Sprintf("unknown provider %q", p)}
		}
	}
	if len(c.TTS.Providers) > 0 {
		if c.TTS.Speed <= 0 {
			return &ConfigError{Field: "tts.speed", Message: "must be positive"}
		}
		if err := c.Playback.Validate(); err != nil {
			return &ConfigError{Field: "playback", Message: err.Error()}
		}
	}

	if c.Web.Enabled {
		if c.Web.Addr == "" {
			return &ConfigError{Field: "web.addr", Message: "required when the dashboard is enabled"}
		}
		if c.Web.FrameRate <= 0 {
			return &ConfigError{Field: "web.frame_rate", Message: "must be positive"}
		}
	}
	return nil
}
