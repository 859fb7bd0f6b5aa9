package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.OpenAIKey = "sk-test"
	return cfg
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDecodeMergesOverDefaults(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Decode(strings.NewReader(`
log_level: debug
camera:
  device: "2"
  width: 640
  height: 480
loop:
  refresh_rate: 60
  concurrent: true
voice:
  restart_delay: 500ms
  browser: false
stt:
  backend: google
  hangover: 800ms
tts:
  providers: [google, mock]
web:
  addr: ":9090"
`))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "2", cfg.Camera.Device)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 30, cfg.Camera.Framerate, "unset fields keep defaults")
	assert.Equal(t, 60.0, cfg.Loop.RefreshRate)
	assert.True(t, cfg.Loop.Concurrent)
	assert.Equal(t, 500*time.Millisecond, cfg.Voice.RestartDelay)
	assert.False(t, cfg.Voice.Browser)
	assert.True(t, cfg.Voice.Microphone)
	assert.Equal(t, "google", cfg.STT.Backend)
	assert.Equal(t, 800*time.Millisecond, cfg.STT.Hangover)
	assert.Equal(t, []string{"google", "mock"}, cfg.TTS.Providers)
	assert.Equal(t, ":9090", cfg.Web.Addr)
	assert.True(t, cfg.Web.Enabled)

	assert.NoError(t, cfg.Validate(), "no OpenAI key needed without OpenAI backends")
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Decode(strings.NewReader("camera:\n  resolution: 4k\n"))
	assert.Error(t, err)
}

func TestDecodeEmpty(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Decode(strings.NewReader("")))
	assert.Equal(t, DefaultConfig().Camera, cfg.Camera)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{
		"OPENAI_API_KEY":        "sk-env",
		"GOOGLE_API_KEY":        "g-env",
		"MOODCAM_CAMERA_DEVICE": "/dev/video2",
		"MOODCAM_MODELS_DIR":    "/opt/models",
		"MOODCAM_STT_BACKEND":   "openai",
		"MOODCAM_TTS_PROVIDERS": "google, openai",
		"MOODCAM_DEBUG":         "true",
		"MOODCAM_WEB":           "0",
		"MOODCAM_PREVIEW":       "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, "sk-env", cfg.OpenAIKey)
	assert.Equal(t, "g-env", cfg.GoogleAPIKey)
	assert.Equal(t, "/dev/video2", cfg.Camera.Device)
	assert.Equal(t, "/opt/models", cfg.Models.ModelDir)
	assert.Equal(t, "openai", cfg.STT.Backend)
	assert.Equal(t, []string{"google", "openai"}, cfg.TTS.Providers)
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.Web.Enabled)
	assert.True(t, cfg.Preview)
}

func TestApplyEnvDisablesSpeech(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(env(map[string]string{"MOODCAM_TTS_PROVIDERS": "none"})))
	assert.Empty(t, cfg.TTS.Providers)
}

func TestApplyEnvInvalidBool(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{"MOODCAM_DEBUG": "maybe"}))

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "MOODCAM_DEBUG", cerr.Field)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"openai speech needs key", func(c *Config) { c.OpenAIKey = "" }, "OPENAI_API_KEY"},
		{"openai stt needs key", func(c *Config) {
			c.OpenAIKey = ""
			c.TTS.Providers = nil
			c.STT.Backend = "openai"
		}, "OPENAI_API_KEY"},
		{"unknown tts provider", func(c *Config) { c.TTS.Providers = []string{"elevenlabs"} }, "tts.providers"},
		{"bad camera", func(c *Config) { c.Camera.Width = -1 }, "camera"},
		{"bad refresh rate", func(c *Config) { c.Loop.RefreshRate = 0 }, "loop.refresh_rate"},
		{"bad stt backend", func(c *Config) { c.STT.Backend = "vosk" }, "stt"},
		{"no transcript source", func(c *Config) {
			c.Voice.Microphone = false
			c.Web.Enabled = false
		}, "voice"},
		{"dashboard needs addr", func(c *Config) { c.Web.Addr = "" }, "web.addr"},
		{"bad face threshold", func(c *Config) { c.Models.FaceThresh = 2 }, "models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)

			var cerr *ConfigError
			require.True(t, errors.As(cfg.Validate(), &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestValidateSkipsMicrophoneWhenDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Voice.Microphone = false
	cfg.STT.Backend = "unknown"
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moodcam.yaml")
	require.NoError(t, os.WriteFile(path, []byte("camera:\n  framerate: 15\n"), 0o644))

	t.Setenv("MOODCAM_WEB_ADDR", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Camera.Framerate)
	assert.Equal(t, ":7000", cfg.Web.Addr)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err, "an explicit path must exist")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MOODCAM_TEST_DOTENV=from-file\n"), 0o644))

	t.Setenv("MOODCAM_TEST_DOTENV", "")
	os.Unsetenv("MOODCAM_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "absent.env")))
	assert.Equal(t, "from-file", os.Getenv("MOODCAM_TEST_DOTENV"))
}
