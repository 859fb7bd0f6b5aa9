package stt

import (
	"fmt"
	"time"
)

// Backend names.
const (
	BackendWhisper = "whisper"
	BackendGoogle  = "google"
	BackendOpenAI  = "openai"
	BackendMock    = "mock"
)

// Config holds speech-to-text settings.
type Config struct {
	// Backend selects the transcriber: whisper, google, openai or mock.
	Backend string `yaml:"backend"`

	// Language is a BCP-47 code (e.g. "en-US"). Whisper and OpenAI use
	// only the primary subtag.
	Language string `yaml:"language"`

	// MinLevel is the RMS level (0-1) that marks a chunk as loud.
	MinLevel float64 `yaml:"min_level"`

	// Hangover keeps an utterance open through short pauses.
	Hangover time.Duration `yaml:"hangover"`

	// MinUtterance drops utterances shorter than this.
	MinUtterance time.Duration `yaml:"min_utterance"`

	// MaxUtterance force-closes long utterances.
	MaxUtterance time.Duration `yaml:"max_utterance"`

	// PreRoll is audio kept from before the utterance starts.
	PreRoll time.Duration `yaml:"pre_roll"`

	// VADModel is the Silero ONNX model path. Empty disables the speech check.
	VADModel string `yaml:"vad_model"`

	// VADThreshold is the Silero speech probability threshold.
	VADThreshold float32 `yaml:"vad_threshold"`

	// WhisperModel is the ggml model path for the whisper backend.
	WhisperModel string `yaml:"whisper_model"`

	// OpenAIModel is the transcription model for the openai backend.
	OpenAIModel string `yaml:"openai_model"`

	// Timeout bounds one cloud transcription.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendWhisper,
		Language:     "en-US",
		MinLevel:     0.014,
		Hangover:     time.Second,
		MinUtterance: 300 * time.Millisecond,
		MaxUtterance: 25 * time.Second,
		PreRoll:      200 * time.Millisecond,
		VADModel:     "models/silero_vad.onnx",
		VADThreshold: 0.5,
		WhisperModel: "models/ggml-base.en.bin",
		OpenAIModel:  "whisper-1",
		Timeout:      15 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendWhisper, BackendGoogle, BackendOpenAI, BackendMock:
	default:
		return fmt.Errorf("stt: unknown backend %q", c.Backend)
	}
	if c.MinLevel < 0 || c.MinLevel >= 1 {
		return fmt.Errorf("stt: min_level must be in [0, 1), got %v", c.MinLevel)
	}
	if c.Hangover <= 0 {
		return fmt.Errorf("stt: hangover must be positive")
	}
	if c.MaxUtterance <= c.MinUtterance {
		return fmt.Errorf("stt: max_utterance must exceed min_utterance")
	}
	if c.Backend == BackendWhisper && c.WhisperModel == "" {
		return fmt.Errorf("stt: whisper_model required for whisper backend")
	}
	return nil
}

// primaryLanguage returns the primary subtag of a BCP-47 code.
func primaryLanguage(tag string) string {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '-' || tag[i] == '_' {
			return tag[:i]
		}
	}
	return tag
}

// PrimaryLanguage returns the primary subtag of the configured language.
func (c *Config) PrimaryLanguage() string {
	return primaryLanguage(c.Language)
}
