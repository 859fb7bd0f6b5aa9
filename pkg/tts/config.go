package tts

import (
	"log/slog"
	"time"
)

// Config is shared by all providers. Build it with Options.
type Config struct {
	APIKey  string
	BaseURL string // Tests and proxies

	VoiceID      string
	ModelID      string
	LanguageCode string  // BCP-47, e.g. en-US
	Speed        float64 // 1.0 is normal

	OutputFormat Encoding
	SampleRate   int

	Timeout    time.Duration // Per request
	MaxRetries int
	RetryDelay time.Duration // Multiplied by the attempt number

	Logger *slog.Logger
}

// Option sets a Config field.
type Option func(*Config)

func WithAPIKey(key string) Option         { return func(c *Config) { c.APIKey = key } }
func WithBaseURL(url string) Option        { return func(c *Config) { c.BaseURL = url } }
func WithVoice(id string) Option           { return func(c *Config) { c.VoiceID = id } }
func WithModel(id string) Option           { return func(c *Config) { c.ModelID = id } }
func WithLanguage(code string) Option      { return func(c *Config) { c.LanguageCode = code } }
func WithSpeed(speed float64) Option       { return func(c *Config) { c.Speed = speed } }
func WithOutputFormat(enc Encoding) Option { return func(c *Config) { c.OutputFormat = enc } }
func WithTimeout(d time.Duration) Option   { return func(c *Config) { c.Timeout = d } }
func WithLogger(l *slog.Logger) Option     { return func(c *Config) { c.Logger = l } }

// WithRetry retries rate limits and server errors up to n more times.
func WithRetry(n int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = n
		c.RetryDelay = delay
	}
}

// DefaultConfig is 24 kHz PCM in en-US at normal speed.
func DefaultConfig() *Config {
	return &Config{
		LanguageCode: "en-US",
		Speed:        1.0,
		OutputFormat: EncodingPCM24,
		SampleRate:   24000,
		Timeout:      30 * time.Second,
		MaxRetries:   2,
		RetryDelay:   100 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

// Apply runs opts in order. A nil logger falls back to slog.Default.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate requires an API key.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
