// Package tts speaks short phrases through the speaker.
//
// Providers (OpenAI, Google Cloud Text-to-Speech, Mock) synthesize audio;
// a Chain falls back across them; a Speaker queues phrases, decodes the
// audio and plays it on an audioio.Sink. Speaker implements the
// expression package's Speak/CancelAll contract.
//
// Example usage:
//
//	provider, _ := tts.NewOpenAI(tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	speaker := tts.NewSpeaker(provider, sink, logger)
//	go speaker.Run(ctx)
//	speaker.Speak("You look happy")
package tts

import (
	"context"
	"time"
)

// Provider turns text into audio.
type Provider interface {
	// Synthesize returns the complete audio for text.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)
	// Health verifies connectivity and credentials.
	Health(ctx context.Context) error
	Close() error
}

// AudioResult is one synthesized phrase.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration // Zero when the container hides it
	CharCount int
	LatencyMs int64
}

// AudioFormat describes AudioResult.Audio. Zero fields mean "carried by
// the container" or, for raw PCM, "implied by the encoding".
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// Encoding names an audio format. Values match the tts.format setting.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000" // Raw little-endian PCM16 mono
	EncodingPCM24 Encoding = "pcm_24000"
	EncodingWAV   Encoding = "wav"
	EncodingMP3   Encoding = "mp3"
)

// SampleRateFromEncoding returns the rate of a raw PCM encoding, or 0.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM24:
		return 24000
	}
	return 0
}

// providerName returns the name a provider reports, for logs and errors.
func providerName(p Provider) string {
	if n, ok := p.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "provider"
}
