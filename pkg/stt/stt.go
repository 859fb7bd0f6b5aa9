// Package stt turns microphone audio into voice transcripts.
//
// A Listener gates microphone chunks by loudness into utterances, asks a
// VoiceDetector whether an utterance contains speech, and hands the
// survivors to a Transcriber. Backends:
//   - whisper (local whisper.cpp, subpackage whisper)
//   - google (Cloud Speech-to-Text v1)
//   - openai (Whisper API)
//
// Listener implements voice.Recognizer, so a voice.Interpreter can drive
// the camera from it directly.
package stt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
)

// SampleRate is the rate utterances are delivered at.
const SampleRate = 16000

// Sentinel errors.
var (
	// ErrNoAPIKey is returned when a cloud backend has no credentials.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned for utterances without samples.
	ErrEmptyAudio = errors.New("stt: empty audio")
)

// Utterance is one loud stretch of microphone audio, mono PCM16.
type Utterance struct {
	Samples    []int16
	SampleRate int
	Start      time.Time
}

// Duration returns the playback length.
func (u Utterance) Duration() time.Duration {
	if u.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(u.Samples)) * time.Second / time.Duration(u.SampleRate)
}

// Chunk returns the utterance as an audio chunk.
func (u Utterance) Chunk() audioio.AudioChunk {
	return audioio.AudioChunk{Samples: u.Samples, SampleRate: u.SampleRate, Channels: 1}
}

// Float32 returns the samples scaled to [-1, 1].
func (u Utterance) Float32() []float32 {
	return audioio.Int16ToFloat32(u.Samples)
}

// Transcriber converts an utterance to text.
type Transcriber interface {
	Transcribe(ctx context.Context, u Utterance) (string, error)
	Name() string
}

// VoiceDetector reports whether samples (16kHz mono) contain speech.
type VoiceDetector interface {
	DetectVoice(samples []float32) (bool, error)
}

// TranscribeError wraps a backend failure.
type TranscribeError struct {
	Backend string
	Err     error
}

func (e *TranscribeError) Error() string {
	return fmt.Sprintf("stt [%s]: %v", e.Backend, e.Err)
}

func (e *TranscribeError) Unwrap() error {
	return e.Err
}
