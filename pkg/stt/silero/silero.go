// Package silero checks utterances for speech with the Silero VAD model.
package silero

import (
	"fmt"
	"sync"

	"github.com/streamer45/silero-vad-go/speech"

	"github.com/teslashibe/go-moodcam/pkg/stt"
)

// minSamples is two 512-sample model windows at 16kHz.
const minSamples = 1024

// Detector wraps a Silero detector. Calls are serialized.
type Detector struct {
	mu sync.Mutex
	d  *speech.Detector
}

// New loads the ONNX model at path.
func New(path string, threshold float32) (*Detector, error) {
	d, err := speech.NewDetector(speech.DetectorConfig{
		ModelPath:            path,
		SampleRate:           stt.SampleRate,
		Threshold:            threshold,
		MinSilenceDurationMs: 100,
		SpeechPadMs:          30,
	})
	if err != nil {
		return nil, fmt.Errorf("create silero detector: %w", err)
	}
	return &Detector{d: d}, nil
}

// DetectVoice reports whether samples hold at least one speech segment.
func (d *Detector) DetectVoice(samples []float32) (bool, error) {
	if len(samples) < minSamples {
		return false, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.d.Reset(); err != nil {
		return false, fmt.Errorf("reset silero detector: %w", err)
	}
	segments, err := d.d.Detect(samples)
	if err != nil {
		return false, fmt.Errorf("detect speech: %w", err)
	}
	return len(segments) > 0, nil
}

// Close releases the model.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.d.Destroy()
}

var _ stt.VoiceDetector = (*Detector)(nil)
