package silero

import (
	"os"
	"testing"
)

func modelPath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("MOODCAM_VAD_MODEL")
	if path == "" {
		path = "../../../models/silero_vad.onnx"
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("silero model not found at %s", path)
	}
	return path
}

func TestDetectVoiceSilence(t *testing.T) {
	d, err := New(modelPath(t), 0.5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	speech, err := d.DetectVoice(make([]float32, 16000))
	if err != nil {
		t.Fatalf("DetectVoice: %v", err)
	}
	if speech {
		t.Error("silence detected as speech")
	}
}

func TestDetectVoiceShortInput(t *testing.T) {
	d := &Detector{}
	speech, err := d.DetectVoice(make([]float32, 100))
	if err != nil || speech {
		t.Errorf("DetectVoice(short): got %v, %v; want false, nil", speech, err)
	}
}
