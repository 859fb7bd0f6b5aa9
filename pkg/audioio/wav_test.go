package audioio

import (
	"testing"
)

func TestEncodeDecodeWAV(t *testing.T) {
	in := AudioChunk{
		Samples:    []int16{0, 1000, -1000, 32767, -32768},
		SampleRate: 16000,
		Channels:   1,
	}

	data, err := EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE header: %q", data[:12])
	}

	out, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Errorf("format: got %dHz/%dch, want 16000Hz/1ch", out.SampleRate, out.Channels)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("samples: got %d, want %d", len(out.Samples), len(in.Samples))
	}
	for i := range in.Samples {
		if out.Samples[i] != in.Samples[i] {
			t.Errorf("sample %d: got %d, want %d", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, err := DecodeWAV([]byte("not a wav file at all")); err != ErrInvalidWAV {
		t.Errorf("DecodeWAV: got %v, want ErrInvalidWAV", err)
	}
}
