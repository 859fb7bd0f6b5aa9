package tts

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/teslashibe/go-moodcam/pkg/audioio"
)

// Decode converts a synthesis result to PCM16 samples.
func Decode(result *AudioResult) (audioio.AudioChunk, error) {
	if result == nil || len(result.Audio) == 0 {
		return audioio.AudioChunk{}, nil
	}

	switch result.Format.Encoding {
	case EncodingPCM16, EncodingPCM24:
		rate := result.Format.SampleRate
		if rate == 0 {
			rate = SampleRateFromEncoding(result.Format.Encoding)
		}
		channels := result.Format.Channels
		if channels == 0 {
			channels = 1
		}
		return audioio.AudioChunk{
			Samples:    audioio.BytesToSamples(result.Audio),
			SampleRate: rate,
			Channels:   channels,
		}, nil

	case EncodingWAV:
		return audioio.DecodeWAV(result.Audio)

	case EncodingMP3:
		return decodeMP3(result.Audio)

	default:
		return audioio.AudioChunk{}, fmt.Errorf("%w: %s", ErrUnsupportedEncoding, result.Format.Encoding)
	}
}

// decodeMP3 decodes to interleaved stereo PCM16, the go-mp3 output format.
func decodeMP3(data []byte) (audioio.AudioChunk, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audioio.AudioChunk{}, fmt.Errorf("mp3 decoder: %w", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return audioio.AudioChunk{}, fmt.Errorf("mp3 decode: %w", err)
	}

	return audioio.AudioChunk{
		Samples:    audioio.BytesToSamples(pcm),
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
