package audioio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// ErrInvalidWAV is returned when data is not a RIFF/WAVE file.
var ErrInvalidWAV = errors.New("audioio: invalid wav data")

// EncodeWAV encodes a chunk as a 16-bit PCM WAV file held in memory.
func EncodeWAV(chunk AudioChunk) ([]byte, error) {
	channels := chunk.Channels
	if channels == 0 {
		channels = 1
	}

	// Emulate a file in RAM so the encoder can seek back to patch headers.
	file := &writerseeker.WriterSeeker{}
	enc := wav.NewEncoder(file, chunk.SampleRate, 16, channels, 1)

	data := make([]int, len(chunk.Samples))
	for i, s := range chunk.Samples {
		data[i] = int(s)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: chunk.SampleRate, NumChannels: channels},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}
	return io.ReadAll(file.Reader())
}

// DecodeWAV decodes a PCM WAV file. Samples deeper than 16 bits are
// scaled down to PCM16.
func DecodeWAV(data []byte) (AudioChunk, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return AudioChunk{}, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return AudioChunk{}, fmt.Errorf("decode wav: %w", err)
	}

	shift := 0
	if dec.BitDepth > 16 {
		shift = int(dec.BitDepth) - 16
	}
	samples := make([]int16, len(buf.Data))
	for i, v := range buf.Data {
		switch {
		case dec.BitDepth == 8:
			samples[i] = int16((v - 128) << 8)
		default:
			samples[i] = int16(v >> shift)
		}
	}

	return AudioChunk{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}
