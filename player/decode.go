package player

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"jarvis/encoder"
)

// decode turns a fetched reply into interleaved PCM16. The container is
// sniffed from the leading bytes: RIFF/WAVE or MPEG audio (with or
// without an ID3v2 tag).
func decode(data []byte) (pcm []int16, rate, channels int, err error) {
	switch {
	case isWAV(data):
		return decodeWAV(data)
	case isMP3(data):
		return decodeMP3(data)
	}
	return nil, 0, 0, ErrUnsupported
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if bytes.HasPrefix(data, []byte("ID3")) {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeWAV(data []byte) ([]int16, int, int, error) {
	info, raw, err := encoder.DecodeWAV(data)
	if err != nil {
		return nil, 0, 0, err
	}
	if info.BitsPerSample != 16 || info.Channels < 1 || info.Channels > 2 || info.SampleRate <= 0 {
		return nil, 0, 0, fmt.Errorf("%w: %d-bit %d channel", ErrUnsupported, info.BitsPerSample, info.Channels)
	}
	return toInt16(raw), info.SampleRate, info.Channels, nil
}

// go-mp3 always yields 16-bit little-endian stereo.
func decodeMP3(data []byte) ([]int16, int, int, error) {
	d, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mp3: %w", err)
	}
	raw, err := io.ReadAll(d)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("mp3: %w", err)
	}
	if len(raw) == 0 {
		return nil, 0, 0, fmt.Errorf("%w: empty mp3 stream", ErrUnsupported)
	}
	return toInt16(raw), d.SampleRate(), 2, nil
}
