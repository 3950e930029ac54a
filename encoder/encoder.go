package encoder

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

// Container frames a finished PCM16 recording into an uploadable file.
type Container struct {
	format Format
}

func NewContainer(format string) (*Container, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(format))); f {
	case FormatWAV, FormatFLAC:
		return &Container{format: f}, nil
	case "":
		return &Container{format: FormatWAV}, nil
	default:
		return nil, fmt.Errorf("unknown audio format %q (use wav or flac)", format)
	}
}

func (c *Container) Format() Format { return c.format }

func (c *Container) MimeType() string {
	if c.format == FormatFLAC {
		return "audio/flac"
	}
	return "audio/wav"
}

func (c *Container) newEncoder(totalSamples uint64) (Encoder, error) {
	if c.format == FormatFLAC {
		return NewFlac(totalSamples)
	}
	return NewWAV(SampleRate, Channels), nil
}

// Seal encodes little-endian PCM16 bytes block by block and returns the
// finished file. An odd trailing byte is dropped.
func (c *Container) Seal(pcm []byte) ([]byte, error) {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}

	enc, err := c.newEncoder(uint64(len(samples)))
	if err != nil {
		return nil, err
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
