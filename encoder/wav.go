package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const WAVHeaderSize = 44

var ErrNotWAV = errors.New("not a RIFF/WAVE file")

type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// WAVEncoder buffers PCM16 samples and emits a canonical 44-byte-header
// WAV file on Close.
type WAVEncoder struct {
	sampleRate int
	channels   int
	samples    []int16
	buf        bytes.Buffer
}

func NewWAV(sampleRate, channels int) *WAVEncoder {
	return &WAVEncoder{sampleRate: sampleRate, channels: channels}
}

func (w *WAVEncoder) EncodeBlock(block []int16) error {
	w.samples = append(w.samples, block...)
	return nil
}

func (w *WAVEncoder) Close() error {
	w.buf.Reset()
	w.buf.Write(WAVHeader(len(w.samples)*2, w.sampleRate, w.channels))
	return binary.Write(&w.buf, binary.LittleEndian, w.samples)
}

func (w *WAVEncoder) Bytes() []byte { return w.buf.Bytes() }

func (w *WAVEncoder) TotalFrames() uint64 { return uint64(len(w.samples) / max(w.channels, 1)) }

// WAVHeader returns a PCM16 header for dataSize bytes of sample data.
func WAVHeader(dataSize, sampleRate, channels int) []byte {
	h := make([]byte, WAVHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(WAVHeaderSize-8+dataSize))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(h[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(h[34:36], 16)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataSize))
	return h
}

// DecodeWAV walks the RIFF chunks of a PCM WAV file and returns its format
// and the raw sample bytes of the data chunk.
func DecodeWAV(data []byte) (WAVInfo, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, nil, ErrNotWAV
	}

	var info WAVInfo
	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) || size < 0 {
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return WAVInfo{}, nil, fmt.Errorf("wav fmt chunk too short: %d bytes", end-body)
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			if audioFormat != 1 && audioFormat != 0xFFFE {
				return WAVInfo{}, nil, fmt.Errorf("unsupported wav encoding %d (want PCM)", audioFormat)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return WAVInfo{}, nil, errors.New("wav data chunk before fmt chunk")
			}
			return info, data[body:end], nil
		}

		pos = end + size%2 // chunks are word aligned
	}
	return WAVInfo{}, nil, errors.New("wav file has no data chunk")
}
