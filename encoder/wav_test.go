package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func pcm16(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestContainerWAVRoundTrip(t *testing.T) {
	c, err := NewContainer("wav")
	if err != nil {
		t.Fatal(err)
	}
	pcm := pcm16(1, -2, 300, -32768, 32767)

	out, err := c.Seal(pcm)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(out) != WAVHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), WAVHeaderSize+len(pcm))
	}

	info, data, err := DecodeWAV(out)
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if info.SampleRate != SampleRate || info.Channels != Channels || info.BitsPerSample != 16 {
		t.Errorf("info = %+v", info)
	}
	if !bytes.Equal(data, pcm) {
		t.Errorf("data mismatch")
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	pcm := pcm16(5, 6, 7)
	full := WAVHeader(len(pcm), 22050, 2)

	// splice a LIST chunk between fmt and data
	var buf bytes.Buffer
	buf.Write(full[:36])
	buf.WriteString("LIST")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	buf.Write([]byte{'a', 'b', 'c', 0})
	buf.Write(full[36:])
	buf.Write(pcm)

	info, data, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV: %v", err)
	}
	if info.SampleRate != 22050 || info.Channels != 2 {
		t.Errorf("info = %+v", info)
	}
	if !bytes.Equal(data, pcm) {
		t.Errorf("data = %v, want %v", data, pcm)
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("ID3\x03 definitely mp3")); !errors.Is(err, ErrNotWAV) {
		t.Errorf("err = %v, want ErrNotWAV", err)
	}
}

func TestNewContainer(t *testing.T) {
	for _, tt := range []struct {
		in   string
		want Format
		mime string
	}{
		{"wav", FormatWAV, "audio/wav"},
		{"FLAC", FormatFLAC, "audio/flac"},
		{"", FormatWAV, "audio/wav"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			c, err := NewContainer(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			if c.Format() != tt.want || c.MimeType() != tt.mime {
				t.Errorf("got %s/%s, want %s/%s", c.Format(), c.MimeType(), tt.want, tt.mime)
			}
		})
	}
	if _, err := NewContainer("ogg"); err == nil {
		t.Error("expected error for ogg")
	}
}

func TestContainerFLAC(t *testing.T) {
	c, err := NewContainer("flac")
	if err != nil {
		t.Fatal(err)
	}
	out, err := c.Seal(make([]byte, BlockSize*3))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if string(out[:4]) != "fLaC" {
		t.Error("missing FLAC magic")
	}
}
