// Package recorder owns the microphone for one press-and-hold cycle: it
// acquires the capture device, buffers PCM chunks in arrival order and seals
// them into a single uploadable payload when the gesture ends.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jarvis/audio"
	"jarvis/encoder"
	"jarvis/log"
)

var (
	ErrNotCapturing = errors.New("recorder: not capturing")
	ErrBusy         = errors.New("recorder: device acquisition in progress")
)

type state int

const (
	stateIdle state = iota
	stateAcquiring
	stateCapturing
	stateSealing
)

// Payload is the sealed result of one recording. It is immutable.
type Payload struct {
	data     []byte
	mimeType string
	chunks   int
	frames   uint64
}

func (p Payload) Empty() bool { return len(p.data) == 0 }

// Bytes returns a copy of the framed audio.
func (p Payload) Bytes() []byte { return bytes.Clone(p.data) }

func (p Payload) Len() int { return len(p.data) }

func (p Payload) MimeType() string { return p.mimeType }

func (p Payload) Chunks() int { return p.chunks }

func (p Payload) Duration() time.Duration {
	return time.Duration(float64(p.frames) / float64(encoder.SampleRate) * float64(time.Second))
}

type Config struct {
	Device    *audio.DeviceInfo
	Capture   audio.CaptureConfig
	Container *encoder.Container
	// TapSize is the number of recent samples kept for live observers.
	TapSize int
}

type Recorder struct {
	ctx audio.Context
	cfg Config

	mu     sync.Mutex
	state  state
	device audio.CaptureDevice
	tap    *audio.Tap
	chunks [][]byte
	frames uint64
}

func New(ctx audio.Context, cfg Config) *Recorder {
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture = audio.CaptureConfig{SampleRate: encoder.SampleRate, Channels: encoder.Channels}
	}
	if cfg.Container == nil {
		cfg.Container, _ = encoder.NewContainer(string(encoder.FormatWAV))
	}
	if cfg.TapSize == 0 {
		cfg.TapSize = 4096
	}
	return &Recorder{ctx: ctx, cfg: cfg}
}

func (r *Recorder) capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateCapturing
}

// Start acquires the capture device and begins buffering. The returned tap
// exposes the live signal. Calling Start while already capturing returns
// the current tap and does nothing else.
func (r *Recorder) Start(ctx context.Context) (*audio.Tap, error) {
	r.mu.Lock()
	switch r.state {
	case stateCapturing:
		tap := r.tap
		r.mu.Unlock()
		return tap, nil
	case stateAcquiring, stateSealing:
		r.mu.Unlock()
		return nil, ErrBusy
	}
	r.state = stateAcquiring
	r.chunks = nil
	r.frames = 0
	dev := r.cfg.Device
	r.mu.Unlock()

	fail := func(err error) (*audio.Tap, error) {
		r.mu.Lock()
		r.state = stateIdle
		r.chunks = nil
		r.mu.Unlock()
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	capture, err := r.ctx.NewCapture(dev, r.cfg.Capture)
	if err != nil {
		return fail(fmt.Errorf("acquire microphone: %w", audio.Classify(err)))
	}

	tap := audio.NewTap(r.cfg.TapSize)
	capture.SetCallback(func(data []byte, frameCount uint32) {
		r.feed(tap, data, frameCount)
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		tap.Close()
		return fail(fmt.Errorf("start microphone: %w", audio.Classify(err)))
	}

	r.mu.Lock()
	r.device = capture
	r.tap = tap
	r.state = stateCapturing
	r.mu.Unlock()

	log.Info("recording_device: " + capture.DeviceName())
	return tap, nil
}

func (r *Recorder) feed(tap *audio.Tap, data []byte, frameCount uint32) {
	if len(data) == 0 {
		return
	}
	chunk := bytes.Clone(data)

	r.mu.Lock()
	if r.state != stateAcquiring && r.state != stateCapturing && r.state != stateSealing {
		r.mu.Unlock()
		return
	}
	r.chunks = append(r.chunks, chunk)
	r.frames += uint64(frameCount)
	r.mu.Unlock()

	tap.Write(chunk)
}

// Stop ends the capture, releases the device and seals the buffered chunks.
// The device is released even when sealing fails. Without buffered audio
// the payload is empty and carries no container framing.
func (r *Recorder) Stop() (Payload, error) {
	r.mu.Lock()
	if r.state != stateCapturing {
		r.mu.Unlock()
		return Payload{}, ErrNotCapturing
	}
	r.state = stateSealing
	capture, tap := r.device, r.tap
	r.mu.Unlock()

	// Stopping first lets the final in-flight chunk land in the buffer.
	capture.Stop()
	capture.ClearCallback()
	capture.Close()
	tap.Close()

	r.mu.Lock()
	chunks, frames := r.chunks, r.frames
	r.chunks, r.frames = nil, 0
	r.device, r.tap = nil, nil
	r.state = stateIdle
	container := r.cfg.Container
	r.mu.Unlock()

	if len(chunks) == 0 {
		return Payload{mimeType: container.MimeType()}, nil
	}

	data, err := container.Seal(bytes.Join(chunks, nil))
	if err != nil {
		return Payload{}, fmt.Errorf("seal recording: %w", err)
	}
	return Payload{
		data:     data,
		mimeType: container.MimeType(),
		chunks:   len(chunks),
		frames:   frames,
	}, nil
}
