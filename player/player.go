// Package player fetches reply audio from the backend and plays it on the
// default output. It also renders the short cue tones that mark the start
// and end of a capture.
package player

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"jarvis/log"
)

var ErrUnsupported = errors.New("player: unsupported audio format")

// Fetcher downloads the resource a reply references.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Output renders interleaved PCM16. Start returns once playback has
// begun; stop ends it early and done closes when the stream is finished.
type Output interface {
	Start(pcm []int16, sampleRate, channels int) (stop func(), done <-chan struct{}, err error)
	Close()
}

type clip struct {
	url      string
	pcm      []int16
	rate     int
	channels int
}

type Player struct {
	fetch Fetcher
	out   Output

	mu     sync.Mutex
	last   *clip
	stop   func()
	done   <-chan struct{}
	muted  bool
	closed bool
}

func New(fetch Fetcher, out Output) *Player {
	return &Player{fetch: fetch, out: out}
}

// Mute disables cue tones. Reply audio is unaffected.
func (p *Player) Mute() {
	p.mu.Lock()
	p.muted = true
	p.mu.Unlock()
}

// Play starts the audio at url from the beginning, replacing anything
// already playing. It returns when playback has started or failed to.
func (p *Player) Play(ctx context.Context, url string) error {
	c, err := p.load(ctx, url)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("player closed")
	}
	p.stopLocked()

	stop, done, err := p.out.Start(c.pcm, c.rate, c.channels)
	if err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	p.stop, p.done = stop, done
	log.Infof("playback_start: %s (%d samples @ %d Hz)", url, len(c.pcm), c.rate)
	return nil
}

func (p *Player) load(ctx context.Context, url string) (*clip, error) {
	p.mu.Lock()
	if p.last != nil && p.last.url == url {
		c := p.last
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	data, err := p.fetch.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch reply audio: %w", err)
	}
	pcm, rate, channels, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode reply audio: %w", err)
	}

	c := &clip{url: url, pcm: pcm, rate: rate, channels: channels}
	p.mu.Lock()
	p.last = c
	p.mu.Unlock()
	return c, nil
}

// Playing reports whether reply audio is still being rendered.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
	p.done = nil
}

func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.stopLocked()
	p.closed = true
	p.out.Close()
}

func toInt16(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}
