package audio

import (
	"encoding/binary"
	"sync"
)

// Tap keeps the most recent samples of a live capture so that observers
// (the level meter) can read the current analysis window without touching
// the recording buffer.
type Tap struct {
	mu     sync.Mutex
	ring   []int16
	pos    int
	filled bool

	done      chan struct{}
	closeOnce sync.Once
}

func NewTap(size int) *Tap {
	if size <= 0 {
		size = 2048
	}
	return &Tap{
		ring: make([]int16, size),
		done: make(chan struct{}),
	}
}

// Write appends little-endian PCM16 bytes.
func (t *Tap) Write(pcm []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 0; i+1 < len(pcm); i += 2 {
		t.ring[t.pos] = int16(binary.LittleEndian.Uint16(pcm[i:]))
		t.pos++
		if t.pos == len(t.ring) {
			t.pos = 0
			t.filled = true
		}
	}
}

// Latest copies the newest samples into dst, oldest first, right-aligned.
// Slots without data are zeroed. It returns the number of real samples.
func (t *Tap) Latest(dst []int16) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	avail := t.pos
	if t.filled {
		avail = len(t.ring)
	}
	n := min(len(dst), avail)
	pad := len(dst) - n
	clear(dst[:pad])

	start := t.pos - n
	if start < 0 {
		start += len(t.ring)
	}
	for i := 0; i < n; i++ {
		dst[pad+i] = t.ring[(start+i)%len(t.ring)]
	}
	return n
}

// Close marks the stream as ended. Safe to call more than once.
func (t *Tap) Close() {
	t.closeOnce.Do(func() { close(t.done) })
}

func (t *Tap) Done() <-chan struct{} { return t.done }
