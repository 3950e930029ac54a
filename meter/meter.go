// Package meter derives a live 0..100 loudness level from captured audio.
package meter

import (
	"sync"
	"time"

	"jarvis/log"
)

// Source provides the most recent PCM samples. Latest fills dst
// right-aligned and returns how many samples were real.
type Source interface {
	Latest(dst []int16) int
}

// A Source that also has Done() <-chan struct{}, such as audio.Tap, ends
// sampling when that channel closes.
type ender interface {
	Done() <-chan struct{}
}

type LevelSink interface {
	SetLevel(level float64)
}

const DefaultInterval = time.Second / 60

type Meter struct {
	sink     LevelSink
	interval time.Duration
	analyser *Analyser

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

func New(sink LevelSink, interval time.Duration) *Meter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Meter{sink: sink, interval: interval, analyser: NewAnalyser()}
}

// Attach starts sampling src. Failures are logged and leave the meter
// detached; capture is never affected.
func (m *Meter) Attach(src Source) {
	if src == nil {
		log.Warn("meter_attach: no source")
		return
	}
	m.Detach()
	m.analyser.Reset()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(src, m.stop, m.done)
}

// Detach stops sampling and resets the level to zero. Safe to call
// when not attached.
func (m *Meter) Detach() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	m.sink.SetLevel(0)
}

func (m *Meter) run(src Source, stop, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("meter_panic: %v", r)
		}
	}()

	var ended <-chan struct{}
	if e, ok := src.(ender); ok {
		ended = e.Done()
	}

	a := m.analyser
	bins := make([]byte, Bins)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ended:
			m.sink.SetLevel(0)
			return
		case <-ticker.C:
			src.Latest(a.Window())
			a.Analyse(bins)
			m.sink.SetLevel(Intensity(bins))
		}
	}
}

// Intensity maps frequency bytes to a 0..100 level: the mean scaled
// by 140/255, capped at 100.
func Intensity(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bins {
		sum += float64(b)
	}
	avg := sum / float64(len(bins))
	v := avg / 255 * 140
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
