package player

import (
	"math"
	"sync"

	"jarvis/log"
)

type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueError
)

const cueRate = 44100

var (
	cueOnce    sync.Once
	cueSamples map[Cue][]int16
)

func initCues() {
	cueSamples = map[Cue][]int16{
		// high, short tick
		CueStart: tick(cueRate, 1200, 0.2, 0.5, 60),
		CueEnd:   tick(cueRate, 900, 0.2, 0.5, 40),
		CueError: doubleBeep(cueRate, 350, 0.08, 0.05, 0.6, 30),
	}
}

func tick(sampleRate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(sampleRate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []int16 {
	beep := tick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]int16, int(float64(sampleRate)*gapDur))
	result := make([]int16, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}

// Cue plays a short tone alongside any reply audio.
func (p *Player) Cue(c Cue) {
	p.mu.Lock()
	skip := p.muted || p.closed
	p.mu.Unlock()
	if skip {
		return
	}
	cueOnce.Do(initCues)
	if _, _, err := p.out.Start(cueSamples[c], cueRate, 1); err != nil {
		log.Warnf("cue playback: %v", err)
	}
}
