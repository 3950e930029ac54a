//go:build !linux

package player

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoOutput struct {
	ctx *malgo.AllocatedContext
}

func NewOutput() (Output, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoOutput{ctx: ctx}, nil
}

func (o *malgoOutput) Start(samples []int16, sampleRate, channels int) (func(), <-chan struct{}, error) {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}

	var pos atomic.Uint32
	var stopped atomic.Bool
	finished := make(chan struct{})
	var finishOnce sync.Once
	frameBytes := uint32(channels * 2)

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(channels)
	config.SampleRate = uint32(sampleRate)

	onData := func(out, _ []byte, frameCount uint32) {
		want := frameCount * frameBytes
		p := pos.Load()
		total := uint32(len(pcm))
		if stopped.Load() || p >= total {
			clear(out)
			finishOnce.Do(func() { close(finished) })
			return
		}
		n := min(want, total-p)
		copy(out[:n], pcm[p:p+n])
		clear(out[n:want])
		pos.Store(p + n)
	}

	device, err := malgo.InitDevice(o.ctx.Context, config, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return nil, nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-finished
		device.Stop()
		device.Uninit()
	}()

	stop := func() { stopped.Store(true) }
	return stop, done, nil
}

func (o *malgoOutput) Close() {
	o.ctx.Uninit()
	o.ctx.Free()
}
