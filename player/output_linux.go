//go:build linux

package player

import (
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"jarvis/log"
)

type pulseOutput struct {
	client *pulse.Client
}

func NewOutput() (Output, error) {
	c, err := pulse.NewClient(pulse.ClientApplicationName("jarvis"))
	if err != nil {
		return nil, err
	}
	return &pulseOutput{client: c}, nil
}

func (o *pulseOutput) Start(samples []int16, sampleRate, channels int) (func(), <-chan struct{}, error) {
	var stopped atomic.Bool
	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if stopped.Load() || pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})

	layout := pulse.PlaybackMono
	volumes := proto.ChannelVolumes{uint32(proto.VolumeNorm)}
	if channels == 2 {
		layout = pulse.PlaybackStereo
		volumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
	}

	stream, err := o.client.NewPlayback(reader,
		layout,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = volumes
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	stream.Start()

	done := make(chan struct{})
	go func() {
		defer close(done)
		stream.Drain()
		stream.Stop()
		if err := stream.Error(); err != nil {
			log.Warnf("pulse playback: %v", err)
		}
		stream.Close()
	}()

	var once sync.Once
	stop := func() { once.Do(func() { stopped.Store(true) }) }
	return stop, done, nil
}

func (o *pulseOutput) Close() {
	o.client.Close()
}
