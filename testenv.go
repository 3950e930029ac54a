package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"jarvis/audio"
	"jarvis/controller"
	"jarvis/encoder"
	"jarvis/hotkey"
	"jarvis/interact"
	"jarvis/log"
	"jarvis/meter"
	"jarvis/player"
	"jarvis/recorder"
	"jarvis/transcript"
)

// headlessView prints every update as one line so a driver can follow
// the session over stdout.
type headlessView struct {
	mu        sync.Mutex
	peak      float64
	capturing bool
}

func (v *headlessView) emit(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}

func (v *headlessView) SetStatus(text string) { v.emit("STATUS %s", text) }

func (v *headlessView) SetCapturing(on bool) {
	v.mu.Lock()
	v.capturing = on
	peak := v.peak
	if on {
		v.peak = 0
	}
	v.mu.Unlock()
	if on {
		v.emit("CAPTURING on")
		return
	}
	v.emit("CAPTURING off peak=%.0f", peak)
}

// SetLevel tracks the peak only; per-tick output would flood the driver.
func (v *headlessView) SetLevel(level float64) {
	v.mu.Lock()
	if v.capturing && level > v.peak {
		v.peak = level
	}
	v.mu.Unlock()
}

func (v *headlessView) AppendEntry(e transcript.Entry) {
	v.emit("ENTRY %s %s", e.Speaker, e.Text)
}

func (v *headlessView) SetActionEnabled(a controller.Action, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	v.emit("ACTION %s %s", a, state)
}

func (v *headlessView) Notify(msg string) { v.emit("NOTIFY %s", msg) }

// discardOutput accepts playback without a sound device. A clip counts as
// playing for its real duration unless stopped.
type discardOutput struct{}

func (discardOutput) Start(pcm []int16, rate, channels int) (func(), <-chan struct{}, error) {
	done := make(chan struct{})
	var once sync.Once
	finish := func() { once.Do(func() { close(done) }) }
	length := time.Duration(float64(len(pcm)) / float64(rate*channels) * float64(time.Second))
	timer := time.AfterFunc(length, finish)
	log.Infof("playback_discarded: %d samples @ %d Hz x%d", len(pcm), rate, channels)
	return func() {
		timer.Stop()
		finish()
	}, done, nil
}

func (discardOutput) Close() {}

func runTestMode(wavPath string, client *interact.Client, container *encoder.Container, uploadName string) {
	defer log.Close()

	data, err := os.ReadFile(wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	info, pcm, err := encoder.DecodeWAV(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	if info.SampleRate != encoder.SampleRate || info.Channels != encoder.Channels || info.BitsPerSample != 16 {
		fmt.Fprintf(os.Stderr, "Error: WAV must be %d Hz mono 16-bit, got %d Hz x%d %d-bit\n",
			encoder.SampleRate, info.SampleRate, info.Channels, info.BitsPerSample)
		os.Exit(1)
	}

	log.SessionStart(client.BaseURL(), string(container.Format()), "fake")

	fakeCtx := audio.NewFakeContext(pcm, true)
	view := &headlessView{}
	pl := player.New(client, discardOutput{})
	pl.Mute()
	rec := recorder.New(fakeCtx, recorder.Config{Container: container})
	ctrl := controller.New(controller.Config{
		View:      view,
		Recorder:  rec,
		Meter:     meter.New(view, meter.DefaultInterval),
		Exchanger: client,
		Player:    pl,
		Copy: func(text string) error {
			view.emit("CLIPBOARD %s", strconv.Quote(text))
			return nil
		},
		Filename: uploadName,
	})

	ctx := context.Background()
	hk := hotkey.NewFake()
	recordingDone := make(chan struct{}, 1)

	// Stdin driver in background -- sends hotkey events, handles WAIT/SLEEP/QUIT
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "KEYDOWN":
				hk.SimKeydown()
			case "KEYUP":
				hk.SimKeyup()
			case "WAIT":
				<-recordingDone
			case "WAIT_AUDIO_DONE":
				if caps := fakeCtx.Captures(); len(caps) > 0 {
					<-caps[len(caps)-1].AudioDone()
				}
			case "REPLAY":
				ctrl.Replay(ctx)
			case "VOICE":
				ctrl.Voice()
			case "SHARE":
				ctrl.Share(ctx)
			case "STATE":
				view.emit("STATE %s", ctrl.State())
			case "QUIT":
				log.SessionEnd(ctrl.Exchanges())
				log.Close()
				os.Exit(0)
			default:
				if strings.HasPrefix(cmd, "SLEEP ") {
					if ms, err := strconv.Atoi(cmd[6:]); err == nil {
						time.Sleep(time.Duration(ms) * time.Millisecond)
					}
				}
			}
		}
		os.Exit(0)
	}()

	// Event loop -- same pattern as run()
	for {
		<-hk.Keydown()
		interruptPlayback(pl)
		ctrl.Press(ctx)
		<-hk.Keyup()
		done := ctrl.Release(ctx)
		go func() {
			<-done
			select {
			case recordingDone <- struct{}{}:
			default:
			}
		}()
	}
}
