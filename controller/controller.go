// Package controller drives one push-to-talk cycle: press starts capture
// and the level meter, release seals the recording and hands it to the
// backend, and the reply lands in the transcript.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"jarvis/audio"
	"jarvis/interact"
	"jarvis/log"
	"jarvis/meter"
	"jarvis/recorder"
	"jarvis/transcript"
)

// ErrShareCancelled is returned by a Sharer when the user dismissed the
// share target. It is not reported.
var ErrShareCancelled = errors.New("share cancelled")

type View interface {
	meter.LevelSink
	SetStatus(text string)
	SetCapturing(on bool)
	AppendEntry(e transcript.Entry)
	SetActionEnabled(a Action, enabled bool)
	Notify(msg string)
}

type Recorder interface {
	Start(ctx context.Context) (*audio.Tap, error)
	Stop() (recorder.Payload, error)
}

type LevelMeter interface {
	Attach(src meter.Source)
	Detach()
}

type Exchanger interface {
	Send(ctx context.Context, payload []byte, filename, mimeType string) (interact.Result, error)
}

type Player interface {
	Play(ctx context.Context, url string) error
}

type Sharer interface {
	Available() bool
	Share(ctx context.Context, title, text string) error
}

type Config struct {
	View      View
	Recorder  Recorder
	Meter     LevelMeter
	Exchanger Exchanger
	Player    Player
	Sharer    Sharer
	// Copy writes text to the clipboard when no Sharer is available.
	Copy func(text string) error
	// Filename is the upload file name, interact.DefaultFilename if empty.
	Filename string
}

type Controller struct {
	cfg        Config
	transcript *transcript.Transcript

	mu        sync.Mutex
	state     State
	acquiring bool
	cycle     string
	audioURL  string
	enabled   map[Action]bool
	exchanges int
}

func New(cfg Config) *Controller {
	if cfg.Filename == "" {
		cfg.Filename = interact.DefaultFilename
	}
	c := &Controller{
		cfg:        cfg,
		transcript: transcript.New(),
		enabled:    make(map[Action]bool),
	}
	cfg.View.SetStatus(StatusIdle)
	for _, a := range []Action{ActionReplay, ActionVoice, ActionShare} {
		cfg.View.SetActionEnabled(a, false)
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Transcript() *transcript.Transcript { return c.transcript }

// Exchanges counts completed successful exchanges.
func (c *Controller) Exchanges() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exchanges
}

// Press begins a capture cycle. It blocks while the device is acquired
// and is ignored unless the controller is idle.
func (c *Controller) Press(ctx context.Context) {
	c.mu.Lock()
	if c.state != Idle || c.acquiring {
		c.mu.Unlock()
		return
	}
	c.acquiring = true
	c.mu.Unlock()

	tap, err := c.cfg.Recorder.Start(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acquiring = false
	if err != nil {
		log.Errorf("microphone unavailable: %v", err)
		c.cfg.View.Notify(MsgMicUnavailable)
		c.cfg.View.SetStatus(StatusIdle)
		return
	}

	c.cycle = uuid.NewString()
	c.state = Capturing
	log.Cycle(c.cycle, "recording_start")
	c.cfg.Meter.Attach(tap)
	c.cfg.View.SetCapturing(true)
	c.cfg.View.SetStatus(StatusListening)
}

// Release ends capture and starts the exchange. The returned channel is
// closed once the controller is idle again; it is already closed when
// there was nothing to release.
func (c *Controller) Release(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	c.mu.Lock()
	if c.state != Capturing {
		c.mu.Unlock()
		close(done)
		return done
	}
	c.state = Finalizing
	cycle := c.cycle
	c.cfg.Meter.Detach()
	c.cfg.View.SetCapturing(false)
	c.cfg.View.SetStatus(StatusAnalyzing)

	payload, err := c.cfg.Recorder.Stop()
	log.Cycle(cycle, "recording_stop")
	if err != nil {
		log.Errorf("finalize recording: %v", err)
		c.cfg.View.Notify(MsgSnagPrefix + err.Error())
		c.toIdle()
		c.mu.Unlock()
		close(done)
		return done
	}
	if payload.Empty() {
		log.Cycle(cycle, "empty_recording")
		c.toIdle()
		c.mu.Unlock()
		close(done)
		return done
	}
	c.state = AwaitingResponse
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.exchange(ctx, cycle, payload)
	}()
	return done
}

// Abort ends a capture in progress without sending it: the meter is
// detached, the device released and the recording discarded. It reports
// whether a capture was active.
func (c *Controller) Abort() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Capturing {
		return false
	}
	c.cfg.Meter.Detach()
	c.cfg.View.SetCapturing(false)
	if _, err := c.cfg.Recorder.Stop(); err != nil {
		log.Errorf("abort recording: %v", err)
	}
	log.Cycle(c.cycle, "recording_stop")
	log.Cycle(c.cycle, "recording_discarded")
	c.toIdle()
	return true
}

func (c *Controller) exchange(ctx context.Context, cycle string, payload recorder.Payload) {
	res, err := c.cfg.Exchanger.Send(ctx, payload.Bytes(), c.cfg.Filename, payload.MimeType())
	logExchange(cycle, payload, res, err)

	c.mu.Lock()
	if err != nil {
		log.Errorf("exchange failed: %v", err)
		c.cfg.View.Notify(MsgSnagPrefix + err.Error())
		c.toIdle()
		c.mu.Unlock()
		return
	}

	if res.UserText != "" {
		c.cfg.View.AppendEntry(c.transcript.AppendUser(res.UserText))
		log.Conversation(string(transcript.SpeakerUser), res.UserText)
	}
	if res.AIText != "" {
		c.cfg.View.AppendEntry(c.transcript.AppendAI(res.AIText))
		log.Conversation(string(transcript.SpeakerAI), res.AIText)
	}
	if res.AudioURL != "" {
		c.audioURL = res.AudioURL
	}
	c.setEnabled(ActionReplay, res.AudioURL != "")
	c.setEnabled(ActionVoice, true)
	c.setEnabled(ActionShare, true)
	c.exchanges++
	c.toIdle()
	c.mu.Unlock()

	if res.AudioURL != "" && c.cfg.Player != nil {
		if err := c.cfg.Player.Play(ctx, res.AudioURL); err != nil {
			log.Warnf("autoplay failed: %v", err)
			c.cfg.View.Notify(MsgAutoplayFailed)
		}
	}
}

func logExchange(cycle string, payload recorder.Payload, res interact.Result, err error) {
	m := log.Exchange{
		Cycle:        cycle,
		PayloadKB:    float64(payload.Len()) / 1024,
		Chunks:       payload.Chunks(),
		AudioS:       payload.Duration().Seconds(),
		HasAudioURL:  res.AudioURL != "",
		TranscriptOK: res.UserText != "",
	}
	var se *interact.ServerError
	switch {
	case err == nil:
		m.Status = 200
	case errors.As(err, &se):
		m.Status = se.Status
	}
	if nm := res.Metrics; nm != nil {
		m.DNSMs = ms(nm.DNS)
		m.TLSMs = ms(nm.TLS)
		m.TTFBMs = ms(nm.TTFB)
		m.TotalMs = ms(nm.Total)
		m.ConnReused = nm.ConnReused
		m.TLSProtocol = nm.TLSProtocol
	}
	log.ExchangeMetrics(m)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// caller holds c.mu
func (c *Controller) toIdle() {
	c.state = Idle
	c.cfg.View.SetStatus(StatusIdle)
}

// caller holds c.mu
func (c *Controller) setEnabled(a Action, on bool) {
	c.enabled[a] = on
	c.cfg.View.SetActionEnabled(a, on)
}

func (c *Controller) Enabled(a Action) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled[a]
}

// Replay restarts the most recent reply audio from the beginning.
func (c *Controller) Replay(ctx context.Context) {
	c.mu.Lock()
	url := c.audioURL
	on := c.enabled[ActionReplay]
	c.mu.Unlock()
	if !on || url == "" || c.cfg.Player == nil {
		return
	}
	if err := c.cfg.Player.Play(ctx, url); err != nil {
		log.Warnf("replay failed: %v", err)
		c.cfg.View.Notify(MsgReplayFailed)
	}
}

func (c *Controller) Voice() {
	if !c.Enabled(ActionVoice) {
		return
	}
	c.cfg.View.Notify(MsgVoiceSoon)
}

// Share hands the transcript to the platform share target, or copies it
// to the clipboard when there is none.
func (c *Controller) Share(ctx context.Context) {
	if !c.Enabled(ActionShare) {
		return
	}
	text := c.transcript.Export()

	if c.cfg.Sharer != nil && c.cfg.Sharer.Available() {
		err := c.cfg.Sharer.Share(ctx, ShareTitle, text)
		switch {
		case err == nil:
		case errors.Is(err, ErrShareCancelled):
			log.Info("share_cancelled")
		default:
			log.Warnf("share failed: %v", err)
			c.cfg.View.Notify(MsgShareFailed)
		}
		return
	}

	if c.cfg.Copy == nil {
		return
	}
	if err := c.cfg.Copy(text); err != nil {
		log.Errorf("clipboard copy failed: %v", err)
		return
	}
	c.cfg.View.Notify(MsgCopied)
}
