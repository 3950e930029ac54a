package doctor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"jarvis/audio"
	"jarvis/clipboard"
	"jarvis/hotkey"
	"jarvis/interact"
	"jarvis/meter"
	"jarvis/recorder"
	"jarvis/shutdown"
)

type Options struct {
	Combo   hotkey.Combo
	Backend *interact.Client
	// Device is the capture device name, empty for the system default.
	Device string
}

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("jarvis doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	if !checkHotkey(opts.Combo) {
		allPass = false
	}
	if !checkMicrophone(opts.Device) {
		allPass = false
	}
	if !checkBackend(opts.Backend) {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}

func checkHotkey(combo hotkey.Combo) bool {
	fmt.Println()
	fmt.Println("[1/4] Push-to-talk key")

	msg, err := hotkey.Diagnose(combo)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", msg)
	fmt.Printf("Press and release %s...\n", combo)

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for key press")
		return false
	}
	select {
	case <-hk.Keyup():
	case <-time.After(5 * time.Second):
		fmt.Println("  FAIL: key press seen but no release")
		return false
	}
	// Reset terminal after hotkey - it may leave terminal in raw mode
	resetTerminal()
	fmt.Println("  PASS: press and release detected")
	return true
}

// peakSink records the highest level the meter reports.
type peakSink struct {
	mu   sync.Mutex
	peak float64
}

func (s *peakSink) SetLevel(v float64) {
	s.mu.Lock()
	if v > s.peak {
		s.peak = v
	}
	s.mu.Unlock()
}

func (s *peakSink) Peak() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

func checkMicrophone(deviceName string) bool {
	fmt.Println()
	fmt.Println("[2/4] Microphone and level meter")

	actx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer actx.Close()

	var device *audio.DeviceInfo
	if deviceName != "" {
		device, err = audio.FindDevice(actx, deviceName)
		if err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
	}

	rec := recorder.New(actx, recorder.Config{Device: device})
	sink := &peakSink{}
	m := meter.New(sink, meter.DefaultInterval)

	fmt.Println("Speak for 3 seconds...")
	tap, err := rec.Start(context.Background())
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	m.Attach(tap)

	fmt.Print("  Recording")
	for range 6 {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	fmt.Println(" done")

	m.Detach()
	payload, err := rec.Stop()
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if payload.Empty() {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	peak := sink.Peak()
	fmt.Printf("  Recorded %.1fs (%.1f KB %s), peak level %.0f/100\n",
		payload.Duration().Seconds(), float64(payload.Len())/1024, payload.MimeType(), peak)
	if peak == 0 {
		fmt.Println("  FAIL: meter saw only silence (muted or wrong input?)")
		return false
	}
	fmt.Println("  PASS: microphone and meter working")
	return true
}

func checkBackend(c *interact.Client) bool {
	fmt.Println()
	fmt.Println("[3/4] Backend")
	if c == nil {
		fmt.Println("  FAIL: no backend configured")
		return false
	}
	fmt.Printf("  %s\n", c.BaseURL())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h, err := c.Health(ctx)
	if err != nil {
		fmt.Printf("  FAIL: health check: %v\n", err)
		return false
	}

	var parts []string
	for name, up := range h.Components {
		state := "up"
		if !up {
			state = "DOWN"
		}
		parts = append(parts, name+"="+state)
	}
	fmt.Printf("  status=%s %s\n", h.Status, strings.Join(parts, " "))
	if !h.Ready() {
		fmt.Println("  FAIL: backend not ready")
		return false
	}
	fmt.Println("  PASS: backend healthy")
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/4] Clipboard (transcript sharing)")

	if !clipboard.Available() {
		fmt.Printf("  FAIL: %v\n", clipboard.ErrUnsupported)
		return false
	}

	testStr := fmt.Sprintf("jarvis-doctor-%d", time.Now().UnixNano())

	type cbResult struct {
		readback string
		err      error
		phase    string
	}
	ch := make(chan cbResult, 1)
	go func() {
		prev, _ := clipboard.Read()
		defer clipboard.Copy(prev)
		if err := clipboard.Copy(testStr); err != nil {
			ch <- cbResult{err: err, phase: "write"}
			return
		}
		got, err := clipboard.Read()
		if err != nil {
			ch <- cbResult{err: err, phase: "read"}
			return
		}
		ch <- cbResult{readback: got}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			fmt.Printf("  FAIL: clipboard %s failed: %v\n", res.phase, res.err)
			return false
		}
		if res.readback != testStr {
			fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, res.readback)
			return false
		}
		fmt.Println("  PASS: clipboard write/read verified")
		return true
	case <-time.After(3 * time.Second):
		fmt.Println("  FAIL: clipboard timed out (clipboard tool hung - compositor not accessible?)")
		return false
	}
}
