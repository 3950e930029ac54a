package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"jarvis/audio"
	"jarvis/clipboard"
	"jarvis/config"
	"jarvis/controller"
	"jarvis/doctor"
	"jarvis/encoder"
	"jarvis/hotkey"
	"jarvis/interact"
	"jarvis/log"
	"jarvis/meter"
	"jarvis/player"
	"jarvis/recorder"
	"jarvis/shutdown"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *controller.Controller) {
	shutdownOnce.Do(func() {
		if ctrl != nil {
			ctrl.Abort()
			log.SessionEnd(ctrl.Exchanges())
		}
		log.Close()
		if tuiProgram != nil {
			tuiProgram.Quit()
		}
		os.Exit(0)
	})
}

// interruptPlayback cuts off a reply that is still playing so the user can
// talk over it.
func interruptPlayback(pl *player.Player) {
	if pl != nil && pl.Playing() {
		log.Info("playback_interrupted")
		pl.Stop()
	}
}

func run() {
	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	backendFlag := flag.String("backend", cfg.BackendURL, "Backend base URL (JARVIS_BACKEND_URL)")
	timeoutFlag := flag.Duration("timeout", cfg.Timeout, "Request timeout for one exchange (JARVIS_TIMEOUT)")
	formatFlag := flag.String("format", cfg.Format, "Upload container: wav or flac (JARVIS_FORMAT)")
	uploadNameFlag := flag.String("upload-name", cfg.UploadName, "File name sent with the upload (JARVIS_UPLOAD_NAME)")
	hotkeyFlag := flag.String("hotkey", cfg.Hotkey, "Push-to-talk key, e.g. ctrl+shift+space or f9 (JARVIS_HOTKEY)")
	shareCmdFlag := flag.String("share-cmd", cfg.ShareCmd, "Command that receives the transcript on stdin when sharing (JARVIS_SHARE_CMD)")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", cfg.Device, "Use named microphone device (JARVIS_DEVICE)")
	noBeepFlag := flag.Bool("nobeep", cfg.NoBeep, "Disable start/stop cue tones (JARVIS_NO_BEEP)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", cfg.LogPath, "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	flag.Parse()

	cfg.BackendURL = *backendFlag
	cfg.Timeout = *timeoutFlag
	cfg.Format = *formatFlag
	cfg.UploadName = *uploadNameFlag
	cfg.Device = *deviceFlag
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("jarvis %s\n", version)
		os.Exit(0)
	}

	combo, err := hotkey.ParseCombo(*hotkeyFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client, err := interact.New(cfg.BackendURL, cfg.Timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	container, err := encoder.NewContainer(cfg.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *doctorFlag {
		os.Exit(doctor.Run(doctor.Options{Combo: combo, Backend: client, Device: cfg.Device}))
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: jarvis -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], client, container, cfg.UploadName)
		return
	}

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer actx.Close()

	var selectedDevice *audio.DeviceInfo
	if *setupFlag && cfg.Device == "" {
		selectedDevice, err = audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	} else if cfg.Device != "" {
		selectedDevice, err = audio.FindDevice(actx, cfg.Device)
		if err != nil {
			log.Warnf("%v, using default", err)
		}
	}

	deviceName := ""
	if selectedDevice != nil {
		deviceName = selectedDevice.Name
	}
	log.SessionStart(cfg.BackendURL, string(container.Format()), deviceName)

	rec := recorder.New(actx, recorder.Config{
		Device: selectedDevice,
		Capture: audio.CaptureConfig{
			SampleRate: encoder.SampleRate,
			Channels:   encoder.Channels,
		},
		Container: container,
	})

	var pl *player.Player
	if out, err := player.NewOutput(); err != nil {
		log.Warnf("audio output unavailable: %v", err)
	} else {
		pl = player.New(client, out)
		defer pl.Close()
		if *noBeepFlag {
			pl.Mute()
		}
	}

	view := tuiView{}
	ccfg := controller.Config{
		View:      view,
		Recorder:  rec,
		Meter:     meter.New(view, meter.DefaultInterval),
		Exchanger: client,
		Copy:      clipboard.Copy,
		Filename:  cfg.UploadName,
	}
	if pl != nil {
		ccfg.Player = pl
	}
	if *shareCmdFlag != "" {
		ccfg.Sharer = NewCommandSharer(*shareCmdFlag)
	}

	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	var ctrl *controller.Controller
	tuiMu.Lock()
	tuiProgram = NewTUIProgram(func(a controller.Action) {
		switch a {
		case controller.ActionReplay:
			ctrl.Replay(ctx)
		case controller.ActionVoice:
			ctrl.Voice()
		case controller.ActionShare:
			ctrl.Share(ctx)
		}
	})
	tuiMu.Unlock()

	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			os.Exit(1)
		}
		gracefulShutdown(ctrl)
	}()
	<-tuiReady

	ctrl = controller.New(ccfg)

	hk := hotkey.New(combo)
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		tuiProgram.Quit()
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	tuiSend(DeviceLineMsg{Text: deviceLineText(deviceName)})
	tuiSend(HelpLineMsg{Combo: combo.String()})

	cue := func(c player.Cue) {
		if pl != nil {
			go pl.Cue(c)
		}
	}

	for {
		select {
		case <-ctx.Done():
			gracefulShutdown(ctrl)

		case <-hk.Keydown():
			log.Info("hotkey_down")
			if ctrl.State() != controller.Idle {
				continue
			}
			interruptPlayback(pl)
			cue(player.CueStart)
			go ctrl.Press(ctx)

		case <-hk.Keyup():
			log.Info("hotkey_up")
			if ctrl.State() != controller.Capturing {
				continue
			}
			cue(player.CueEnd)
			ctrl.Release(ctx)
		}
	}
}
