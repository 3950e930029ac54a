package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog          zerolog.Logger
	diagFile         *os.File
	conversationFile *os.File
	logMu            sync.Mutex
	logReady         bool
	pid              int
	dir              string
)

// Exchange describes one upload to the interaction backend.
type Exchange struct {
	Cycle        string
	Status       int
	PayloadKB    float64
	Chunks       int
	AudioS       float64
	DNSMs        float64
	TLSMs        float64
	TTFBMs       float64
	TotalMs      float64
	ConnReused   bool
	TLSProtocol  string
	HasAudioURL  bool
	TranscriptOK bool
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: JARVIS_LOG_PATH environment variable
	if envPath := os.Getenv("JARVIS_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	convPath := filepath.Join(dir, "conversation_log.txt")
	conversationFile, err = os.OpenFile(convPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if conversationFile != nil {
		conversationFile.Close()
		conversationFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Cycle logs a recording-cycle event tagged with its id.
func Cycle(id, event string) {
	if logReady {
		diagLog.Info().Str("cycle", id).Msg(event)
	}
}

func ExchangeMetrics(m Exchange) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("cycle", m.Cycle).
		Int("status", m.Status).
		Str("conn", connStatus)
	if m.TLSProtocol != "" {
		ev = ev.Str("tls_proto", m.TLSProtocol)
	}
	ev.Float64("payload_kb", m.PayloadKB).
		Int("chunks", m.Chunks).
		Float64("audio_s", m.AudioS).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Bool("audio_url", m.HasAudioURL).
		Bool("transcript", m.TranscriptOK).
		Msg("exchange")
}

// Conversation appends one transcript line to conversation_log.txt.
func Conversation(speaker, text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, speaker, text)
	conversationFile.WriteString(line)
}

func SessionStart(backend, format, device string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("backend", backend).
		Str("format", format).
		Str("device", device).
		Msg("session_start")
}

func SessionEnd(exchanges int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("exchanges", exchanges).
		Msg("session_end")
}
