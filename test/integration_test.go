//go:build integration

package test_test

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

var (
	testBinary string
	tonePath   string
)

func TestMain(m *testing.M) {
	testBinary = os.Getenv("JARVIS_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "JARVIS_TEST_BIN not set; run: make test-integration")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "jarvis-it")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	tonePath = filepath.Join(dir, "tone.wav")
	if err := os.WriteFile(tonePath, toneWAV(16000, 1.0, 440), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func wavHeader(sampleRate, dataSize int) []byte {
	buf := make([]byte, 44)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	return buf
}

func toneWAV(sampleRate int, durationS, freq float64) []byte {
	n := int(float64(sampleRate) * durationS)
	data := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * 12000)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return append(wavHeader(sampleRate, len(data)), data...)
}

type upload struct {
	field    string
	filename string
	mimeType string
	size     int
}

// backend mimics the conversation server: /api/interact answers with a
// canned reply and /static/responses serves the reply audio.
type backend struct {
	*httptest.Server
	mu      sync.Mutex
	uploads []upload
	status  int
	reply   string
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{status: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/interact", func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"expected multipart"}`)
			return
		}
		part, err := mr.NextPart()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, `{"detail":"missing audio"}`)
			return
		}
		data, _ := io.ReadAll(part)

		b.mu.Lock()
		b.uploads = append(b.uploads, upload{part.FormName(), part.FileName(), part.Header.Get("Content-Type"), len(data)})
		status, reply := b.status, b.reply
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if reply == "" {
			reply = `{"user_text":"hello jarvis","ai_response":"Hello! How can I help?","audio_url":"/static/responses/r1.wav"}`
		}
		io.WriteString(w, reply)
	})
	mux.HandleFunc("/static/responses/r1.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(toneWAV(22050, 2.0, 660))
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"components": map[string]bool{"speech_recognition": true, "gemini": true, "pyttsx3": true},
		})
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

func (b *backend) received() []upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]upload(nil), b.uploads...)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runJarvis(t *testing.T, b *backend, stdin string, args ...string) (stdout, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"-logpath", logDir, "-backend", b.URL}, args...)
	cmdArgs = append(cmdArgs, "-test", tonePath)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Dir = t.TempDir()
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("jarvis exited with error: %v\noutput: %s", err, out)
	}
	return string(out), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func requireLine(t *testing.T, out, line string) {
	t.Helper()
	for _, l := range strings.Split(out, "\n") {
		if l == line {
			return
		}
	}
	t.Errorf("missing line %q in output:\n%s", line, out)
}

func TestExchange(t *testing.T) {
	b := newBackend(t)
	out, logDir := runJarvis(t, b, cmds("KEYDOWN", "SLEEP 400", "KEYUP", "WAIT", "QUIT"))

	requireLine(t, out, "CAPTURING on")
	requireLine(t, out, "STATUS Jarvis is listening…")
	requireLine(t, out, "STATUS Jarvis is analyzing your request…")
	requireLine(t, out, "ENTRY user hello jarvis")
	requireLine(t, out, "ENTRY ai Hello! How can I help?")
	requireLine(t, out, "ACTION replay on")
	requireLine(t, out, "ACTION share on")
	if strings.Contains(out, "NOTIFY") {
		t.Errorf("unexpected notification:\n%s", out)
	}

	ups := b.received()
	if len(ups) != 1 {
		t.Fatalf("backend got %d uploads, want 1", len(ups))
	}
	if ups[0].field != "audio" || ups[0].filename != "input.webm" || ups[0].mimeType != "audio/wav" {
		t.Errorf("unexpected upload %+v", ups[0])
	}
	if ups[0].size <= 44 {
		t.Errorf("upload has no audio: %d bytes", ups[0].size)
	}

	conv := readLog(t, logDir, "conversation_log.txt")
	if !strings.Contains(conv, "\tuser\thello jarvis") || !strings.Contains(conv, "\tai\tHello! How can I help?") {
		t.Errorf("conversation log missing entries:\n%s", conv)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "exchange") || !strings.Contains(diag, "status=200") || !strings.Contains(diag, "chunks=") {
		t.Errorf("diagnostics missing exchange metrics:\n%s", diag)
	}
	if !strings.Contains(diag, "playback_discarded") {
		t.Error("expected reply audio to be fetched and played")
	}
}

func TestConnReuse(t *testing.T) {
	b := newBackend(t)
	_, logDir := runJarvis(t, b, cmds(
		"KEYDOWN", "SLEEP 300", "KEYUP", "WAIT",
		"KEYDOWN", "SLEEP 300", "KEYUP", "WAIT",
		"QUIT"))
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, " exchange") < 2 {
		t.Error("expected 2 exchange entries in diagnostics")
	}
	if !strings.Contains(diag, "conn=reused") {
		t.Error("expected conn=reused in diagnostics")
	}
	if !strings.Contains(diag, "exchanges=2") {
		t.Error("expected session_end with exchanges=2")
	}
}

func TestServerErrorDetail(t *testing.T) {
	b := newBackend(t)
	b.status = http.StatusTooManyRequests
	b.reply = `{"detail":"Rate limited"}`
	out, _ := runJarvis(t, b, cmds("KEYDOWN", "SLEEP 300", "KEYUP", "WAIT", "QUIT"))

	requireLine(t, out, "NOTIFY Jarvis hit a snag: Rate limited")
	if strings.Contains(out, "ENTRY") {
		t.Errorf("no entries expected on failure:\n%s", out)
	}
}

func TestBackendDown(t *testing.T) {
	b := newBackend(t)
	b.Close()
	out, _ := runJarvis(t, b, cmds("KEYDOWN", "SLEEP 200", "KEYUP", "WAIT", "STATE", "QUIT"))
	if !strings.Contains(out, "NOTIFY Jarvis hit a snag: network error") {
		t.Errorf("expected network error notification:\n%s", out)
	}
	requireLine(t, out, "STATE idle")
}

func TestShareFallsBackToClipboard(t *testing.T) {
	b := newBackend(t)
	out, _ := runJarvis(t, b, cmds("KEYDOWN", "SLEEP 300", "KEYUP", "WAIT", "SHARE", "VOICE", "QUIT"))
	requireLine(t, out, `CLIPBOARD "hello jarvis\n\nHello! How can I help?"`)
	requireLine(t, out, "NOTIFY Transcript copied to clipboard.")
	requireLine(t, out, "NOTIFY Voice customization coming soon.")
}

func TestFlacUpload(t *testing.T) {
	b := newBackend(t)
	runJarvis(t, b, cmds("KEYDOWN", "SLEEP 300", "KEYUP", "WAIT", "QUIT"), "-format", "flac", "-upload-name", "input.flac")
	ups := b.received()
	if len(ups) != 1 {
		t.Fatalf("backend got %d uploads, want 1", len(ups))
	}
	if ups[0].mimeType != "audio/flac" || ups[0].filename != "input.flac" {
		t.Errorf("unexpected upload %+v", ups[0])
	}
}

func TestReleaseWithoutPress(t *testing.T) {
	b := newBackend(t)
	out, _ := runJarvis(t, b, cmds("KEYDOWN", "KEYUP", "WAIT", "STATE", "QUIT"))
	requireLine(t, out, "STATE idle")
	if len(b.received()) > 1 {
		t.Errorf("at most one upload expected, got %d", len(b.received()))
	}
}

func TestPressInterruptsReply(t *testing.T) {
	b := newBackend(t)
	_, logDir := runJarvis(t, b, cmds(
		"KEYDOWN", "SLEEP 300", "KEYUP", "WAIT",
		"KEYDOWN", "SLEEP 300", "KEYUP", "WAIT",
		"QUIT"))
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if !strings.Contains(diag, "playback_interrupted") {
		t.Errorf("second press should cut off the first reply:\n%s", diag)
	}
}
