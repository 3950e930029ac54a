package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vars = []string{
	"JARVIS_BACKEND_URL", "JARVIS_TIMEOUT", "JARVIS_FORMAT", "JARVIS_UPLOAD_NAME",
	"JARVIS_DEVICE", "JARVIS_HOTKEY", "JARVIS_LOG_PATH", "JARVIS_NO_BEEP", "JARVIS_SHARE_CMD",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range vars {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, "wav", cfg.Format)
	assert.Equal(t, "input.webm", cfg.UploadName)
	assert.Equal(t, "ctrl+shift+space", cfg.Hotkey)
	assert.Empty(t, cfg.Device)
	assert.False(t, cfg.NoBeep)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("JARVIS_BACKEND_URL", "https://jarvis.example.com")
	t.Setenv("JARVIS_TIMEOUT", "5s")
	t.Setenv("JARVIS_FORMAT", "flac")
	t.Setenv("JARVIS_NO_BEEP", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://jarvis.example.com", cfg.BackendURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "flac", cfg.Format)
	assert.True(t, cfg.NoBeep)
}

func TestDotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("JARVIS_BACKEND_URL=http://10.0.0.2:9000\nJARVIS_DEVICE=USB Mic\n"), 0644))
	t.Cleanup(func() {
		os.Unsetenv("JARVIS_BACKEND_URL")
		os.Unsetenv("JARVIS_DEVICE")
	})

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:9000", cfg.BackendURL)
	assert.Equal(t, "USB Mic", cfg.Device)
}

func TestEnvironmentWinsOverDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("JARVIS_FORMAT=flac\n"), 0644))
	t.Setenv("JARVIS_FORMAT", "wav")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "wav", cfg.Format)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad scheme", "JARVIS_BACKEND_URL", "ftp://host"},
		{"no host", "JARVIS_BACKEND_URL", "http://"},
		{"bad duration", "JARVIS_TIMEOUT", "soon"},
		{"zero timeout", "JARVIS_TIMEOUT", "0s"},
		{"bad format", "JARVIS_FORMAT", "mp3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
