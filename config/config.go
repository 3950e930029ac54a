// Package config loads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL string        `env:"JARVIS_BACKEND_URL" envDefault:"http://localhost:8000"`
	Timeout    time.Duration `env:"JARVIS_TIMEOUT" envDefault:"60s"`
	Format     string        `env:"JARVIS_FORMAT" envDefault:"wav"`
	UploadName string        `env:"JARVIS_UPLOAD_NAME" envDefault:"input.webm"`
	Device     string        `env:"JARVIS_DEVICE"`
	Hotkey     string        `env:"JARVIS_HOTKEY" envDefault:"ctrl+shift+space"`
	LogPath    string        `env:"JARVIS_LOG_PATH"`
	NoBeep     bool          `env:"JARVIS_NO_BEEP" envDefault:"false"`
	ShareCmd   string        `env:"JARVIS_SHARE_CMD"`
}

// Load reads envFiles (missing files are skipped) and then the process
// environment. Variables already set in the environment win over files.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("JARVIS_BACKEND_URL %q: want http(s)://host[:port]", c.BackendURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("JARVIS_TIMEOUT must be positive, got %s", c.Timeout)
	}
	switch c.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("JARVIS_FORMAT %q: use wav or flac", c.Format)
	}
	if c.UploadName == "" {
		return errors.New("JARVIS_UPLOAD_NAME must not be empty")
	}
	return nil
}
