package tracksim

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Dataset DatasetConfig `toml:"dataset"`
}

type ServerConfig struct {
	Listen string `toml:"listen"`
	// APIKey guards every endpoint when set; an empty key disables
	// authentication entirely.
	APIKey  string   `toml:"api_key"`
	Latency Duration `toml:"latency"`
}

type DatasetConfig struct {
	Path string `toml:"path"`
}

// Duration adds TOML text decoding ("250ms", "1s") to time.Duration.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// LoadConfig reads a TOML scenario file. A relative dataset path is resolved
// against the directory holding the config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Dataset.Path != "" && !filepath.IsAbs(cfg.Dataset.Path) {
		cfg.Dataset.Path = filepath.Join(filepath.Dir(path), cfg.Dataset.Path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration. A missing dataset path is fine at
// this level: a simulator can start disabled and be given a dataset later.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Latency < 0 {
		return errors.New("server.latency cannot be negative")
	}
	return nil
}
