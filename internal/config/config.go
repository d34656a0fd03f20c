// Package config loads the optional YAML settings file and fills defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/clipr/internal/lifecycle"
	"github.com/tanq16/clipr/internal/preview"
	"github.com/tanq16/clipr/internal/scheduler"
	"github.com/tanq16/clipr/internal/tools"
	"github.com/tanq16/clipr/internal/upload"
	"gopkg.in/yaml.v3"
)

const appName = "clipr"

type Config struct {
	Tools        tools.Paths       `yaml:"tools"`
	DownloadDir  string            `yaml:"download_dir"`
	Timeouts     lifecycle.Policy  `yaml:"timeouts"`
	PreviewCache int               `yaml:"preview_cache"`
	Workers      int               `yaml:"workers"`
	Retry        tools.RetryPolicy `yaml:"retry"`
	Upload       upload.Settings   `yaml:"upload"`
	HistoryDB    string            `yaml:"history_db"`
}

func Default() Config {
	return Config{
		DownloadDir:  defaultDownloadDir(),
		Timeouts:     lifecycle.DefaultPolicy,
		PreviewCache: preview.DefaultCapacity,
		Workers:      scheduler.DefaultWorkers,
		Retry:        tools.DefaultRetry,
		Upload:       upload.Settings{Target: upload.TargetCatbox},
		HistoryDB:    filepath.Join(dataDir(), "history.db"),
	}
}

// DefaultPath is $XDG_CONFIG_HOME/clipr/config.yaml or the platform
// equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, "config.yaml")
}

// Load reads path, or DefaultPath when path is empty. A missing default file
// is not an error; a missing explicit file is.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			log.Debug().Str("op", "config/load").Msgf("no config at %s, using defaults", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("error reading config: %v", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config %s: %v", path, err)
	}
	cfg.fill()
	log.Debug().Str("op", "config/load").Msgf("loaded config from %s", path)
	return cfg, nil
}

// fill replaces zero values left by a partial file with defaults.
func (c *Config) fill() {
	def := Default()
	if c.DownloadDir == "" {
		c.DownloadDir = def.DownloadDir
	}
	if c.PreviewCache <= 0 {
		c.PreviewCache = def.PreviewCache
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.Retry.Attempts <= 0 {
		c.Retry.Attempts = def.Retry.Attempts
	}
	if c.Retry.Backoff <= 0 {
		c.Retry.Backoff = def.Retry.Backoff
	}
	if c.Upload.Target == "" {
		c.Upload.Target = def.Upload.Target
	}
	if c.HistoryDB == "" {
		c.HistoryDB = def.HistoryDB
	}
	c.DownloadDir = expandHome(c.DownloadDir)
	c.HistoryDB = expandHome(c.HistoryDB)
}

func defaultDownloadDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", appName)
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
