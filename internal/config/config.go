package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	PluginDir           string `yaml:"plugin_dir" split_words:"true"`
	StartupScript       string `yaml:"startup_script" split_words:"true"`
	LogFile             string `yaml:"log_file" split_words:"true"`
	LogLevel            string `yaml:"log_level" split_words:"true"`
	LogDevelopment      bool   `yaml:"log_development" split_words:"true"`
	FrameMS             int    `yaml:"frame_ms" envconfig:"FRAME_MS"`
	BridgeStopTimeoutMS int    `yaml:"bridge_stop_timeout_ms" envconfig:"BRIDGE_STOP_TIMEOUT_MS"`
	MaxPipeDepth        int    `yaml:"max_pipe_depth" split_words:"true"`
	SidebarWidth        int    `yaml:"sidebar_width" split_words:"true"`
	ExportDir           string `yaml:"export_dir" split_words:"true"`
	HTTPTimeout         int    `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT"` // seconds, default 30

	// PluginRepo is the ppm repository base URL; empty disables remote ppm commands.
	PluginRepo string `yaml:"plugin_repo" split_words:"true"`

	// Colors maps a UI element (header, sidebar, selected, messages, prompt,
	// ghost) to a default color for new sessions.
	Colors map[string]string `yaml:"colors" ignored:"true"`
}

func PolyDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".poly")
}

func Path() string {
	return filepath.Join(PolyDir(), "poly.yaml")
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.fill()
	return cfg
}

// Load reads ~/.poly/poly.yaml when present, then applies POLY_* environment
// overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile(Path())
}

func LoadFile(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("load config: %w", err)
	default:
		data = []byte(os.ExpandEnv(string(data)))
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := envconfig.Process("poly", &cfg); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	cfg.fill()
	return &cfg, nil
}

func (c *Config) fill() {
	dir := PolyDir()
	if c.PluginDir == "" {
		c.PluginDir = filepath.Join(dir, "plugins")
	}
	if c.StartupScript == "" {
		c.StartupScript = filepath.Join(dir, "startup.poly")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(dir, "poly.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.FrameMS <= 0 {
		c.FrameMS = 50
	}
	if c.BridgeStopTimeoutMS <= 0 {
		c.BridgeStopTimeoutMS = 1000
	}
	if c.MaxPipeDepth <= 0 {
		c.MaxPipeDepth = 16
	}
	if c.SidebarWidth <= 0 {
		c.SidebarWidth = 23
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 30
	}
	c.PluginDir = expandHome(c.PluginDir)
	c.StartupScript = expandHome(c.StartupScript)
	c.LogFile = expandHome(c.LogFile)
	c.ExportDir = expandHome(c.ExportDir)
}

func (c *Config) Frame() time.Duration {
	return time.Duration(c.FrameMS) * time.Millisecond
}

func (c *Config) BridgeStopTimeout() time.Duration {
	return time.Duration(c.BridgeStopTimeoutMS) * time.Millisecond
}

func (c *Config) HTTPTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// Write stores c as YAML at path, creating parent directories.
func (c *Config) Write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
