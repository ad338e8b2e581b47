// Package config provides configuration loading and structs for the DocIQ client.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvAPIToken = "DOCIQ_API_TOKEN"
	EnvAPIURL   = "DOCIQ_API_URL"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	API     APIConfig     `yaml:"api"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Chat    ChatConfig    `yaml:"chat"`
	Drive   DriveConfig   `yaml:"drive"`
	Watch   WatchConfig   `yaml:"watch"`
	Catalog CatalogConfig `yaml:"catalog"`
	Log     LogConfig     `yaml:"log"`
}

// APIConfig holds the remote answer backend settings.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig holds the local bridge HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the path of the local durable store.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ChatConfig tunes the conversation surface.
type ChatConfig struct {
	// RevealDelay is the per-character delay of the progressive answer reveal.
	RevealDelay time.Duration `yaml:"reveal_delay"`
	ErrorText   string        `yaml:"error_text"`
	Greeting    *string       `yaml:"greeting"`
}

// GreetingOrDefault returns the configured greeting; an explicit empty string disables it.
func (c *ChatConfig) GreetingOrDefault() string {
	if c.Greeting != nil {
		return *c.Greeting
	}
	return "Hello! I'm your AI assistant. Ask me about your documents."
}

// DriveConfig holds cloud drive polling settings.
type DriveConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// WatchConfig holds watched-folder upload settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	Workspace   string   `yaml:"workspace"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// CatalogConfig holds document list caching settings.
type CatalogConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LogConfig holds file logging settings used by the terminal UI.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads and parses the config file at path, expands paths, applies env overrides
// and defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Log.File = expandPath(cfg.Log.File, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a config built from defaults and environment only, for running without a file.
func Default() *Config {
	var cfg Config
	ApplyEnv(&cfg)
	ApplyDefaults(&cfg)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, ".")
	cfg.Log.File = expandPath(cfg.Log.File, ".")
	return &cfg
}

// Save writes the config to path. Used when the CLI persists watch directories.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides API settings from the environment when set.
func ApplyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIToken)); v != "" {
		cfg.API.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIURL)); v != "" {
		cfg.API.BaseURL = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty stays empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
