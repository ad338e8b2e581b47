package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "https://api.dociq.tech/api"
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 60 * time.Second
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = ".local/share/dociq/state.db"
	}
	if cfg.Chat.RevealDelay == 0 {
		cfg.Chat.RevealDelay = 18 * time.Millisecond
	}
	if cfg.Chat.ErrorText == "" {
		cfg.Chat.ErrorText = "⚠️ Backend error"
	}
	if cfg.Drive.PollInterval == 0 {
		cfg.Drive.PollInterval = 30 * time.Second
	}
	if cfg.Catalog.CacheTTL == 0 {
		cfg.Catalog.CacheTTL = 30 * time.Second
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt"}
	}
	if cfg.Watch.Workspace == "" {
		cfg.Watch.Workspace = "default"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
	if cfg.Log.File == "" {
		cfg.Log.File = ".local/share/dociq/logs/dociq.log"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 10
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 3
	}
}
