package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v3"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a config file, expands ${{ .Env.VAR }} templates, unmarshals it
// into Config and applies defaults. Files ending in .yaml or .yml are read as
// YAML, anything else as JSONC (JSON with comments and trailing commas).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Templates live inside strings, so expand before parsing.
	expanded := []byte(expandEnvTemplates(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal yaml config: %w", err)
		}
	default:
		std, err := hujson.Standardize(expanded)
		if err != nil {
			return nil, fmt.Errorf("parse jsonc config: %w", err)
		}
		if err := json.Unmarshal(std, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields.
func applyDefaults(cfg *Config) {
	if cfg.Service.BaseURL == "" {
		if v := os.Getenv("TABCHAT_SERVER"); v != "" {
			cfg.Service.BaseURL = v
		} else {
			cfg.Service.BaseURL = "http://localhost:8000"
		}
	}
	eps := &cfg.Service.Endpoints
	if eps.StartSession == "" {
		eps.StartSession = "/start_session"
	}
	if eps.UploadCSV == "" {
		eps.UploadCSV = "/upload_csv"
	}
	if eps.Query == "" {
		eps.Query = "/query"
	}
	if eps.EndSession == "" {
		eps.EndSession = "/end_session"
	}

	if cfg.Upload.Extension == "" {
		cfg.Upload.Extension = "csv"
	}
	cfg.Upload.Extension = strings.TrimPrefix(cfg.Upload.Extension, ".")
	if cfg.Upload.Field == "" {
		cfg.Upload.Field = "files"
	}

	if cfg.DevServer.Host == "" {
		cfg.DevServer.Host = "127.0.0.1"
	}
	if cfg.DevServer.Port == 0 {
		cfg.DevServer.Port = 8000
	}
	if cfg.DevServer.SessionTimeout == 0 {
		cfg.DevServer.SessionTimeout = Duration(30 * time.Minute)
	}
	if cfg.DevServer.MaxTables == 0 {
		cfg.DevServer.MaxTables = 10
	}
	if cfg.DevServer.SweepSchedule == "" {
		cfg.DevServer.SweepSchedule = "@every 1m"
	}

	if cfg.TUI.LogFile == "" {
		cfg.TUI.LogFile = filepath.Join(TabchatPath(), "tabchat.log")
	}
}
