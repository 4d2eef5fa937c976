package config

import (
	"os"
	"path/filepath"
)

// TabchatPath returns the root directory for tabchat data.
// It uses $TABCHAT_PATH if set, otherwise defaults to ~/.tabchat.
func TabchatPath() string {
	if v := os.Getenv("TABCHAT_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".tabchat")
	}
	return filepath.Join(home, ".tabchat")
}

// ConfigPath returns the path to the config file. A config.yaml is used when
// present, config.jsonc otherwise.
func ConfigPath() string {
	yamlPath := filepath.Join(TabchatPath(), "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return filepath.Join(TabchatPath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(TabchatPath(), ".env")
}
