// Package config loads typed configuration from viper for the engine, the
// text classifier, model persistence and the HTTP server.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ and any $VAR references in path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}

// DataDir returns the directory holding the database and model files,
// honoring XDG_DATA_HOME.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tally")
	}
	return ExpandPath("~/.local/share/tally")
}

// ConfigDir returns the directory searched for config.yaml, honoring
// XDG_CONFIG_HOME.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tally")
	}
	return ExpandPath("~/.config/tally")
}
