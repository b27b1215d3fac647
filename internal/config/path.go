package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	appDir          = "voxhook"
	configFileName  = "config.jsonc"
	hooksFileName   = "hooks.yaml"
	journalFileName = "journal.db"
)

// ResolvePath applies CLI/XDG/home fallback rules for the config file location.
func ResolvePath(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return explicit, nil
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir, configFileName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for config fallback")
	}
	return filepath.Join(home, ".config", appDir, configFileName), nil
}

// StateDir returns $XDG_STATE_HOME/voxhook, falling back to ~/.local/state/voxhook.
func StateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, appDir), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("unable to resolve user home for state directory")
	}
	return filepath.Join(home, ".local", "state", appDir), nil
}

// ExpandHome replaces a leading "~" or "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// resolveRelative anchors a relative path to the config file directory.
func resolveRelative(configPath, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if expanded := ExpandHome(path); expanded != path {
		return expanded
	}
	return filepath.Join(filepath.Dir(configPath), path)
}
