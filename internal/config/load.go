package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
// Relative hooks_file and journal.path values are anchored next to the config file.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: resolvedPath, Config: Default()}
	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath)}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	default:
		cfg, warnings, err := Parse(string(content), loaded.Config)
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	if err := loaded.resolvePaths(); err != nil {
		return Loaded{}, err
	}
	return loaded, nil
}

func (l *Loaded) resolvePaths() error {
	cfg := &l.Config
	if cfg.HooksFile == "" {
		cfg.HooksFile = filepath.Join(filepath.Dir(l.Path), hooksFileName)
	} else {
		cfg.HooksFile = resolveRelative(l.Path, cfg.HooksFile)
	}

	if cfg.Journal.Path == "" {
		stateDir, err := StateDir()
		if err != nil {
			return err
		}
		cfg.Journal.Path = filepath.Join(stateDir, journalFileName)
	} else {
		cfg.Journal.Path = resolveRelative(l.Path, cfg.Journal.Path)
	}
	return nil
}
