package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Defaults are the user-level defaults loaded from
// $XDG_CONFIG_HOME/poof/config.yaml. Flags always win over the file.
type Defaults struct {
	Memory  string `yaml:"memory"`
	Pids    uint64 `yaml:"pids"`
	Timeout uint64 `yaml:"timeout"`
	Shell   string `yaml:"shell"`
	NoColor bool   `yaml:"no_color"`
}

// DefaultsPath returns the defaults file location, honoring
// XDG_CONFIG_HOME.
func DefaultsPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "poof", "config.yaml")
}

// LoadDefaults reads the defaults file. A missing file yields zero
// defaults and no error.
func LoadDefaults() (Defaults, error) {
	return loadDefaults(DefaultsPath())
}

func loadDefaults(path string) (Defaults, error) {
	var d Defaults
	if path == "" {
		return d, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return d, nil
		}
		return d, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return d, nil
}
