// Package config handles ember.toml host configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/emberscript/ember/pkg/bytecode"
)

// Config represents an ember.toml configuration file.
type Config struct {
	Limits LimitsConfig `toml:"limits"`
	Store  StoreConfig  `toml:"store"`
	Log    LogConfig    `toml:"log"`

	// Path is where the file was loaded from (set at load time).
	Path string `toml:"-"`
}

// LimitsConfig configures the VM's resource caps. Zero fields fall back
// to the defaults.
type LimitsConfig struct {
	MaxVariables    int `toml:"max-variables"`
	MaxStringLength int `toml:"max-string-length"`
	MaxIterations   int `toml:"max-iterations"`
	MaxMillis       int `toml:"max-millis"`
	MaxStackDepth   int `toml:"max-stack-depth"`
}

// StoreConfig configures session persistence.
type StoreConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures logging verbosity.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"` // empty means stderr
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{}
}

// Load parses an ember.toml file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find an ember.toml file, then
// loads and returns it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "ember.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// VMLimits converts the configured limits to VM limits, filling unset
// fields from the defaults.
func (c *Config) VMLimits() bytecode.Limits {
	limits := bytecode.DefaultLimits()
	if c.Limits.MaxVariables > 0 {
		limits.MaxVariables = c.Limits.MaxVariables
	}
	if c.Limits.MaxStringLength > 0 {
		limits.MaxStringLength = c.Limits.MaxStringLength
	}
	if c.Limits.MaxIterations > 0 {
		limits.MaxIterations = c.Limits.MaxIterations
	}
	if c.Limits.MaxMillis > 0 {
		limits.MaxMillis = c.Limits.MaxMillis
	}
	if c.Limits.MaxStackDepth > 0 {
		limits.MaxStackDepth = c.Limits.MaxStackDepth
	}
	return limits
}
