// Package config loads the optional config.toml at the state root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/valentin-nasta/oh-my-claude-sisyphus-sub000/internal/provider"
)

// FileName is the config file name inside the state root.
const FileName = "config.toml"

// Defaults for polling and job supervision. The wait clamp and hard
// timeout ceiling are fixed at one hour; config may lower but not raise
// them.
const (
	DefaultPollFloor   = 500 * time.Millisecond
	DefaultPollCeiling = 10 * time.Second
	MaxWaitTimeout     = time.Hour
	DefaultHardTimeout = time.Hour
)

// Config holds tunables for polling, job supervision, and provider
// command overrides.
type Config struct {
	DefaultProvider string `toml:"default_provider"`

	Poll struct {
		FloorMs   int `toml:"floor_ms"`
		CeilingMs int `toml:"ceiling_ms"`
	} `toml:"poll"`

	Jobs struct {
		HardTimeoutMs int `toml:"hard_timeout_ms"`
	} `toml:"jobs"`

	Providers map[string]ProviderOverride `toml:"providers"`
}

// ProviderOverride customizes or adds a provider preset.
type ProviderOverride struct {
	Command        string   `toml:"command"`
	Args           []string `toml:"args"`
	PromptViaStdin bool     `toml:"prompt_via_stdin"`
}

// Load reads config.toml from the state root. A missing file yields the
// defaults; a malformed file is an error, never a silent fallback.
func Load(stateRoot string) (*Config, error) {
	cfg := &Config{DefaultProvider: "claude"}

	path := filepath.Join(stateRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "claude"
	}
	return cfg, nil
}

// PollFloor returns the configured backoff floor. The floor must be
// positive so the poller never busy-spins.
func (c *Config) PollFloor() time.Duration {
	if c.Poll.FloorMs > 0 {
		return time.Duration(c.Poll.FloorMs) * time.Millisecond
	}
	return DefaultPollFloor
}

// PollCeiling returns the configured backoff ceiling, at least the floor.
func (c *Config) PollCeiling() time.Duration {
	ceiling := DefaultPollCeiling
	if c.Poll.CeilingMs > 0 {
		ceiling = time.Duration(c.Poll.CeilingMs) * time.Millisecond
	}
	if floor := c.PollFloor(); ceiling < floor {
		return floor
	}
	return ceiling
}

// HardTimeout returns the wall-clock limit the supervisor enforces on a
// job, capped at one hour.
func (c *Config) HardTimeout() time.Duration {
	if c.Jobs.HardTimeoutMs > 0 {
		d := time.Duration(c.Jobs.HardTimeoutMs) * time.Millisecond
		if d < DefaultHardTimeout {
			return d
		}
	}
	return DefaultHardTimeout
}

// ApplyProviders registers configured provider overrides.
func (c *Config) ApplyProviders(reg *provider.Registry) error {
	for name, o := range c.Providers {
		if err := provider.ValidateName(name); err != nil {
			return err
		}
		command := o.Command
		if command == "" {
			command = name
		}
		reg.Register(provider.Provider{
			Name:           name,
			Command:        command,
			Args:           o.Args,
			PromptViaStdin: o.PromptViaStdin,
		})
	}
	return nil
}

// ClampWait bounds a caller-requested wait timeout: non-positive values
// get the full clamp, oversized requests are clamped, not rejected.
func ClampWait(d time.Duration) time.Duration {
	if d <= 0 || d > MaxWaitTimeout {
		return MaxWaitTimeout
	}
	return d
}
