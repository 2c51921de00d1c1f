package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/bootsum/bootsum/pkg/manifest"
)

type Config struct {
	Manifest   string `toml:"manifest"`
	ChunkKiB   int    `toml:"chunk_kib"`
	Unattended bool   `toml:"unattended"`

	Loader  LoaderConfig  `toml:"loader"`
	Relay   RelayConfig   `toml:"relay"`
	Console ConsoleConfig `toml:"console"`
}

type LoaderConfig struct {
	Enabled bool `toml:"enabled"`

	// Path names the loader to chain into; empty means locate the
	// displaced original loader on the medium.
	Path         string `toml:"path"`
	CountdownSec int    `toml:"countdown_sec"`
}

type RelayConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

type ConsoleConfig struct {
	// Color is one of auto, always, never.
	Color string `toml:"color"`
}

func Default() *Config {
	return &Config{
		Manifest: manifest.DefaultName,
		ChunkKiB: 1024,
		Loader:   LoaderConfig{CountdownSec: 3},
		Console:  ConsoleConfig{Color: "auto"},
	}
}

// Load reads a TOML config file over the defaults. An empty path means
// defaults only. BOOTSUM_RELAY_TOKEN overrides the relay token either
// way.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf(
				"unknown config key %q in %s", undecoded[0].String(), path,
			)
		}
	}
	if tok := os.Getenv("BOOTSUM_RELAY_TOKEN"); tok != "" {
		cfg.Relay.Token = tok
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Manifest == "" {
		return fmt.Errorf("manifest name must not be empty")
	}
	if c.ChunkKiB <= 0 {
		return fmt.Errorf("chunk_kib must be positive, got %d", c.ChunkKiB)
	}
	if c.Loader.CountdownSec < 0 {
		return fmt.Errorf("countdown_sec must not be negative, got %d", c.Loader.CountdownSec)
	}
	switch c.Console.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("console color must be auto, always or never, got %q", c.Console.Color)
	}
	return nil
}

// ChunkBytes is the hash read size in bytes.
func (c *Config) ChunkBytes() int {
	return c.ChunkKiB << 10
}
