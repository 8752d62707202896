// Package config loads widget-host configuration from TOML files and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full host configuration.
type Config struct {
	Host    HostConfig              `toml:"host"`
	Widget  WidgetConfig            `toml:"widget"`
	Sandbox SandboxConfig           `toml:"sandbox"`
	Traffic TrafficConfig           `toml:"traffic"`
	Servers map[string]ServerConfig `toml:"servers"`
}

// HostConfig identifies the host process.
type HostConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
	Listen  string `toml:"listen"`

	Theme    string `toml:"theme"`
	Locale   string `toml:"locale"`
	Platform string `toml:"platform"`
}

// WidgetConfig bounds widget sessions.
type WidgetConfig struct {
	MinHeight     int      `toml:"min_height"`
	MaxHeight     int      `toml:"max_height"`
	HeightEpsilon int      `toml:"height_epsilon"`
	CallTimeout   duration `toml:"call_timeout"`
}

// SandboxConfig tunes the sandbox host.
type SandboxConfig struct {
	LoadTimeout    duration `toml:"load_timeout"`
	WriteTimeout   duration `toml:"write_timeout"`
	MaxMessageSize int64    `toml:"max_message_size"`
	PingInterval   duration `toml:"ping_interval"`
}

// TrafficConfig selects traffic sinks.
type TrafficConfig struct {
	// MemoryRecords enables an in-memory ring of recent records.
	// 0 disables it.
	MemoryRecords int `toml:"memory_records"`

	// NATSURL enables publishing traffic to NATS.
	NATSURL string `toml:"nats_url"`

	// Index enables the in-memory search index.
	Index bool `toml:"index"`
}

// ServerConfig describes one MCP server entry.
type ServerConfig struct {
	Command []string `toml:"command"`
	Env     []string `toml:"env"`
	URL     string   `toml:"url"`
}

// duration unmarshals TOML strings like "30s".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// Duration converts to the standard type.
func (d duration) Duration() time.Duration {
	return time.Duration(d)
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			Name:     "widgetkit",
			Version:  "1.0.0",
			Listen:   ":8400",
			Theme:    "light",
			Locale:   "en-US",
			Platform: "web",
		},
		Widget: WidgetConfig{
			MinHeight:     80,
			MaxHeight:     600,
			HeightEpsilon: 1,
			CallTimeout:   duration(30 * time.Second),
		},
		Sandbox: SandboxConfig{
			LoadTimeout:    duration(15 * time.Second),
			WriteTimeout:   duration(10 * time.Second),
			MaxMessageSize: 1024 * 1024,
			PingInterval:   duration(30 * time.Second),
		},
		Traffic: TrafficConfig{
			MemoryRecords: 256,
		},
		Servers: make(map[string]ServerConfig),
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	paths := []string{"widgetkit.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "widgetkit", "config.toml"))
	}
	return paths
}

// Load reads the first available standard location, then applies
// environment overrides. A missing file is not an error; defaults apply.
func Load() (*Config, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			cfg, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return cfg, path, nil
		}
	}
	cfg := Default()
	applyEnv(cfg)
	return cfg, "", cfg.Validate()
}

// LoadFile reads one TOML file over the defaults and applies environment
// overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings from WIDGETKIT_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("WIDGETKIT_LISTEN"); v != "" {
		cfg.Host.Listen = v
	}
	if v := os.Getenv("WIDGETKIT_THEME"); v != "" {
		cfg.Host.Theme = v
	}
	if v := os.Getenv("WIDGETKIT_LOCALE"); v != "" {
		cfg.Host.Locale = v
	}
	if v := os.Getenv("WIDGETKIT_NATS_URL"); v != "" {
		cfg.Traffic.NATSURL = v
	}
	if v := os.Getenv("WIDGETKIT_MAX_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Widget.MaxHeight = n
		}
	}
}

// Validate rejects configurations the bridge cannot run with.
func (c *Config) Validate() error {
	if c.Widget.MinHeight <= 0 {
		return fmt.Errorf("widget.min_height must be positive")
	}
	if c.Widget.MaxHeight < c.Widget.MinHeight {
		return fmt.Errorf("widget.max_height must be at least min_height")
	}
	if c.Widget.HeightEpsilon < 1 {
		return fmt.Errorf("widget.height_epsilon must be at least 1")
	}
	if c.Host.Listen == "" {
		return fmt.Errorf("host.listen must be set")
	}
	for id, srv := range c.Servers {
		if len(srv.Command) == 0 && srv.URL == "" {
			return fmt.Errorf("server %q needs a command or url", id)
		}
	}
	return nil
}
