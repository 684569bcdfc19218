package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied by ApplyDefaults when fields are unset.
const (
	DefaultReconnectDelayMS = 3000
	DefaultPageSize         = 10
	DefaultTypingIntervalMS = 1000
	DefaultTypingTTLMS      = 3000
)

// Config represents the global ~/.ripple/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
	ServerURL      string `toml:"server_url"`
	AuthToken      string `toml:"auth_token"`

	ReconnectDelayMS int `toml:"reconnect_delay_ms"`
	PageSize         int `toml:"page_size"`
	TypingIntervalMS int `toml:"typing_interval_ms"`
	TypingTTLMS      int `toml:"typing_ttl_ms"`

	// AcceptUntypedFrames enables the compatibility path for servers that
	// push message frames without a kind discriminator.
	AcceptUntypedFrames bool `toml:"accept_untyped_frames"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ApplyDefaults fills unset numeric fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.ReconnectDelayMS <= 0 {
		c.ReconnectDelayMS = DefaultReconnectDelayMS
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.TypingIntervalMS <= 0 {
		c.TypingIntervalMS = DefaultTypingIntervalMS
	}
	if c.TypingTTLMS <= 0 {
		c.TypingTTLMS = DefaultTypingTTLMS
	}
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

// TypingInterval returns the minimum interval between outbound typing frames.
func (c *Config) TypingInterval() time.Duration {
	return time.Duration(c.TypingIntervalMS) * time.Millisecond
}

// TypingTTL returns how long a typing indicator stays visible without refresh.
func (c *Config) TypingTTL() time.Duration {
	return time.Duration(c.TypingTTLMS) * time.Millisecond
}
