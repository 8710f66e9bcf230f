package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const defaultServer = "http://localhost:4000"

// Config is the focus.toml client configuration.
type Config struct {
	Server string `toml:"server"`
	Token  string `toml:"token,omitempty"`
	Email  string `toml:"email,omitempty"`
	Timer  Timer  `toml:"timer"`
}

type Timer struct {
	// WorkMinutes and BreakMinutes default to 25 and 5.
	WorkMinutes  int `toml:"work-minutes,omitempty"`
	BreakMinutes int `toml:"break-minutes,omitempty"`
	// StateFile holds the running timer snapshot. Defaults next to the
	// config file.
	StateFile string `toml:"state-file,omitempty"`
}

func (t Timer) Work() time.Duration {
	if t.WorkMinutes <= 0 {
		return 25 * time.Minute
	}
	return time.Duration(t.WorkMinutes) * time.Minute
}

func (t Timer) Break() time.Duration {
	if t.BreakMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(t.BreakMinutes) * time.Minute
}

func defaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "devfocus", "config.toml"), nil
}

// LoadConfig reads the config at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Server: defaultServer}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.fill(path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.fill(path)
	return cfg, nil
}

func (c *Config) fill(path string) {
	if c.Server == "" {
		c.Server = defaultServer
	}
	if c.Timer.StateFile == "" {
		c.Timer.StateFile = filepath.Join(filepath.Dir(path), "timer.json")
	}
}

// applyEnv lets FOCUS_SERVER and FOCUS_TOKEN override the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("FOCUS_SERVER"); v != "" {
		c.Server = v
	}
	if v := os.Getenv("FOCUS_TOKEN"); v != "" {
		c.Token = v
	}
}

// Save writes the config to path readable only by the owner, since it
// holds the access token.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".config-*.toml")
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
