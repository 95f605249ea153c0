// Package config loads the coordinator's startup configuration from a
// YAML file: the command channel's capacity and timeouts, the Unix
// socket path remote proxies dial, and logging options.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level document a sharecoordinator process reads
// on startup.
type Config struct {
	Socket  SocketConfig  `yaml:"socket"`
	Channel ChannelConfig `yaml:"channel"`
	Log     LogConfig     `yaml:"log"`
}

// SocketConfig locates the Unix domain socket the coordinator serves
// pkg/rpc on.
type SocketConfig struct {
	Path string `yaml:"path"`
}

// ChannelConfig tunes the in-process command channel, the deadline the
// rpc server waits for the coordinator's reply to a remote synchronous
// command, and how long shutdown waits for the coordinator to exit.
type ChannelConfig struct {
	Capacity     int           `yaml:"capacity"`
	ReplyTimeout time.Duration `yaml:"replyTimeout"`
	ShutdownWait time.Duration `yaml:"shutdownWait"`
}

// LogConfig selects zerolog's level and output format.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration a coordinator starts with when no
// file is given.
func Default() Config {
	return Config{
		Socket:  SocketConfig{Path: "/run/share/coordinator.sock"},
		Channel: ChannelConfig{Capacity: 64, ReplyTimeout: 5 * time.Second, ShutdownWait: 5 * time.Second},
		Log:     LogConfig{Level: "info", JSON: true},
	}
}

// Load reads and parses a YAML configuration file at path, filling any
// field the file omits from Default().
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if cfg.Channel.Capacity <= 0 {
		cfg.Channel.Capacity = Default().Channel.Capacity
	}
	if cfg.Channel.ReplyTimeout <= 0 {
		cfg.Channel.ReplyTimeout = Default().Channel.ReplyTimeout
	}
	if cfg.Channel.ShutdownWait <= 0 {
		cfg.Channel.ShutdownWait = Default().Channel.ShutdownWait
	}
	if cfg.Socket.Path == "" {
		cfg.Socket.Path = Default().Socket.Path
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = Default().Log.Level
	}

	return cfg, nil
}
