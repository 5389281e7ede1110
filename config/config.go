// Package config loads the server configuration from an optional YAML file
// overlaid with HIVE_* environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/searchktools/hive/core/eventloop"
	"github.com/searchktools/hive/core/logging"
)

// EnvPrefix is the environment variable prefix
const EnvPrefix = "HIVE"

// Config holds all application configuration
type Config struct {
	Server  ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging logging.Config `yaml:"logging" envconfig:"LOGGING"`
	Metrics MetricsConfig  `yaml:"metrics" envconfig:"METRICS"`
}

// ServerConfig describes the listening socket and the worker layout
type ServerConfig struct {
	Host string `yaml:"host" envconfig:"HOST"`
	Port int    `yaml:"port" envconfig:"PORT"`
	// Processes is the number of OS worker processes sharing the socket
	Processes int `yaml:"processes" envconfig:"PROCESSES"`
	// Workers is the concurrency fan-out inside each process
	Workers int `yaml:"workers" envconfig:"WORKERS"`
	// EventLoop forces a loop implementation: uring, poll or std. Empty or
	// "auto" picks the fastest available.
	EventLoop       string `yaml:"event_loop" envconfig:"EVENT_LOOP"`
	ReadTimeout     int    `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`         // seconds
	WriteTimeout    int    `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`       // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"` // seconds
}

// MetricsConfig configures the parent-process Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address of /metrics; empty disables it
	Addr string `yaml:"addr" envconfig:"ADDR"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			Processes:       1,
			Workers:         1,
			ReadTimeout:     10,
			WriteTimeout:    30,
			ShutdownTimeout: 5,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from file and environment variables. A missing
// file is not an error.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Processes < 1 {
		return fmt.Errorf("processes must be at least 1, got %d", c.Server.Processes)
	}
	if c.Server.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Server.Workers)
	}
	if _, err := eventloop.ParseKind(c.Server.EventLoop); err != nil {
		return err
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	return nil
}

// Address returns the host:port the socket binds to
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
