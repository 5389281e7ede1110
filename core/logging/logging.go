// Package logging builds the zap logger shared by the process pool, the
// event loop selector and the engine.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel is the minimum level a logger emits
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// ParseLevel converts a level name into a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("invalid log level %q", s)
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zap.DebugLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

// Config contains logging configuration
type Config struct {
	// Level is the minimum log level: debug, info, warn, error
	Level LogLevel `yaml:"level" envconfig:"LEVEL"`
	// EnableVerboseLogs lets debug and info records through. When false the
	// effective floor is warn, whatever Level says.
	EnableVerboseLogs bool `yaml:"enable_verbose_logs" envconfig:"ENABLE_VERBOSE_LOGS"`
	// Format is the output format: json or text
	Format string `yaml:"format" envconfig:"FORMAT"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: "text",
	}
}

// Validate checks the level and format
func (c Config) Validate() error {
	if _, err := ParseLevel(string(c.Level)); err != nil {
		return err
	}
	switch c.Format {
	case "json", "text", "":
		return nil
	default:
		return fmt.Errorf("invalid log format %q (must be json or text)", c.Format)
	}
}

// EffectiveLevel is the level actually applied to the logger
func (c Config) EffectiveLevel() zapcore.Level {
	lvl := c.Level.zapLevel()
	if !c.EnableVerboseLogs && lvl < zap.WarnLevel {
		return zap.WarnLevel
	}
	return lvl
}

// NewLogger creates a new zap logger based on the configuration
func NewLogger(cfg Config) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.EffectiveLevel())

	return zapCfg.Build()
}
