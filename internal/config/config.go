// Package config provides Viper-based configuration loading for the game server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TCPConfig holds settings for the TCP listener.
type TCPConfig struct {
	// Host is the bind address for the listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the listener.
	Port int `mapstructure:"port"`
	// ReadTimeout is the per-read timeout for client connections. Zero,
	// the default, lets a quiet client stay connected indefinitely; a
	// positive value disconnects clients that send nothing for that long.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write timeout for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (t TCPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds room and session defaults.
type GameConfig struct {
	// DefaultTurnTime is the turn timer in seconds used when /create omits it.
	DefaultTurnTime int `mapstructure:"default_turn_time"`
	// DefaultMaxPlayers is the room capacity used when /create omits it.
	DefaultMaxPlayers int `mapstructure:"default_max_players"`
	// MaxRooms caps the number of concurrently registered rooms. Zero means unlimited.
	MaxRooms int `mapstructure:"max_rooms"`
	// OutboxBuffer is the per-session outbound message buffer size.
	OutboxBuffer int `mapstructure:"outbox_buffer"`
}

// Config is the top-level application configuration.
type Config struct {
	TCP     TCPConfig     `mapstructure:"tcp"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateTCP(c.TCP); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateTCP(t TCPConfig) error {
	var errs []string
	if t.Port < 1 || t.Port > 65535 {
		errs = append(errs, fmt.Sprintf("tcp.port must be 1-65535, got %d", t.Port))
	}
	if t.ReadTimeout < 0 {
		errs = append(errs, "tcp.read_timeout must not be negative")
	}
	if t.WriteTimeout < 0 {
		errs = append(errs, "tcp.write_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.DefaultTurnTime < 1 {
		errs = append(errs, fmt.Sprintf("game.default_turn_time must be >= 1, got %d", g.DefaultTurnTime))
	}
	if g.DefaultMaxPlayers < 1 {
		errs = append(errs, fmt.Sprintf("game.default_max_players must be >= 1, got %d", g.DefaultMaxPlayers))
	}
	if g.MaxRooms < 0 {
		errs = append(errs, fmt.Sprintf("game.max_rooms must be >= 0, got %d", g.MaxRooms))
	}
	if g.OutboxBuffer < 1 {
		errs = append(errs, fmt.Sprintf("game.outbox_buffer must be >= 1, got %d", g.OutboxBuffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with YOOTD_ prefix
	v.SetEnvPrefix("YOOTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Default returns the built-in configuration used when no file is given.
//
// Postcondition: Returns a Config that passes Validate.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshalling static defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tcp.host", "0.0.0.0")
	v.SetDefault("tcp.port", 12345)
	v.SetDefault("tcp.read_timeout", "0s")
	v.SetDefault("tcp.write_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.default_turn_time", 30)
	v.SetDefault("game.default_max_players", 4)
	v.SetDefault("game.max_rooms", 0)
	v.SetDefault("game.outbox_buffer", 64)
}
