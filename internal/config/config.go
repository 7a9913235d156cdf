// Package config provides Viper-based configuration loading for the pong server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds WebSocket listener settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP/WebSocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP/WebSocket listener.
	Port int `mapstructure:"port"`
	// ReadTimeout bounds the wait for traffic from a client. The server
	// pings just inside this interval, so idle clients that answer pongs
	// are not dropped.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-write deadline for client connections.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GameConfig holds per-match simulation settings.
type GameConfig struct {
	// FieldWidth is the playing field extent along the paddle move axis.
	FieldWidth float64 `mapstructure:"field_width"`
	// FieldDepth is the playing field extent along the ball approach axis.
	FieldDepth float64 `mapstructure:"field_depth"`
	// MaxScore is the score that wins a match.
	MaxScore int `mapstructure:"max_score"`
	// TickRate is the simulation frequency in ticks per second.
	TickRate int `mapstructure:"tick_rate"`
	// GoalPause is how long play is suspended after each goal.
	GoalPause time.Duration `mapstructure:"goal_pause"`
	// TimeLimit caps total match duration; 0 disables the limit.
	TimeLimit time.Duration `mapstructure:"time_limit"`
}

// MatchmakingConfig holds queue behaviour settings.
type MatchmakingConfig struct {
	// QueueTimeout is how long a player waits before being told no
	// opponent was found.
	QueueTimeout time.Duration `mapstructure:"queue_timeout"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Game        GameConfig        `mapstructure:"game"`
	Matchmaking MatchmakingConfig `mapstructure:"matchmaking"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateMatchmaking(c.Matchmaking); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Host == "" {
		errs = append(errs, "server.host must not be empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", s.Port))
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.FieldWidth <= 0 {
		errs = append(errs, fmt.Sprintf("game.field_width must be positive, got %v", g.FieldWidth))
	}
	if g.FieldDepth <= 0 {
		errs = append(errs, fmt.Sprintf("game.field_depth must be positive, got %v", g.FieldDepth))
	}
	if g.MaxScore < 1 {
		errs = append(errs, fmt.Sprintf("game.max_score must be >= 1, got %d", g.MaxScore))
	}
	if g.TickRate < 1 || g.TickRate > 240 {
		errs = append(errs, fmt.Sprintf("game.tick_rate must be 1-240, got %d", g.TickRate))
	}
	if g.GoalPause <= 0 {
		errs = append(errs, "game.goal_pause must be positive")
	}
	if g.TimeLimit < 0 {
		errs = append(errs, "game.time_limit must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMatchmaking(m MatchmakingConfig) error {
	if m.QueueTimeout <= 0 {
		return fmt.Errorf("matchmaking.queue_timeout must be positive")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", l.Format))
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

	// Environment variable overrides with PONG_ prefix
	v.SetEnvPrefix("PONG")
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

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "60s")
	v.SetDefault("server.write_timeout", "10s")

	v.SetDefault("game.field_width", 20.0)
	v.SetDefault("game.field_depth", 30.0)
	v.SetDefault("game.max_score", 5)
	v.SetDefault("game.tick_rate", 60)
	v.SetDefault("game.goal_pause", "1s")
	v.SetDefault("game.time_limit", "3m")

	v.SetDefault("matchmaking.queue_timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
