package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTRequired bool   `mapstructure:"jwt_required" yaml:"jwt_required"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// AllowAnonymous accepts token-less joins even when a secret is configured.
	AllowAnonymous bool `mapstructure:"allow_anonymous" yaml:"allow_anonymous"`

	RateLimitPerMinute int   `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	MaxMessageBytes    int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`

	Rooms RoomsConfig `mapstructure:"rooms" yaml:"rooms"`
}

// RoomsConfig tunes the room coordination core.
type RoomsConfig struct {
	TypingTimeout      time.Duration `mapstructure:"typing_timeout" yaml:"typing_timeout"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	MaxMessageLength   int           `mapstructure:"max_message_length" yaml:"max_message_length"`
	HistoryWindow      int           `mapstructure:"history_window" yaml:"history_window"`
	OutboundQueueSize  int           `mapstructure:"outbound_queue_size" yaml:"outbound_queue_size"`
	RetainEmptyRooms   bool          `mapstructure:"retain_empty_rooms" yaml:"retain_empty_rooms"`
	RequireProvisioned bool          `mapstructure:"require_provisioned" yaml:"require_provisioned"`
	ProvisionedRooms   []string      `mapstructure:"provisioned_rooms" yaml:"provisioned_rooms"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	opts := core.DefaultOptions()
	return Config{
		Addr:               ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ShutdownTimeout:    5 * time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		JWTIssuer:          "wirechat",
		JWTAudience:        "wirechat-clients",
		RateLimitPerMinute: 120,
		MaxMessageBytes:    64 << 10,
		Rooms: RoomsConfig{
			TypingTimeout:     opts.TypingTimeout,
			SweepInterval:     opts.SweepInterval,
			MaxMessageLength:  opts.MaxMessageLength,
			HistoryWindow:     opts.HistoryWindow,
			OutboundQueueSize: opts.OutboundQueueSize,
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTRequired {
		c.JWTRequired = true
	}
	if other.AllowAnonymous {
		c.AllowAnonymous = true
	}
	if other.RateLimitPerMinute != 0 {
		c.RateLimitPerMinute = other.RateLimitPerMinute
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.Rooms.TypingTimeout != 0 {
		c.Rooms.TypingTimeout = other.Rooms.TypingTimeout
	}
	if other.Rooms.MaxMessageLength != 0 {
		c.Rooms.MaxMessageLength = other.Rooms.MaxMessageLength
	}
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.JWTRequired && c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt_required needs jwt_secret"))
	}
	if c.JWTRequired && c.AllowAnonymous {
		errs = append(errs, errors.New("jwt_required and allow_anonymous are mutually exclusive"))
	}
	if c.Rooms.TypingTimeout > 0 && c.Rooms.SweepInterval >= c.Rooms.TypingTimeout {
		errs = append(errs, fmt.Errorf("rooms.sweep_interval (%s) must be shorter than rooms.typing_timeout (%s)",
			c.Rooms.SweepInterval, c.Rooms.TypingTimeout))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_per_minute must be >= 0, got %d", c.RateLimitPerMinute))
	}
	if c.Rooms.TypingTimeout < 0 {
		errs = append(errs, fmt.Errorf("rooms.typing_timeout must be >= 0, got %s", c.Rooms.TypingTimeout))
	}
	if c.Rooms.SweepInterval < 0 {
		errs = append(errs, fmt.Errorf("rooms.sweep_interval must be >= 0, got %s", c.Rooms.SweepInterval))
	}
	if c.Rooms.MaxMessageLength < 0 {
		errs = append(errs, fmt.Errorf("rooms.max_message_length must be >= 0, got %d", c.Rooms.MaxMessageLength))
	}
	if c.Rooms.OutboundQueueSize < 0 {
		errs = append(errs, fmt.Errorf("rooms.outbound_queue_size must be >= 0, got %d", c.Rooms.OutboundQueueSize))
	}
	switch c.LogFormat {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// TokenRequired reports whether a join must carry a valid token. A configured
// secret implies it unless anonymous joins are explicitly allowed.
func (c Config) TokenRequired() bool {
	return c.JWTRequired || (c.JWTSecret != "" && !c.AllowAnonymous)
}

// CoreOptions translates the rooms block into core options.
func (c Config) CoreOptions() core.Options {
	return core.Options{
		TypingTimeout:      c.Rooms.TypingTimeout,
		SweepInterval:      c.Rooms.SweepInterval,
		MaxMessageLength:   c.Rooms.MaxMessageLength,
		HistoryWindow:      c.Rooms.HistoryWindow,
		OutboundQueueSize:  c.Rooms.OutboundQueueSize,
		RetainEmptyRooms:   c.Rooms.RetainEmptyRooms,
		RequireProvisioned: c.Rooms.RequireProvisioned,
		ProvisionedRooms:   c.Rooms.ProvisionedRooms,
	}
}
