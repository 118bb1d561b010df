package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix            = "WIRECHAT"
	envConfigDefaultPath = "WIRECHAT_CONFIG_DEFAULT_PATH"
	defaultConfigName    = "config.yaml"
)

// Load resolves configuration and the path of the file it came from.
// Precedence: defaults < config file < WIRECHAT_* env vars. Flag overrides are
// applied by the caller with UpdateFrom. A missing file is created from the
// defaults.
func Load(logger *zerolog.Logger, explicitPath string) (Config, string, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	cfg := Default()
	v := newViper(cfg)

	path := resolveConfigPath(explicitPath)
	if err := readOrCreate(v, path, cfg, logger); err != nil {
		return cfg, path, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, path, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, path, fmt.Errorf("validate config: %w", err)
	}
	return cfg, path, nil
}

// newViper registers every key with its default so env vars resolve even for
// keys absent from the file.
func newViper(cfg Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaultKeys(cfg) {
		v.SetDefault(key, value)
	}
	return v
}

func defaultKeys(cfg Config) map[string]any {
	return map[string]any{
		"addr":                  cfg.Addr,
		"read_header_timeout":   cfg.ReadHeaderTimeout,
		"shutdown_timeout":      cfg.ShutdownTimeout,
		"log_level":             cfg.LogLevel,
		"log_format":            cfg.LogFormat,
		"jwt_secret":            cfg.JWTSecret,
		"jwt_required":          cfg.JWTRequired,
		"jwt_issuer":            cfg.JWTIssuer,
		"jwt_audience":          cfg.JWTAudience,
		"allow_anonymous":       cfg.AllowAnonymous,
		"rate_limit_per_minute": cfg.RateLimitPerMinute,
		"max_message_bytes":     cfg.MaxMessageBytes,

		"rooms.typing_timeout":      cfg.Rooms.TypingTimeout,
		"rooms.sweep_interval":      cfg.Rooms.SweepInterval,
		"rooms.max_message_length":  cfg.Rooms.MaxMessageLength,
		"rooms.history_window":      cfg.Rooms.HistoryWindow,
		"rooms.outbound_queue_size": cfg.Rooms.OutboundQueueSize,
		"rooms.retain_empty_rooms":  cfg.Rooms.RetainEmptyRooms,
		"rooms.require_provisioned": cfg.Rooms.RequireProvisioned,
		"rooms.provisioned_rooms":   cfg.Rooms.ProvisionedRooms,
	}
}

// readOrCreate reads path into v. When the file does not exist the defaults
// are written there first; failing to write them is logged, not returned.
func readOrCreate(v *viper.Viper, path string, cfg Config, logger *zerolog.Logger) error {
	v.SetConfigFile(path)

	err := v.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := writeDefaultConfig(path, cfg); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to write default config")
		return nil
	}
	logger.Info().Str("path", path).Msg("created default config")

	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to read config after writing default")
	}
	return nil
}

// resolveConfigPath picks the explicit path, then $WIRECHAT_CONFIG_DEFAULT_PATH,
// then the working directory.
func resolveConfigPath(explicitPath string) string {
	if explicitPath != "" {
		return explicitPath
	}
	if base := os.Getenv(envConfigDefaultPath); base != "" {
		if err := os.MkdirAll(base, 0o755); err == nil {
			return filepath.Join(base, defaultConfigName)
		}
	}
	if cwd, err := os.Getwd(); err == nil {
		return filepath.Join(cwd, defaultConfigName)
	}
	return defaultConfigName
}

func writeDefaultConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
