// Package config loads keevault settings.
//
// Priority: defaults < YAML file < environment variables. The YAML file
// is read from $KEEVAULT_CONFIG or ~/.keevault/config.yaml; a missing
// file is not an error. Callers load .env files (godotenv) before Load.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".keevault"
	userConfigFile = "config.yaml"
	historyFile    = "history.db"
)

// Environment variables
const (
	EnvConfig         = "KEEVAULT_CONFIG"
	EnvAddr           = "KEEVAULT_ADDR"
	EnvVaultDir       = "KEEVAULT_VAULT_DIR"
	EnvVaultFormat    = "KEEVAULT_FORMAT"
	EnvHistory        = "KEEVAULT_HISTORY"
	EnvKDF            = "KEEVAULT_KDF"
	EnvKDFIterations  = "KEEVAULT_KDF_ITERATIONS"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
	EnvOtelEnabled    = "OTEL_ENABLED"
	EnvOtelEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOtelService    = "OTEL_SERVICE_NAME"
	EnvOtelSampleRate = "OTEL_SAMPLING_RATE"
)

// Load merges defaults, the YAML file and the environment
func Load() (Config, error) {
	path := os.Getenv(EnvConfig)
	explicit := path != ""
	if !explicit {
		path = UserConfigPath()
	}

	cfg := DefaultConfig()
	if path != "" {
		if err := mergeConfigFile(&cfg, path); err != nil {
			if explicit || !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to load config %s: %w", path, err)
			}
		}
	}

	return finish(cfg)
}

// LoadFrom loads configuration from a specific file path, then applies
// the environment
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := mergeConfigFile(&cfg, path); err != nil {
		return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

func finish(cfg Config) (Config, error) {
	validationErrors := applyEnv(&cfg, os.Getenv)
	validationErrors = append(validationErrors, cfg.Validate()...)
	if len(validationErrors) > 0 {
		return cfg, fmt.Errorf("config.validation.error: %v", formatValidationErrors(validationErrors))
	}
	return cfg, nil
}

// mergeConfigFile reads a YAML file and merges it into the existing config
func mergeConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	mergeConfig(cfg, &overlay)
	return nil
}

// mergeConfig merges non-zero values from src into dst
func mergeConfig(dst, src *Config) {
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.VaultDir != "" {
		dst.VaultDir = src.VaultDir
	}
	if src.VaultFormat != "" {
		dst.VaultFormat = src.VaultFormat
	}
	if src.History != "" {
		dst.History = src.History
	}
	if src.KDF.Algorithm != "" {
		dst.KDF.Algorithm = src.KDF.Algorithm
	}
	if src.KDF.Iterations != 0 {
		dst.KDF.Iterations = src.KDF.Iterations
	}
	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}

	// A bool cannot tell "unset" from "false"; an overlay can only enable
	if src.Otel.Enabled {
		dst.Otel.Enabled = true
	}
	if src.Otel.Endpoint != "" {
		dst.Otel.Endpoint = src.Otel.Endpoint
	}
	if src.Otel.ServiceName != "" {
		dst.Otel.ServiceName = src.Otel.ServiceName
	}
	if src.Otel.SamplingRate != 0 {
		dst.Otel.SamplingRate = src.Otel.SamplingRate
	}
}

// applyEnv overlays environment variables. getenv is os.Getenv outside
// tests. Unparseable values are reported, not ignored.
func applyEnv(cfg *Config, getenv func(string) string) []ValidationError {
	var errors []ValidationError

	setString := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	setString(EnvAddr, &cfg.Server.Addr)
	setString(EnvVaultDir, &cfg.VaultDir)
	setString(EnvVaultFormat, &cfg.VaultFormat)
	setString(EnvHistory, &cfg.History)
	setString(EnvKDF, &cfg.KDF.Algorithm)
	setString(EnvOtelEndpoint, &cfg.Otel.Endpoint)
	setString(EnvOtelService, &cfg.Otel.ServiceName)

	if v := getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}

	if v := getenv(EnvKDFIterations); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			errors = append(errors, ValidationError{Path: EnvKDFIterations, Message: fmt.Sprintf("not a number: '%s'", v)})
		} else {
			cfg.KDF.Iterations = uint32(n)
		}
	}
	if v := getenv(EnvOtelEnabled); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errors = append(errors, ValidationError{Path: EnvOtelEnabled, Message: fmt.Sprintf("not a boolean: '%s'", v)})
		} else {
			cfg.Otel.Enabled = b
		}
	}
	if v := getenv(EnvOtelSampleRate); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errors = append(errors, ValidationError{Path: EnvOtelSampleRate, Message: fmt.Sprintf("not a number: '%s'", v)})
		} else {
			cfg.Otel.SamplingRate = f
		}
	}

	return errors
}

// formatValidationErrors formats validation errors for display
func formatValidationErrors(errors []ValidationError) string {
	if len(errors) == 1 {
		return errors[0].Error()
	}
	result := fmt.Sprintf("%d validation errors:\n", len(errors))
	for _, err := range errors {
		result += "  - " + err.Error() + "\n"
	}
	return result
}

// UserConfigPath returns the path to the user configuration file
func UserConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, userConfigDir, userConfigFile)
}

// SlogLevel maps the configured level name to a slog level
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
