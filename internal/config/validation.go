package config

import (
	"fmt"
	"slices"

	"github.com/illarion/keevault/internal/codec"
	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/kdbx"
)

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateVaultFormat()...)
	errors = append(errors, c.validateKDF()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOtel()...)
	return errors
}

func (c *Config) validateServer() []ValidationError {
	if c.Server.Addr != "" {
		return nil
	}
	return []ValidationError{{Path: "server.addr", Message: "must not be empty"}}
}

func (c *Config) validateVaultFormat() []ValidationError {
	validFormats := []string{kdbx.Name, codec.NativeName}
	if slices.Contains(validFormats, c.VaultFormat) {
		return nil
	}
	return []ValidationError{{
		Path:    "vault_format",
		Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.VaultFormat),
	}}
}

func (c *Config) validateKDF() []ValidationError {
	validAlgorithms := []string{crypto.KDFArgon2id, crypto.KDFPBKDF2}
	if !slices.Contains(validAlgorithms, c.KDF.Algorithm) {
		return []ValidationError{{
			Path:    "kdf.algorithm",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validAlgorithms, c.KDF.Algorithm),
		}}
	}
	if c.KDF.Algorithm == crypto.KDFPBKDF2 && c.KDF.Iterations != 0 && c.KDF.Iterations < 100_000 {
		return []ValidationError{{
			Path:    "kdf.iterations",
			Message: fmt.Sprintf("must be at least 100000 for %s, got %d", crypto.KDFPBKDF2, c.KDF.Iterations),
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

func (c *Config) validateOtel() []ValidationError {
	var errors []ValidationError
	if c.Otel.SamplingRate < 0 || c.Otel.SamplingRate > 1 {
		errors = append(errors, ValidationError{
			Path:    "otel.sampling_rate",
			Message: fmt.Sprintf("must be between 0 and 1, got %v", c.Otel.SamplingRate),
		})
	}
	if c.Otel.Enabled && c.Otel.Endpoint == "" {
		errors = append(errors, ValidationError{Path: "otel.endpoint", Message: "required when tracing is enabled"})
	}
	return errors
}
