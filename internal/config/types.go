package config

// Config is the keevault process configuration
type Config struct {
	Server      ServerConfig  `yaml:"server"`
	VaultDir    string        `yaml:"vault_dir"`
	VaultFormat string        `yaml:"vault_format"`
	History     string        `yaml:"history"`
	KDF         KDFConfig     `yaml:"kdf"`
	Logging     LoggingConfig `yaml:"logging"`
	Otel        OtelConfig    `yaml:"otel"`
}

// ServerConfig configures the HTTP surface
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// KDFConfig selects the key derivation for newly created vaults in the
// keevault format. Existing vaults keep the settings they were created
// with; KeePass files are written with gokeepasslib defaults.
type KDFConfig struct {
	Algorithm  string `yaml:"algorithm"`
	Iterations uint32 `yaml:"iterations"`
}

// LoggingConfig configures slog output
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// OtelConfig configures optional OpenTelemetry tracing
type OtelConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
