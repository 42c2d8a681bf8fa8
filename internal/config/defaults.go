package config

import (
	"os"
	"path/filepath"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/kdbx"
)

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		Server:      ServerConfig{Addr: "127.0.0.1:8420"},
		VaultFormat: kdbx.Name,
		History:     defaultHistoryPath(),
		KDF:         KDFConfig{Algorithm: crypto.KDFArgon2id},
		Logging:     LoggingConfig{Level: "info", Format: "json"},
		Otel: OtelConfig{
			Endpoint:     "localhost:4317",
			ServiceName:  "keevault",
			SamplingRate: 1.0,
		},
	}
}

func defaultHistoryPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, userConfigDir, historyFile)
}
