package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/illarion/keevault/internal/core"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/infra"
)

// openApp creates the App for one CLI invocation. Without a configured
// vault directory the current directory is used.
func openApp() (*core.App, error) {
	return openAppWithLogger(commandLogger())
}

func openAppWithLogger(l *slog.Logger) (*core.App, error) {
	dir := cfg.VaultDir
	if dir == "" {
		dir = "."
	}
	return core.New(core.Options{
		VaultDir:    dir,
		HistoryPath: cfg.History,
		Format:      cfg.VaultFormat,
		KDF:         cfg.KDF,
		Logger:      l,
	})
}

// commandLogger keeps one-shot commands quiet below warn so their output
// is not interleaved with routine session logs
func commandLogger() *slog.Logger {
	if cfg.SlogLevel() >= slog.LevelWarn {
		return logger
	}
	c := cfg
	c.Logging.Level = "warn"
	return infra.NewLogger(&c, os.Stderr)
}

// absVaultPath mirrors how the App resolves vault paths
func absVaultPath(app *core.App, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(app.VaultDir(), path)
}

func readKeyfile() ([]byte, error) {
	if keyfilePath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(keyfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read keyfile: %w", err)
	}
	return data, nil
}

// openUnlocked loads a vault file and unlocks it with the password from
// the environment, the keyring or a prompt
func openUnlocked(ctx context.Context, app *core.App, path string) (int, error) {
	i, _, err := app.LoadVaultPath(ctx, path)
	if err != nil {
		return 0, err
	}
	keyfile, err := readKeyfile()
	if err != nil {
		return 0, err
	}
	password, err := GetPassword(absVaultPath(app, path), keyfile != nil)
	if err != nil {
		return 0, err
	}
	if _, err := app.UnlockVault(ctx, i, password, keyfile); err != nil {
		return 0, err
	}
	return i, nil
}

// HandleError prints err with a hint where one helps and exits
func HandleError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	switch {
	case errors.Is(err, core.ErrAlreadyExists):
		fmt.Fprintf(os.Stderr, "Use 'keevault ls <path>' to inspect it\n")
	case errors.Is(err, domain.ErrAuth):
		fmt.Fprintf(os.Stderr, "Check the password (%s) and the --keyfile flag\n", PasswordEnv)
	case errors.Is(err, domain.ErrNotFound):
		fmt.Fprintf(os.Stderr, "Paths are relative to the vault directory (--vault-dir)\n")
	case errors.Is(err, errPasswordMismatch):
		fmt.Fprintf(os.Stderr, "Run the command again and type the same password twice\n")
	}
	os.Exit(1)
}
