// Package cmd implements the keevault command line.
package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/illarion/keevault/internal/config"
)

const version = "0.1.0"

var (
	cfg         config.Config
	logger      *slog.Logger
	keyfilePath string
)

// NewRootCommand builds the command tree over the loaded configuration
func NewRootCommand(c config.Config, l *slog.Logger) *cobra.Command {
	cfg = c
	logger = l

	rootCmd := &cobra.Command{
		Use:           "keevault",
		Short:         "Password vault sessions over HTTP and the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfg.VaultDir, "vault-dir", cfg.VaultDir, "Directory vault paths are confined to (or set KEEVAULT_VAULT_DIR)")
	rootCmd.PersistentFlags().StringVar(&keyfilePath, "keyfile", "", "Keyfile used as an additional key component")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(lsCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(setCmd())
	rootCmd.AddCommand(renameCmd())
	rootCmd.AddCommand(otpCmd())
	rootCmd.AddCommand(recentCmd())
	rootCmd.AddCommand(keyringCmd())

	return rootCmd
}

// Execute runs the command line
func Execute(ctx context.Context, c config.Config, l *slog.Logger) error {
	return NewRootCommand(c, l).ExecuteContext(ctx)
}
