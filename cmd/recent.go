package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func recentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened vaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			recent, err := app.RecentVaults(cmd.Context())
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Println("No recently opened vaults")
				return nil
			}
			for _, r := range recent {
				fmt.Printf("  %s  %s\n", r.OpenedAt.Local().Format(time.DateTime), r.Path)
			}
			return nil
		},
	}
	cmd.AddCommand(recentForgetCmd())
	return cmd
}

func recentForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <path>",
		Short: "Remove a vault from the recent list",
		Long: `Removes a vault from the recent list. The vault file is not touched.
Relative paths are resolved against the vault directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.ForgetRecent(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Forgot %s\n", absVaultPath(app, args[0]))
			return nil
		},
	}
}
