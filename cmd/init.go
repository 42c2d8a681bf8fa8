package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Create a new empty vault",
		Long: `Creates a new vault file inside the vault directory.

The password comes from KEEVAULT_PASSWORD or is prompted for twice.
It is not stored anywhere; use 'keevault keyring save' to remember it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			keyfile, err := readKeyfile()
			if err != nil {
				return err
			}
			password, err := GetPasswordForInit(keyfile != nil)
			if err != nil {
				return err
			}

			_, ov, err := app.CreateVault(cmd.Context(), args[0], name, password, keyfile)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Created vault %q at %s\n", ov.Name, absVaultPath(app, args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Vault name (defaults to the file name)")
	return cmd
}
