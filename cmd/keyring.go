package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/keyring"
)

func keyringCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyring",
		Short: "Manage vault passwords stored in the OS keyring",
	}
	cmd.AddCommand(keyringSaveCmd(), keyringDeleteCmd(), keyringStatusCmd())
	return cmd
}

// keyringSaveCmd saves the password to the OS keyring after checking it
// unlocks the vault
func keyringSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <path>",
		Short: "Remember the password of a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			i, _, err := app.LoadVaultPath(ctx, args[0])
			if err != nil {
				return err
			}
			keyfile, err := readKeyfile()
			if err != nil {
				return err
			}

			password, err := ReadPassword("Enter password: ")
			if err != nil {
				return err
			}
			defer crypto.ClearBytes(password)
			s := string(password)

			if _, err := app.UnlockVault(ctx, i, &s, keyfile); err != nil {
				return err
			}

			if err := keyring.SavePassword(absVaultPath(app, args[0]), s); err != nil {
				return fmt.Errorf("failed to save to keyring: %w", err)
			}
			fmt.Println("Password saved to keyring")
			return nil
		},
	}
}

func keyringDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Forget the password of a vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			err = keyring.DeletePassword(absVaultPath(app, args[0]))
			if errors.Is(err, keyring.ErrNotFound) {
				fmt.Println("No password stored in keyring")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("Password removed from keyring")
			return nil
		},
	}
}

func keyringStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <path>",
		Short: "Check whether a vault password is stored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			if keyring.HasPassword(absVaultPath(app, args[0])) {
				fmt.Println("Password: stored in keyring")
			} else {
				fmt.Println("Password: not stored")
			}
			return nil
		},
	}
}
