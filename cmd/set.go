package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/illarion/keevault/internal/core"
	"github.com/illarion/keevault/internal/crypto"
	"github.com/illarion/keevault/internal/exchange"
)

func setCmd() *cobra.Command {
	var (
		protect  bool
		fromFile string
		dryRun   bool
	)
	cmd := &cobra.Command{
		Use:   "set <path> <entry-uuid> <field> [value]",
		Short: "Set a field of an entry",
		Long: `Inserts or replaces a field of an entry and saves the vault.

With --protect the value is stored as a protected field; when no value
argument is given it is prompted for without echo. With --from-file the
field holds the file's raw bytes.`,
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := fieldValue(args[3:], protect, fromFile)
			if err != nil {
				return err
			}

			return edit(cmd.Context(), args[0], dryRun, func(app *core.App, i int) error {
				return app.SetField(cmd.Context(), i, args[1], args[2], value)
			})
		},
	}
	cmd.Flags().BoolVar(&protect, "protect", false, "Store the value as a protected field")
	cmd.Flags().StringVar(&fromFile, "from-file", "", "Store the contents of a file as bytes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes without saving")
	return cmd
}

func fieldValue(args []string, protect bool, fromFile string) (exchange.ValueSet, error) {
	switch {
	case fromFile != "":
		if len(args) > 0 || protect {
			return exchange.ValueSet{}, errors.New("--from-file takes no value argument and cannot be protected")
		}
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return exchange.ValueSet{}, fmt.Errorf("failed to read %s: %w", fromFile, err)
		}
		return exchange.ValueSet{Type: exchange.TypeBytes, Bytes: data}, nil
	case protect && len(args) == 0:
		secret, err := ReadPassword("Enter value: ")
		if err != nil {
			return exchange.ValueSet{}, err
		}
		defer crypto.ClearBytes(secret)
		return exchange.ValueSet{Type: exchange.TypeProtected, Text: string(secret)}, nil
	case len(args) == 0:
		return exchange.ValueSet{}, errors.New("a value is required")
	case protect:
		return exchange.ValueSet{Type: exchange.TypeProtected, Text: args[0]}, nil
	default:
		return exchange.ValueSet{Type: exchange.TypeUnprotected, Text: args[0]}, nil
	}
}

// edit unlocks a vault, applies fn, prints the resulting changes and
// saves unless dryRun is set. Any update counts, even one the diff
// cannot show.
func edit(ctx context.Context, path string, dryRun bool, fn func(app *core.App, i int) error) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	i, err := openUnlocked(ctx, app, path)
	if err != nil {
		return err
	}
	if err := fn(app, i); err != nil {
		return err
	}

	changes, err := app.VaultChanges(ctx, i)
	if err != nil {
		return err
	}
	if !changes.Modified {
		fmt.Println("No changes")
		return nil
	}
	if changes.Diff == "" {
		fmt.Println("Values rewritten, tree unchanged")
	}
	fmt.Print(changes.Diff)

	if dryRun {
		fmt.Println("(dry run, not saved)")
		return nil
	}
	if _, err := app.SaveVault(ctx, i); err != nil {
		return err
	}
	fmt.Printf("✓ Saved %s\n", absVaultPath(app, path))
	return nil
}
