package cmd

import (
	"github.com/spf13/cobra"

	"github.com/illarion/keevault/internal/core"
)

func renameCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "rename <path> <group-uuid> <name>",
		Short: "Rename a group",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return edit(cmd.Context(), args[0], dryRun, func(app *core.App, i int) error {
				return app.SetGroupName(cmd.Context(), i, args[1], args[2])
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the changes without saving")
	return cmd
}
