package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/illarion/keevault/internal/exchange"
)

func showCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show <path> <entry-uuid>",
		Short: "Show the fields of an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := openApp()
			if err != nil {
				return err
			}
			defer app.Close()

			i, err := openUnlocked(ctx, app, args[0])
			if err != nil {
				return err
			}
			entry, err := findEntry(ctx, app, i, args[1])
			if err != nil {
				return err
			}

			names := make([]string, 0, len(entry.Fields))
			for name := range entry.Fields {
				names = append(names, name)
			}
			slices.Sort(names)

			fmt.Printf("%s  (%s)\n", deref(entry.Name, "(untitled)"), entry.UUID)
			for _, name := range names {
				v := entry.Fields[name]
				switch v.Type {
				case exchange.TypeUnprotected:
					fmt.Printf("  %s: %s\n", name, v.Text)
				case exchange.TypeBytes:
					fmt.Printf("  %s: <%d bytes>\n", name, len(v.Bytes))
				case exchange.TypeProtected:
					if !reveal {
						fmt.Printf("  %s: ********\n", name)
						continue
					}
					text, err := app.RevealProtected(ctx, i, entry.UUID.String(), name)
					if err != nil {
						return err
					}
					fmt.Printf("  %s: %s\n", name, text)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print protected fields in cleartext")
	return cmd
}
