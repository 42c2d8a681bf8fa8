package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/illarion/keevault/internal/core"
	"github.com/illarion/keevault/internal/domain"
	"github.com/illarion/keevault/internal/exchange"
)

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <path>",
		Short: "Show the groups and entries of a vault",
		Long: `Unlocks a vault and prints its groups and entries with their UUIDs.
Protected fields are never printed; use 'keevault show --reveal'.`,
		Args: cobra.ExactArgs(1),
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
			root := app.ListVaults(ctx)[i].Root
			return printGroup(ctx, app, i, root, 0)
		},
	}
}

func printGroup(ctx context.Context, app *core.App, i int, g *exchange.Group, depth int) error {
	indent := strings.Repeat("  ", depth)
	fmt.Printf("%s%s/  (%s)\n", indent, g.Name, g.UUID)

	for _, sub := range g.Children {
		if err := printGroup(ctx, app, i, &sub, depth+1); err != nil {
			return err
		}
	}

	entries, err := app.ListEntries(ctx, i, g.UUID.String())
	if err != nil {
		return err
	}
	for _, e := range entries {
		line := indent + "  " + deref(e.Name, "(untitled)")
		if e.UserName != nil && *e.UserName != "" {
			line += "  " + *e.UserName
		}
		if e.URL != nil && *e.URL != "" {
			line += "  " + *e.URL
		}
		fmt.Printf("%s  (%s)\n", line, e.UUID)
	}
	return nil
}

// findEntry searches every group of vault i for an entry
func findEntry(ctx context.Context, app *core.App, i int, id string) (exchange.Entry, error) {
	want, err := uuid.Parse(id)
	if err != nil {
		return exchange.Entry{}, fmt.Errorf("%w: %q is not a uuid", domain.ErrInvalidInput, id)
	}

	var walk func(g *exchange.Group) (exchange.Entry, bool, error)
	walk = func(g *exchange.Group) (exchange.Entry, bool, error) {
		entries, err := app.ListEntries(ctx, i, g.UUID.String())
		if err != nil {
			return exchange.Entry{}, false, err
		}
		for _, e := range entries {
			if e.UUID == want {
				return e, true, nil
			}
		}
		for _, sub := range g.Children {
			if e, ok, err := walk(&sub); ok || err != nil {
				return e, ok, err
			}
		}
		return exchange.Entry{}, false, nil
	}

	e, ok, err := walk(app.ListVaults(ctx)[i].Root)
	if err != nil {
		return exchange.Entry{}, err
	}
	if !ok {
		return exchange.Entry{}, fmt.Errorf("%w: no entry by that uuid", domain.ErrNotFound)
	}
	return e, nil
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
