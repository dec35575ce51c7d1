package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/steamfront/steamfront/internal/catalog"
	"github.com/steamfront/steamfront/internal/community"
)

func (a *app) newInventoryCmd() *cobra.Command {
	var (
		match    string
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "inventory <steamid|me> <appid>/<contextid>",
		Short: "List the items of an inventory",
		Long: `List the items of a user's inventory, one line per asset. The saved
session is used when present, so private inventories of the logged in
account are visible.`,
		Example: `  steamfront inventory me 730/2 --match '*Case*'
  steamfront inventory 76561197960287930 753/6`,
		Args: cobra.ExactArgs(2),
		RunE: a.run("inventory", func(cmd *cobra.Command, args []string) error {
			ac, err := community.ParseAppContext(args[1])
			if err != nil {
				return err
			}
			predicate, err := hashNameMatcher(match)
			if err != nil {
				return err
			}
			w, err := a.openWorkspace(cmd, importCookies)
			if err != nil {
				return err
			}
			steamID, err := resolveSteamID(args[0], w.session.SteamID())
			if err != nil {
				return err
			}

			client := a.communityClient(w)
			out := cmd.OutOrStdout()
			total := 0
			for entries, err := range client.InventoryPages(cmd.Context(), steamID, ac,
				community.InventoryOptions{Count: pageSize, Predicate: predicate}) {
				if err != nil {
					return err
				}
				for _, e := range entries {
					if err := printEntry(out, e); err != nil {
						return err
					}
				}
				total += len(entries)
			}
			a.logger.Info("inventory listed", "steam_id", steamID, "app_context", ac.String(), "items", total)
			return nil
		}),
	}

	cmd.Flags().StringVar(&match, "match", "", "only list items whose market hash name matches this glob")
	cmd.Flags().IntVar(&pageSize, "page-size", community.DefaultInventoryPageSize, "assets requested per page")
	return cmd
}

// hashNameMatcher compiles a glob over market hash names. An empty pattern
// matches everything.
func hashNameMatcher(pattern string) (catalog.Predicate, error) {
	if pattern == "" {
		return nil, nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, oops.Code("MATCH_INVALID").With("pattern", pattern).Wrap(err)
	}
	return func(e catalog.Entry) bool {
		return e.Description != nil && g.Match(e.Description.MarketHashName)
	}, nil
}

func resolveSteamID(arg string, own uint64) (uint64, error) {
	if arg == "me" {
		if own == 0 {
			return 0, oops.Code("STEAM_ID_UNKNOWN").Errorf("no logged in account; pass a steam id or run login")
		}
		return own, nil
	}
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, oops.Code("STEAM_ID_INVALID").With("steam_id", arg).Wrap(err)
	}
	return id, nil
}

func printEntry(w io.Writer, e catalog.Entry) error {
	name := "?"
	tradable := false
	if e.Description != nil {
		name = e.Description.MarketHashName
		if name == "" {
			name = e.Description.Name
		}
		tradable = e.Description.Tradable
	}
	_, err := fmt.Fprintf(w, "%d\t%s\t%d\t%s\ttradable=%t\n", e.AssetID, e.Key(), e.Amount, name, tradable)
	return err
}
