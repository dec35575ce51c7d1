package main

import (
	"fmt"
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/steamfront/steamfront/internal/community"
)

func (a *app) newListingsCmd() *cobra.Command {
	var (
		limit int
		query string
	)

	cmd := &cobra.Command{
		Use:   "listings <appid> <market-hash-name>",
		Short: "Show market sell listings for an item",
		Long: `Show the community market sell listings of one item, cheapest first as
served by the market. Only as many pages as --count needs are fetched.
Prices are in the smallest unit of the listing currency.`,
		Example: `  steamfront listings 730 "Clutch Case" --count 20`,
		Args:    cobra.ExactArgs(2),
		RunE: a.run("listings", func(cmd *cobra.Command, args []string) error {
			appID, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return oops.Code("APP_ID_INVALID").With("app_id", args[0]).Wrap(err)
			}
			w, err := a.openWorkspace(cmd, importCookies)
			if err != nil {
				return err
			}

			client := a.communityClient(w)
			ref := community.ByNameAndContainer{MarketHashName: args[1], AppID: uint32(appID)}
			out := cmd.OutOrStdout()
			shown := 0
			opts := community.ListingsOptions{
				Query:    query,
				MaxPages: (limit + community.DefaultListingsPageSize - 1) / community.DefaultListingsPageSize,
			}
			for page, err := range client.MarketListingsPages(cmd.Context(), ref, opts) {
				if err != nil {
					return err
				}
				for _, l := range page.Listings {
					if shown >= limit {
						return nil
					}
					if _, err := fmt.Fprintf(out, "%d\t%d\t%d\tcurrency=%d\tasset=%d\n",
						l.ListingID, l.Price, l.Fee, l.Currency, l.Entry.AssetID); err != nil {
						return err
					}
					shown++
				}
			}
			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "count", community.DefaultListingsPageSize, "maximum listings to show")
	cmd.Flags().StringVar(&query, "query", "", "filter listings by text")
	return cmd
}
