package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/steamfront/steamfront/internal/community"
)

func (a *app) newTradesCmd() *cobra.Command {
	var (
		opts    community.TradeOffersOptions
		history bool
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List trade offers or completed trades",
		Long: `List the account's trade offers, or with --history its completed
trades. Needs a live session; a dead saved session logs in again.`,
		Args: cobra.NoArgs,
		RunE: a.run("trades", func(cmd *cobra.Command, _ []string) error {
			w, err := a.openWorkspace(cmd, restoreOrLogin)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if w.session.IsAccessTokenExpired(time.Now()) {
				if _, err := w.auth.RefreshAccessToken(ctx); err != nil {
					return err
				}
			}

			client := a.communityClient(w)
			out := cmd.OutOrStdout()
			if history {
				shown := 0
				for page, err := range client.TradeHistoryPages(ctx, community.TradeHistoryOptions{}) {
					if err != nil {
						return err
					}
					for _, t := range page.Trades {
						if limit > 0 && shown >= limit {
							return nil
						}
						if _, err := fmt.Fprintf(out, "%d\t%s\tpartner=%d\tgave=%d\treceived=%d\n",
							t.TradeID, t.TimeInit.UTC().Format(time.RFC3339), t.SteamIDOther,
							len(t.AssetsGiven), len(t.AssetsReceived)); err != nil {
							return err
						}
						shown++
					}
				}
				return nil
			}

			sent, received, err := client.TradeOffers(ctx, opts)
			if err != nil {
				return err
			}
			if err := printOffers(out, "sent", sent); err != nil {
				return err
			}
			return printOffers(out, "received", received)
		}),
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Sent, "sent", false, "list sent offers")
	flags.BoolVar(&opts.Received, "received", false, "list received offers")
	flags.BoolVar(&opts.ActiveOnly, "active", false, "only active offers")
	flags.BoolVar(&opts.HistoricalOnly, "historical", false, "only offers that are no longer active")
	flags.BoolVar(&history, "history", false, "list completed trades instead of offers")
	flags.IntVar(&limit, "max", 100, "maximum completed trades to show with --history (0 = all)")
	return cmd
}

func printOffers(w io.Writer, direction string, offers []community.TradeOffer) error {
	for _, o := range offers {
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\tpartner=%d\tgive=%d\treceive=%d\n",
			o.ID, direction, o.State, o.PartnerAccountID, len(o.ItemsToGive), len(o.ItemsToReceive)); err != nil {
			return err
		}
	}
	return nil
}
