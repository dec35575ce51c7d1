package main

import (
	"fmt"
	"net/url"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func (a *app) newAliveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alive",
		Short: "Check whether the saved session is alive on each domain",
		Long: `Load the saved snapshot and ask every cooperating domain whether the
session cookies are still accepted. Exits with an error when any domain
reports the session dead.`,
		Args: cobra.NoArgs,
		RunE: a.run("alive", func(cmd *cobra.Command, _ []string) error {
			w, err := a.openWorkspace(cmd, importCookies)
			if err != nil {
				return err
			}
			if w.session.Username == "" || len(w.doc.Cookies) == 0 {
				return oops.Code("SESSION_MISSING").With("snapshot", a.cfg.Snapshot.Path).
					Errorf("no saved session; run login first")
			}
			dead := 0
			for _, domain := range w.session.Endpoints().Domains() {
				alive, err := w.auth.IsSessionAlive(cmd.Context(), domain)
				if err != nil {
					return err
				}
				status := "alive"
				if !alive {
					status = "dead"
					dead++
				}
				host := domain
				if u, err := url.Parse(domain); err == nil && u.Host != "" {
					host = u.Host
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", host, status); err != nil {
					return err
				}
			}
			if dead > 0 {
				return oops.Code("SESSION_DEAD").With("dead", dead).
					Errorf("session is dead on %d of %d domains", dead, len(w.session.Endpoints().Domains()))
			}
			a.ready.Store(true)
			return nil
		}),
	}
}
