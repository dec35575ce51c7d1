package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session snapshot",
		Long: `Log in with the configured account, propagate the session to every
cooperating domain, and save the cookies to the snapshot file. Any saved
session is replaced.`,
		Args: cobra.NoArgs,
		RunE: a.run("login", func(cmd *cobra.Command, _ []string) error {
			w, err := a.openWorkspace(cmd, freshLogin)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%d)\n", w.session.Username, w.session.SteamID())
			return err
		}),
	}
}
