package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved web session and delete the snapshot",
		Args:  cobra.NoArgs,
		RunE: a.run("logout", func(cmd *cobra.Command, _ []string) error {
			w, err := a.openWorkspace(cmd, importCookies)
			if err != nil {
				return err
			}
			if len(w.doc.Cookies) > 0 {
				if err := w.auth.Logout(cmd.Context()); err != nil {
					return err
				}
			}
			a.ready.Store(false)
			if a.cfg.Snapshot.Path != "" {
				if err := os.Remove(a.cfg.Snapshot.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return oops.Code("SNAPSHOT_REMOVE_FAILED").With("path", a.cfg.Snapshot.Path).Wrap(err)
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		}),
	}
}
