// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package main

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/steamfront/steamfront/internal/config"
	"github.com/steamfront/steamfront/internal/logging"
	"github.com/steamfront/steamfront/pkg/errutil"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	deps       *Deps
	configFile string

	cfg    *config.Config
	logger *slog.Logger
	obs    ObservabilityServer
	ready  atomic.Bool
}

// NewRootCmd creates the root command for the steamfront CLI.
func NewRootCmd(deps *Deps) *cobra.Command {
	a := &app{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "steamfront",
		Short: "Steam Community web session and item catalog client",
		Long: `steamfront logs in to the Steam Community web domains, keeps the
session in an encrypted snapshot, and reads inventories, market listings
and trade offers through it.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/steamfront/config.yaml)")
	flags.String("log-format", "text", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	flags.String("snapshot", "", "session snapshot path (default: XDG_STATE_HOME/steamfront/session.snap)")
	flags.String("username", "", "account name")
	flags.String("code", "", "guard code for this login (default: generated from shared_secret or prompted)")
	flags.Bool("email-code", false, "the guard code was delivered by email")
	flags.String("email-code-file", "", "wait for an email guard code appended to this file")

	cmd.AddCommand(a.newLoginCmd())
	cmd.AddCommand(a.newAliveCmd())
	cmd.AddCommand(a.newInventoryCmd())
	cmd.AddCommand(a.newListingsCmd())
	cmd.AddCommand(a.newTradesCmd())
	cmd.AddCommand(a.newLogoutCmd())

	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	opts := []config.Option{config.WithFlags(cmd.Flags())}
	if a.configFile != "" {
		opts = append(opts, config.WithConfigFile(a.configFile))
	} else if path, err := a.deps.ConfigFileGetter(); err == nil {
		opts = append(opts, config.WithOptionalConfigFile(path))
	}

	cfg, err := config.NewLoader(opts...).Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.Setup("steamfront", version, cfg.Log.Format, cfg.LogLevel(), a.deps.LogWriter)
	slog.SetDefault(a.logger)

	if cfg.Metrics.Addr == "" {
		return nil
	}
	a.obs = a.deps.ObservabilityServerFactory(cfg.Metrics.Addr, a.ready.Load, a.logger)
	errCh, err := a.obs.Start()
	if err != nil {
		a.obs = nil
		return err
	}
	go func() {
		for serveErr := range errCh {
			errutil.LogError(a.logger, "metrics server failed", serveErr)
		}
	}()
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.obs == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.obs.Stop(ctx)
}

// run wraps a subcommand body with metrics and error logging.
func (a *app) run(name string, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		start := time.Now()
		err := fn(cmd, args)
		if a.obs != nil {
			a.obs.Metrics().ObserveCommand(name, err, time.Since(start))
		}
		if err != nil {
			errutil.LogError(a.logger, name+" failed", err)
		}
		return err
	}
}
