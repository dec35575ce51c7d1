package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/steamfront/steamfront/internal/observability"
	"github.com/steamfront/steamfront/internal/transport"
	"github.com/steamfront/steamfront/internal/xdg"
)

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// TransportFactory creates the HTTP transport.
	// Default: transport.NewHTTPTransport
	TransportFactory func(opts ...transport.Option) (*transport.HTTPTransport, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// ConfigFileGetter returns the default config file path.
	// Default: xdg.ConfigFile
	ConfigFileGetter func() (string, error)

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Metrics() *observability.Metrics
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.TransportFactory == nil {
		out.TransportFactory = transport.NewHTTPTransport
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, ready, observability.WithLogger(logger))
		}
	}
	if out.ConfigFileGetter == nil {
		out.ConfigFileGetter = xdg.ConfigFile
	}
	return &out
}
