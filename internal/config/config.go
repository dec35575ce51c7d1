// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package config loads steamfront settings from defaults, a YAML file,
// STEAMFRONT_ environment variables and command line flags, in increasing
// order of priority.
package config

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/steamfront/steamfront/internal/community"
	"github.com/steamfront/steamfront/internal/logging"
	"github.com/steamfront/steamfront/internal/transport"
)

// Config is the complete steamfront configuration.
type Config struct {
	Account  AccountConfig  `koanf:"account" json:"account"`
	HTTP     HTTPConfig     `koanf:"http" json:"http"`
	Client   ClientConfig   `koanf:"client" json:"client"`
	Snapshot SnapshotConfig `koanf:"snapshot" json:"snapshot"`
	Log      LogConfig      `koanf:"log" json:"log"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics"`
}

// AccountConfig holds login credentials and mobile authenticator secrets.
type AccountConfig struct {
	Username       string `koanf:"username" json:"username,omitempty"`
	Password       string `koanf:"password" json:"password,omitempty" jsonschema:"description=Prefer STEAMFRONT_ACCOUNT_PASSWORD over storing it in the file"`
	SharedSecret   string `koanf:"shared_secret" json:"shared_secret,omitempty" jsonschema:"description=Base64 shared secret used to generate guard codes"`
	IdentitySecret string `koanf:"identity_secret" json:"identity_secret,omitempty" jsonschema:"description=Base64 identity secret used for confirmation keys"`
	SteamID        uint64 `koanf:"steam_id" json:"steam_id,omitempty"`
}

// HTTPConfig tunes the HTTP transport.
type HTTPConfig struct {
	UserAgent         string        `koanf:"user_agent" json:"user_agent,omitempty"`
	Timeout           time.Duration `koanf:"timeout" json:"timeout,omitempty" jsonschema:"description=Per request timeout (Go duration; 0 disables)"`
	Proxy             string        `koanf:"proxy" json:"proxy,omitempty" jsonschema:"format=uri"`
	RequestsPerSecond float64       `koanf:"requests_per_second" json:"requests_per_second,omitempty" jsonschema:"minimum=0"`
	Burst             int           `koanf:"burst" json:"burst,omitempty" jsonschema:"minimum=0"`
}

// ClientConfig holds the locale and market settings sent with requests.
type ClientConfig struct {
	Language string `koanf:"language" json:"language,omitempty"`
	Currency int    `koanf:"currency" json:"currency,omitempty" jsonschema:"minimum=1"`
	Country  string `koanf:"country" json:"country,omitempty" jsonschema:"minLength=2,maxLength=2"`
	APIKey   string `koanf:"api_key" json:"api_key,omitempty"`
}

// SnapshotConfig locates the persisted session.
type SnapshotConfig struct {
	Path       string `koanf:"path" json:"path,omitempty"`
	Passphrase string `koanf:"passphrase" json:"passphrase,omitempty" jsonschema:"description=Empty stores the snapshot unencrypted"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// MetricsConfig enables the metrics and health endpoint.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=host:port; empty disables the endpoint"`
}

// Validate checks values that cannot be fixed by defaults.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid("log.format", "must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	if c.HTTP.Timeout < 0 {
		return invalid("http.timeout", "must not be negative")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return invalid("http.requests_per_second", "must not be negative")
	}
	if c.HTTP.Burst < 0 {
		return invalid("http.burst", "must not be negative")
	}
	if c.HTTP.Proxy != "" {
		if _, err := c.HTTP.ProxyURL(); err != nil {
			return err
		}
	}
	if c.Client.Currency < 1 {
		return invalid("client.currency", "must be a positive currency id")
	}
	if len(c.Client.Country) != 2 {
		return invalid("client.country", "must be a two letter country code, got %q", c.Client.Country)
	}
	return nil
}

// RequireCredentials reports a CONFIG_INVALID error when the account
// settings cannot drive a login.
func (c *Config) RequireCredentials() error {
	if c.Account.Username == "" {
		return invalid("account.username", "is required to log in")
	}
	if c.Account.Password == "" {
		return invalid("account.password", "is required to log in")
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() slog.Level {
	level, err := logging.ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ProxyURL parses the proxy setting. An empty proxy yields nil.
func (h HTTPConfig) ProxyURL() (*url.URL, error) {
	if h.Proxy == "" {
		return nil, nil
	}
	u, err := url.Parse(h.Proxy)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, invalid("http.proxy", "must be an absolute URL, got %q", h.Proxy)
	}
	return u, nil
}

// TransportOptions converts the HTTP settings to transport options.
func (h HTTPConfig) TransportOptions() ([]transport.Option, error) {
	opts := []transport.Option{
		transport.WithUserAgent(h.UserAgent),
		transport.WithTimeout(h.Timeout),
		transport.WithRateLimit(h.RequestsPerSecond, h.Burst),
	}
	proxy, err := h.ProxyURL()
	if err != nil {
		return nil, err
	}
	if proxy != nil {
		opts = append(opts, transport.WithProxy(proxy))
	}
	return opts, nil
}

// Community converts the client settings to a community.Config.
func (c ClientConfig) Community() community.Config {
	return community.Config{
		Language: c.Language,
		Currency: c.Currency,
		Country:  strings.ToUpper(c.Country),
		APIKey:   c.APIKey,
	}
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}
