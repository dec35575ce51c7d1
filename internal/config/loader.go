// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/steamfront/steamfront/internal/transport"
	"github.com/steamfront/steamfront/internal/xdg"
)

// DefaultEnvPrefix is the environment variable prefix.
const DefaultEnvPrefix = "STEAMFRONT_"

// FlagKeys maps command line flag names to configuration keys. Flags not
// listed here are ignored by the loader.
var FlagKeys = map[string]string{
	"username":     "account.username",
	"steam-id":     "account.steam_id",
	"proxy":        "http.proxy",
	"timeout":      "http.timeout",
	"language":     "client.language",
	"currency":     "client.currency",
	"country":      "client.country",
	"snapshot":     "snapshot.path",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"metrics-addr": "metrics.addr",
}

// Defaults returns the lowest priority configuration layer.
func Defaults() map[string]any {
	snapshotPath, err := xdg.SnapshotFile()
	if err != nil {
		snapshotPath = ""
	}
	return map[string]any{
		"http": map[string]any{
			"user_agent":          transport.DefaultUserAgent,
			"timeout":             30 * time.Second,
			"requests_per_second": 2.0,
			"burst":               5,
		},
		"client": map[string]any{
			"language": "english",
			"currency": 1,
			"country":  "US",
		},
		"snapshot": map[string]any{
			"path": snapshotPath,
		},
		"log": map[string]any{
			"format": "text",
			"level":  "info",
		},
	}
}

// Loader loads configuration from multiple sources.
type Loader struct {
	k            *koanf.Koanf
	envPrefix    string
	filePath     string
	fileOptional bool
	flags        *pflag.FlagSet
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets a configuration file that must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.fileOptional = false
	}
}

// WithOptionalConfigFile sets a configuration file that is skipped when
// absent.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
		l.fileOptional = true
	}
}

// WithFlags layers the changed flags of fs on top of every other source.
func WithFlags(fs *pflag.FlagSet) Option {
	return func(l *Loader) {
		l.flags = fs
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads every source and returns the validated configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(mapProvider(Defaults()), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}
	if err := l.loadFile(); err != nil {
		return nil, err
	}
	if err := l.loadEnv(); err != nil {
		return nil, err
	}
	if err := l.loadFlags(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Keys returns all loaded configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}

func (l *Loader) loadFile() error {
	if l.filePath == "" {
		return nil
	}
	data, err := os.ReadFile(l.filePath)
	if errors.Is(err, fs.ErrNotExist) && l.fileOptional {
		return nil
	}
	if err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", l.filePath).Wrap(err)
	}
	if err := ValidateYAML(data); err != nil {
		return oops.With("path", l.filePath).Wrap(err)
	}
	if err := l.k.Load(file.Provider(l.filePath), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "file").With("path", l.filePath).Wrap(err)
	}
	return nil
}

// loadEnv maps STEAMFRONT_SECTION_KEY to section.key. Only the first
// underscore after the prefix separates the section, so
// STEAMFRONT_ACCOUNT_SHARED_SECRET becomes account.shared_secret.
func (l *Loader) loadEnv() error {
	transform := func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}
	if err := l.k.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}
	return nil
}

func (l *Loader) loadFlags() error {
	if l.flags == nil {
		return nil
	}
	provider := posflag.ProviderWithFlag(l.flags, ".", l.k, func(f *pflag.Flag) (string, any) {
		key, ok := FlagKeys[f.Name]
		if !ok || !f.Changed {
			return "", nil
		}
		return key, posflag.FlagVal(l.flags, f)
	})
	if err := l.k.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}
	return nil
}

// mapProvider is a koanf provider over an in-memory nested map.
type mapProvider map[string]any

func (m mapProvider) ReadBytes() ([]byte, error) {
	return nil, errors.New("config: map provider does not support ReadBytes")
}

func (m mapProvider) Read() (map[string]any, error) {
	return m, nil
}
