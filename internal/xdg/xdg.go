// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Steamfront Contributors

// Package xdg provides XDG Base Directory paths for steamfront.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "steamfront"

// File names under the XDG directories.
const (
	ConfigFileName   = "config.yaml"
	SnapshotFileName = "session.snap"
)

// ConfigDir returns the XDG config directory for steamfront.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return appDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for steamfront.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() (string, error) {
	return appDir("XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the XDG cache directory for steamfront.
// Checks XDG_CACHE_HOME first, falls back to ~/.cache.
func CacheDir() (string, error) {
	return appDir("XDG_CACHE_HOME", ".cache")
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// SnapshotFile returns the default session snapshot path.
func SnapshotFile() (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SnapshotFileName), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_DIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}

func appDir(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		return "", oops.Code("XDG_HOME_UNSET").With("env", env).
			Errorf("neither %s nor HOME is set", env)
	}
	parts := append([]string{home}, fallback...)
	return filepath.Join(append(parts, appName)...), nil
}
