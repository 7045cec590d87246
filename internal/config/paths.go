// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Creatorhub Contributors

package config

import (
	"os"
	"path/filepath"
)

const appName = "creatorhub"

// DefaultConfigFile returns the XDG location of the config file:
// $XDG_CONFIG_HOME/creatorhub/config.yaml, falling back to ~/.config.
// It returns "" when neither XDG_CONFIG_HOME nor HOME is set.
func DefaultConfigFile(getenv func(string) string) string {
	base := getenv("XDG_CONFIG_HOME")
	if base == "" {
		home := getenv("HOME")
		if home == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName, "config.yaml")
}

// configPath picks the file to load: the explicit flag value, else the XDG
// default when it exists.
func configPath(explicit string, getenv func(string) string) string {
	if explicit != "" {
		return explicit
	}
	candidate := DefaultConfigFile(getenv)
	if candidate == "" {
		return ""
	}
	if info, err := os.Stat(candidate); err != nil || info.IsDir() {
		return ""
	}
	return candidate
}

func (o Options) getenv(key string) string {
	if o.Environment != nil {
		return o.Environment[key]
	}
	return os.Getenv(key)
}
