// Package xdg resolves XDG Base Directory paths for vodoo.
//
// ConfigDir holds config.yaml, the default-instance file and the instances/
// profile directory. When XDG_CONFIG_HOME is unset the traditional
// ~/.config location is used.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "vodoo"

// ConfigPath returns the XDG config directory for vodoo without creating it.
// It falls back to ~/.config/vodoo when XDG_CONFIG_HOME is unset.
func ConfigPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// ConfigDir returns the XDG config directory for vodoo.
// The directory is created with private permissions (0700) if missing.
func ConfigDir() (string, error) {
	dir, err := ConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}

// ProjectDir returns the project-local config directory, ./.vodoo under dir.
func ProjectDir(dir string) string {
	return filepath.Join(dir, "."+appName)
}
