// Package xdg provides helpers to resolve XDG Base Directory paths for sqlaunch.
// Configuration lives under the config dir; checkpoints and shell history live
// under the state dir. Both fall back to the traditional locations when the XDG
// environment variables are unset.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "sqlaunch"

// ConfigDir returns the XDG config directory for sqlaunch.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.config/sqlaunch when XDG_CONFIG_HOME is unset.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the XDG state directory for sqlaunch.
// The directory is created with private permissions (0700) if missing.
// It falls back to ~/.local/state/sqlaunch when XDG_STATE_HOME is unset.
func StateDir() (string, error) {
	return resolve("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// StateSubdir returns a named directory below StateDir, creating it if needed.
func StateSubdir(name string) (string, error) {
	base, err := StateDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, name)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func resolve(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}
	return dir, nil
}
