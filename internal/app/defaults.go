package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	configPathEnv = "DEDUPE_CONFIG_PATH"
	homeEnv       = "DEDUPE_HOME"
)

// Defaults holds the locations used when no config file says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves the default locations. DEDUPE_CONFIG_PATH overrides
// ~/.config/dedupe.toml and DEDUPE_HOME overrides ~/.local/share/dedupe.
func GetDefaults() (Defaults, error) {
	return defaultsFrom(os.Getenv, os.UserHomeDir)
}

func defaultsFrom(getenv func(string) string, home func() (string, error)) (Defaults, error) {
	var d Defaults
	d.ConfigPath = getenv(configPathEnv)
	d.BaseDir = getenv(homeEnv)

	if d.ConfigPath == "" || d.BaseDir == "" {
		homeDir, err := home()
		if err != nil {
			return Defaults{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if d.ConfigPath == "" {
			d.ConfigPath = filepath.Join(homeDir, ".config", "dedupe.toml")
		}
		if d.BaseDir == "" {
			d.BaseDir = filepath.Join(homeDir, ".local", "share", "dedupe")
		}
	}

	d.LogDir = filepath.Join(d.BaseDir, "log")
	return d, nil
}
