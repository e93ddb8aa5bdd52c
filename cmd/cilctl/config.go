package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configName = "cilctl"
	configType = "yaml"

	cfgKeyPreset = "preset"
	cfgKeyOut    = "out"

	defaultPreset = "production"
)

var cfg *viper.Viper

// loadConfig resolves CLI defaults from an explicit --config file, or from
// a cilctl.yaml found in the working directory or the user config dir. A
// missing config file is not an error; a named one that cannot be read is.
func loadConfig(explicit string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyPreset, defaultPreset)
	v.SetDefault(cfgKeyOut, "")

	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return v, nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "cilctl"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	return v, nil
}

// configString reads a config key, falling back when the key is unset or
// the config was never loaded (run functions called outside cobra).
func configString(key, fallback string) string {
	if cfg == nil {
		return fallback
	}
	if s := cfg.GetString(key); s != "" {
		return s
	}
	return fallback
}
