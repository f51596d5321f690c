// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/jcodagnone/geotagger/geotag"
)

// Settings are the persisted user preferences. They are loaded once per
// command and handed to the core as a read-only snapshot; the core never
// writes them back.
type Settings struct {
	ExifToolPath    string   `mapstructure:"exiftool_path"`
	FileTypes       []string `mapstructure:"file_types"`
	CachePrecision  int      `mapstructure:"cache_precision"`
	CacheMaxAgeDays int      `mapstructure:"cache_max_age_days"`
	SkipIfExists    bool     `mapstructure:"skip_if_exists"`
	Language        string   `mapstructure:"language"`
}

// loadSettings reads $HOME/.geotagger/config.yaml plus GEOTAGGER_*
// environment overrides. A missing config file yields the defaults.
func loadSettings() (*Settings, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".geotagger"))
	}

	v.SetEnvPrefix("GEOTAGGER")
	v.AutomaticEnv()

	v.SetDefault("exiftool_path", "exiftool")
	v.SetDefault("file_types", geotag.DefaultFileTypes)
	v.SetDefault("cache_precision", geotag.DefaultPrecision)
	v.SetDefault("cache_max_age_days", geotag.DefaultMaxAgeDays)
	v.SetDefault("skip_if_exists", true)
	v.SetDefault("language", "de")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return &s, nil
}

// cacheFile is the --cache-file override shared by every subcommand.
var cacheFile string

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cacheFile,
		"cache-file",
		"",
		"Path of the geocoding cache store (defaults to ~/.geotagger/geocoding_cache.json)",
	)
}

// openCache loads the geocoding cache configured by the settings.
func openCache(s *Settings) (*geotag.GeocodingCache, error) {
	path := cacheFile

	if path == "" {
		var err error

		path, err = geotag.DefaultCachePath()
		if err != nil {
			return nil, fmt.Errorf("locating cache file: %w", err)
		}
	}

	return geotag.NewGeocodingCache(path, s.CachePrecision, s.CacheMaxAgeDays), nil
}
