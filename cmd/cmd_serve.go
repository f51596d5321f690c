// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jcodagnone/geotagger/geotag"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local web shell (local only)",
	Long: `Serves a small HTTP API to start and cancel tagging runs, follow their
progress and log, and manage the geocoding cache. Intended for a local
frontend; it is not meant to be exposed to the internet.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		cache, err := openCache(settings)
		if err != nil {
			return err
		}

		server := geotag.NewServer(cache, geotag.Options{
			ExifToolPath: settings.ExifToolPath,
			FileTypes:    settings.FileTypes,
			SkipExisting: settings.SkipIfExists,
			Language:     settings.Language,
		})

		fmt.Printf("🗺️  geotagger shell listening on http://%s\n", serveListen)
		fmt.Println("🔒 Local only - not exposed to internet")

		return server.Run(serveListen)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(
		&serveListen,
		"listen",
		"localhost:8765",
		"Address to listen on",
	)
}
