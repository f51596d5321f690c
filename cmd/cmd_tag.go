// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jcodagnone/geotagger/geotag"
)

var tagFlags struct {
	exiftool     string
	fileTypes    []string
	skipExisting bool
	precision    int
	maxAgeDays   int
	language     string
}

var tagCmd = &cobra.Command{
	Use:   "tag <directory>",
	Short: "Reverse geocode and tag every image below a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		// flags win over the config file
		if cmd.Flags().Changed("exiftool") {
			settings.ExifToolPath = tagFlags.exiftool
		}

		if cmd.Flags().Changed("types") {
			settings.FileTypes = tagFlags.fileTypes
		}

		if cmd.Flags().Changed("skip-existing") {
			settings.SkipIfExists = tagFlags.skipExisting
		}

		if cmd.Flags().Changed("precision") {
			settings.CachePrecision = tagFlags.precision
		}

		if cmd.Flags().Changed("max-age") {
			settings.CacheMaxAgeDays = tagFlags.maxAgeDays
		}

		if cmd.Flags().Changed("lang") {
			settings.Language = tagFlags.language
		}

		if info, err := os.Stat(args[0]); err != nil || !info.IsDir() {
			return fmt.Errorf("not a directory: %s", args[0])
		}

		cache, err := openCache(settings)
		if err != nil {
			return err
		}

		worker := geotag.NewWorker(geotag.Options{
			Directory:    args[0],
			ExifToolPath: settings.ExifToolPath,
			FileTypes:    settings.FileTypes,
			SkipExisting: settings.SkipIfExists,
			Language:     settings.Language,
		}, cache, nil, nil)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go worker.Run(ctx)

		return renderEvents(worker.Events())
	},
}

// renderEvents drains the worker's event channel to the terminal: a
// progress bar when stderr is a tty, plain [i/n] lines otherwise.
func renderEvents(events <-chan geotag.Event) error {
	var bar *progressbar.ProgressBar

	var runErr string

	interactive := isatty.IsTerminal(os.Stderr.Fd())

	for e := range events {
		switch e.Kind {
		case geotag.EventProgress:
			if !interactive {
				log.Printf("[%d/%d]", e.Current, e.Total)

				continue
			}

			if bar == nil {
				bar = progressbar.NewOptions(e.Total,
					progressbar.OptionSetDescription("Tagging"),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}

			if err := bar.Add(1); err != nil {
				log.Printf("updating progress bar: %s", err)
			}
		case geotag.EventLog:
			if bar != nil {
				_ = bar.Clear()
			}

			log.Print(e.Line)
		case geotag.EventStats, geotag.EventFinished:
			// the worker already logged the statistics block
		case geotag.EventError:
			runErr = e.Err
		}
	}

	if runErr != "" {
		return errors.New(runErr)
	}

	return nil
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.Flags().StringVar(
		&tagFlags.exiftool,
		"exiftool",
		"exiftool",
		"Path of the exiftool executable",
	)
	tagCmd.Flags().StringSliceVar(
		&tagFlags.fileTypes,
		"types",
		geotag.DefaultFileTypes,
		"Image file extensions to process",
	)
	tagCmd.Flags().BoolVar(
		&tagFlags.skipExisting,
		"skip-existing",
		true,
		"Skip files that already carry place metadata",
	)
	tagCmd.Flags().IntVar(
		&tagFlags.precision,
		"precision",
		geotag.DefaultPrecision,
		"Cache coordinate precision in decimal places (3-7)",
	)
	tagCmd.Flags().IntVar(
		&tagFlags.maxAgeDays,
		"max-age",
		geotag.DefaultMaxAgeDays,
		"Cache entry lifetime in days",
	)
	tagCmd.Flags().StringVar(
		&tagFlags.language,
		"lang",
		"de",
		"Display language requested from the geocoding service",
	)
}
