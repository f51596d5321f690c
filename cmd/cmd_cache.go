// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/uber/h3-go/v4"

	"github.com/jcodagnone/geotagger/geotag"
	"github.com/jcodagnone/geotagger/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the geocoding result cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a snapshot of the cache store",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		cache, err := openCache(settings)
		if err != nil {
			return err
		}

		stats := cache.Stats()

		fmt.Printf("Cache file:      %s\n", stats.StorageLocation)
		fmt.Printf("Precision:       %s (%s)\n", stats.PrecisionLabel, stats.PrecisionAccuracy)
		fmt.Printf("Lifetime:        %d days\n", stats.MaxAgeDays)
		fmt.Printf("Total entries:   %s\n", utils.FormatInt(int64(stats.Total)))
		fmt.Printf("Valid entries:   %s\n", utils.FormatInt(int64(stats.Valid)))
		fmt.Printf("Expired entries: %s\n", utils.FormatInt(int64(stats.Expired)))

		return nil
	},
}

var cachePurgeMaxAge int

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired entries from the cache",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		cache, err := openCache(settings)
		if err != nil {
			return err
		}

		deleted := cache.PurgeExpired(cachePurgeMaxAge)
		fmt.Printf("✅ Deleted %s expired entries\n", utils.FormatInt(int64(deleted)))

		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry from the cache",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		cache, err := openCache(settings)
		if err != nil {
			return err
		}

		cache.PurgeAll()
		fmt.Println("✅ Cache cleared")

		return nil
	},
}

var cacheInspectResolution int

var cacheInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Group cached entries by H3 cell to show where lookups cluster",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		settings, err := loadSettings()
		if err != nil {
			return err
		}

		cache, err := openCache(settings)
		if err != nil {
			return err
		}

		type cluster struct {
			cell    h3.Cell
			count   int
			example geotag.Coordinates
		}

		clusters := make(map[h3.Cell]*cluster)

		for _, entry := range cache.Entries() {
			latLng := h3.NewLatLng(entry.Coordinates.Lat, entry.Coordinates.Lon)

			cell, err := h3.LatLngToCell(latLng, cacheInspectResolution)
			if err != nil {
				return fmt.Errorf("converting to h3 cell at resolution %d: %w", cacheInspectResolution, err)
			}

			c, ok := clusters[cell]
			if !ok {
				c = &cluster{cell: cell, example: entry.Coordinates}
				clusters[cell] = c
			}

			c.count++
		}

		sorted := make([]*cluster, 0, len(clusters))
		for _, c := range clusters {
			sorted = append(sorted, c)
		}

		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].count != sorted[j].count {
				return sorted[i].count > sorted[j].count
			}

			return sorted[i].cell < sorted[j].cell
		})

		fmt.Printf("%s entries in %s cells at resolution %d\n",
			utils.FormatInt(int64(cache.Stats().Total)),
			utils.FormatInt(int64(len(sorted))),
			cacheInspectResolution,
		)

		for _, c := range sorted {
			fmt.Printf("%s  %4d entries  near %.5f, %.5f\n",
				c.cell, c.count, c.example.Lat, c.example.Lon)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInspectCmd)
	cachePurgeCmd.Flags().IntVar(
		&cachePurgeMaxAge,
		"max-age",
		0,
		"Age threshold in days (defaults to the configured lifetime)",
	)
	cacheInspectCmd.Flags().IntVar(
		&cacheInspectResolution,
		"resolution",
		7,
		"H3 resolution used for grouping (0-15)",
	)
}
