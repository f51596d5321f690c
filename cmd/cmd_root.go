// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var rootCmd = &cobra.Command{
	Use:   "geotagger",
	Short: "reverse geocoding for image GPS metadata",
	Long: `
geotagger scans a directory for images carrying GPS coordinates, resolves
each coordinate to a place description through the Photon reverse-geocoding
service, and writes the result into the image metadata with exiftool.
Results are cached locally so nearby shots share a single API call.
`,
}

var Version = "dev"

func Execute(version string) {
	Version = version
	rootCmd.Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
