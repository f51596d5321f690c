// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultFileTypes are the image extensions recognized out of the box.
var DefaultFileTypes = []string{
	".jpg", ".jpeg", ".png", ".tiff", ".tif",
	".dng", ".raw", ".cr2", ".nef", ".arw", ".orf",
}

// Options is the read-only configuration snapshot a run operates on.
// Persisting user preferences is the shell's business, not the worker's.
type Options struct {
	// Directory is the root to scan for image files.
	Directory string

	// ExifToolPath locates the external metadata tool. Empty means
	// "exiftool" resolved through $PATH.
	ExifToolPath string

	// FileTypes are the recognized extensions (lowercase, with dot).
	FileTypes []string

	// SkipExisting bypasses files that already carry place metadata.
	SkipExisting bool

	// Language is the display language requested from the geocoding
	// service.
	Language string
}

// RunStatistics are the counters of a single run. Created fresh per run
// and mutated only by the worker; consumers get value snapshots.
type RunStatistics struct {
	CacheHits            int `json:"cache_hits"`
	APICalls             int `json:"api_calls"`
	TotalProcessed       int `json:"total_processed"`
	SkippedAlreadyTagged int `json:"skipped_already_tagged"`
	SkippedNoGPS         int `json:"skipped_no_gps"`
	MetadataWritten      int `json:"metadata_written"`
	MetadataUnchanged    int `json:"metadata_unchanged"`
}

// EventKind discriminates worker events.
type EventKind int

// Worker event kinds, in the order a shell usually sees them.
const (
	EventProgress EventKind = iota
	EventLog
	EventStats
	EventFinished
	EventError
)

// Event is one item on the worker's ordered event channel. Progress for
// file i precedes that file's log lines; Finished or Error arrives
// exactly once and last.
type Event struct {
	Kind    EventKind
	Current int
	Total   int
	Line    string
	Stats   RunStatistics
	Err     string
}

// Worker runs the per-file processing pipeline sequentially over a
// directory tree. Sequential on purpose: it protects the geocoding API
// from bursts and keeps cache writes and log ordering deterministic.
type Worker struct {
	opts     Options
	cache    *GeocodingCache
	tool     MetadataTool
	resolver *Resolver

	stats    RunStatistics
	events   chan Event
	finished bool
}

// NewWorker wires a worker with its collaborators. A nil tool or
// geocoder selects the production implementation (exiftool at
// opts.ExifToolPath, the public Photon instance); tests substitute
// fakes.
func NewWorker(opts Options, cache *GeocodingCache, tool MetadataTool, geocoder Geocoder) *Worker {
	if len(opts.FileTypes) == 0 {
		opts.FileTypes = DefaultFileTypes
	}

	w := &Worker{
		opts:   opts,
		cache:  cache,
		events: make(chan Event, 128),
	}

	if tool == nil {
		tool = NewExifTool(opts.ExifToolPath, w.logf)
	}

	if geocoder == nil {
		geocoder = NewPhotonClient("", opts.Language)
	}

	w.tool = tool
	w.resolver = NewResolver(cache, geocoder, &w.stats, w.logf)

	return w
}

// Events returns the run's event channel. It is closed after the
// Finished or Error event.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Stats returns a snapshot of the run counters.
func (w *Worker) Stats() RunStatistics {
	return w.stats
}

func (w *Worker) emit(e Event) {
	w.events <- e
}

func (w *Worker) logf(format string, args ...any) {
	w.emit(Event{Kind: EventLog, Line: fmt.Sprintf(format, args...)})
}

func (w *Worker) finish() {
	if w.finished {
		return
	}

	w.finished = true
	w.emit(Event{Kind: EventFinished})
}

// Run executes the pipeline until completion or cancellation and closes
// the event channel. Cancellation is cooperative, checked once per file
// boundary. Run is meant to be launched on its own goroutine while the
// shell consumes Events.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.events)

	if err := w.run(ctx); err != nil {
		w.emit(Event{Kind: EventError, Err: err.Error()})

		return
	}

	w.finish()
}

// run is the run-level loop. Per-file operations are fail-contained; the
// only error escaping here is a truly unanticipated panic, surfaced as
// the single Error event.
func (w *Worker) run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
		}
	}()

	w.logf("Scanning for image files...")

	files, ferr := w.findImageFiles()
	if ferr != nil {
		w.logf("Could not scan %s: %s", w.opts.Directory, ferr)

		return nil
	}

	if len(files) == 0 {
		w.logf("No image files found.")

		return nil
	}

	w.logf("%d image file(s) found.", len(files))

	info := w.cache.PrecisionInfo()
	w.logf("Cache precision: %s (%s)", info.Label, info.Accuracy)
	w.logf("Cache lifetime: %d days", w.cache.MaxAgeDays())

	if w.opts.SkipExisting {
		w.logf("Skipping images that are already tagged")
	}

	w.logf("%s", strings.Repeat("─", 60))

	for i, file := range files {
		if ctx.Err() != nil {
			w.logf("Cancelled.")

			break
		}

		w.emit(Event{Kind: EventProgress, Current: i + 1, Total: len(files)})
		w.processImage(ctx, file)
	}

	w.logf("%s", strings.Repeat("=", 60))
	w.logf("Statistics:")
	w.logf("   Files found: %d", len(files))
	w.logf("   Files processed: %d", w.stats.TotalProcessed)
	w.logf("   Skipped (already tagged): %d", w.stats.SkippedAlreadyTagged)
	w.logf("   Skipped (no GPS): %d", w.stats.SkippedNoGPS)
	w.logf("   Cache hits: %d", w.stats.CacheHits)
	w.logf("   API calls: %d", w.stats.APICalls)
	w.logf("   Metadata written: %d", w.stats.MetadataWritten)
	w.logf("   Metadata unchanged: %d", w.stats.MetadataUnchanged)

	if w.stats.TotalProcessed > 0 {
		rate := float64(w.stats.CacheHits) / float64(w.stats.TotalProcessed) * 100
		w.logf("   Cache hit rate: %.1f%%", rate)
	}

	w.logf("%s", strings.Repeat("=", 60))
	w.emit(Event{Kind: EventStats, Stats: w.stats})
	w.logf("Done!")

	return nil
}

// processImage applies the per-file decision chain:
// skip-if-tagged -> read GPS -> resolve -> compare -> write.
func (w *Worker) processImage(ctx context.Context, path string) {
	w.logf("📷 %s", filepath.Base(path))

	if w.opts.SkipExisting && w.tool.HasExistingLocation(ctx, path) {
		w.logf("  already tagged, skipping")
		w.stats.SkippedAlreadyTagged++

		return
	}

	lat, lon, ok := w.tool.ReadGPS(ctx, path)
	if !ok {
		w.logf("  no GPS data")
		w.stats.SkippedNoGPS++

		return
	}

	w.logf("  GPS: %.6f, %.6f", lat, lon)

	location := w.resolver.Resolve(ctx, lat, lon)
	if location == nil {
		w.logf("  no location found")

		return
	}

	w.stats.TotalProcessed++
	w.logf("  🌍 %s", location.Summary())

	if !w.tool.Differs(ctx, path, location) {
		w.logf("  metadata already up to date")
		w.stats.MetadataUnchanged++

		return
	}

	if w.tool.Write(ctx, path, location) {
		w.stats.MetadataWritten++
	}
}

// findImageFiles walks the directory tree collecting files whose name
// ends in one of the recognized extensions. filepath.WalkDir visits
// entries in lexical order, so the file list is deterministic.
func (w *Worker) findImageFiles() ([]string, error) {
	var files []string

	err := filepath.WalkDir(w.opts.Directory, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		name := strings.ToLower(d.Name())
		for _, ft := range w.opts.FileTypes {
			if strings.HasSuffix(name, ft) {
				files = append(files, path)

				break
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
