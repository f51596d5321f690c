// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// PrecisionInfo describes one coordinate rounding level.
type PrecisionInfo struct {
	Label       string
	Accuracy    string
	Description string
}

// PrecisionLevels maps the supported decimal precisions to their
// approximate ground accuracy. Lower precision collapses nearby
// coordinates into one cache bucket.
var PrecisionLevels = map[int]PrecisionInfo{
	3: {Label: "3 decimal places", Accuracy: "~111m", Description: "neighborhoods / large areas"},
	4: {Label: "4 decimal places", Accuracy: "~11m", Description: "street segments"},
	5: {Label: "5 decimal places", Accuracy: "~1m", Description: "buildings (default)"},
	6: {Label: "6 decimal places", Accuracy: "~0.1m", Description: "exact position"},
	7: {Label: "7 decimal places", Accuracy: "~0.01m", Description: "maximum precision"},
}

// Defaults for a freshly constructed cache.
const (
	DefaultPrecision  = 5
	DefaultMaxAgeDays = 30

	cacheFileName = "geocoding_cache.json"
)

// Quantize rounds v to the given number of decimal places. This is the
// cache's bucketing function: coordinates that quantize to the same pair
// share one entry.
func Quantize(v float64, precision int) float64 {
	scale := math.Pow10(precision)

	return math.Round(v*scale) / scale
}

// formatCoordinate renders a quantized coordinate in its shortest decimal
// form. Entry keys depend on this representation, so it must stay stable.
func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Coordinates is a quantized latitude/longitude pair as stored on disk.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CacheEntry is one stored geocoding result. Entries are never mutated
// after creation; they are only removed by the purge operations. The
// timestamp is kept as a string so that values an older writer produced
// survive a load/save round-trip even when unparseable.
type CacheEntry struct {
	Timestamp    string          `json:"timestamp"`
	Coordinates  Coordinates     `json:"coordinates"`
	Precision    int             `json:"precision"`
	LocationData *LocationRecord `json:"location_data"`
}

// GeocodingCache maps quantized coordinate pairs to previously resolved
// location records, with age-based invalidation. The full store is held
// in memory and flushed to a JSON file after every mutation.
type GeocodingCache struct {
	mu         sync.Mutex
	path       string
	precision  int
	maxAgeDays int
	data       map[string]*CacheEntry

	now func() time.Time // test hook
}

// DefaultCachePath returns the per-user cache file location, creating the
// parent directory if needed.
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, ".geotagger")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	return filepath.Join(dir, cacheFileName), nil
}

// NewGeocodingCache loads the store at path into memory. A missing,
// corrupt or unreadable file degrades to an empty cache with a warning.
func NewGeocodingCache(path string, precision, maxAgeDays int) *GeocodingCache {
	c := &GeocodingCache{
		path:       path,
		precision:  DefaultPrecision,
		maxAgeDays: DefaultMaxAgeDays,
		data:       make(map[string]*CacheEntry),
		now:        time.Now,
	}
	c.SetPrecision(precision)
	c.SetMaxAgeDays(maxAgeDays)
	c.load()

	return c
}

func (c *GeocodingCache) load() {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: could not load cache: %s", err)
		}

		return
	}

	if err := json.Unmarshal(data, &c.data); err != nil {
		log.Printf("Warning: could not parse cache %s: %s", c.path, err)

		c.data = make(map[string]*CacheEntry)
	}
}

// save flushes the full store. Callers must hold c.mu. A failed flush is
// a warning only; the in-memory state stays authoritative.
func (c *GeocodingCache) save() {
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		log.Printf("Warning: could not encode cache: %s", err)

		return
	}

	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		log.Printf("Warning: could not save cache: %s", err)
	}
}

// SetPrecision changes the rounding applied before key derivation.
// Values outside PrecisionLevels are ignored. Existing entries are not
// rewritten; lookups simply stop matching keys derived at the old
// precision.
func (c *GeocodingCache) SetPrecision(precision int) {
	if _, ok := PrecisionLevels[precision]; !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.precision = precision
}

// SetMaxAgeDays changes the entry lifetime. Non-positive values are
// ignored.
func (c *GeocodingCache) SetMaxAgeDays(days int) {
	if days <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxAgeDays = days
}

// Precision returns the active precision level.
func (c *GeocodingCache) Precision() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.precision
}

// MaxAgeDays returns the active entry lifetime.
func (c *GeocodingCache) MaxAgeDays() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.maxAgeDays
}

// PrecisionInfo returns the description of the active precision level.
func (c *GeocodingCache) PrecisionInfo() PrecisionInfo {
	return PrecisionLevels[c.Precision()]
}

// key derives the deterministic cache key for a coordinate pair at the
// active precision: an md5 digest over the canonical "<lat>,<lon>" form.
func (c *GeocodingCache) key(lat, lon float64) string {
	s := formatCoordinate(Quantize(lat, c.precision)) +
		"," +
		formatCoordinate(Quantize(lon, c.precision))
	sum := md5.Sum([]byte(s))

	return hex.EncodeToString(sum[:])
}

// expired reports whether an entry is past the given lifetime. Entries
// with a missing or unparseable timestamp count as expired.
func (c *GeocodingCache) entryExpired(e *CacheEntry, maxAgeDays int) bool {
	if e.Timestamp == "" {
		return true
	}

	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return true
	}

	return c.now().Sub(ts) > time.Duration(maxAgeDays)*24*time.Hour
}

// Get returns the cached record for the coordinate pair, or nil if there
// is no entry or the entry has expired. Expired entries are skipped, not
// deleted; removal is PurgeExpired's job.
func (c *GeocodingCache) Get(lat, lon float64) *LocationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.data[c.key(lat, lon)]
	if !ok || c.entryExpired(entry, c.maxAgeDays) {
		return nil
	}

	return entry.LocationData
}

// Put stores a freshly resolved record under the quantized coordinate
// pair and flushes the store synchronously.
func (c *GeocodingCache) Put(lat, lon float64, record *LocationRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[c.key(lat, lon)] = &CacheEntry{
		Timestamp: c.now().Format(time.RFC3339),
		Coordinates: Coordinates{
			Lat: Quantize(lat, c.precision),
			Lon: Quantize(lon, c.precision),
		},
		Precision:    c.precision,
		LocationData: record,
	}

	c.save()
}

// PurgeExpired deletes every entry older than maxAgeDays (0 means the
// active default) and returns the number of deletions. The store is
// flushed once, and only if something was deleted.
func (c *GeocodingCache) PurgeExpired(maxAgeDays int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if maxAgeDays <= 0 {
		maxAgeDays = c.maxAgeDays
	}

	var deleted int

	for key, entry := range c.data {
		if c.entryExpired(entry, maxAgeDays) {
			delete(c.data, key)

			deleted++
		}
	}

	if deleted > 0 {
		c.save()
	}

	return deleted
}

// PurgeAll clears every entry and persists the empty store.
func (c *GeocodingCache) PurgeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data = make(map[string]*CacheEntry)
	c.save()
}

// CacheStats is a point-in-time snapshot of the store.
type CacheStats struct {
	Total             int    `json:"total"`
	Valid             int    `json:"valid"`
	Expired           int    `json:"expired"`
	MaxAgeDays        int    `json:"max_age_days"`
	Precision         int    `json:"precision"`
	PrecisionLabel    string `json:"precision_label"`
	PrecisionAccuracy string `json:"precision_accuracy"`
	StorageLocation   string `json:"storage_location"`
}

// Stats scans all entries, classifying each as valid or expired by the
// same rule Get applies.
func (c *GeocodingCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Total:           len(c.data),
		MaxAgeDays:      c.maxAgeDays,
		Precision:       c.precision,
		StorageLocation: c.path,
	}

	info := PrecisionLevels[c.precision]
	stats.PrecisionLabel = info.Label
	stats.PrecisionAccuracy = info.Accuracy

	for _, entry := range c.data {
		if c.entryExpired(entry, c.maxAgeDays) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}

	return stats
}

// Entries returns a snapshot copy of the store, keyed by cache key.
func (c *GeocodingCache) Entries() map[string]CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]CacheEntry, len(c.data))
	for key, entry := range c.data {
		out[key] = *entry
	}

	return out
}
