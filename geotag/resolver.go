// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"context"
)

// Resolver wraps the cache around a Geocoder. On a hit the cached record
// is returned verbatim; on a miss the external service is consulted once
// and the result stored. Failures are reported through the log callback,
// never as errors to the pipeline.
type Resolver struct {
	cache    *GeocodingCache
	geocoder Geocoder
	stats    *RunStatistics
	logf     func(format string, args ...any)
}

// NewResolver creates a resolver counting into stats and logging through
// logf (nil means discard).
func NewResolver(cache *GeocodingCache, geocoder Geocoder, stats *RunStatistics, logf func(string, ...any)) *Resolver {
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Resolver{
		cache:    cache,
		geocoder: geocoder,
		stats:    stats,
		logf:     logf,
	}
}

// Resolve returns the location for a coordinate pair, or nil when neither
// the cache nor the external service produced one.
func (r *Resolver) Resolve(ctx context.Context, lat, lon float64) *LocationRecord {
	if record := r.cache.Get(lat, lon); record != nil {
		r.logf("  cache hit")
		r.stats.CacheHits++

		return record
	}

	r.logf("  querying geocoding API...")
	r.stats.APICalls++

	record, err := r.geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		r.logf("  API error: %s", err)

		return nil
	}

	r.cache.Put(lat, lon, record)

	return record
}
