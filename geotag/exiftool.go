// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// MetadataTool is the worker's view of the metadata adapter. All methods
// are fail-contained: external tool errors degrade to "no data" results.
type MetadataTool interface {
	ReadGPS(ctx context.Context, path string) (lat, lon float64, ok bool)
	HasExistingLocation(ctx context.Context, path string) bool
	Differs(ctx context.Context, path string, record *LocationRecord) bool
	Write(ctx context.Context, path string, record *LocationRecord) bool
}

// Subprocess deadlines per operation kind.
const (
	probeTimeout = 5 * time.Second
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
)

// ExifTool invokes the external exiftool binary, one short-lived process
// per operation.
type ExifTool struct {
	path string
	logf func(format string, args ...any)
}

// NewExifTool creates an adapter for the executable at path ("exiftool"
// resolves through $PATH). Notable events go through logf (nil discards).
func NewExifTool(path string, logf func(string, ...any)) *ExifTool {
	if path == "" {
		path = "exiftool"
	}

	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &ExifTool{path: path, logf: logf}
}

// SidecarPath returns the XMP sidecar location for an image,
// e.g. IMG_0001.jpg -> IMG_0001.jpg.xmp.
func SidecarPath(imagePath string) string {
	return imagePath + ".xmp"
}

// run executes exiftool with the given arguments under a deadline and
// returns its stdout. A non-zero exit status is an error.
func (t *ExifTool) run(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, t.path, args...).Output()

	return string(out), err
}

// reportRunError logs a distinct line per failure class.
func (t *ExifTool) reportRunError(ctx context.Context, err error) {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		t.logf("  timeout running exiftool")
	case errors.Is(err, exec.ErrNotFound):
		t.logf("  exiftool not found at %q", t.path)
	default:
		t.logf("  exiftool failed: %s", err)
	}
}

// parseGPSOutput extracts numeric latitude and longitude from exiftool's
// long-form output ("GPS Latitude : 48.8583701").
func parseGPSOutput(out string) (lat, lon float64, ok bool) {
	var haveLat, haveLon bool

	for _, line := range strings.Split(out, "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}

		switch {
		case strings.Contains(name, "GPS Latitude"):
			lat, haveLat = v, true
		case strings.Contains(name, "GPS Longitude"):
			lon, haveLon = v, true
		}
	}

	return lat, lon, haveLat && haveLon
}

// ReadGPS reads the GPS coordinates of an image. An XMP sidecar beside
// the image wins when its modification time is strictly newer than the
// image's.
func (t *ExifTool) ReadGPS(ctx context.Context, path string) (lat, lon float64, ok bool) {
	fileToRead := path

	if sidecar := SidecarPath(path); sidecarIsNewer(path, sidecar) {
		t.logf("  XMP sidecar is newer")

		fileToRead = sidecar
	}

	runCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	out, err := exec.CommandContext(
		runCtx,
		t.path,
		"-GPSLatitude",
		"-GPSLongitude",
		"-n",
		fileToRead,
	).Output()
	if err != nil {
		t.reportRunError(runCtx, err)

		return 0, 0, false
	}

	return parseGPSOutput(string(out))
}

// sidecarIsNewer reports whether sidecar exists and was modified strictly
// after the image.
func sidecarIsNewer(imagePath, sidecarPath string) bool {
	sidecarInfo, err := os.Stat(sidecarPath)
	if err != nil {
		return false
	}

	imageInfo, err := os.Stat(imagePath)
	if err != nil {
		return false
	}

	return sidecarInfo.ModTime().After(imageInfo.ModTime())
}

// HasExistingLocation reports whether the file already carries a city in
// its legacy or modern namespace. Any failure counts as "no existing
// location".
func (t *ExifTool) HasExistingLocation(ctx context.Context, path string) bool {
	out, err := t.run(ctx, probeTimeout,
		"-IPTC:City",
		"-XMP:City",
		"-s3",
		path,
	)
	if err != nil {
		return false
	}

	return strings.TrimSpace(out) != ""
}

// compareExisting matches -s3 output lines (city, state, country in
// request order) against the candidate record. A missing line and an
// empty field are the same thing. Returns true when a write is needed.
func compareExisting(out string, record *LocationRecord) bool {
	lines := strings.Split(strings.TrimSpace(out), "\n")

	field := func(i int) string {
		if i < len(lines) {
			return strings.TrimSpace(lines[i])
		}

		return ""
	}

	return field(0) != record.City ||
		field(1) != record.State ||
		field(2) != record.Country
}

// Differs reports whether the candidate record differs from the city,
// state and country already stored in the file. A failed read fails open:
// the write happens.
func (t *ExifTool) Differs(ctx context.Context, path string, record *LocationRecord) bool {
	out, err := t.run(ctx, probeTimeout,
		"-IPTC:City",
		"-IPTC:Province-State",
		"-IPTC:Country-PrimaryLocationName",
		"-s3",
		path,
	)
	if err != nil {
		return true
	}

	return compareExisting(out, record)
}

// writeArgs builds the per-field tag assignments for a record. Each field
// lands in both the legacy IPTC namespace and its XMP counterparts so
// that varied readers pick it up.
func writeArgs(record *LocationRecord) []string {
	var args []string

	if record.Country != "" {
		args = append(args,
			"-IPTC:Country-PrimaryLocationName="+record.Country,
			"-XMP:Country="+record.Country,
			"-XMP-iptcExt:LocationShownCountryName="+record.Country,
		)
	}

	if record.CountryCode != "" {
		code := strings.ToUpper(record.CountryCode)
		args = append(args,
			"-IPTC:Country-PrimaryLocationCode="+code,
			"-XMP:CountryCode="+code,
			"-XMP-iptcExt:LocationShownCountryCode="+code,
		)
	}

	if record.State != "" {
		args = append(args,
			"-IPTC:Province-State="+record.State,
			"-XMP:State="+record.State,
			"-XMP-iptcExt:LocationShownProvinceState="+record.State,
		)
	}

	if record.County != "" {
		args = append(args,
			"-XMP-iptcExt:LocationShownCity="+record.County,
		)
	}

	if record.City != "" {
		args = append(args,
			"-IPTC:City="+record.City,
			"-XMP:City="+record.City,
			"-XMP-photoshop:City="+record.City,
		)
	}

	if sub := record.SublocationName(); sub != "" {
		args = append(args,
			"-IPTC:Sub-location="+sub,
			"-XMP:Location="+sub,
			"-XMP-iptcExt:LocationShownSublocation="+sub,
		)
	}

	if street := record.StreetAddress(); street != "" {
		args = append(args,
			"-XMP-iptcCore:Location="+street,
		)
	}

	if record.Postcode != "" {
		args = append(args,
			"-XMP-photoshop:PostalCode="+record.Postcode,
		)
	}

	// Point-of-interest shots often resolve without a city; fall back to
	// the feature name so the image still gets a place label.
	if record.Name != "" && record.City == "" {
		args = append(args,
			"-XMP-iptcExt:LocationShownCity="+record.Name,
		)
	}

	return args
}

// Write applies the record to the file in place, preserving its original
// timestamp and forcing UTF-8. On success the write is mirrored to an
// existing XMP sidecar, best-effort. Returns whether the image write
// succeeded.
func (t *ExifTool) Write(ctx context.Context, path string, record *LocationRecord) bool {
	args := writeArgs(record)
	args = append(args,
		"-overwrite_original",
		"-P",
		"-codedcharacterset=utf8",
		path,
	)

	runCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if _, err := exec.CommandContext(runCtx, t.path, args...).Output(); err != nil {
		t.reportRunError(runCtx, err)

		return false
	}

	t.logf("  metadata written")

	if sidecar := SidecarPath(path); fileExists(sidecar) {
		sidecarArgs := append(args[:len(args)-1:len(args)-1], sidecar)
		if _, err := t.run(ctx, writeTimeout, sidecarArgs...); err == nil {
			t.logf("  XMP sidecar updated")
		}
	}

	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
