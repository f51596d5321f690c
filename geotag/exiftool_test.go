// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

package geotag

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGPSOutput(t *testing.T) {
	tests := []struct {
		name string
		out  string
		lat  float64
		lon  float64
		ok   bool
	}{
		{
			name: "both coordinates",
			out:  "GPS Latitude                    : 48.8583701\nGPS Longitude                   : 2.2944813\n",
			lat:  48.8583701,
			lon:  2.2944813,
			ok:   true,
		},
		{
			name: "negative coordinates",
			out:  "GPS Latitude : -34.9011100\nGPS Longitude : -56.1645300\n",
			lat:  -34.90111,
			lon:  -56.16453,
			ok:   true,
		},
		{name: "latitude only", out: "GPS Latitude : 48.85\n"},
		{name: "longitude only", out: "GPS Longitude : 2.29\n"},
		{name: "non numeric value", out: "GPS Latitude : 48 deg 51' 30.13\"\nGPS Longitude : 2.29\n"},
		{name: "empty output", out: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lat, lon, ok := parseGPSOutput(tc.out)
			assert.Equal(t, tc.ok, ok)

			if tc.ok {
				assert.InDelta(t, tc.lat, lat, 1e-9)
				assert.InDelta(t, tc.lon, lon, 1e-9)
			}
		})
	}
}

func TestCompareExisting(t *testing.T) {
	record := &LocationRecord{City: "Paris", State: "Île-de-France", Country: "Frankreich"}

	tests := []struct {
		name    string
		out     string
		differs bool
	}{
		{"exact match", "Paris\nÎle-de-France\nFrankreich\n", false},
		{"city differs", "Lyon\nÎle-de-France\nFrankreich\n", true},
		{"state differs", "Paris\n\nFrankreich\n", true},
		{"country differs", "Paris\nÎle-de-France\n", true},
		{"all missing", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.differs, compareExisting(tc.out, record))
		})
	}

	t.Run("empty candidate equals empty output", func(t *testing.T) {
		assert.False(t, compareExisting("", &LocationRecord{}),
			"absent and empty must compare equal")
	})
}

func TestWriteArgs(t *testing.T) {
	t.Run("full record fans out to legacy and modern tags", func(t *testing.T) {
		args := writeArgs(&LocationRecord{
			Country:     "Frankreich",
			CountryCode: "fr",
			State:       "Île-de-France",
			City:        "Paris",
			Suburb:      "Gros-Caillou",
			Street:      "Avenue Gustave Eiffel",
			HouseNumber: "5",
			Postcode:    "75007",
		})

		assert.Contains(t, args, "-IPTC:Country-PrimaryLocationName=Frankreich")
		assert.Contains(t, args, "-XMP:Country=Frankreich")
		assert.Contains(t, args, "-XMP-iptcExt:LocationShownCountryName=Frankreich")
		assert.Contains(t, args, "-IPTC:Country-PrimaryLocationCode=FR")
		assert.Contains(t, args, "-XMP:CountryCode=FR")
		assert.Contains(t, args, "-IPTC:City=Paris")
		assert.Contains(t, args, "-XMP-photoshop:City=Paris")
		assert.Contains(t, args, "-IPTC:Sub-location=Gros-Caillou")
		assert.Contains(t, args, "-XMP-iptcCore:Location=Avenue Gustave Eiffel 5")
		assert.Contains(t, args, "-XMP-photoshop:PostalCode=75007")
	})

	t.Run("name stands in for a missing city", func(t *testing.T) {
		args := writeArgs(&LocationRecord{Name: "Eiffelturm"})
		assert.Contains(t, args, "-XMP-iptcExt:LocationShownCity=Eiffelturm")
	})

	t.Run("name is ignored when a city exists", func(t *testing.T) {
		args := writeArgs(&LocationRecord{Name: "Eiffelturm", City: "Paris"})
		assert.NotContains(t, args, "-XMP-iptcExt:LocationShownCity=Eiffelturm")
	})

	t.Run("empty record produces no field args", func(t *testing.T) {
		assert.Empty(t, writeArgs(&LocationRecord{}))
	})
}

// stubTool writes an executable shell script standing in for exiftool.
func stubTool(t *testing.T, script string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "exiftool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))

	return path
}

func TestExifTool_ReadGPS(t *testing.T) {
	imgDir := t.TempDir()
	img := filepath.Join(imgDir, "photo.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	t.Run("numeric coordinates", func(t *testing.T) {
		tool := NewExifTool(stubTool(t,
			`printf 'GPS Latitude                    : 48.8583701\nGPS Longitude                   : 2.2944813\n'`,
		), nil)

		lat, lon, ok := tool.ReadGPS(context.Background(), img)
		require.True(t, ok)
		assert.InDelta(t, 48.8583701, lat, 1e-9)
		assert.InDelta(t, 2.2944813, lon, 1e-9)
	})

	t.Run("no gps tags", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `exit 0`), nil)

		_, _, ok := tool.ReadGPS(context.Background(), img)
		assert.False(t, ok)
	})

	t.Run("tool exits non-zero", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `exit 1`), nil)

		_, _, ok := tool.ReadGPS(context.Background(), img)
		assert.False(t, ok)
	})

	t.Run("tool missing", func(t *testing.T) {
		tool := NewExifTool(filepath.Join(t.TempDir(), "missing"), nil)

		_, _, ok := tool.ReadGPS(context.Background(), img)
		assert.False(t, ok)
	})

	t.Run("newer sidecar wins", func(t *testing.T) {
		dir := t.TempDir()
		image := filepath.Join(dir, "photo.jpg")
		sidecar := SidecarPath(image)
		require.NoError(t, os.WriteFile(image, []byte("jpeg"), 0o600))
		require.NoError(t, os.WriteFile(sidecar, []byte("xmp"), 0o600))

		past := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(image, past, past))

		// the stub echoes the file it was asked to read as the latitude
		// line, so the assertion can tell image and sidecar apart
		tool := NewExifTool(stubTool(t, `
for arg in "$@"; do last="$arg"; done
case "$last" in
  *.xmp) printf 'GPS Latitude : 1\nGPS Longitude : 1\n' ;;
  *)     printf 'GPS Latitude : 2\nGPS Longitude : 2\n' ;;
esac`), nil)

		lat, _, ok := tool.ReadGPS(context.Background(), image)
		require.True(t, ok)
		assert.Equal(t, 1.0, lat, "sidecar should have been read")
	})

	t.Run("stale sidecar is ignored", func(t *testing.T) {
		dir := t.TempDir()
		image := filepath.Join(dir, "photo.jpg")
		sidecar := SidecarPath(image)
		require.NoError(t, os.WriteFile(sidecar, []byte("xmp"), 0o600))
		require.NoError(t, os.WriteFile(image, []byte("jpeg"), 0o600))

		past := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(sidecar, past, past))

		tool := NewExifTool(stubTool(t, `
for arg in "$@"; do last="$arg"; done
case "$last" in
  *.xmp) printf 'GPS Latitude : 1\nGPS Longitude : 1\n' ;;
  *)     printf 'GPS Latitude : 2\nGPS Longitude : 2\n' ;;
esac`), nil)

		lat, _, ok := tool.ReadGPS(context.Background(), image)
		require.True(t, ok)
		assert.Equal(t, 2.0, lat, "image should have been read")
	})
}

func TestExifTool_HasExistingLocation(t *testing.T) {
	img := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	t.Run("city present", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `printf 'Paris\n'`), nil)
		assert.True(t, tool.HasExistingLocation(context.Background(), img))
	})

	t.Run("no output", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `exit 0`), nil)
		assert.False(t, tool.HasExistingLocation(context.Background(), img))
	})

	t.Run("whitespace only", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `printf '  \n'`), nil)
		assert.False(t, tool.HasExistingLocation(context.Background(), img))
	})

	t.Run("tool missing means untagged", func(t *testing.T) {
		tool := NewExifTool(filepath.Join(t.TempDir(), "missing"), nil)
		assert.False(t, tool.HasExistingLocation(context.Background(), img))
	})
}

func TestExifTool_Differs(t *testing.T) {
	img := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

	record := &LocationRecord{City: "Paris", State: "Île-de-France", Country: "Frankreich"}

	t.Run("match means no write", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `printf 'Paris\nÎle-de-France\nFrankreich\n'`), nil)
		assert.False(t, tool.Differs(context.Background(), img, record))
	})

	t.Run("mismatch means write", func(t *testing.T) {
		tool := NewExifTool(stubTool(t, `printf 'Lyon\n'`), nil)
		assert.True(t, tool.Differs(context.Background(), img, record))
	})

	t.Run("read failure fails open toward writing", func(t *testing.T) {
		tool := NewExifTool(filepath.Join(t.TempDir(), "missing"), nil)
		assert.True(t, tool.Differs(context.Background(), img, record))
	})
}

func TestExifTool_Write(t *testing.T) {
	record := &LocationRecord{City: "Paris", Country: "Frankreich"}

	t.Run("success", func(t *testing.T) {
		img := filepath.Join(t.TempDir(), "photo.jpg")
		require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

		var lines []string
		tool := NewExifTool(stubTool(t, `exit 0`), func(format string, args ...any) {
			lines = append(lines, format)
		})

		assert.True(t, tool.Write(context.Background(), img, record))
		assert.Contains(t, lines, "  metadata written")
	})

	t.Run("failure is contained", func(t *testing.T) {
		img := filepath.Join(t.TempDir(), "photo.jpg")
		require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))

		tool := NewExifTool(stubTool(t, `exit 1`), nil)
		assert.False(t, tool.Write(context.Background(), img, record))
	})

	t.Run("sidecar is mirrored", func(t *testing.T) {
		dir := t.TempDir()
		img := filepath.Join(dir, "photo.jpg")
		require.NoError(t, os.WriteFile(img, []byte("jpeg"), 0o600))
		require.NoError(t, os.WriteFile(SidecarPath(img), []byte("xmp"), 0o600))

		// record every target file the stub is invoked on
		invocations := filepath.Join(dir, "invocations")
		tool := NewExifTool(stubTool(t, `
for arg in "$@"; do last="$arg"; done
echo "$last" >> `+invocations), nil)

		assert.True(t, tool.Write(context.Background(), img, record))

		data, err := os.ReadFile(invocations)
		require.NoError(t, err)
		assert.Contains(t, string(data), img+"\n")
		assert.Contains(t, string(data), SidecarPath(img)+"\n")
	})
}
