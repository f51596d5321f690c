// Copyright 2026 The GeoTagger Authors
// SPDX-License-Identifier: Apache-2.0

// Package geotag implements reverse geocoding of image GPS metadata: a
// precision-bucketed result cache, a resolver backed by the Photon API,
// an exiftool adapter, and the sequential processing worker.
package geotag

import (
	"strings"
)

// LocationRecord is a resolved place description. All fields are optional;
// an empty string means unknown. The JSON keys match the on-disk cache
// format, so existing cache files keep working.
type LocationRecord struct {
	Country     string `json:"country"`
	CountryCode string `json:"countrycode"`
	State       string `json:"state"`
	County      string `json:"county"`
	City        string `json:"city"`
	Suburb      string `json:"suburb"`
	District    string `json:"district"`
	Street      string `json:"street"`
	HouseNumber string `json:"housenumber"`
	Postcode    string `json:"postcode"`
	Name        string `json:"name"`
	Locality    string `json:"locality"`
}

// SublocationName returns the suburb, falling back to the district.
func (r *LocationRecord) SublocationName() string {
	if r.Suburb != "" {
		return r.Suburb
	}

	return r.District
}

// StreetAddress returns the street joined with the house number, if any.
func (r *LocationRecord) StreetAddress() string {
	if r.Street == "" {
		return ""
	}

	if r.HouseNumber != "" {
		return r.Street + " " + r.HouseNumber
	}

	return r.Street
}

// Summary renders a one-line human readable description, most specific
// part first: street, postcode, sublocation, city, (county), state,
// country (CC).
func (r *LocationRecord) Summary() string {
	var parts []string

	add := func(s string) {
		if s != "" {
			parts = append(parts, s)
		}
	}

	add(r.StreetAddress())
	add(r.Postcode)
	add(r.SublocationName())
	add(r.City)

	if r.County != "" {
		add("(" + r.County + ")")
	}

	add(r.State)

	if r.Country != "" {
		country := r.Country
		if r.CountryCode != "" {
			country += " (" + strings.ToUpper(r.CountryCode) + ")"
		}

		add(country)
	}

	return strings.Join(parts, ", ")
}

// IsEmpty reports whether no field of the record is set.
func (r *LocationRecord) IsEmpty() bool {
	return *r == LocationRecord{}
}
