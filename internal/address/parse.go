// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package address

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/tomtom215/fieldsync/internal/models"
)

// ErrUnparseableGeocode is returned when a reverse-geocode result has too
// few components to yield street, city, state and country.
var ErrUnparseableGeocode = errors.New("address: geocode result has too few components")

// Geocoder turns a coordinate into a free-text address such as
// "100 Main St, Springfield, IL 62704, USA".
type Geocoder interface {
	ReverseGeocode(ctx context.Context, pos models.Position) (string, error)
}

// ParseGeocode splits a reverse-geocode string on ", ". Counting from the
// end: country, "STATE ZIP", city, street.
func ParseGeocode(text string, pos models.Position) (Candidate, error) {
	parts := strings.Split(strings.TrimSpace(text), ", ")
	if len(parts) < 4 {
		return Candidate{}, ErrUnparseableGeocode
	}
	n := len(parts)

	c := Candidate{
		Street:    strings.TrimSpace(parts[n-4]),
		City:      strings.TrimSpace(parts[n-3]),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
	}
	stateZip := strings.Fields(parts[n-2])
	if len(stateZip) > 0 {
		c.State = stateZip[0]
	}
	if len(stateZip) > 1 {
		c.Zip = stateZip[1]
	}
	return c, nil
}

var houseNumberPrefix = regexp.MustCompile(`\d+ `)

// StreetName strips the first "<digits> " run, so "100 Main St" and
// "20 Main St" share the group "Main St".
func StreetName(street string) string {
	loc := houseNumberPrefix.FindStringIndex(street)
	if loc == nil {
		return strings.TrimSpace(street)
	}
	return strings.TrimSpace(street[:loc[0]] + street[loc[1]:])
}

// HouseNumber parses the leading run of digits of street.
func HouseNumber(street string) (int, bool) {
	s := strings.TrimSpace(street)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
