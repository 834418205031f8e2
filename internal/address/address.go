// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package address decides whether an address about to be added already
// exists, and derives the identity key the server uses to reconcile
// addresses created independently on different devices.
//
// Two addresses are the same when their trimmed, lower-cased street, city and
// state match and the first five characters of their zip match. Missing
// components count as "". The identity is the hex MD5 of
// street‖city‖state‖zip5 after that normalization, so every device computes
// the same id for the same door.
package address

import (
	"crypto/md5" //nolint:gosec // identity key shared with the server, not a security boundary
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// Key is a normalized address tuple.
type Key struct {
	Street string
	City   string
	State  string
	Zip5   string
}

// Normalize builds the comparison key for an address.
func Normalize(street, city, state, zip string) Key {
	return Key{
		Street: fold(street),
		City:   fold(city),
		State:  fold(state),
		Zip5:   zip5(fold(zip)),
	}
}

// KeyOf normalizes a stored address.
func KeyOf(a models.Address) Key {
	return Normalize(a.Street, a.City, a.State, a.Zip)
}

// Identity returns the hex MD5 of the concatenated key.
func (k Key) Identity() string {
	sum := md5.Sum([]byte(k.Street + k.City + k.State + k.Zip5)) //nolint:gosec // see import
	return hex.EncodeToString(sum[:])
}

// Identity is shorthand for Normalize(...).Identity().
func Identity(street, city, state, zip string) string {
	return Normalize(street, city, state, zip).Identity()
}

// fold lower-cases with Unicode rules. A Caser is stateful, so one is built
// per call.
func fold(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

func zip5(zip string) string {
	r := []rune(zip)
	if len(r) > 5 {
		r = r[:5]
	}
	return string(r)
}

// Candidate is an address the user is about to confirm.
type Candidate struct {
	Street    string  `json:"street" validate:"nonblank,max=200"`
	City      string  `json:"city" validate:"nonblank,max=100"`
	State     string  `json:"state" validate:"nonblank,max=50"`
	Zip       string  `json:"zip" validate:"max=10"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Validate rejects malformed input with a *validation.RequestValidationError.
func (c *Candidate) Validate() error {
	return validation.ValidateStruct(c)
}

// Trimmed returns c with surrounding whitespace removed from every field.
func (c Candidate) Trimmed() Candidate {
	c.Street = strings.TrimSpace(c.Street)
	c.City = strings.TrimSpace(c.City)
	c.State = strings.TrimSpace(c.State)
	c.Zip = strings.TrimSpace(c.Zip)
	return c
}

// Key returns the normalized key of the candidate.
func (c *Candidate) Key() Key {
	return Normalize(c.Street, c.City, c.State, c.Zip)
}

// FindDuplicate returns the index of the first marker whose address matches
// key, or -1.
func FindDuplicate(markers []models.Marker, key Key) int {
	for i := range markers {
		if KeyOf(markers[i].Address) == key {
			return i
		}
	}
	return -1
}

// NewMarker synthesizes an unacknowledged marker for c.
func NewMarker(c Candidate) models.Marker {
	c = c.Trimmed()
	return models.Marker{
		Address: models.Address{
			ID:        c.Key().Identity(),
			Latitude:  c.Latitude,
			Longitude: c.Longitude,
			Street:    c.Street,
			City:      c.City,
			State:     c.State,
			Zip:       c.Zip,
		},
		Units:  []models.Unit{},
		People: []models.Person{},
	}
}

// Resolve returns the existing marker for c, or a new one. idx is the
// position of the existing marker and -1 when created is true.
func Resolve(markers []models.Marker, c Candidate) (m models.Marker, idx int, created bool) {
	if i := FindDuplicate(markers, c.Key()); i >= 0 {
		return markers[i], i, false
	}
	return NewMarker(c), -1, true
}

// HasUnit reports whether m already has a unit named name, ignoring case.
func HasUnit(m *models.Marker, name string) bool {
	want := fold(name)
	for _, u := range m.Units {
		if fold(u.Name) == want {
			return true
		}
	}
	return false
}
