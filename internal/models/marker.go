// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

// Position is a WGS84 coordinate.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// IsZero reports whether no fix has been obtained yet.
func (p Position) IsZero() bool {
	return p.Latitude == 0 && p.Longitude == 0
}

// Address is the location part of a marker. ID is the identity hash of the
// normalized street, city, state and 5-digit zip.
type Address struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Street    string  `json:"street"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Zip       string  `json:"zip"`
}

// Position returns the address coordinate.
func (a Address) Position() Position {
	return Position{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Marker is an address together with everything recorded at it.
type Marker struct {
	Address Address  `json:"address"`
	Units   []Unit   `json:"units"`
	People  []Person `json:"people"`
	Visits  []Visit  `json:"visits,omitempty"`
}

// Unit is a named sub-address (apartment, suite) of a marker.
type Unit struct {
	Name   string   `json:"name"`
	People []Person `json:"people"`
	Visits []Visit  `json:"visits,omitempty"`
}

// Person is an occupant. New stays true until the server has acknowledged
// the person through a visit add.
type Person struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	New    bool    `json:"new,omitempty"`
	Visits []Visit `json:"visits,omitempty"`
}

// PinColor returns the map pin color for the marker.
func (m *Marker) PinColor() string {
	if len(m.Units) > 0 {
		return "cyan"
	}
	return LatestVisit(m.Visits).Status.PinColor()
}

// PeopleCount counts occupants of the marker and all of its units.
func (m *Marker) PeopleCount() int {
	n := len(m.People)
	for _, u := range m.Units {
		n += len(u.People)
	}
	return n
}
