// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

import "fmt"

// VisitStatus is the outcome of a knock.
type VisitStatus int

const (
	StatusNotVisited    VisitStatus = -1
	StatusNotHome       VisitStatus = 0
	StatusHome          VisitStatus = 1
	StatusNotInterested VisitStatus = 2
	StatusMoved         VisitStatus = 3
)

// Valid reports whether s may be sent to the server.
func (s VisitStatus) Valid() bool {
	return s >= StatusNotHome && s <= StatusMoved
}

// Label is the human readable status.
func (s VisitStatus) Label() string {
	switch s {
	case StatusNotHome:
		return "Not home"
	case StatusHome:
		return "Home"
	case StatusNotInterested:
		return "Not interested"
	case StatusMoved:
		return "Moved"
	default:
		return "Haven't visited"
	}
}

// PinColor maps a latest-visit status to a pin color.
func (s VisitStatus) PinColor() string {
	switch s {
	case StatusNotHome:
		return "yellow"
	case StatusHome:
		return "green"
	case StatusNotInterested:
		return "red"
	default:
		return "#8b4513"
	}
}

func (s VisitStatus) String() string {
	return fmt.Sprintf("%d(%s)", int(s), s.Label())
}

// Attr is one answered form attribute.
type Attr struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Visit is an immutable interaction record. Start and End are epoch
// milliseconds.
type Visit struct {
	Status    VisitStatus `json:"status"`
	Start     int64       `json:"start"`
	End       int64       `json:"end"`
	Latitude  float64     `json:"latitude"`
	Longitude float64     `json:"longitude"`
	PersonID  string      `json:"personId,omitempty"`
	Unit      string      `json:"unit,omitempty"`
	Attrs     []Attr      `json:"attrs,omitempty"`
}

// LatestVisit returns the visit with the greatest End that is not a move.
// With no such visit it returns a zero visit with StatusNotVisited.
func LatestVisit(visits []Visit) Visit {
	latest := Visit{Status: StatusNotVisited}
	for _, v := range visits {
		if v.Status != StatusMoved && v.End > latest.End {
			latest = v
		}
	}
	return latest
}
