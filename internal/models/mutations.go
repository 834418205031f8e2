// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

// Remote endpoints, relative to the service base URL.
const (
	EndpointAddLocation  = "/address/add/location"
	EndpointAddUnit      = "/address/add/unit"
	EndpointVisitAdd     = "/people/visit/add"
	EndpointVisitUpdate  = "/people/visit/update"
	EndpointByPosition   = "/people/get/byposition"
	EndpointVisitHistory = "/volunteer/visit/history"
)

// AddressInput is the body of an add-location mutation.
type AddressInput struct {
	DeviceID  string  `json:"deviceId"`
	FormID    string  `json:"formId"`
	Timestamp int64   `json:"timestamp"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Street    string  `json:"street"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Zip       string  `json:"zip"`
}

// UnitInput is the body of an add-unit mutation.
type UnitInput struct {
	DeviceID  string  `json:"deviceId"`
	FormID    string  `json:"formId"`
	Timestamp int64   `json:"timestamp"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Unit      string  `json:"unit"`
	AddressID string  `json:"addressId"`
}

// VisitInput is the body of a visit add or update.
type VisitInput struct {
	DeviceID  string      `json:"deviceId"`
	AddressID string      `json:"addressId"`
	FormID    string      `json:"formId"`
	Status    VisitStatus `json:"status"`
	Start     int64       `json:"start"`
	End       int64       `json:"end"`
	Longitude float64     `json:"longitude"`
	Latitude  float64     `json:"latitude"`
	PersonID  string      `json:"personId,omitempty"`
	Unit      string      `json:"unit,omitempty"`
	Attrs     []Attr      `json:"attrs,omitempty"`
}

// Visit converts the input into the locally recorded visit.
func (in *VisitInput) Visit() Visit {
	return Visit{
		Status:    in.Status,
		Start:     in.Start,
		End:       in.End,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		PersonID:  in.PersonID,
		Unit:      in.Unit,
		Attrs:     in.Attrs,
	}
}

// FetchRequest is the body of a by-position query.
type FetchRequest struct {
	FormID        string   `json:"formId"`
	Longitude     float64  `json:"longitude"`
	Latitude      float64  `json:"latitude"`
	Limit         int      `json:"limit"`
	FilterVisited string   `json:"filter_visited,omitempty"`
	Filters       []string `json:"filters,omitempty"`
}
