// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/validation"
)

const maxBodySize = 1 << 20

// PositionRequest is the body of the position, region, refresh, suggest
// and turf selection endpoints.
type PositionRequest struct {
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
}

// Position converts the request.
func (p PositionRequest) Position() models.Position {
	return models.Position{Latitude: p.Latitude, Longitude: p.Longitude}
}

// TurfResponse is a turf with its outer rings as [lon, lat] pairs.
type TurfResponse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Rings [][][2]float64 `json:"rings"`
}

// RefreshResponse reports the sequence of the fetch that was started.
type RefreshResponse struct {
	Sequence  uint64 `json:"sequence"`
	Coalesced bool   `json:"coalesced"`
}

// DisclosureResponse reports whether the disclosure was dismissed.
type DisclosureResponse struct {
	Accepted bool `json:"accepted"`
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when allowEmpty is set.
func decodeBody(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

// decodePosition reads and validates a PositionRequest.
func decodePosition(r *http.Request) (models.Position, error) {
	var req PositionRequest
	if err := decodeBody(r, &req, false); err != nil {
		return models.Position{}, err
	}
	if err := validation.ValidateStruct(&req); err != nil {
		return models.Position{}, err
	}
	return req.Position(), nil
}
