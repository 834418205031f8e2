// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package geofence

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

var (
	// ErrUnsupportedGeometry is returned for GeoJSON types that cannot bound an area.
	ErrUnsupportedGeometry = errors.New("geofence: unsupported geometry type")

	// ErrEmptyBoundary is returned when a geometry yields no polygons.
	ErrEmptyBoundary = errors.New("geofence: boundary has no polygons")
)

type geoJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometry    *geoJSON        `json:"geometry,omitempty"`
	Geometries  []geoJSON       `json:"geometries,omitempty"`
	Features    []geoJSON       `json:"features,omitempty"`
}

// ParseBoundary decodes a GeoJSON Polygon, MultiPolygon, GeometryCollection,
// Feature or FeatureCollection into a Boundary.
func ParseBoundary(data []byte) (Boundary, error) {
	var g geoJSON
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	b, err := g.boundary()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, ErrEmptyBoundary
	}
	return b, nil
}

func (g *geoJSON) boundary() (Boundary, error) {
	switch g.Type {
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		poly, err := toPolygon(rings)
		if err != nil {
			return nil, err
		}
		return Boundary{poly}, nil

	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		b := make(Boundary, 0, len(polys))
		for _, rings := range polys {
			poly, err := toPolygon(rings)
			if err != nil {
				return nil, err
			}
			b = append(b, poly)
		}
		return b, nil

	case "Feature":
		if g.Geometry == nil {
			return nil, nil
		}
		return g.Geometry.boundary()

	case "FeatureCollection":
		return collect(g.Features)

	case "GeometryCollection":
		return collect(g.Geometries)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.Type)
	}
}

func collect(parts []geoJSON) (Boundary, error) {
	var b Boundary
	for i := range parts {
		sub, err := parts[i].boundary()
		if err != nil {
			return nil, err
		}
		b = append(b, sub...)
	}
	return b, nil
}

func toPolygon(rings [][][]float64) (Polygon, error) {
	poly := make(Polygon, 0, len(rings))
	for _, coords := range rings {
		ring := make(Ring, 0, len(coords))
		for _, c := range coords {
			if len(c) < 2 {
				return nil, fmt.Errorf("geofence: position needs 2 values, got %d", len(c))
			}
			ring = append(ring, Point{Lon: c[0], Lat: c[1]})
		}
		poly = append(poly, ring)
	}
	return poly, nil
}

// turfID accepts both numeric and string ids.
type turfID string

func (id *turfID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = turfID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("turf id must be a string or number: %w", err)
	}
	*id = turfID(n.String())
	return nil
}

// turfFile is one entry of a turf file: id, name and a GeoJSON geometry.
type turfFile struct {
	ID       turfID          `json:"id"`
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
}

// ParseTurfs decodes a JSON array of {id, name, geometry} objects.
func ParseTurfs(data []byte) ([]Turf, error) {
	var raw []turfFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode turfs: %w", err)
	}
	turfs := make([]Turf, 0, len(raw))
	for _, r := range raw {
		b, err := ParseBoundary(r.Geometry)
		if err != nil {
			return nil, fmt.Errorf("turf %s: %w", r.ID, err)
		}
		turfs = append(turfs, Turf{ID: string(r.ID), Name: r.Name, Boundary: b})
	}
	return turfs, nil
}

// LoadTurfs reads a turf file. An empty path yields no turfs.
func LoadTurfs(path string) ([]Turf, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read turf file: %w", err)
	}
	return ParseTurfs(data)
}
