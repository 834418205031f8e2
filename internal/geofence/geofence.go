// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package geofence answers "which turf contains this point".
//
// Containment uses even-odd ray casting per ring. A polygon contains a point
// when its outer ring does and none of its holes do; a boundary made of
// several polygons contains a point when any of them does. Coordinates are
// planar longitude/latitude, which is accurate enough at turf scale.
package geofence

import "github.com/tomtom215/fieldsync/internal/models"

// Point is a longitude/latitude pair, in GeoJSON axis order.
type Point struct {
	Lon float64
	Lat float64
}

// FromPosition converts a models.Position.
func FromPosition(p models.Position) Point {
	return Point{Lon: p.Longitude, Lat: p.Latitude}
}

// Ring is a closed or open sequence of vertices. The closing vertex is optional.
type Ring []Point

// Polygon is an outer ring followed by zero or more holes.
type Polygon []Ring

// Boundary is a multi-polygon.
type Boundary []Polygon

// Turf is a named boundary.
type Turf struct {
	ID       string
	Name     string
	Boundary Boundary
}

// PointInRing reports whether p lies inside r by even-odd ray casting.
func PointInRing(p Point, r Ring) bool {
	n := len(r)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			x := (b.Lon-a.Lon)*(p.Lat-a.Lat)/(b.Lat-a.Lat) + a.Lon
			if p.Lon < x {
				inside = !inside
			}
		}
	}
	return inside
}

// PointInPolygon reports whether p is inside the outer ring and outside
// every hole.
func PointInPolygon(p Point, poly Polygon) bool {
	if len(poly) == 0 || !PointInRing(p, poly[0]) {
		return false
	}
	for _, hole := range poly[1:] {
		if PointInRing(p, hole) {
			return false
		}
	}
	return true
}

// PointInBoundary reports whether any polygon of b contains p.
func PointInBoundary(p Point, b Boundary) bool {
	for _, poly := range b {
		if PointInPolygon(p, poly) {
			return true
		}
	}
	return false
}

// SelectActiveBoundary returns the first turf, in input order, that contains p.
func SelectActiveBoundary(p Point, turfs []Turf) (Turf, bool) {
	for _, t := range turfs {
		if PointInBoundary(p, t.Boundary) {
			return t, true
		}
	}
	return Turf{}, false
}

// Allowed reports whether new addresses may be created at p. An empty turf
// set places no restriction.
func Allowed(p Point, turfs []Turf) bool {
	if len(turfs) == 0 {
		return true
	}
	_, ok := SelectActiveBoundary(p, turfs)
	return ok
}

// OuterRings flattens a turf into its outer rings, which is what a map
// overlay draws.
func OuterRings(t Turf) []Ring {
	out := make([]Ring, 0, len(t.Boundary))
	for _, poly := range t.Boundary {
		if len(poly) > 0 {
			out = append(out, poly[0])
		}
	}
	return out
}
