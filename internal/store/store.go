// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package store is the in-memory record store: the markers of the current
// fetch scope plus the street-grouped projection used by list views.
//
// The store has a single writer (the canvass coordinator). Readers such as
// the local API take snapshots under a read lock. Snapshots share nested
// slices with the store, so writers never modify a slice in place: every
// edit swaps in a fresh copy. A fetch result replaces
// the whole marker set, and only if its sequence number is not lower than
// the last one applied.
package store

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/fieldsync/internal/address"
	"github.com/tomtom215/fieldsync/internal/models"
)

var (
	// ErrMarkerNotFound is returned when an address id is not in the store.
	ErrMarkerNotFound = errors.New("store: marker not found")

	// ErrUnitNotFound is returned when a unit name is not on the marker.
	ErrUnitNotFound = errors.New("store: unit not found")

	// ErrDuplicateUnit is returned when a unit with the same name exists.
	ErrDuplicateUnit = errors.New("store: unit already exists")
)

// StreetGroup is one street of the list projection.
type StreetGroup struct {
	Street  string          `json:"street"`
	Markers []models.Marker `json:"markers"`
}

// Store holds the markers of the current scope.
type Store struct {
	mu sync.RWMutex

	markers []models.Marker
	index   map[string]int
	streets []StreetGroup

	lastSeq      uint64
	lastFetch    time.Time
	lastPosition models.Position
}

// New returns an empty store.
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// Replace swaps in a fetch result tagged with seq. It returns false, and
// changes nothing, when a newer result has already been applied.
func (s *Store) Replace(seq uint64, pos models.Position, markers []models.Marker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.lastSeq {
		return false
	}
	s.lastSeq = seq
	s.lastFetch = time.Now()
	s.lastPosition = pos
	s.markers = markers
	s.reindexLocked()
	return true
}

// LastSequence returns the sequence number of the applied fetch.
func (s *Store) LastSequence() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq
}

// LastFetch returns when and where the current marker set was fetched.
func (s *Store) LastFetch() (time.Time, models.Position) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch, s.lastPosition
}

// Len returns the number of markers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markers)
}

// Markers returns a copy of the marker slice. Nested slices are shared and
// must not be modified by the caller; the store only ever replaces them.
func (s *Store) Markers() []models.Marker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Marker, len(s.markers))
	copy(out, s.markers)
	return out
}

// Marker returns the marker with the given address id.
func (s *Store) Marker(id string) (models.Marker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Marker{}, false
	}
	return s.markers[i], true
}

// Streets returns the street-grouped projection.
func (s *Store) Streets() []StreetGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]StreetGroup, len(s.streets))
	copy(out, s.streets)
	return out
}

// Resolve runs duplicate detection for c against the current markers.
func (s *Store) Resolve(c address.Candidate) (m models.Marker, created bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, _, created = address.Resolve(s.markers, c)
	return m, created
}

// AddMarker appends a locally created marker. A marker whose id is already
// present is left as is.
func (s *Store) AddMarker(m models.Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[m.Address.ID]; ok {
		return
	}
	s.markers = append(s.markers, m)
	s.reindexLocked()
}

// AddUnit appends an empty unit to the marker.
func (s *Store) AddUnit(addressID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.regroupLocked()
	m, err := s.markerLocked(addressID)
	if err != nil {
		return err
	}
	if address.HasUnit(m, name) {
		return fmt.Errorf("%w: %s", ErrDuplicateUnit, name)
	}
	m.Units = append(slices.Clip(m.Units), models.Unit{Name: name, People: []models.Person{}})
	return nil
}

// AppendVisit records v on the marker, or on its unit when unit is set.
func (s *Store) AppendVisit(addressID, unit string, v models.Visit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.regroupLocked()
	m, err := s.markerLocked(addressID)
	if err != nil {
		return err
	}
	if unit == "" {
		m.Visits = append(slices.Clip(m.Visits), v)
		return nil
	}
	i, err := unitIndex(m, unit)
	if err != nil {
		return err
	}
	units := slices.Clone(m.Units)
	units[i].Visits = append(slices.Clip(units[i].Visits), v)
	m.Units = units
	return nil
}

// AddPerson adds p to the marker, or to its unit when unit is set.
func (s *Store) AddPerson(addressID, unit string, p models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.regroupLocked()
	m, err := s.markerLocked(addressID)
	if err != nil {
		return err
	}
	if unit == "" {
		m.People = append(slices.Clip(m.People), p)
		return nil
	}
	i, err := unitIndex(m, unit)
	if err != nil {
		return err
	}
	units := slices.Clone(m.Units)
	units[i].People = append(slices.Clip(units[i].People), p)
	m.Units = units
	return nil
}

func (s *Store) markerLocked(id string) (*models.Marker, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	return &s.markers[i], nil
}

func unitIndex(m *models.Marker, name string) (int, error) {
	for i := range m.Units {
		if strings.EqualFold(m.Units[i].Name, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnitNotFound, name)
}

func (s *Store) reindexLocked() {
	s.index = make(map[string]int, len(s.markers))
	for i := range s.markers {
		if _, dup := s.index[s.markers[i].Address.ID]; !dup {
			s.index[s.markers[i].Address.ID] = i
		}
	}
	s.regroupLocked()
}

func (s *Store) regroupLocked() {
	s.streets = GroupByStreet(s.markers)
}

// GroupByStreet groups markers by street name in first-seen order, then
// sorts each group by house number ascending. Markers without a house
// number follow the numbered ones. Ties keep their input order.
func GroupByStreet(markers []models.Marker) []StreetGroup {
	var groups []StreetGroup
	pos := make(map[string]int)
	for _, m := range markers {
		name := address.StreetName(m.Address.Street)
		i, ok := pos[name]
		if !ok {
			i = len(groups)
			pos[name] = i
			groups = append(groups, StreetGroup{Street: name})
		}
		groups[i].Markers = append(groups[i].Markers, m)
	}
	for _, g := range groups {
		sort.SliceStable(g.Markers, func(a, b int) bool {
			na, oka := address.HouseNumber(g.Markers[a].Address.Street)
			nb, okb := address.HouseNumber(g.Markers[b].Address.Street)
			if oka != okb {
				return oka
			}
			return na < nb
		})
	}
	return groups
}
