// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/tomtom215/fieldsync/internal/address"
	"github.com/tomtom215/fieldsync/internal/models"
)

func marker(id, street string) models.Marker {
	return models.Marker{Address: models.Address{ID: id, Street: street, City: "Springfield", State: "IL", Zip: "62704"}}
}

func TestReplace_DropsStaleSequence(t *testing.T) {
	s := New()
	f1 := []models.Marker{marker("f1", "1 Old Rd")}
	f2 := []models.Marker{marker("f2a", "2 New Rd"), marker("f2b", "4 New Rd")}

	// F2 (seq 2) resolves first, then F1 (seq 1) arrives late.
	if !s.Replace(2, models.Position{Latitude: 2}, f2) {
		t.Fatal("Replace(seq 2) should apply")
	}
	if s.Replace(1, models.Position{Latitude: 1}, f1) {
		t.Fatal("Replace(seq 1) after seq 2 should be dropped")
	}

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want F2's 2 markers", s.Len())
	}
	if _, ok := s.Marker("f1"); ok {
		t.Error("stale marker f1 leaked into the store")
	}
	if s.LastSequence() != 2 {
		t.Errorf("LastSequence() = %d, want 2", s.LastSequence())
	}
	if _, pos := s.LastFetch(); pos.Latitude != 2 {
		t.Errorf("LastFetch position = %+v, want F2's", pos)
	}
}

func TestReplace_ReplacesNotMerges(t *testing.T) {
	s := New()
	s.Replace(1, models.Position{}, []models.Marker{marker("a", "1 A St"), marker("b", "2 A St")})
	s.Replace(2, models.Position{}, []models.Marker{marker("c", "3 A St")})

	if s.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", s.Len())
	}
	if _, ok := s.Marker("a"); ok {
		t.Error("marker from previous scope survived replace")
	}
}

func TestGroupByStreet_NumericOrder(t *testing.T) {
	markers := []models.Marker{
		marker("a", "100 Main St"),
		marker("b", "7 Oak Ave"),
		marker("c", "20 Main St"),
		marker("d", "Main St"),
		marker("e", "3 Main St"),
	}

	groups := GroupByStreet(markers)
	if len(groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(groups))
	}
	if groups[0].Street != "Main St" || groups[1].Street != "Oak Ave" {
		t.Errorf("group order = %q, %q, want first-seen order", groups[0].Street, groups[1].Street)
	}

	var got []string
	for _, m := range groups[0].Markers {
		got = append(got, m.Address.Street)
	}
	want := []string{"3 Main St", "20 Main St", "100 Main St", "Main St"}
	if len(got) != len(want) {
		t.Fatalf("Main St markers = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Main St markers = %v, want %v", got, want)
			break
		}
	}
}

func TestGroupByStreet_TiesKeepInputOrder(t *testing.T) {
	groups := GroupByStreet([]models.Marker{marker("first", "5 Elm"), marker("second", "5 Elm")})
	if groups[0].Markers[0].Address.ID != "first" {
		t.Error("equal house numbers should keep input order")
	}
}

func TestAddMarker_AndResolve(t *testing.T) {
	s := New()
	s.Replace(1, models.Position{}, []models.Marker{marker("a", "100 Main St")})

	c := address.Candidate{Street: "100 MAIN ST", City: "springfield", State: "il", Zip: "62704"}
	m, created := s.Resolve(c)
	if created || m.Address.ID != "a" {
		t.Fatalf("Resolve() = %s, %v, want existing a", m.Address.ID, created)
	}

	c.Street = "102 Main St"
	m, created = s.Resolve(c)
	if !created {
		t.Fatal("Resolve() should create for a new street number")
	}
	s.AddMarker(m)
	s.AddMarker(m)
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after adding once (second add is a no-op)", s.Len())
	}
	if g := s.Streets(); len(g) != 1 || len(g[0].Markers) != 2 {
		t.Errorf("Streets() = %+v", g)
	}
}

func TestAddUnit(t *testing.T) {
	s := New()
	s.Replace(1, models.Position{}, []models.Marker{marker("a", "1 A St")})

	if err := s.AddUnit("a", "Apt 1"); err != nil {
		t.Fatalf("AddUnit() error = %v", err)
	}
	if err := s.AddUnit("a", "apt 1"); !errors.Is(err, ErrDuplicateUnit) {
		t.Errorf("AddUnit(dup) = %v, want ErrDuplicateUnit", err)
	}
	if err := s.AddUnit("missing", "x"); !errors.Is(err, ErrMarkerNotFound) {
		t.Errorf("AddUnit(missing) = %v, want ErrMarkerNotFound", err)
	}
	m, _ := s.Marker("a")
	if len(m.Units) != 1 || m.PinColor() != "cyan" {
		t.Errorf("marker units = %+v", m.Units)
	}
}

func TestAppendVisit_AndAddPerson(t *testing.T) {
	s := New()
	s.Replace(1, models.Position{}, []models.Marker{marker("a", "1 A St")})
	_ = s.AddUnit("a", "2B")

	if err := s.AppendVisit("a", "", models.Visit{Status: models.StatusNotHome, End: 10}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendVisit("a", "2b", models.Visit{Status: models.StatusHome, End: 20}); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendVisit("a", "9Z", models.Visit{}); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("AppendVisit(unknown unit) = %v, want ErrUnitNotFound", err)
	}
	if err := s.AddPerson("a", "2B", models.Person{ID: "p1", New: true}); err != nil {
		t.Fatal(err)
	}

	m, _ := s.Marker("a")
	if models.LatestVisit(m.Visits).Status != models.StatusNotHome {
		t.Errorf("marker visits = %+v", m.Visits)
	}
	if len(m.Units[0].Visits) != 1 || len(m.Units[0].People) != 1 {
		t.Errorf("unit = %+v", m.Units[0])
	}

	grouped := s.Streets()[0].Markers[0]
	if len(grouped.Visits) != 1 {
		t.Error("street projection should reflect optimistic visits")
	}
}

func TestEdits_LeaveSnapshotsUntouched(t *testing.T) {
	s := New()
	m := marker("a", "1 A St")
	m.Units = make([]models.Unit, 1, 4)
	m.Units[0] = models.Unit{Name: "2B", Visits: make([]models.Visit, 0, 4), People: make([]models.Person, 0, 4)}
	s.Replace(1, models.Position{}, []models.Marker{m})

	before := s.Markers()
	one, _ := s.Marker("a")
	grouped := s.Streets()

	_ = s.AppendVisit("a", "2B", models.Visit{Status: models.StatusHome})
	_ = s.AddPerson("a", "2B", models.Person{ID: "p1"})
	_ = s.AddUnit("a", "3C")

	for name, snap := range map[string]models.Marker{
		"Markers": before[0],
		"Marker":  one,
		"Streets": grouped[0].Markers[0],
	} {
		if len(snap.Units) != 1 {
			t.Errorf("%s snapshot units = %d, want 1", name, len(snap.Units))
			continue
		}
		if u := snap.Units[0]; len(u.Visits) != 0 || len(u.People) != 0 {
			t.Errorf("%s snapshot unit changed: %+v", name, u)
		}
	}

	now, _ := s.Marker("a")
	if len(now.Units) != 2 || len(now.Units[0].Visits) != 1 || len(now.Units[0].People) != 1 {
		t.Errorf("store marker = %+v", now)
	}
}

// Run with -race: readers walk unit visits while the writer appends.
func TestEdits_ConcurrentReaders(t *testing.T) {
	s := New()
	s.Replace(1, models.Position{}, []models.Marker{marker("a", "1 A St")})
	_ = s.AddUnit("a", "1A")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, m := range s.Markers() {
					for _, u := range m.Units {
						_ = models.LatestVisit(u.Visits)
					}
				}
				for _, g := range s.Streets() {
					for _, m := range g.Markers {
						_ = len(m.Units)
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if err := s.AppendVisit("a", "1A", models.Visit{Status: models.StatusNotHome, End: int64(i)}); err != nil {
			t.Fatal(err)
		}
		if err := s.AddPerson("a", "1A", models.Person{ID: "p"}); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()

	m, _ := s.Marker("a")
	if len(m.Units[0].Visits) != 200 {
		t.Errorf("unit visits = %d, want 200", len(m.Units[0].Visits))
	}
}
