// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

import "testing"

func TestLatestVisit(t *testing.T) {
	tests := []struct {
		name   string
		visits []Visit
		want   VisitStatus
		end    int64
	}{
		{"no visits", nil, StatusNotVisited, 0},
		{"single", []Visit{{Status: StatusHome, End: 10}}, StatusHome, 10},
		{"greatest end wins", []Visit{{Status: StatusHome, End: 30}, {Status: StatusNotHome, End: 20}}, StatusHome, 30},
		{"moved ignored", []Visit{{Status: StatusNotInterested, End: 5}, {Status: StatusMoved, End: 50}}, StatusNotInterested, 5},
		{"only moved", []Visit{{Status: StatusMoved, End: 50}}, StatusNotVisited, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LatestVisit(tt.visits)
			if got.Status != tt.want || got.End != tt.end {
				t.Errorf("LatestVisit() = {%v, %d}, want {%v, %d}", got.Status, got.End, tt.want, tt.end)
			}
		})
	}
}

func TestMarker_PinColor(t *testing.T) {
	tests := []struct {
		name   string
		marker Marker
		want   string
	}{
		{"unvisited", Marker{}, "#8b4513"},
		{"not home", Marker{Visits: []Visit{{Status: StatusNotHome, End: 1}}}, "yellow"},
		{"home", Marker{Visits: []Visit{{Status: StatusHome, End: 1}}}, "green"},
		{"not interested", Marker{Visits: []Visit{{Status: StatusNotInterested, End: 1}}}, "red"},
		{"units override", Marker{Units: []Unit{{Name: "1A"}}, Visits: []Visit{{Status: StatusHome, End: 1}}}, "cyan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.marker.PinColor(); got != tt.want {
				t.Errorf("PinColor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarker_PeopleCount(t *testing.T) {
	m := Marker{
		People: []Person{{ID: "a"}},
		Units:  []Unit{{Name: "1", People: []Person{{ID: "b"}, {ID: "c"}}}, {Name: "2"}},
	}
	if got := m.PeopleCount(); got != 3 {
		t.Errorf("PeopleCount() = %d, want 3", got)
	}
}

func TestVisitStatus_Label(t *testing.T) {
	if got := StatusNotVisited.Label(); got != "Haven't visited" {
		t.Errorf("Label() = %q", got)
	}
	if StatusNotVisited.Valid() || !StatusMoved.Valid() || VisitStatus(4).Valid() {
		t.Error("Valid() mismatch")
	}
}
