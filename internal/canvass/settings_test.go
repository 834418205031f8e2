// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"context"
	"testing"

	"github.com/tomtom215/fieldsync/internal/kvstore"
	"github.com/tomtom215/fieldsync/internal/models"
)

func TestSettingsStore_Defaults(t *testing.T) {
	ctx := context.Background()

	plain := NewSettingsStore(kvstore.NewMemoryStore(), true, nil).Load(ctx)
	if plain.Limit != "100" || plain.FilterPins || !plain.ChillMode {
		t.Errorf("Load() without form filters = %+v", plain)
	}

	filtered := NewSettingsStore(kvstore.NewMemoryStore(), false, []string{"f1", "f2"}).Load(ctx)
	if !filtered.FilterPins || len(filtered.Filters) != 2 {
		t.Errorf("Load() with form filters = %+v", filtered)
	}
}

func TestSettingsStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := NewSettingsStore(kv, false, []string{"f1"})

	saved := s.Save(ctx, Settings{Limit: "", Filters: []string{}, ChillMode: true})
	if saved.Limit != "100" {
		t.Errorf("Save() limit = %q, want default", saved.Limit)
	}
	// explicitly empty filters are kept, not reseeded
	if saved.FilterPins || len(saved.Filters) != 0 {
		t.Errorf("Save() = %+v", saved)
	}

	raw, found, _ := kv.Get(ctx, kvstore.KeySettings)
	if !found || raw == "" {
		t.Fatal("settings not written")
	}
	if got := s.Load(ctx); !got.ChillMode || got.Limit != "100" {
		t.Errorf("Load() = %+v", got)
	}
}

func TestSettingsStore_CorruptBlobFallsBack(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	_ = kv.Set(ctx, kvstore.KeySettings, "{oops")

	if got := NewSettingsStore(kv, false, nil).Load(ctx); got.Limit != "100" {
		t.Errorf("Load() = %+v, want defaults", got)
	}
}

func TestSettingsStore_Disclosure(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := NewSettingsStore(kv, false, nil)

	if s.DisclosureAccepted(ctx) {
		t.Error("fresh store should not have the disclosure accepted")
	}
	if err := s.AcceptDisclosure(ctx); err != nil {
		t.Fatal(err)
	}
	if !s.DisclosureAccepted(ctx) {
		t.Error("DisclosureAccepted() = false after accepting")
	}
	if v, _, _ := kv.Get(ctx, kvstore.KeyDisclosure); v != "false" {
		t.Errorf("stored disclosure = %q", v)
	}
}

func TestSettings_FetchRequest(t *testing.T) {
	pos := models.Position{Latitude: 1, Longitude: 2}

	tests := []struct {
		name string
		s    Settings
		want models.FetchRequest
	}{
		{"defaults", Settings{}, models.FetchRequest{FormID: "f", Latitude: 1, Longitude: 2, Limit: 100}},
		{"bad limit", Settings{Limit: "lots"}, models.FetchRequest{FormID: "f", Latitude: 1, Longitude: 2, Limit: 100}},
		{"visited", Settings{Limit: "50", FilterVisited: true}, models.FetchRequest{FormID: "f", Latitude: 1, Longitude: 2, Limit: 50, FilterVisited: "home"}},
		{"filters off", Settings{Filters: []string{"x"}}, models.FetchRequest{FormID: "f", Latitude: 1, Longitude: 2, Limit: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.s.FetchRequest("f", pos, 100)
			if got.Limit != tt.want.Limit || got.FilterVisited != tt.want.FilterVisited || len(got.Filters) != len(tt.want.Filters) {
				t.Errorf("FetchRequest() = %+v, want %+v", got, tt.want)
			}
		})
	}

	on := Settings{FilterPins: true, Filters: []string{"x", "y"}}.FetchRequest("f", pos, 100)
	if len(on.Filters) != 2 {
		t.Errorf("filters with pins on = %v", on.Filters)
	}
}

func TestSettingsStore_ClearedFiltersSurviveReload(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	NewSettingsStore(kv, false, []string{"f1"}).Save(ctx, Settings{Filters: []string{}})

	got := NewSettingsStore(kv, false, []string{"f1"}).Load(ctx)
	if got.FilterPins || len(got.Filters) != 0 {
		t.Errorf("Load() = %+v, want filters left cleared", got)
	}
}
