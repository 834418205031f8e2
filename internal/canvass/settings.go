// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/kvstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
)

// defaultLimit is the fetch cap used when the settings carry none. It is a
// string because that is how the settings blob has always stored it.
const defaultLimit = "100"

// Settings are the volunteer's canvassing preferences.
type Settings struct {
	Limit         string   `json:"limit"`
	FilterPins    bool     `json:"filter_pins,omitempty"`
	FilterVisited bool     `json:"filter_visited,omitempty"`
	Filters       []string `json:"filters"`
	ChillMode     bool     `json:"chill_mode,omitempty"`
}

// FiltersActive reports whether a pin or visited filter hides markers.
// New addresses cannot be added while one is on.
func (s Settings) FiltersActive() bool {
	return s.FilterPins || s.FilterVisited
}

// FetchLimit parses Limit, falling back to def.
func (s Settings) FetchLimit(def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.Limit))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// FetchRequest builds the by-position query for pos.
func (s Settings) FetchRequest(formID string, pos models.Position, def int) models.FetchRequest {
	req := models.FetchRequest{
		FormID:    formID,
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
		Limit:     s.FetchLimit(def),
	}
	if s.FilterVisited {
		req.FilterVisited = "home"
	}
	if s.FilterPins && len(s.Filters) > 0 {
		req.Filters = s.Filters
	}
	return req
}

// SettingsStore persists Settings and the disclosure flag.
type SettingsStore struct {
	kv             kvstore.Store
	chillMode      bool
	defaultFilters []string
}

// NewSettingsStore returns a store whose fresh settings use chillMode and,
// when the form has default filters, start with pin filtering on.
func NewSettingsStore(kv kvstore.Store, chillMode bool, defaultFilters []string) *SettingsStore {
	return &SettingsStore{kv: kv, chillMode: chillMode, defaultFilters: defaultFilters}
}

// Load returns the stored settings with defaults filled in. Storage errors
// are logged and the defaults returned.
func (s *SettingsStore) Load(ctx context.Context) Settings {
	var out Settings
	raw, found, err := s.kv.Get(ctx, kvstore.KeySettings)
	switch {
	case err != nil:
		settingsWarning(ctx, "settings_load", err)
		out.ChillMode = s.chillMode
	case !found:
		out.ChillMode = s.chillMode
	default:
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			settingsWarning(ctx, "settings_decode", err)
			out = Settings{ChillMode: s.chillMode}
		}
	}
	return s.withDefaults(out)
}

// Save stores settings and returns them with defaults filled in. A storage
// failure is logged and the settings still apply for this run.
func (s *SettingsStore) Save(ctx context.Context, in Settings) Settings {
	out := s.withDefaults(in)
	raw, err := json.Marshal(out)
	if err != nil {
		settingsWarning(ctx, "settings_encode", err)
		return out
	}
	if err := s.kv.Set(ctx, kvstore.KeySettings, string(raw)); err != nil {
		settingsWarning(ctx, "settings_save", err)
	}
	return out
}

func (s *SettingsStore) withDefaults(in Settings) Settings {
	if strings.TrimSpace(in.Limit) == "" {
		in.Limit = defaultLimit
	}
	if len(s.defaultFilters) > 0 && in.Filters == nil {
		in.FilterPins = true
		in.Filters = append([]string(nil), s.defaultFilters...)
	}
	return in
}

// DisclosureAccepted reports whether the volunteer has dismissed the data
// disclosure. The slot holds "false" once the disclosure should no longer
// be shown.
func (s *SettingsStore) DisclosureAccepted(ctx context.Context) bool {
	v, found, err := s.kv.Get(ctx, kvstore.KeyDisclosure)
	if err != nil {
		settingsWarning(ctx, "disclosure_load", err)
		return false
	}
	return found && v == "false"
}

// AcceptDisclosure records that the disclosure was accepted.
func (s *SettingsStore) AcceptDisclosure(ctx context.Context) error {
	if err := s.kv.Set(ctx, kvstore.KeyDisclosure, "false"); err != nil {
		settingsWarning(ctx, "disclosure_save", err)
		return fmt.Errorf("save disclosure: %w", err)
	}
	return nil
}

func settingsWarning(ctx context.Context, op string, err error) {
	metrics.RecordDurabilityWarning(op)
	logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("Settings storage failed")
}
