// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"context"
	"time"

	"github.com/tomtom215/fieldsync/internal/connectivity"
	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/retry"
)

// Status is a point-in-time view of the sync core.
type Status struct {
	Connectivity connectivity.State `json:"connectivity"`
	Online       bool               `json:"online"`
	Fetching     bool               `json:"fetching"`
	Markers      int                `json:"markers"`
	Sequence     uint64             `json:"sequence"`
	LastFetch    time.Time          `json:"last_fetch,omitempty"`
	LastPosition models.Position    `json:"last_fetch_position"`
	Position     models.Position    `json:"position"`
	MapCenter    models.Position    `json:"map_center"`
	QueueDepth   int                `json:"queue_depth"`
	Replay       string             `json:"replay_state"`
	CheckHistory bool               `json:"check_history"`
	SyncError    string             `json:"sync_error,omitempty"`
	ActiveTurf   string             `json:"active_turf,omitempty"`
	Settings     Settings           `json:"settings"`
}

// Status returns the current state.
func (c *Coordinator) Status() Status {
	at, lastPos := c.store.LastFetch()
	st := Status{
		Connectivity: connectivity.None,
		Fetching:     c.fetching.Load(),
		Markers:      c.store.Len(),
		Sequence:     c.store.LastSequence(),
		LastFetch:    at,
		LastPosition: lastPos,
		QueueDepth:   c.queue.Len(),
		Replay:       c.queue.State().String(),
		CheckHistory: c.checkHist.Load(),
	}
	if c.monitor != nil {
		st.Connectivity = c.monitor.State()
		st.Online = st.Connectivity.Online()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	st.Position = c.myPos
	st.MapCenter = c.mapCenter
	st.SyncError = c.syncErr
	st.Settings = c.cur
	if c.turf != nil {
		st.ActiveTurf = c.turf.Name
	}
	return st
}

// Position returns the last device fix.
func (c *Coordinator) Position() models.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.myPos
}

// Settings returns the settings in effect.
func (c *Coordinator) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// Turfs returns the configured turfs.
func (c *Coordinator) Turfs() []geofence.Turf {
	return c.opts.Turfs
}

// Markers returns a copy of the loaded records.
func (c *Coordinator) Markers() []models.Marker {
	return c.store.Markers()
}

// Marker returns the record with the given address id.
func (c *Coordinator) Marker(id string) (models.Marker, bool) {
	return c.store.Marker(id)
}

// PendingMutations returns the undelivered mutations in replay order.
func (c *Coordinator) PendingMutations() []retry.Entry {
	return c.queue.Pending()
}

// DisclosureAccepted reports whether the data disclosure was dismissed.
func (c *Coordinator) DisclosureAccepted(ctx context.Context) bool {
	return c.settings.DisclosureAccepted(ctx)
}

// AcceptDisclosure records that the data disclosure was dismissed.
func (c *Coordinator) AcceptDisclosure(ctx context.Context) error {
	return c.settings.AcceptDisclosure(ctx)
}

// ListRow is one row of the marker list view.
type ListRow struct {
	AddressID   string `json:"addressId"`
	Street      string `json:"street"`
	PinColor    string `json:"pin_color"`
	LatestLabel string `json:"latest"`
	People      int    `json:"people"`
	Units       int    `json:"units"`
}

// ListSection is one street of the list view.
type ListSection struct {
	Street string    `json:"street"`
	Rows   []ListRow `json:"rows"`
}

// ListView returns the street-grouped list with pin color, latest visit
// label and people count per address.
func (c *Coordinator) ListView() []ListSection {
	groups := c.store.Streets()
	out := make([]ListSection, 0, len(groups))
	for _, g := range groups {
		sec := ListSection{Street: g.Street, Rows: make([]ListRow, 0, len(g.Markers))}
		for i := range g.Markers {
			m := &g.Markers[i]
			sec.Rows = append(sec.Rows, ListRow{
				AddressID:   m.Address.ID,
				Street:      m.Address.Street,
				PinColor:    m.PinColor(),
				LatestLabel: models.LatestVisit(m.Visits).Status.Label(),
				People:      m.PeopleCount(),
				Units:       len(m.Units),
			})
		}
		out = append(out, sec)
	}
	return out
}
