// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"time"

	"github.com/tomtom215/fieldsync/internal/models"
)

// EventType names a coordinator notification.
type EventType string

const (
	EventMarkers      EventType = "markers_updated"
	EventSyncError    EventType = "sync_error"
	EventConnectivity EventType = "connectivity"
	EventQueue        EventType = "queue_changed"
	EventReplay       EventType = "replay_complete"
	EventHistory      EventType = "history_updated"
	EventSettings     EventType = "settings_updated"
)

// Event is pushed to the rendering collaborator.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
	Time time.Time `json:"time"`
}

// Publisher receives coordinator events. Publish must not block.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(e Event) { f(e) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// MarkersData is the payload of EventMarkers.
type MarkersData struct {
	Count    int             `json:"count"`
	Sequence uint64          `json:"sequence"`
	Position models.Position `json:"position"`
}

// SyncErrorData is the payload of EventSyncError.
type SyncErrorData struct {
	Error string `json:"error"`
}

// QueueData is the payload of EventQueue and EventReplay.
type QueueData struct {
	Depth     int `json:"depth"`
	Delivered int `json:"delivered,omitempty"`
	Failed    int `json:"failed,omitempty"`
}
