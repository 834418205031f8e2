// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fieldsync/internal/address"
	"github.com/tomtom215/fieldsync/internal/canvass"
	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// Handler serves the routes over one coordinator.
type Handler struct {
	coord  *canvass.Coordinator
	events http.Handler
}

// NewHandler creates a handler.
func NewHandler(coord *canvass.Coordinator, events http.Handler) *Handler {
	return &Handler{coord: coord, events: events}
}

// bad writes a 400 for an undecodable body, or maps err otherwise.
func bad(rw *ResponseWriter, err error) {
	if validation.IsValidationError(err) {
		writeError(rw, err)
		return
	}
	rw.BadRequest("invalid request body: " + err.Error())
}

// HealthLive reports that the process serves requests and whether the
// coordinator loop runs.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if !h.coord.Running() {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "coordinator not running")
		return
	}
	rw.Success(map[string]string{"status": "ok"})
}

// Status returns the coordinator state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.coord.Status())
}

// Markers returns every loaded record.
func (h *Handler) Markers(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.coord.Markers())
}

// Marker returns one record.
func (h *Handler) Marker(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	m, ok := h.coord.Marker(chi.URLParam(r, "id"))
	if !ok {
		rw.NotFound("address not found")
		return
	}
	rw.Success(m)
}

// List returns the street-grouped list view.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.coord.ListView())
}

// Queue returns the undelivered mutations.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.coord.PendingMutations())
}

// Replay starts a retry pass.
func (h *Handler) Replay(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.coord.ReplayNow(r.Context()); err != nil {
		writeError(rw, err)
		return
	}
	rw.Accepted(map[string]int{"queued": len(h.coord.PendingMutations())})
}

// Position records a device fix.
func (h *Handler) Position(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	pos, err := decodePosition(r)
	if err != nil {
		bad(rw, err)
		return
	}
	if err := h.coord.PositionChanged(r.Context(), pos); err != nil {
		writeError(rw, err)
		return
	}
	rw.Accepted(pos)
}

// Region records a map movement.
func (h *Handler) Region(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	pos, err := decodePosition(r)
	if err != nil {
		bad(rw, err)
		return
	}
	if err := h.coord.RegionChanged(r.Context(), pos); err != nil {
		writeError(rw, err)
		return
	}
	rw.Accepted(pos)
}

// Refresh fetches right away. Without a body it fetches at the device
// position.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req PositionRequest
	if err := decodeBody(r, &req, true); err != nil {
		bad(rw, err)
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		writeError(rw, err)
		return
	}
	seq, err := h.coord.Refresh(r.Context(), req.Position())
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Accepted(RefreshResponse{Sequence: seq, Coalesced: seq == 0})
}

// Turfs returns the configured turfs.
func (h *Handler) Turfs(w http.ResponseWriter, r *http.Request) {
	turfs := h.coord.Turfs()
	out := make([]TurfResponse, 0, len(turfs))
	for _, t := range turfs {
		out = append(out, turfResponse(t))
	}
	NewResponseWriter(w, r).Success(out)
}

func turfResponse(t geofence.Turf) TurfResponse {
	rings := geofence.OuterRings(t)
	out := TurfResponse{ID: t.ID, Name: t.Name, Rings: make([][][2]float64, 0, len(rings))}
	for _, ring := range rings {
		pts := make([][2]float64, len(ring))
		for i, p := range ring {
			pts[i] = [2]float64{p.Lon, p.Lat}
		}
		out.Rings = append(out.Rings, pts)
	}
	return out
}

// SelectTurf activates the turf under a point.
func (h *Handler) SelectTurf(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	pos, err := decodePosition(r)
	if err != nil {
		bad(rw, err)
		return
	}
	t, ok := h.coord.SelectTurf(pos)
	if !ok {
		rw.NotFound("no turf contains this point")
		return
	}
	rw.Success(turfResponse(t))
}

// SuggestAddress proposes an address for a point.
func (h *Handler) SuggestAddress(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	pos, err := decodePosition(r)
	if err != nil {
		bad(rw, err)
		return
	}
	cand, err := h.coord.SuggestAddress(r.Context(), pos)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Success(cand)
}

// ConfirmAddress adds an address, or returns the existing equal one.
func (h *Handler) ConfirmAddress(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var cand address.Candidate
	if err := decodeBody(r, &cand, false); err != nil {
		bad(rw, err)
		return
	}
	rec, err := h.coord.ConfirmAddress(r.Context(), cand)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Success(rec)
}

// AddUnit adds a unit to an address.
func (h *Handler) AddUnit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req canvass.UnitRequest
	if err := decodeBody(r, &req, false); err != nil {
		bad(rw, err)
		return
	}
	rec, err := h.coord.AddUnit(r.Context(), req)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Success(rec)
}

// RecordStatus records a door outcome without an interview.
func (h *Handler) RecordStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req canvass.StatusRequest
	if err := decodeBody(r, &req, false); err != nil {
		bad(rw, err)
		return
	}
	rec, err := h.coord.RecordStatus(r.Context(), req)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Success(rec)
}

// RecordVisit records an interview.
func (h *Handler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req canvass.VisitRequest
	if err := decodeBody(r, &req, false); err != nil {
		bad(rw, err)
		return
	}
	rec, err := h.coord.RecordVisit(r.Context(), req)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Success(rec)
}

// GetSettings returns the settings in effect.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.coord.Settings())
}

// SaveSettings replaces the settings and refetches.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var s canvass.Settings
	if err := decodeBody(r, &s, false); err != nil {
		bad(rw, err)
		return
	}
	saved, err := h.coord.SaveSettings(r.Context(), s)
	if err != nil {
		writeError(rw, err)
		return
	}
	rw.Success(saved)
}

// GetDisclosure reports whether the disclosure was accepted.
func (h *Handler) GetDisclosure(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(DisclosureResponse{Accepted: h.coord.DisclosureAccepted(r.Context())})
}

// AcceptDisclosure records acceptance.
func (h *Handler) AcceptDisclosure(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if err := h.coord.AcceptDisclosure(r.Context()); err != nil {
		rw.InternalError(err)
		return
	}
	rw.Success(DisclosureResponse{Accepted: true})
}

// History returns the volunteer's visit history. ?force=true bypasses
// the cache.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	entries, err := h.coord.History(r.Context(), force)
	if err != nil {
		writeError(rw, err)
		return
	}
	if entries == nil {
		entries = []canvass.HistoryEntry{}
	}
	rw.Success(entries)
}

// WebSocket hands the connection to the event hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		logging.Ctx(r.Context()).Warn().Msg("WebSocket connection rejected: hub not initialized")
		NewResponseWriter(w, r).Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "event stream unavailable")
		return
	}
	h.events.ServeHTTP(w, r)
}
