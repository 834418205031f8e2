// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fieldsync/internal/address"
	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/validation"
)

var (
	// ErrFilterActive is returned when adding while a pin or visited
	// filter is on.
	ErrFilterActive = errors.New("cannot add a new address while a filter is active")

	// ErrOutsideTurf is returned when the point lies outside every turf.
	ErrOutsideTurf = errors.New("location is outside the turf boundary for this form")

	// ErrAddDisabled is returned when the form does not allow new addresses.
	ErrAddDisabled = errors.New("adding addresses is not enabled for this form")
)

// Receipt describes what happened to a mutation.
type Receipt struct {
	AddressID string `json:"addressId"`

	// Created is set when ConfirmAddress made a new address.
	Created bool `json:"created,omitempty"`

	// Sent means the server accepted the mutation; Queued means it waits
	// in the retry queue. Both are false when nothing needed sending.
	Sent   bool `json:"sent"`
	Queued bool `json:"queued"`
}

type mutation struct {
	endpoint string
	input    any
}

// mutate runs apply on the loop. A returned mutation is dispatched from
// the loop, so it is delivered or queued even if the caller gives up
// waiting.
func (c *Coordinator) mutate(ctx context.Context, apply func() (*mutation, Receipt, error)) (Receipt, error) {
	var (
		rec       Receipt
		err       error
		delivered <-chan bool
	)
	callErr := c.call(ctx, func(runCtx context.Context) {
		var mut *mutation
		mut, rec, err = apply()
		if err == nil && mut != nil {
			delivered = c.dispatch(runCtx, mut.endpoint, mut.input)
		}
	})
	if callErr != nil {
		return Receipt{}, callErr
	}
	if err != nil || delivered == nil {
		return rec, err
	}

	select {
	case sent := <-delivered:
		rec.Sent = sent
		rec.Queued = !sent
		return rec, nil
	case <-ctx.Done():
		return rec, ctx.Err()
	}
}

func (c *Coordinator) nowMillis() int64 {
	return c.opts.Now().UnixMilli()
}

// checkAddAllowed applies the add guards in order: form permission,
// active filters, then turf containment of pos.
func (c *Coordinator) checkAddAllowed(pos models.Position) error {
	if !c.opts.AddNew {
		return ErrAddDisabled
	}
	c.mu.RLock()
	filtered := c.cur.FiltersActive()
	c.mu.RUnlock()
	if filtered {
		return ErrFilterActive
	}
	if !geofence.Allowed(geofence.FromPosition(pos), c.opts.Turfs) {
		return ErrOutsideTurf
	}
	return nil
}

// SuggestAddress prepares a candidate for pos (the device position when
// zero). Online with a geocoder the candidate is filled from the reverse
// geocode; otherwise only the coordinate is set and the volunteer types
// the rest.
func (c *Coordinator) SuggestAddress(ctx context.Context, pos models.Position) (address.Candidate, error) {
	if pos.IsZero() {
		pos = c.Position()
	}
	if err := c.checkAddAllowed(pos); err != nil {
		return address.Candidate{}, err
	}

	manual := address.Candidate{Latitude: pos.Latitude, Longitude: pos.Longitude}
	if c.opts.Geocoder == nil || (c.monitor != nil && !c.monitor.Online()) {
		return manual, nil
	}
	text, err := c.opts.Geocoder.ReverseGeocode(ctx, pos)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Reverse geocode failed, falling back to manual entry")
		return manual, nil
	}
	cand, err := address.ParseGeocode(text, pos)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("geocode", text).Msg("Unparseable geocode, falling back to manual entry")
		return manual, nil
	}
	return cand, nil
}

// ConfirmAddress adds the address unless an equal one is already known, in
// which case the existing marker is returned and nothing is sent.
func (c *Coordinator) ConfirmAddress(ctx context.Context, cand address.Candidate) (Receipt, error) {
	cand = cand.Trimmed()
	if err := cand.Validate(); err != nil {
		return Receipt{}, err
	}
	pos := models.Position{Latitude: cand.Latitude, Longitude: cand.Longitude}

	return c.mutate(ctx, func() (*mutation, Receipt, error) {
		if err := c.checkAddAllowed(pos); err != nil {
			return nil, Receipt{}, err
		}
		m, created := c.store.Resolve(cand)
		rec := Receipt{AddressID: m.Address.ID, Created: created}
		if !created {
			return nil, rec, nil
		}
		c.store.AddMarker(m)
		c.publishMarkers()
		return &mutation{endpoint: models.EndpointAddLocation, input: models.AddressInput{
			DeviceID:  c.opts.DeviceID,
			FormID:    c.opts.FormID,
			Timestamp: c.nowMillis(),
			Longitude: cand.Longitude,
			Latitude:  cand.Latitude,
			Street:    m.Address.Street,
			City:      m.Address.City,
			State:     m.Address.State,
			Zip:       m.Address.Zip,
		}}, rec, nil
	})
}

// UnitRequest adds a unit to an address.
type UnitRequest struct {
	AddressID string `json:"addressId" validate:"required"`
	Name      string `json:"unit" validate:"nonblank,max=50"`
}

// AddUnit adds a unit to an address. A unit whose name matches an
// existing one, ignoring case, is rejected with store.ErrDuplicateUnit.
func (c *Coordinator) AddUnit(ctx context.Context, req UnitRequest) (Receipt, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.ValidateStruct(&req); err != nil {
		return Receipt{}, err
	}

	return c.mutate(ctx, func() (*mutation, Receipt, error) {
		rec := Receipt{AddressID: req.AddressID}
		if err := c.store.AddUnit(req.AddressID, req.Name); err != nil {
			return nil, rec, err
		}
		c.publishMarkers()
		pos := c.Position()
		return &mutation{endpoint: models.EndpointAddUnit, input: models.UnitInput{
			DeviceID:  c.opts.DeviceID,
			FormID:    c.opts.FormID,
			Timestamp: c.nowMillis(),
			Longitude: pos.Longitude,
			Latitude:  pos.Latitude,
			Unit:      req.Name,
			AddressID: req.AddressID,
		}}, rec, nil
	})
}

// StatusRequest records a door outcome that involves no interview.
type StatusRequest struct {
	AddressID string             `json:"addressId" validate:"required"`
	Unit      string             `json:"unit,omitempty"`
	Status    models.VisitStatus `json:"status"`
	PersonID  string             `json:"personId,omitempty"`
}

// RecordStatus records not-home, not-interested or moved. Moved needs the
// person who moved.
func (c *Coordinator) RecordStatus(ctx context.Context, req StatusRequest) (Receipt, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return Receipt{}, err
	}
	switch req.Status {
	case models.StatusNotHome, models.StatusNotInterested:
	case models.StatusMoved:
		if req.PersonID == "" {
			return Receipt{}, fieldError("personId", "required", "personId is required when the person moved")
		}
	default:
		return Receipt{}, fieldError("status", "oneof", "status must be not home, not interested or moved")
	}

	now := c.nowMillis()
	pos := c.Position()
	in := models.VisitInput{
		DeviceID:  c.opts.DeviceID,
		AddressID: req.AddressID,
		FormID:    c.opts.FormID,
		Status:    req.Status,
		Start:     now,
		End:       now,
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
		PersonID:  req.PersonID,
		Unit:      req.Unit,
	}
	return c.mutate(ctx, func() (*mutation, Receipt, error) {
		rec := Receipt{AddressID: req.AddressID}
		if err := c.store.AppendVisit(req.AddressID, req.Unit, in.Visit()); err != nil {
			return nil, rec, err
		}
		c.publishMarkers()
		return &mutation{endpoint: models.EndpointVisitUpdate, input: in}, rec, nil
	})
}

// VisitRequest records an interview with a person.
type VisitRequest struct {
	AddressID string        `json:"addressId" validate:"required"`
	Unit      string        `json:"unit,omitempty"`
	Person    models.Person `json:"person"`
	Start     time.Time     `json:"start"`
	Attrs     []models.Attr `json:"attrs,omitempty"`
}

// RecordVisit records a completed interview. A person without an id is
// new: it gets an id, is added to the address or unit, and the visit goes
// to the add endpoint instead of update.
func (c *Coordinator) RecordVisit(ctx context.Context, req VisitRequest) (Receipt, error) {
	if err := validation.ValidateStruct(&req); err != nil {
		return Receipt{}, err
	}
	person := req.Person
	if person.ID == "" {
		person.ID = uuid.NewString()
		person.New = true
	}
	start := req.Start.UnixMilli()
	if req.Start.IsZero() {
		start = c.nowMillis()
	}

	pos := c.Position()
	in := models.VisitInput{
		DeviceID:  c.opts.DeviceID,
		AddressID: req.AddressID,
		FormID:    c.opts.FormID,
		Status:    models.StatusHome,
		Start:     start,
		End:       c.nowMillis(),
		Longitude: pos.Longitude,
		Latitude:  pos.Latitude,
		PersonID:  person.ID,
		Unit:      req.Unit,
		Attrs:     req.Attrs,
	}
	endpoint := models.EndpointVisitUpdate
	if person.New {
		endpoint = models.EndpointVisitAdd
	}

	return c.mutate(ctx, func() (*mutation, Receipt, error) {
		rec := Receipt{AddressID: req.AddressID}
		if err := c.store.AppendVisit(req.AddressID, req.Unit, in.Visit()); err != nil {
			return nil, rec, err
		}
		if person.New {
			if err := c.store.AddPerson(req.AddressID, req.Unit, person); err != nil {
				return nil, rec, err
			}
		}
		c.publishMarkers()
		return &mutation{endpoint: endpoint, input: in}, rec, nil
	})
}

// RegionChanged reports that the map view moved. Unless chill mode is on,
// a fetch at pos follows once the view has been still for the debounce
// period.
func (c *Coordinator) RegionChanged(ctx context.Context, pos models.Position) error {
	if !c.post(ctx, regionMsg{pos: pos}) {
		return ctx.Err()
	}
	return nil
}

// PositionChanged reports a new device fix. The first fix triggers a
// fetch when nothing has been fetched yet.
func (c *Coordinator) PositionChanged(ctx context.Context, pos models.Position) error {
	if !c.post(ctx, positionMsg{pos: pos}) {
		return ctx.Err()
	}
	return nil
}

// Refresh fetches at pos (the device position when zero) right away. It
// returns the fetch sequence number, or 0 when the request was coalesced
// into the fetch in flight or no position is known.
func (c *Coordinator) Refresh(ctx context.Context, pos models.Position) (uint64, error) {
	reply := make(chan uint64, 1)
	if !c.post(ctx, fetchMsg{pos: pos, reply: reply}) {
		return 0, ctx.Err()
	}
	select {
	case seq := <-reply:
		return seq, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ReplayNow starts a retry pass, as a connectivity transition would.
func (c *Coordinator) ReplayNow(ctx context.Context) error {
	return c.call(ctx, func(runCtx context.Context) {
		c.startReplay(runCtx)
	})
}

// SaveSettings persists s and refetches at the last fetch position.
func (c *Coordinator) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	var saved Settings
	err := c.call(ctx, func(runCtx context.Context) {
		saved = c.settings.Save(runCtx, s)
		c.setSettings(saved)
		c.publish(EventSettings, saved)
		_, last := c.store.LastFetch()
		c.startFetch(runCtx, last)
	})
	return saved, err
}

// SelectTurf returns the turf containing pos, by input order, and
// remembers it as the active one.
func (c *Coordinator) SelectTurf(pos models.Position) (geofence.Turf, bool) {
	t, ok := geofence.SelectActiveBoundary(geofence.FromPosition(pos), c.opts.Turfs)
	c.mu.Lock()
	if ok {
		c.turf = &t
	} else {
		c.turf = nil
	}
	c.mu.Unlock()
	return t, ok
}

// History returns the volunteer's visit history. It is fetched again only
// when a mutation has succeeded since the last fetch, or when force is set.
func (c *Coordinator) History(ctx context.Context, force bool) ([]HistoryEntry, error) {
	if !force && !c.checkHist.Load() {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.history, nil
	}

	entries, err := c.fetcher.FetchHistory(ctx, c.opts.FormID)
	if err != nil {
		return nil, err
	}
	c.checkHist.Store(false)
	c.mu.Lock()
	c.history = entries
	c.mu.Unlock()
	c.publish(EventHistory, len(entries))
	return entries, nil
}

func (c *Coordinator) publishMarkers() {
	_, pos := c.store.LastFetch()
	c.publish(EventMarkers, MarkersData{Count: c.store.Len(), Sequence: c.store.LastSequence(), Position: pos})
}

func fieldError(field, tag, msg string) error {
	return &validation.RequestValidationError{Fields: []validation.FieldError{{Field: field, Tag: tag, Message: msg}}}
}
