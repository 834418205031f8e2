// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/address"
	"github.com/tomtom215/fieldsync/internal/connectivity"
	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/kvstore"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/retry"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// fakeRemote implements Fetcher and retry.Sender.
type fakeRemote struct {
	mu       sync.Mutex
	online   bool
	markers  []models.Marker
	fetchErr error
	fetches  []models.FetchRequest
	sent     []string
	payloads []any
	history  int
}

func (f *fakeRemote) FetchByPosition(_ context.Context, req models.FetchRequest) ([]models.Marker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, req)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]models.Marker, len(f.markers))
	copy(out, f.markers)
	return out, nil
}

func (f *fakeRemote) FetchHistory(context.Context, string) ([]HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history++
	return []HistoryEntry{{ID: "h1"}}, nil
}

func (f *fakeRemote) Send(_ context.Context, endpoint string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return errors.New("network unreachable")
	}
	f.sent = append(f.sent, endpoint)
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeRemote) setOnline(v bool) {
	f.mu.Lock()
	f.online = v
	f.mu.Unlock()
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetches)
}

func (f *fakeRemote) historyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history
}

func (f *fakeRemote) sentEndpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type harness struct {
	c       *Coordinator
	remote  *fakeRemote
	store   *store.Store
	queue   *retry.Queue
	kv      *kvstore.MemoryStore
	monitor *connectivity.Monitor

	mu     sync.Mutex
	events []Event
}

func (h *harness) eventCount(t EventType) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func newHarness(t *testing.T, opts Options, defaultFilters ...string) *harness {
	t.Helper()
	return newHarnessWithMonitor(t, connectivity.NewMonitor(connectivity.NewChanProvider("none")), opts, defaultFilters...)
}

// newHarnessWithMonitor builds a harness around monitor, which may be nil.
func newHarnessWithMonitor(t *testing.T, monitor *connectivity.Monitor, opts Options, defaultFilters ...string) *harness {
	t.Helper()
	h := &harness{
		remote:  &fakeRemote{online: true},
		store:   store.New(),
		kv:      kvstore.NewMemoryStore(),
		monitor: monitor,
	}
	h.queue = retry.NewQueue(h.kv)

	if opts.FormID == "" {
		opts.FormID = "form-1"
	}
	if opts.DeviceID == "" {
		opts.DeviceID = "device-1"
	}
	if opts.Debounce == 0 {
		opts.Debounce = 20 * time.Millisecond
	}
	opts.Publisher = PublisherFunc(func(e Event) {
		h.mu.Lock()
		h.events = append(h.events, e)
		h.mu.Unlock()
	})

	c, err := New(Deps{
		Store:    h.store,
		Queue:    h.queue,
		Fetcher:  h.remote,
		Sender:   h.remote,
		Monitor:  h.monitor,
		Settings: NewSettingsStore(h.kv, false, defaultFilters),
	}, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.c = c
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	eventually(t, h.c.Running)
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

var here = models.Position{Latitude: 39.80, Longitude: -89.64}

func mainSt(id, street string) models.Marker {
	return models.Marker{Address: models.Address{
		ID: id, Street: street, City: "Springfield", State: "IL", Zip: "62704",
		Latitude: here.Latitude, Longitude: here.Longitude,
	}}
}

func (h *harness) fetchNow(t *testing.T) {
	t.Helper()
	seq, err := h.c.Refresh(context.Background(), here)
	if err != nil || seq == 0 {
		t.Fatalf("Refresh() = %d, %v", seq, err)
	}
	eventually(t, func() bool { return h.store.LastSequence() >= seq && !h.c.Status().Fetching })
}

func candidate(street string) address.Candidate {
	return address.Candidate{
		Street: street, City: "Springfield", State: "IL", Zip: "62704",
		Latitude: here.Latitude, Longitude: here.Longitude,
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{}, Options{FormID: "f"}); err == nil {
		t.Error("New() with no store should fail")
	}
}

func TestConfirmAddress_ReusesExistingMarker(t *testing.T) {
	h := newHarness(t, Options{AddNew: true})
	h.remote.markers = []models.Marker{mainSt("a", "100 Main St")}
	h.start(t)
	h.fetchNow(t)

	rec, err := h.c.ConfirmAddress(context.Background(), candidate("  100 MAIN st "))
	if err != nil {
		t.Fatalf("ConfirmAddress() error = %v", err)
	}
	if rec.Created || rec.AddressID != "a" || rec.Sent || rec.Queued {
		t.Errorf("receipt = %+v, want existing a with nothing sent", rec)
	}
	if h.store.Len() != 1 || len(h.remote.sentEndpoints()) != 0 {
		t.Error("duplicate confirm must not add or send")
	}
}

func TestConfirmAddress_NewAddressSent(t *testing.T) {
	h := newHarness(t, Options{AddNew: true})
	h.start(t)

	rec, err := h.c.ConfirmAddress(context.Background(), candidate("102 Main St"))
	if err != nil {
		t.Fatalf("ConfirmAddress() error = %v", err)
	}
	want := address.Identity("102 Main St", "Springfield", "IL", "62704")
	if !rec.Created || !rec.Sent || rec.AddressID != want {
		t.Errorf("receipt = %+v", rec)
	}
	if _, ok := h.store.Marker(want); !ok {
		t.Error("new marker missing from store")
	}

	h.remote.mu.Lock()
	in, _ := h.remote.payloads[0].(models.AddressInput)
	h.remote.mu.Unlock()
	if in.DeviceID != "device-1" || in.FormID != "form-1" || in.Street != "102 Main St" || in.Timestamp == 0 {
		t.Errorf("payload = %+v", in)
	}
	if !h.c.Status().CheckHistory {
		t.Error("successful send should flag history for refresh")
	}
}

func TestConfirmAddress_OfflineQueuesAndKeepsLocalMarker(t *testing.T) {
	h := newHarness(t, Options{AddNew: true})
	h.remote.setOnline(false)
	h.start(t)

	rec, err := h.c.ConfirmAddress(context.Background(), candidate("7 Oak Ave"))
	if err != nil {
		t.Fatalf("ConfirmAddress() error = %v", err)
	}
	if !rec.Queued || rec.Sent {
		t.Errorf("receipt = %+v, want queued", rec)
	}
	if h.queue.Len() != 1 || h.store.Len() != 1 {
		t.Errorf("queue = %d, store = %d, want 1 and 1", h.queue.Len(), h.store.Len())
	}
	if _, found, _ := h.kv.Get(context.Background(), kvstore.KeyRetryQueue); !found {
		t.Error("queued mutation should be persisted before returning")
	}
}

func TestConfirmAddress_Guards(t *testing.T) {
	square := squareTurf("t1", "Square", 10)

	t.Run("add disabled", func(t *testing.T) {
		h := newHarness(t, Options{})
		h.start(t)
		if _, err := h.c.ConfirmAddress(context.Background(), candidate("1 A St")); !errors.Is(err, ErrAddDisabled) {
			t.Errorf("error = %v, want ErrAddDisabled", err)
		}
	})

	t.Run("filter active", func(t *testing.T) {
		h := newHarness(t, Options{AddNew: true}, "attr-1")
		h.start(t)
		if _, err := h.c.ConfirmAddress(context.Background(), candidate("1 A St")); !errors.Is(err, ErrFilterActive) {
			t.Errorf("error = %v, want ErrFilterActive", err)
		}
	})

	t.Run("outside turf", func(t *testing.T) {
		h := newHarness(t, Options{AddNew: true, Turfs: []geofence.Turf{square}})
		h.start(t)
		if _, err := h.c.ConfirmAddress(context.Background(), candidate("1 A St")); !errors.Is(err, ErrOutsideTurf) {
			t.Errorf("error = %v, want ErrOutsideTurf", err)
		}
		in := candidate("1 A St")
		in.Latitude, in.Longitude = 5, 5
		if _, err := h.c.ConfirmAddress(context.Background(), in); err != nil {
			t.Errorf("inside turf error = %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t, Options{AddNew: true})
		h.start(t)
		bad := candidate(" ")
		_, err := h.c.ConfirmAddress(context.Background(), bad)
		if !validation.IsValidationError(err) {
			t.Errorf("error = %v, want validation error", err)
		}
		if len(h.remote.sentEndpoints()) != 0 {
			t.Error("invalid input must not reach the network")
		}
	})
}

func TestAddUnit(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St")}
	h.start(t)
	h.fetchNow(t)

	if _, err := h.c.AddUnit(context.Background(), UnitRequest{AddressID: "a", Name: "Apt 2"}); err != nil {
		t.Fatalf("AddUnit() error = %v", err)
	}
	if _, err := h.c.AddUnit(context.Background(), UnitRequest{AddressID: "a", Name: "APT 2"}); !errors.Is(err, store.ErrDuplicateUnit) {
		t.Errorf("duplicate AddUnit() error = %v", err)
	}
	if got := h.remote.sentEndpoints(); len(got) != 1 || got[0] != models.EndpointAddUnit {
		t.Errorf("sent = %v", got)
	}
}

func TestRecordStatus(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St")}
	h.start(t)
	h.fetchNow(t)
	ctx := context.Background()

	if _, err := h.c.RecordStatus(ctx, StatusRequest{AddressID: "a", Status: models.StatusMoved}); !validation.IsValidationError(err) {
		t.Errorf("moved without person error = %v", err)
	}
	if _, err := h.c.RecordStatus(ctx, StatusRequest{AddressID: "a", Status: models.StatusHome}); !validation.IsValidationError(err) {
		t.Errorf("home status error = %v", err)
	}

	rec, err := h.c.RecordStatus(ctx, StatusRequest{AddressID: "a", Status: models.StatusNotHome})
	if err != nil || !rec.Sent {
		t.Fatalf("RecordStatus() = %+v, %v", rec, err)
	}
	m, _ := h.store.Marker("a")
	if m.PinColor() != "yellow" {
		t.Errorf("pin color = %s, want yellow after not-home", m.PinColor())
	}
	if got := h.remote.sentEndpoints(); got[0] != models.EndpointVisitUpdate {
		t.Errorf("sent = %v", got)
	}
}

func TestRecordVisit_NewPersonGoesToAdd(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St")}
	h.start(t)
	h.fetchNow(t)
	ctx := context.Background()

	_, err := h.c.RecordVisit(ctx, VisitRequest{
		AddressID: "a",
		Person:    models.Person{Name: "Pat"},
		Attrs:     []models.Attr{{ID: "q1", Value: "yes"}},
	})
	if err != nil {
		t.Fatalf("RecordVisit() error = %v", err)
	}
	m, _ := h.store.Marker("a")
	if len(m.People) != 1 || m.People[0].ID == "" || !m.People[0].New {
		t.Fatalf("people = %+v", m.People)
	}

	_, err = h.c.RecordVisit(ctx, VisitRequest{AddressID: "a", Person: models.Person{ID: m.People[0].ID}})
	if err != nil {
		t.Fatal(err)
	}
	got := h.remote.sentEndpoints()
	if len(got) != 2 || got[0] != models.EndpointVisitAdd || got[1] != models.EndpointVisitUpdate {
		t.Errorf("sent = %v, want add then update", got)
	}
	m, _ = h.store.Marker("a")
	if len(m.People) != 1 || len(m.Visits) != 2 {
		t.Errorf("marker = %+v", m)
	}
}

func TestReconnect_ReplaysInOrderThenFetches(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St")}
	h.start(t)
	h.fetchNow(t)
	if err := h.c.PositionChanged(context.Background(), here); err != nil {
		t.Fatal(err)
	}

	h.remote.setOnline(false)
	ctx := context.Background()
	for _, s := range []models.VisitStatus{models.StatusNotHome, models.StatusNotInterested, models.StatusNotHome} {
		if rec, err := h.c.RecordStatus(ctx, StatusRequest{AddressID: "a", Status: s}); err != nil || !rec.Queued {
			t.Fatalf("RecordStatus(%v) = %+v, %v", s, rec, err)
		}
	}
	fetchesBefore := h.remote.fetchCount()

	h.remote.setOnline(true)
	h.monitor.Set("wifi")

	eventually(t, func() bool { return h.queue.Len() == 0 && h.eventCount(EventReplay) == 1 })
	eventually(t, func() bool { return h.remote.fetchCount() == fetchesBefore+1 })

	h.remote.mu.Lock()
	var statuses []models.VisitStatus
	for _, p := range h.remote.payloads {
		raw, ok := p.(json.RawMessage)
		if !ok {
			t.Fatalf("replayed payload has type %T, want the stored raw input", p)
		}
		var in models.VisitInput
		if err := json.Unmarshal(raw, &in); err != nil {
			t.Fatal(err)
		}
		statuses = append(statuses, in.Status)
	}
	h.remote.mu.Unlock()

	want := []models.VisitStatus{models.StatusNotHome, models.StatusNotInterested, models.StatusNotHome}
	if len(statuses) != len(want) {
		t.Fatalf("replayed %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("replayed %v, want FIFO %v", statuses, want)
			break
		}
	}
	if _, found, _ := h.kv.Get(ctx, kvstore.KeyRetryQueue); found {
		t.Error("stored queue should be removed after a clean replay")
	}
}

func TestFetchFailure_KeepsMarkers(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St"), mainSt("b", "3 Main St")}
	h.start(t)
	h.fetchNow(t)

	h.remote.mu.Lock()
	h.remote.fetchErr = errors.New("status 502")
	h.remote.mu.Unlock()

	if _, err := h.c.Refresh(context.Background(), here); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return h.eventCount(EventSyncError) == 1 })

	if h.store.Len() != 2 {
		t.Errorf("store has %d markers, want previous 2", h.store.Len())
	}
	if st := h.c.Status(); st.SyncError == "" {
		t.Error("Status().SyncError should be set")
	}
}

func TestRegionChanged_Debounced(t *testing.T) {
	h := newHarness(t, Options{Debounce: 30 * time.Millisecond})
	h.start(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = h.c.RegionChanged(ctx, models.Position{Latitude: 40 + float64(i), Longitude: -89})
	}
	eventually(t, func() bool { return h.remote.fetchCount() == 1 })
	time.Sleep(80 * time.Millisecond)

	h.remote.mu.Lock()
	defer h.remote.mu.Unlock()
	if len(h.remote.fetches) != 1 {
		t.Fatalf("fetches = %d, want 1", len(h.remote.fetches))
	}
	if got := h.remote.fetches[0]; got.Latitude != 44 || got.Limit != 100 {
		t.Errorf("fetch = %+v, want the last region and limit 100", got)
	}
}

func TestRegionChanged_ChillModeSkipsFetch(t *testing.T) {
	h := newHarness(t, Options{Debounce: 10 * time.Millisecond})
	h.start(t)
	ctx := context.Background()

	if _, err := h.c.SaveSettings(ctx, Settings{ChillMode: true}); err != nil {
		t.Fatal(err)
	}
	_ = h.c.RegionChanged(ctx, here)
	time.Sleep(60 * time.Millisecond)

	if n := h.remote.fetchCount(); n != 0 {
		t.Errorf("fetches = %d, want none in chill mode", n)
	}
	if h.c.Status().MapCenter != here {
		t.Error("map center should still be tracked")
	}
}

func TestSaveSettings_RefetchesWithFilters(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St")}
	h.start(t)
	h.fetchNow(t)

	saved, err := h.c.SaveSettings(context.Background(), Settings{Limit: "25", FilterVisited: true})
	if err != nil {
		t.Fatal(err)
	}
	if saved.Limit != "25" {
		t.Errorf("saved = %+v", saved)
	}
	eventually(t, func() bool { return h.remote.fetchCount() == 2 })

	h.remote.mu.Lock()
	last := h.remote.fetches[1]
	h.remote.mu.Unlock()
	if last.Limit != 25 || last.FilterVisited != "home" || last.Latitude != here.Latitude {
		t.Errorf("refetch = %+v", last)
	}
}

func TestHistory_RefreshedOnlyAfterSuccessfulSend(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{mainSt("a", "1 Main St")}
	h.start(t)
	h.fetchNow(t)
	ctx := context.Background()

	if _, err := h.c.History(ctx, false); err != nil {
		t.Fatal(err)
	}
	if _, err := h.c.History(ctx, false); err != nil {
		t.Fatal(err)
	}
	if n := h.remote.historyCount(); n != 1 {
		t.Fatalf("history fetches = %d, want 1 (cached)", n)
	}

	if _, err := h.c.RecordStatus(ctx, StatusRequest{AddressID: "a", Status: models.StatusNotHome}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.c.History(ctx, false); err != nil {
		t.Fatal(err)
	}
	if n := h.remote.historyCount(); n != 2 {
		t.Errorf("history fetches = %d, want 2 after a successful send", n)
	}
}

const restoredQueue = `[{"uri":"/address/add/unit","input":{"unit":"2B","addressId":"a"}}]`

func TestRun_WithoutMonitorReplaysRestoredQueue(t *testing.T) {
	h := newHarnessWithMonitor(t, nil, Options{})
	_ = h.kv.Set(context.Background(), kvstore.KeyRetryQueue, restoredQueue)

	h.start(t)
	eventually(t, func() bool { return len(h.remote.sentEndpoints()) == 1 })
	eventually(t, func() bool { return h.queue.Len() == 0 })
}

func TestRun_RestoredQueueReplaysOnceAtBoot(t *testing.T) {
	h := newHarness(t, Options{})
	_ = h.kv.Set(context.Background(), kvstore.KeyRetryQueue, restoredQueue)

	h.start(t)
	time.Sleep(30 * time.Millisecond)
	if n := len(h.remote.sentEndpoints()); n != 0 {
		t.Fatalf("sent %d before the monitor came online", n)
	}

	h.monitor.Set("wifi")
	eventually(t, func() bool { return h.queue.Len() == 0 && h.eventCount(EventReplay) == 1 })
	time.Sleep(30 * time.Millisecond)

	if n := h.eventCount(EventReplay); n != 1 {
		t.Errorf("replay passes = %d, want 1", n)
	}
	if n := len(h.remote.sentEndpoints()); n != 1 {
		t.Errorf("sent = %d, want 1", n)
	}
}

func TestRun_RestartReplaysOnceWhenOnline(t *testing.T) {
	h := newHarness(t, Options{})
	_ = h.kv.Set(context.Background(), kvstore.KeyRetryQueue, restoredQueue)
	h.remote.setOnline(false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = h.c.Run(ctx)
		close(done)
	}()
	eventually(t, h.c.Running)
	h.monitor.Set("wifi")
	eventually(t, func() bool { return h.eventCount(EventReplay) == 1 })
	cancel()
	<-done

	if n := h.queue.Len(); n != 1 {
		t.Fatalf("Len() after failed pass = %d, want 1", n)
	}

	h.remote.setOnline(true)
	h.start(t)
	eventually(t, func() bool { return h.queue.Len() == 0 })
	time.Sleep(30 * time.Millisecond)

	if n := len(h.remote.sentEndpoints()); n != 1 {
		t.Errorf("sent = %d after restart, want 1", n)
	}
	if _, found, _ := h.kv.Get(context.Background(), kvstore.KeyRetryQueue); found {
		t.Error("stored queue should be removed after the restart pass")
	}
}

func squareTurf(id, name string, size float64) geofence.Turf {
	return geofence.Turf{ID: id, Name: name, Boundary: geofence.Boundary{{{
		{Lon: 0, Lat: 0}, {Lon: 0, Lat: size}, {Lon: size, Lat: size}, {Lon: size, Lat: 0},
	}}}}
}

func TestSelectTurf(t *testing.T) {
	a := squareTurf("1", "A", 10)
	b := squareTurf("2", "B", 20)
	h := newHarness(t, Options{Turfs: []geofence.Turf{a, b}})

	got, ok := h.c.SelectTurf(models.Position{Latitude: 5, Longitude: 5})
	if !ok || got.Name != "A" {
		t.Errorf("SelectTurf(5,5) = %v, %v, want A", got.Name, ok)
	}
	got, _ = h.c.SelectTurf(models.Position{Latitude: 15, Longitude: 15})
	if got.Name != "B" || h.c.Status().ActiveTurf != "B" {
		t.Errorf("SelectTurf(15,15) = %v", got.Name)
	}
	if _, ok := h.c.SelectTurf(models.Position{Latitude: 50, Longitude: 50}); ok {
		t.Error("SelectTurf outside every turf should report false")
	}
}

func TestListView(t *testing.T) {
	h := newHarness(t, Options{})
	h.remote.markers = []models.Marker{
		mainSt("c", "100 Main St"),
		mainSt("a", "20 Main St"),
	}
	h.start(t)
	h.fetchNow(t)

	view := h.c.ListView()
	if len(view) != 1 || view[0].Street != "Main St" {
		t.Fatalf("view = %+v", view)
	}
	if view[0].Rows[0].Street != "20 Main St" || view[0].Rows[0].LatestLabel != "Haven't visited" {
		t.Errorf("first row = %+v", view[0].Rows[0])
	}
}
