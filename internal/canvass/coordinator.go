// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package canvass

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/fieldsync/internal/address"
	"github.com/tomtom215/fieldsync/internal/connectivity"
	"github.com/tomtom215/fieldsync/internal/geofence"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/retry"
	"github.com/tomtom215/fieldsync/internal/store"
)

// ErrAlreadyRunning is returned by Run when the loop is already active.
var ErrAlreadyRunning = errors.New("canvass: coordinator already running")

// Fetcher reads scoped records from the remote service. *remote.Client
// satisfies it.
type Fetcher interface {
	FetchByPosition(ctx context.Context, req models.FetchRequest) ([]models.Marker, error)
	FetchHistory(ctx context.Context, formID string) ([]HistoryEntry, error)
}

// HistoryEntry is one visit of the volunteer's own history.
type HistoryEntry = remote.HistoryEntry

// Deps are the collaborators of a Coordinator. Monitor may be nil, in
// which case replays only happen at startup.
type Deps struct {
	Store    *store.Store
	Queue    *retry.Queue
	Fetcher  Fetcher
	Sender   retry.Sender
	Monitor  *connectivity.Monitor
	Settings *SettingsStore
}

// Options configure a Coordinator.
type Options struct {
	FormID   string
	DeviceID string

	// AddNew allows creating addresses that were not fetched.
	AddNew bool

	Limit    int
	Debounce time.Duration
	Turfs    []geofence.Turf
	Geocoder address.Geocoder

	Publisher Publisher
	Now       func() time.Time
}

// Coordinator owns the record store. One goroutine, Run, applies every
// store write in the order messages arrive on its input channel; network
// calls run beside it and report back through the same channel.
type Coordinator struct {
	store    *store.Store
	queue    *retry.Queue
	fetcher  Fetcher
	sender   retry.Sender
	monitor  *connectivity.Monitor
	settings *SettingsStore
	opts     Options
	pub      Publisher

	in          chan message
	transitions <-chan connectivity.Transition
	running     atomic.Bool
	runs        atomic.Int32
	fetching    atomic.Bool
	checkHist   atomic.Bool
	wg          sync.WaitGroup

	// loop-owned
	seq         uint64
	pending     *models.Position
	debounce    *time.Timer
	debounceC   <-chan time.Time
	debouncePos models.Position

	// shared with readers
	mu        sync.RWMutex
	cur       Settings
	myPos     models.Position
	mapCenter models.Position
	syncErr   string
	history   []HistoryEntry
	turf      *geofence.Turf
}

type message interface{}

type (
	regionMsg   struct{ pos models.Position }
	positionMsg struct{ pos models.Position }
	fetchMsg    struct {
		pos   models.Position
		reply chan<- uint64
	}
	fetchResultMsg struct {
		seq      uint64
		pos      models.Position
		markers  []models.Marker
		err      error
		duration time.Duration
	}
	replayDoneMsg struct{ res retry.ReplayResult }
	callMsg       struct{ fn func(runCtx context.Context) }
)

// New wires a coordinator. It does not start the loop.
func New(deps Deps, opts Options) (*Coordinator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("canvass: store is required")
	case deps.Queue == nil:
		return nil, errors.New("canvass: retry queue is required")
	case deps.Fetcher == nil || deps.Sender == nil:
		return nil, errors.New("canvass: fetcher and sender are required")
	case deps.Settings == nil:
		return nil, errors.New("canvass: settings store is required")
	case opts.FormID == "":
		return nil, errors.New("canvass: form id is required")
	}
	if opts.Limit <= 0 {
		opts.Limit = 100
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	pub := opts.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}

	c := &Coordinator{
		store:    deps.Store,
		queue:    deps.Queue,
		fetcher:  deps.Fetcher,
		sender:   deps.Sender,
		monitor:  deps.Monitor,
		settings: deps.Settings,
		opts:     opts,
		pub:      pub,
		in:       make(chan message, 64),
		cur:      Settings{Limit: defaultLimit},
	}
	if deps.Monitor != nil {
		c.transitions = deps.Monitor.Subscribe()
	}
	c.checkHist.Store(true)
	return c, nil
}

// Run loads persisted state and then serves messages until ctx ends.
// Deliveries still in flight at shutdown are waited for; those that fail
// are queued.
//
// Queued entries are replayed at start only when nothing else will do it.
// With a monitor, the first run leaves that to the monitor's initial
// transition, and a restarted run replays if the monitor is already online.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	log := logging.WithComponent("canvass")
	restarted := c.runs.Add(1) > 1
	c.setSettings(c.settings.Load(ctx))
	c.queue.Load(ctx)
	if c.queue.Len() > 0 && (c.monitor == nil || (restarted && c.monitor.Online())) {
		c.startReplay(ctx)
	}
	log.Info().Str("form_id", c.opts.FormID).Int("queued", c.queue.Len()).Msg("Canvass coordinator started")

	defer func() {
		if c.debounce != nil {
			c.debounce.Stop()
			c.debounceC = nil
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			log.Info().Msg("Canvass coordinator stopped")
			return ctx.Err()

		case t := <-c.transitions:
			c.publish(EventConnectivity, t)
			if t.IntoOnline() {
				c.startReplay(ctx)
			}

		case <-c.debounceC:
			c.debounceC = nil
			c.startFetch(ctx, c.debouncePos)

		case m := <-c.in:
			c.handle(ctx, m)
		}
	}
}

// Running reports whether the loop is active.
func (c *Coordinator) Running() bool {
	return c.running.Load()
}

func (c *Coordinator) handle(ctx context.Context, m message) {
	switch m := m.(type) {
	case regionMsg:
		c.mu.Lock()
		c.mapCenter = m.pos
		chill := c.cur.ChillMode
		c.mu.Unlock()
		if chill {
			return
		}
		c.debouncePos = m.pos
		if c.debounce == nil {
			c.debounce = time.NewTimer(c.opts.Debounce)
		} else {
			c.debounce.Stop()
			c.debounce.Reset(c.opts.Debounce)
		}
		c.debounceC = c.debounce.C

	case positionMsg:
		c.mu.Lock()
		first := c.myPos.IsZero()
		c.myPos = m.pos
		c.mu.Unlock()
		if first && c.store.LastSequence() == 0 {
			c.startFetch(ctx, m.pos)
		}

	case fetchMsg:
		seq := c.startFetch(ctx, m.pos)
		if m.reply != nil {
			m.reply <- seq
		}

	case fetchResultMsg:
		c.applyFetch(ctx, m)

	case replayDoneMsg:
		c.publish(EventReplay, QueueData{Depth: c.queue.Len(), Delivered: m.res.Delivered, Failed: m.res.Failed})

	case callMsg:
		m.fn(ctx)
	}
}

// startFetch issues a by-position fetch, or remembers pos for when the
// fetch in flight completes. A zero pos means the device position. It
// returns the sequence number of the issued fetch, 0 if none was issued.
func (c *Coordinator) startFetch(ctx context.Context, pos models.Position) uint64 {
	c.mu.RLock()
	if pos.IsZero() {
		pos = c.myPos
	}
	settings := c.cur
	c.mu.RUnlock()

	if pos.IsZero() {
		logging.Ctx(ctx).Debug().Msg("No position yet, skipping fetch")
		return 0
	}
	if c.fetching.Load() {
		p := pos
		c.pending = &p
		return 0
	}

	c.seq++
	seq := c.seq
	req := settings.FetchRequest(c.opts.FormID, pos, c.opts.Limit)
	c.fetching.Store(true)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		markers, err := c.fetcher.FetchByPosition(ctx, req)
		c.post(ctx, fetchResultMsg{seq: seq, pos: pos, markers: markers, err: err, duration: time.Since(start)})
	}()
	return seq
}

func (c *Coordinator) applyFetch(ctx context.Context, r fetchResultMsg) {
	c.fetching.Store(false)
	log := logging.Ctx(ctx)

	switch {
	case r.err != nil:
		metrics.RecordFetch("error", r.duration)
		log.Warn().Err(r.err).Uint64("seq", r.seq).Msg("Sync error, keeping current markers")
		c.mu.Lock()
		c.syncErr = r.err.Error()
		c.mu.Unlock()
		c.publish(EventSyncError, SyncErrorData{Error: r.err.Error()})

	case !c.store.Replace(r.seq, r.pos, r.markers):
		metrics.RecordFetch("stale", r.duration)
		log.Debug().Uint64("seq", r.seq).Uint64("applied", c.store.LastSequence()).Msg("Dropping stale fetch result")

	default:
		metrics.RecordFetch("success", r.duration)
		metrics.MarkersLoaded.Set(float64(len(r.markers)))
		c.mu.Lock()
		c.syncErr = ""
		c.mu.Unlock()
		c.publish(EventMarkers, MarkersData{Count: len(r.markers), Sequence: r.seq, Position: r.pos})
	}

	if c.pending != nil {
		pos := *c.pending
		c.pending = nil
		c.startFetch(ctx, pos)
	}
}

// startReplay runs one retry pass beside the loop. The pass ends with a
// fetch at the device position.
func (c *Coordinator) startReplay(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res := c.queue.Replay(ctx, c.sender, func(ctx context.Context) {
			c.post(ctx, fetchMsg{})
		})
		if !res.Skipped {
			c.post(ctx, replayDoneMsg{res: res})
		}
	}()
}

// dispatch sends a mutation beside the loop. A failed send is queued
// before the returned channel reports false.
func (c *Coordinator) dispatch(ctx context.Context, endpoint string, input any) <-chan bool {
	out := make(chan bool, 1)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.sender.Send(ctx, endpoint, input); err != nil {
			logging.Ctx(ctx).Info().Err(err).Str("endpoint", endpoint).Msg("Mutation not delivered, queued for retry")
			c.queue.Enqueue(context.WithoutCancel(ctx), endpoint, input)
			c.publish(EventQueue, QueueData{Depth: c.queue.Len()})
			out <- false
			return
		}
		c.checkHist.Store(true)
		out <- true
	}()
	return out
}

// post delivers m to the loop unless ctx ends first.
func (c *Coordinator) post(ctx context.Context, m message) bool {
	select {
	case c.in <- m:
		return true
	case <-ctx.Done():
		return false
	}
}

// call runs fn on the loop and waits for it.
func (c *Coordinator) call(ctx context.Context, fn func(runCtx context.Context)) error {
	done := make(chan struct{})
	if !c.post(ctx, callMsg{fn: func(runCtx context.Context) {
		fn(runCtx)
		close(done)
	}}) {
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) publish(t EventType, data any) {
	c.pub.Publish(Event{Type: t, Data: data, Time: c.opts.Now().UTC()})
}

func (c *Coordinator) setSettings(s Settings) {
	c.mu.Lock()
	c.cur = s
	c.mu.Unlock()
}
