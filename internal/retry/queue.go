// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package retry

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fieldsync/internal/kvstore"
	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
)

// State is the replay state of the queue.
type State int

const (
	Idle State = iota
	Replaying
)

func (s State) String() string {
	if s == Replaying {
		return "replaying"
	}
	return "idle"
}

// Entry is one undelivered mutation.
type Entry struct {
	URI        string          `json:"uri"`
	Input      json.RawMessage `json:"input"`
	EnqueuedAt time.Time       `json:"enqueued_at,omitempty"`
}

// Sender delivers one mutation. *remote.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload any) error
}

// ReplayResult summarizes one replay pass.
type ReplayResult struct {
	// Skipped is true when another replay was already running.
	Skipped   bool
	Attempted int
	Delivered int
	Failed    int
}

// Queue is the durable FIFO of undelivered mutations. It is safe for
// concurrent use; the full queue is written to the store after every change.
type Queue struct {
	store kvstore.Store
	now   func() time.Time

	mu        sync.Mutex
	entries   []Entry
	remaining []Entry // untried snapshot entries while replaying
	state     State
	loaded    bool
}

// NewQueue returns an empty queue persisted in store.
func NewQueue(store kvstore.Store) *Queue {
	return &Queue{store: store, now: time.Now}
}

// Load restores the persisted queue and returns the number of restored
// entries. Storage is read once per queue: a later Load, or one after an
// Enqueue or Replay has already restored it, returns 0. A missing or
// unreadable slot leaves the queue as it is; storage problems are logged,
// never returned.
func (q *Queue) Load(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.loadLocked(ctx)
}

// loadLocked merges the stored slot in front of the memory queue the
// first time it runs. Every path that persists calls it first, so a write
// never replaces stored entries that were not restored yet.
func (q *Queue) loadLocked(ctx context.Context) int {
	if q.loaded {
		return 0
	}
	q.loaded = true

	raw, found, err := q.store.Get(ctx, kvstore.KeyRetryQueue)
	if err != nil {
		durabilityWarning(ctx, "load", err)
		return 0
	}
	if !found || raw == "" {
		return 0
	}

	var stored []Entry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		durabilityWarning(ctx, "decode", err)
		return 0
	}

	valid := stored[:0]
	for _, e := range stored {
		if e.URI == "" {
			logging.Ctx(ctx).Warn().Msg("Dropping retry entry without uri")
			continue
		}
		valid = append(valid, e)
	}

	q.entries = append(valid, q.entries...)
	q.persistLocked(ctx)

	logging.Ctx(ctx).Info().Int("entries", len(valid)).Msg("Restored retry queue")
	return len(valid)
}

// Enqueue appends a mutation and persists the queue before returning.
func (q *Queue) Enqueue(ctx context.Context, uri string, input any) {
	raw, err := json.Marshal(input)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("uri", uri).Msg("Cannot encode mutation for retry")
		return
	}

	q.mu.Lock()
	q.loadLocked(ctx)
	q.entries = append(q.entries, Entry{URI: uri, Input: raw, EnqueuedAt: q.now().UTC()})
	q.persistLocked(ctx)
	depth := len(q.entries)
	q.mu.Unlock()

	metrics.RetryEnqueued.Inc()
	logging.Ctx(ctx).Debug().Str("uri", uri).Int("depth", depth).Msg("Mutation queued for retry")
}

// Replay delivers every queued mutation once, in FIFO order. The queue is
// snapshotted and cleared first; entries that fail again go back to the
// end of the queue. When the pass is over the stored queue is removed if
// nothing is left. after, if non-nil, runs once at the end of a pass that
// was not skipped.
//
// A second call while a pass is running returns immediately with Skipped.
func (q *Queue) Replay(ctx context.Context, s Sender, after func(context.Context)) ReplayResult {
	q.mu.Lock()
	if q.state == Replaying {
		q.mu.Unlock()
		metrics.RetryReplays.WithLabelValues("skipped").Inc()
		return ReplayResult{Skipped: true}
	}
	q.state = Replaying
	q.loadLocked(ctx)
	snapshot := q.entries
	q.entries = nil
	q.remaining = snapshot
	q.mu.Unlock()

	log := logging.Ctx(ctx)
	if len(snapshot) > 0 {
		log.Info().Int("entries", len(snapshot)).Msg("Replaying retry queue")
	}

	res := ReplayResult{}
	for i, e := range snapshot {
		if ctx.Err() != nil {
			break
		}
		res.Attempted++
		err := s.Send(ctx, e.URI, e.Input)

		q.mu.Lock()
		if err != nil && ctx.Err() != nil {
			// cut short by shutdown: e keeps its place ahead of the rest
			res.Attempted--
			q.remaining = snapshot[i:]
			q.mu.Unlock()
			break
		}
		q.remaining = snapshot[i+1:]
		if err != nil {
			res.Failed++
			q.entries = append(q.entries, e)
		} else {
			res.Delivered++
		}
		// delivered entries leave the stored queue at once
		q.persistLocked(ctx)
		q.mu.Unlock()

		if err != nil {
			log.Debug().Err(err).Str("uri", e.URI).Msg("Retry failed, re-queued")
		}
	}

	q.mu.Lock()
	// entries not attempted because ctx ended keep their place
	if len(q.remaining) > 0 {
		q.entries = append(q.remaining, q.entries...)
		q.remaining = nil
	}
	q.persistLocked(ctx)
	q.mu.Unlock()

	if res.Attempted > 0 {
		log.Info().
			Int("delivered", res.Delivered).
			Int("failed", res.Failed).
			Msg("Retry replay complete")
	}
	outcome := "drained"
	if res.Failed > 0 || res.Attempted < len(snapshot) {
		outcome = "partial"
	}
	metrics.RetryReplays.WithLabelValues(outcome).Inc()

	if after != nil && ctx.Err() == nil {
		after(ctx)
	}

	q.mu.Lock()
	q.state = Idle
	q.mu.Unlock()
	return res
}

// Pending returns a copy of the queued entries, including any not yet
// attempted by a running replay.
func (q *Queue) Pending() []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, 0, len(q.remaining)+len(q.entries))
	out = append(out, q.remaining...)
	return append(out, q.entries...)
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.remaining) + len(q.entries)
}

// State returns the replay state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// persistLocked writes the pending entries to the store, or removes the
// slot when there are none. Untried snapshot entries come first so a crash
// mid-replay loses nothing. Callers hold q.mu.
func (q *Queue) persistLocked(ctx context.Context) {
	pending := make([]Entry, 0, len(q.remaining)+len(q.entries))
	pending = append(pending, q.remaining...)
	pending = append(pending, q.entries...)
	metrics.RetryQueueDepth.Set(float64(len(pending)))

	if len(pending) == 0 {
		if err := q.store.Delete(ctx, kvstore.KeyRetryQueue); err != nil {
			durabilityWarning(ctx, "delete", err)
		}
		return
	}

	raw, err := json.Marshal(pending)
	if err != nil {
		durabilityWarning(ctx, "encode", err)
		return
	}
	if err := q.store.Set(ctx, kvstore.KeyRetryQueue, string(raw)); err != nil {
		durabilityWarning(ctx, "save", err)
	}
}

func durabilityWarning(ctx context.Context, op string, err error) {
	metrics.RecordDurabilityWarning("retry_" + op)
	logging.Ctx(ctx).Warn().Err(err).Str("operation", op).Msg("Retry queue storage failed; continuing in memory")
}
