// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package canvass is the sync coordinator of a canvassing session.

A Coordinator owns the record store and serializes every write to it
through one loop goroutine. Its input channel carries connectivity
transitions, debounced region changes, fetch requests and results, replay
completions and the store updates of user operations. Network calls run on
their own goroutines and feed their results back as messages.

Fetching:

  - at most one by-position fetch is in flight; requests made meanwhile are
    coalesced into one follow-up fetch at the latest requested position
  - region changes wait for a quiet period before fetching, and are ignored
    entirely in chill mode
  - every fetch carries a sequence number and the store drops a result
    older than the one applied
  - a failed fetch keeps the current markers and publishes EventSyncError

Mutations (ConfirmAddress, AddUnit, RecordStatus, RecordVisit) update the
store first and are then sent. A failed send is written to the retry queue
before the operation reports back. Local updates are never rolled back.

Every transition into wifi or cellular starts a retry replay, which ends
with one fetch at the device position.
*/
package canvass
