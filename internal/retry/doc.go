// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package retry holds mutations that could not be delivered and replays them
when the device comes back online.

The queue is a FIFO persisted under kvstore.KeyRetryQueue as a JSON array
of {uri, input, enqueued_at} objects. It is rewritten after every enqueue,
every re-enqueue during a replay and at the end of each pass; an empty
queue removes the slot. Storage failures are logged as durability warnings
and the queue carries on in memory.

Replay state machine:

	Idle --Replay--> Replaying --pass done, after()--> Idle

A Replay call while Replaying returns immediately. During a pass each
snapshot entry is sent once; failures are appended behind anything
enqueued meanwhile and wait for the next pass.
*/
package retry
