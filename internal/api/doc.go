// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package api is the local control surface of the sync client.

The rendering layer on the device drives the canvass coordinator through
this API: it reports position and map movement, records door outcomes and
reads back the marker list. Coordinator events are pushed over /api/v1/ws.

Every JSON response uses one envelope:

	{"success":true,"data":{...},"meta":{"correlation_id":"...","timestamp":"..."}}
	{"success":false,"error":{"code":"VALIDATION_FAILED","message":"...","details":[...]}}

JSON responses of a kilobyte or more are gzipped for clients that accept it.
Routes under /api/v1 are rate limited per client IP; over the limit they
answer 429 with code RATE_LIMITED.

Routes:

	GET  /api/v1/health/live
	GET  /api/v1/status
	GET  /api/v1/markers
	GET  /api/v1/markers/{id}
	GET  /api/v1/list
	GET  /api/v1/queue
	POST /api/v1/replay
	POST /api/v1/position
	POST /api/v1/region
	POST /api/v1/refresh
	GET  /api/v1/turfs
	POST /api/v1/turfs/select
	POST /api/v1/addresses/suggest
	POST /api/v1/addresses
	POST /api/v1/units
	POST /api/v1/visits/status
	POST /api/v1/visits
	GET  /api/v1/settings
	PUT  /api/v1/settings
	GET  /api/v1/disclosure
	POST /api/v1/disclosure
	GET  /api/v1/history
	GET  /api/v1/ws
	GET  /metrics

Mutations answer with a canvass.Receipt. A mutation that could not be
delivered is still a success: the receipt reports it as queued.
*/
package api
