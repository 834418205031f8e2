// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package websocket pushes coordinator events to the rendering layer.

The Hub implements canvass.Publisher. Publish never blocks the coordinator
loop: events go through a buffered channel and are dropped with a warning
when it is full. Run drains that channel and fans each event out to every
connected Client.

	┌──────────────┐  Publish   ┌──────┐
	│ Coordinator  │ ─────────▶ │ Hub  │ ─▶ Client ─▶ conn
	└──────────────┘            └──────┘ ─▶ Client ─▶ conn

Each client has two goroutines:
  - readPump: reads from the connection, answers "ping" with "pong"
  - writePump: writes events and keeps the connection alive

A client whose send buffer is full is disconnected rather than allowed to
stall the others.

Wire format:

	{"type":"markers_updated","data":{"count":12,"sequence":3,...},"time":"..."}
*/
package websocket
