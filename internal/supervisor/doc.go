// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package supervisor runs the long-lived parts of the client under a
suture/v4 tree.

	fieldsync (root)
	├── storage-layer
	│   └── storage-gc        badger value-log GC
	├── sync-layer
	│   ├── connectivity      connectivity.Monitor
	│   ├── event-hub         websocket.Hub
	│   └── canvass           canvass.Coordinator
	└── api-layer
	    └── http-server       local control API

A crashed service is restarted by its layer without touching the others.
Supervisor events are logged through sutureslog on the slog bridge of the
logging package.
*/
package supervisor
