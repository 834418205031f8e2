// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

/*
Package middleware provides transport middleware for the local API.

Compression gzips JSON responses of at least MinCompressSize bytes for
clients that send "Accept-Encoding: gzip". Marker and list responses for a
dense turf run to hundreds of kilobytes, which matters to a map view on the
same device only a little but to a companion tablet on a weak link a lot.

Usage with chi:

	r.Group(func(r chi.Router) {
	    r.Use(middleware.Compression)
	    r.Get("/markers", h.Markers)
	})

WebSocket upgrades are passed through untouched.
*/
package middleware
