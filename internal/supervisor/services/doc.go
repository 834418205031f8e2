// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package services adapts the client's components to suture.Service.
//
// Each wrapper has a Serve(ctx) error that returns once ctx ends and a
// String() naming the service in supervisor logs.
package services
