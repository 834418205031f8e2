// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Command fieldsync is the offline-first canvassing sync client.
//
// It keeps a volunteer's local view of nearby addresses in step with the
// campaign server, delivers visit reports, and queues them while the
// device is offline. A local HTTP API on 127.0.0.1:7411 and a WebSocket
// event stream at /api/v1/ws serve the map and list views.
//
// # Commands
//
//	fieldsync serve                      run the client
//	fieldsync queue list                 show undelivered mutations
//	fieldsync geofence check LAT LON     test a position against the turfs
//	fieldsync config show                print the effective configuration
//
// # Configuration
//
// Configuration is layered with Koanf v2 (highest priority wins):
//   - Environment variables, e.g. FIELDSYNC_SERVER, FIELDSYNC_FORM_ID, FIELDSYNC_TOKEN
//   - Config file: --config, $CONFIG_PATH, ./fieldsync.yaml or /etc/fieldsync/config.yaml
//   - Built-in defaults
//
// # Signal Handling
//
// serve stops on SIGINT and SIGTERM. In-flight deliveries are waited for;
// those that fail are persisted to the retry queue before exit.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tomtom215/fieldsync/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
