// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testTurfs = `[{"id": 7, "name": "North", "geometry": {"type": "Polygon",
  "coordinates": [[[-75.1, 39.9], [-74.9, 39.9], [-74.9, 40.1], [-75.1, 40.1]]]}}]`

// writeFile writes content into dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// writeConfig writes a minimal valid config file using dataDir for storage.
func writeConfig(t *testing.T, dir, dataDir string) string {
	t.Helper()
	return writeFile(t, dir, "fieldsync.yaml", `
server:
  url: http://127.0.0.1:1
form:
  id: form-1
auth:
  token: secret-token
storage:
  path: `+dataDir+`
  sync_writes: false
`)
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
