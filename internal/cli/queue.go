// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/fieldsync/internal/kvstore"
	"github.com/tomtom215/fieldsync/internal/retry"
)

// QueueListing is the result of queue list.
type QueueListing struct {
	Count   int           `json:"count"`
	Entries []retry.Entry `json:"entries"`
}

func (l QueueListing) String() string {
	if l.Count == 0 {
		return "Retry queue is empty"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d mutation(s) waiting for delivery:", l.Count)
	for i, e := range l.Entries {
		at := "unknown"
		if !e.EnqueuedAt.IsZero() {
			at = e.EnqueuedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(&b, "\n  %3d  %-24s  %s", i+1, e.URI, at)
	}
	return b.String()
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the offline retry queue",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mutations waiting for delivery",
		Long: `List the mutations waiting in the retry queue, in replay order.

Reads the local database directly, so it cannot run beside serve.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueList(rootOpts, cmd)
		},
	})
	return cmd
}

func runQueueList(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeConfig, "failed to load configuration", err)
	}

	f.VerboseLog("Opening %s", cfg.Storage.Path)
	kv, err := kvstore.Open(kvstore.Config{Path: cfg.Storage.Path})
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStorage, "failed to open local storage (is serve running?)", err)
	}
	defer func() { _ = kv.Close() }()

	q := retry.NewQueue(kv)
	q.Load(cmd.Context())
	entries := q.Pending()
	if entries == nil {
		entries = []retry.Entry{}
	}
	return f.Success(QueueListing{Count: len(entries), Entries: entries})
}
