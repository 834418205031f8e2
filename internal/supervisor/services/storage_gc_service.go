// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package services

import (
	"context"
	"time"

	"github.com/tomtom215/fieldsync/internal/logging"
)

// GarbageCollector is satisfied by *kvstore.BadgerStore.
type GarbageCollector interface {
	RunGC() error
}

// StorageGCService reclaims value-log space on an interval. GC failures
// are logged; the service keeps running.
type StorageGCService struct {
	store    GarbageCollector
	interval time.Duration
	name     string
}

// NewStorageGCService creates the service. interval defaults to 10m.
func NewStorageGCService(store GarbageCollector, interval time.Duration) *StorageGCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &StorageGCService{store: store, interval: interval, name: "storage-gc"}
}

// Serve implements suture.Service.
func (s *StorageGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log := logging.WithComponent(s.name)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				log.Warn().Err(err).Msg("Value log GC failed")
			}
		}
	}
}

// String implements fmt.Stringer for logging.
func (s *StorageGCService) String() string {
	return s.name
}
