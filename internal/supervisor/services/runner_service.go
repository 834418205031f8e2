// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package services

import (
	"context"
)

// Runner is a component whose Run blocks until ctx ends. Satisfied by
// *canvass.Coordinator, *connectivity.Monitor and *websocket.Hub.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerService supervises a Runner.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps runner under name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// NewCoordinatorService supervises the canvass coordinator.
func NewCoordinatorService(r Runner) *RunnerService {
	return NewRunnerService("canvass", r)
}

// NewConnectivityService supervises the connectivity monitor.
func NewConnectivityService(r Runner) *RunnerService {
	return NewRunnerService("connectivity", r)
}

// NewEventHubService supervises the websocket event hub.
func NewEventHubService(r Runner) *RunnerService {
	return NewRunnerService("event-hub", r)
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.Run(ctx)
}

// String implements fmt.Stringer for logging.
func (s *RunnerService) String() string {
	return s.name
}
