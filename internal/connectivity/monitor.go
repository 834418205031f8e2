// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package connectivity classifies the platform reachability signal into
// none, cellular or wifi and publishes one Transition per state change.
package connectivity

import (
	"context"
	"strings"
	"sync"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
)

// State is the classified connection type.
type State string

const (
	None     State = "none"
	Cellular State = "cellular"
	WiFi     State = "wifi"
)

// Online reports whether the state allows network traffic.
func (s State) Online() bool {
	return s == WiFi || s == Cellular
}

func (s State) level() float64 {
	switch s {
	case WiFi:
		return 2
	case Cellular:
		return 1
	default:
		return 0
	}
}

// Classify maps a raw platform connection type onto a State. Unknown
// values count as offline.
func Classify(raw string) State {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wifi", "bluetooth", "ethernet":
		return WiFi
	case "cellular", "wimax":
		return Cellular
	default:
		return None
	}
}

// Transition is one classified state change.
type Transition struct {
	From State
	To   State
}

// IntoOnline reports whether the transition enters wifi or cellular from
// any other state. Such transitions trigger a retry replay.
func (t Transition) IntoOnline() bool {
	return t.To.Online() && t.From != t.To
}

// Provider is the platform connectivity signal.
type Provider interface {
	// Current returns the raw connection type.
	Current(ctx context.Context) (string, error)

	// Subscribe streams raw connection types until ctx ends. The channel is
	// closed when the provider stops.
	Subscribe(ctx context.Context) (<-chan string, error)
}

// Monitor classifies provider updates and publishes transitions.
type Monitor struct {
	provider Provider

	mu    sync.RWMutex
	state State
	subs  []chan Transition
}

// NewMonitor returns a monitor in state None.
func NewMonitor(p Provider) *Monitor {
	return &Monitor{provider: p, state: None}
}

// State returns the current classified state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Online reports whether the current state is online.
func (m *Monitor) Online() bool {
	return m.State().Online()
}

// Subscribe returns a channel receiving every transition. The channel is
// buffered; a subscriber that falls behind misses transitions rather than
// blocking the monitor.
func (m *Monitor) Subscribe() <-chan Transition {
	ch := make(chan Transition, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run queries the initial state, then follows provider updates until ctx
// ends. Provider errors are treated as None and never stop the monitor.
func (m *Monitor) Run(ctx context.Context) error {
	log := logging.WithComponent("connectivity")

	raw, err := m.provider.Current(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Initial connectivity query failed, assuming offline")
		raw = ""
	}
	m.apply(Classify(raw))

	updates, err := m.provider.Subscribe(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Connectivity subscription failed, staying on initial state")
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-updates:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			m.apply(Classify(raw))
		}
	}
}

// Set forces a raw state, as if the provider had reported it.
func (m *Monitor) Set(raw string) {
	m.apply(Classify(raw))
}

func (m *Monitor) apply(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	subs := m.subs
	m.mu.Unlock()

	if prev == next {
		metrics.ConnectivityState.Set(next.level())
		return
	}

	metrics.RecordConnectivityTransition(string(prev), string(next), next.level())
	log := logging.WithComponent("connectivity")
	log.Info().
		Str("from", string(prev)).
		Str("to", string(next)).
		Msg("Connectivity changed")

	t := Transition{From: prev, To: next}
	for _, ch := range subs {
		select {
		case ch <- t:
		default:
			log.Warn().Str("to", string(next)).Msg("Connectivity subscriber is full, dropping transition")
		}
	}
}
