// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package connectivity

import (
	"context"
	"sync"
	"time"
)

// Prober checks whether the remote service answers. *remote.Client
// satisfies it.
type Prober interface {
	Probe(ctx context.Context) error
}

// HTTPProbe derives connectivity from periodic reachability checks of the
// remote service: reachable reports "ethernet", unreachable "none".
type HTTPProbe struct {
	Prober   Prober
	Interval time.Duration
	Timeout  time.Duration
}

// Current implements Provider.
func (p *HTTPProbe) Current(ctx context.Context) (string, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Prober.Probe(ctx); err != nil {
		return "none", nil
	}
	return "ethernet", nil
}

// Subscribe implements Provider.
func (p *HTTPProbe) Subscribe(ctx context.Context) (<-chan string, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	out := make(chan string, 1)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				raw, _ := p.Current(ctx)
				select {
				case out <- raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ChanProvider is driven by explicit Push calls. It backs the local API's
// manual override and tests.
type ChanProvider struct {
	mu      sync.Mutex
	current string
	subs    []chan string
}

// NewChanProvider returns a provider reporting initial.
func NewChanProvider(initial string) *ChanProvider {
	return &ChanProvider{current: initial}
}

// Current implements Provider.
func (c *ChanProvider) Current(context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, nil
}

// Subscribe implements Provider.
func (c *ChanProvider) Subscribe(ctx context.Context) (<-chan string, error) {
	ch := make(chan string, 8)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s == ch {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				close(ch)
				break
			}
		}
	}()
	return ch, nil
}

// Push reports a new raw connection type to every subscriber.
func (c *ChanProvider) Push(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = raw
	for _, ch := range c.subs {
		select {
		case ch <- raw:
		default:
		}
	}
}
