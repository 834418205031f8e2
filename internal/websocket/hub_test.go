// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package websocket

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/fieldsync/internal/canvass"
	"github.com/tomtom215/fieldsync/internal/logging"
)

//nolint:gochecknoinits // quiet logs for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func startHub(t *testing.T, origins []string) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(origins)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(done)
	}()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	hdr := http.Header{}
	if origin != "" {
		hdr.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, hdr)
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func TestHub_PublishReachesEveryClient(t *testing.T) {
	hub, srv := startHub(t, nil)

	a, _, err := dial(t, srv, "")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, _, err := dial(t, srv, "")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	waitClients(t, hub, 2)

	hub.Publish(canvass.Event{Type: canvass.EventMarkers, Data: canvass.MarkersData{Count: 4, Sequence: 2}})

	for _, conn := range []*websocket.Conn{a, b} {
		got := readEvent(t, conn)
		if got["type"] != string(canvass.EventMarkers) {
			t.Errorf("type = %v", got["type"])
		}
		data, _ := got["data"].(map[string]any)
		if data["count"] != float64(4) {
			t.Errorf("data = %v", data)
		}
	}
}

func TestHub_PingGetsPong(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn, _, err := dial(t, srv, "")
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	if got := readEvent(t, conn); got["type"] != MessageTypePong {
		t.Errorf("reply = %v", got)
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub, srv := startHub(t, nil)
	conn, _, err := dial(t, srv, "")
	if err != nil {
		t.Fatal(err)
	}
	waitClients(t, hub, 1)

	_ = conn.Close()
	waitClients(t, hub, 0)
}

func TestHub_OriginCheck(t *testing.T) {
	_, srv := startHub(t, []string{"http://app.local"})

	if _, resp, err := dial(t, srv, "http://evil.example"); err == nil {
		t.Error("unknown origin accepted")
	} else if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if _, _, err := dial(t, srv, ""); err == nil {
		t.Error("missing origin accepted")
	}

	conn, _, err := dial(t, srv, "http://app.local")
	if err != nil {
		t.Fatalf("allowed origin rejected: %v", err)
	}
	_ = conn.Close()
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub(nil) // not running

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Publish(canvass.Event{Type: canvass.EventQueue})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan []byte)}
	hub.register(slow)

	hub.broadcastToClients(canvass.Event{Type: canvass.EventQueue})

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want slow client dropped", hub.ClientCount())
	}
	if _, ok := <-slow.send; ok {
		t.Error("send channel left open")
	}
	hub.unregister(slow) // second removal is a no-op
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(nil)
	c := &Client{id: clientIDCounter.Add(1), hub: hub, send: make(chan []byte, 1)}
	hub.register(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hub.Run(ctx); err != context.Canceled {
		t.Errorf("Run() = %v", err)
	}
	if hub.ClientCount() != 0 {
		t.Error("clients left after shutdown")
	}
	if getShutdownReason(ctx) != ShutdownReasonContextCanceled {
		t.Error("unexpected shutdown reason")
	}
}

func TestOriginMatches(t *testing.T) {
	tests := []struct {
		pattern, origin string
		want            bool
	}{
		{"*", "http://anything", true},
		{"http://app.local", "http://app.local", true},
		{"http://app.local", "http://app.local.evil", false},
		{"http://localhost:*", "http://localhost:5173", true},
		{"http://localhost:*", "http://localhost.evil:80", false},
		{"http://localhost:*", "https://localhost:5173", false},
	}
	for _, tt := range tests {
		if got := originMatches(tt.pattern, tt.origin); got != tt.want {
			t.Errorf("originMatches(%q, %q) = %v, want %v", tt.pattern, tt.origin, got, tt.want)
		}
	}
}
