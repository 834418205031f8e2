// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

// Package remote talks to the canvassing service: position fetches, visit
// history and the mutation endpoints. Every request goes through a rate
// limiter and a circuit breaker; every mutation failure is reported as a
// *TransientError so the caller can queue it.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fieldsync/internal/logging"
	"github.com/tomtom215/fieldsync/internal/metrics"
	"github.com/tomtom215/fieldsync/internal/models"
)

// maxErrorBodySize limits how much of an error response body is read into
// log messages and errors.
const maxErrorBodySize = 64 * 1024

// Config configures a Client.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	Token     TokenProvider
	RateLimit float64 // requests per second, 0 disables
	RateBurst int
	Breaker   BreakerSettings

	// ProbeURL is the reachability target; the base URL when empty.
	ProbeURL string

	// HTTPClient overrides the default client, e.g. in tests.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	baseURL  string
	probeURL string
	http     *http.Client
	token    TokenProvider
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker[struct{}]
	cbName   string
}

// New creates a client for the service rooted at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := cfg.RateBurst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst <= 0 {
			burst = 1
		}
	}

	probe := cfg.ProbeURL
	if probe == "" {
		probe = base
	}

	name := "canvass-" + u.Host
	return &Client{
		baseURL:  base,
		probeURL: probe,
		http:     httpClient,
		token:    cfg.Token,
		limiter:  rate.NewLimiter(limit, burst),
		cb:       newBreaker(name, cfg.Breaker),
		cbName:   name,
	}, nil
}

// BaseURL returns the root that endpoint paths are appended to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send POSTs payload to endpoint. Any failure, including a rejection by the
// breaker or the limiter, is returned as a *TransientError.
func (c *Client) Send(ctx context.Context, endpoint string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		metrics.RecordMutation(endpoint, err)
		return transient(endpoint, 0, fmt.Errorf("encode payload: %w", err))
	}

	err = c.do(ctx, http.MethodPost, endpoint, body, nil)
	metrics.RecordMutation(endpoint, err)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("endpoint", endpoint).Msg("Mutation send failed")
	}
	return err
}

// FetchByPosition returns the markers around req's coordinate. Entries
// without an address are skipped with a warning.
func (c *Client) FetchByPosition(ctx context.Context, req models.FetchRequest) ([]models.Marker, error) {
	if req.Limit <= 0 {
		req.Limit = 100
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode fetch request: %w", err)
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, models.EndpointByPosition, body, &raw); err != nil {
		return nil, err
	}
	return decodeMarkers(ctx, raw)
}

// HistoryEntry is one visit of the volunteer's own history.
type HistoryEntry struct {
	ID        string             `json:"id"`
	Datetime  string             `json:"datetime"`
	Status    models.VisitStatus `json:"status"`
	Volunteer struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar,omitempty"`
	} `json:"volunteer"`
	Address struct {
		Street   string `json:"street"`
		Position struct {
			X float64 `json:"x"`
			Y float64 `json:"y"`
		} `json:"position"`
	} `json:"address"`
}

// FetchHistory returns the volunteer's visit history for the form.
func (c *Client) FetchHistory(ctx context.Context, formID string) ([]HistoryEntry, error) {
	endpoint := models.EndpointVisitHistory + "?formId=" + url.QueryEscape(formID)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	if err := serverError(endpoint, raw); err != nil {
		return nil, err
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

// Probe issues a HEAD request against the probe URL. Any response, whatever
// its status, means the service is reachable.
func (c *Client) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.probeURL, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

// do executes one request through the limiter and the breaker. When out is
// non-nil the 2xx response body is decoded into it.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return transient(endpoint, 0, fmt.Errorf("rate limit: %w", err))
	}

	var status int
	err := c.execute(func() error {
		var err error
		status, err = c.roundTrip(ctx, method, endpoint, body, out)
		return err
	})
	if err != nil {
		return transient(endpoint, status, err)
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, body []byte, out any) (int, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		tok, err := c.token.Token(ctx)
		if err != nil {
			return 0, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Warn().Err(cerr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, readBodyForError(resp.Body))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// readBodyForError reads up to maxErrorBodySize bytes and marks truncation.
func readBodyForError(body io.Reader) string {
	limited := io.LimitReader(body, maxErrorBodySize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Sprintf("(failed to read body: %v)", err)
	}
	if len(data) > maxErrorBodySize {
		return string(data[:maxErrorBodySize]) + "\n... (truncated)"
	}
	return string(data)
}

type errorEnvelope struct {
	Error bool   `json:"error"`
	Msg   string `json:"msg"`
}

// serverError detects the {"error": true, "msg": "..."} envelope the
// service returns with a 200 status.
func serverError(endpoint string, raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil || !env.Error {
		return nil
	}
	return transient(endpoint, http.StatusOK, fmt.Errorf("%w: %s", ErrServerRejected, env.Msg))
}

// wireMarker is the tagged record a fetch entry must decode into. Address
// is a pointer so a null or missing address can be told apart.
type wireMarker struct {
	Address *models.Address `json:"address"`
	Units   []models.Unit   `json:"units"`
	People  []models.Person `json:"people"`
	Visits  []models.Visit  `json:"visits"`
}

func decodeMarkers(ctx context.Context, raw json.RawMessage) ([]models.Marker, error) {
	if err := serverError(models.EndpointByPosition, raw); err != nil {
		return nil, err
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, transient(models.EndpointByPosition, http.StatusOK, fmt.Errorf("decode markers: %w", err))
	}

	log := logging.Ctx(ctx)
	markers := make([]models.Marker, 0, len(entries))
	for i, entry := range entries {
		var w wireMarker
		if err := json.Unmarshal(entry, &w); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping malformed marker")
			metrics.MarkersSkipped.Inc()
			continue
		}
		if w.Address == nil || w.Address.ID == "" {
			log.Warn().Int("index", i).Msg("Skipping marker without address")
			metrics.MarkersSkipped.Inc()
			continue
		}
		m := models.Marker{Address: *w.Address, Units: w.Units, People: w.People, Visits: w.Visits}
		if m.Units == nil {
			m.Units = []models.Unit{}
		}
		if m.People == nil {
			m.People = []models.Person{}
		}
		markers = append(markers, m)
	}
	return markers, nil
}
