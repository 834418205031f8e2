// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoToken is returned when no credential is configured.
	ErrNoToken = errors.New("no API token configured")

	// ErrTokenExpired is returned when the credential's exp claim has passed.
	ErrTokenExpired = errors.New("API token expired")
)

// TokenProvider supplies the bearer credential for each request.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed credential. If it is a JWT its exp claim is
// checked locally so that an expired token fails fast instead of costing a
// round trip; the signature is the server's business.
type StaticToken struct {
	Raw string
	now func() time.Time
}

// Token implements TokenProvider.
func (s StaticToken) Token(_ context.Context) (string, error) {
	raw := strings.TrimSpace(s.Raw)
	if raw == "" {
		return "", ErrNoToken
	}
	if strings.Count(raw, ".") != 2 {
		return raw, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		// opaque token that happens to contain two dots
		return raw, nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return raw, nil
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	if !now().Before(exp.Time) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}
	return raw, nil
}

// TokenFunc adapts a function to TokenProvider.
type TokenFunc func(ctx context.Context) (string, error)

// Token implements TokenProvider.
func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}
