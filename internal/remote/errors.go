// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package remote

import (
	"errors"
	"fmt"
)

// ErrServerRejected is wrapped when a 2xx response carries {"error": true}.
var ErrServerRejected = errors.New("server reported an error")

// TransientError is a recoverable network failure: transport errors,
// timeouts, non-2xx responses, an open circuit or an expired credential.
// Mutations that fail this way are queued for replay; fetches leave the
// store untouched.
type TransientError struct {
	Endpoint   string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is or wraps a *TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

func transient(endpoint string, status int, err error) error {
	return &TransientError{Endpoint: endpoint, StatusCode: status, Err: err}
}
