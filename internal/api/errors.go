// FieldSync - Offline-First Canvassing Sync Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/fieldsync/internal/canvass"
	"github.com/tomtom215/fieldsync/internal/remote"
	"github.com/tomtom215/fieldsync/internal/store"
	"github.com/tomtom215/fieldsync/internal/validation"
)

// writeError maps coordinator and validation errors onto responses.
func writeError(rw *ResponseWriter, err error) {
	var ve *validation.RequestValidationError
	switch {
	case errors.As(err, &ve):
		rw.ValidationError(ve.Error(), ve.Fields)
	case errors.Is(err, store.ErrMarkerNotFound), errors.Is(err, store.ErrUnitNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, store.ErrDuplicateUnit):
		rw.Error(http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, canvass.ErrFilterActive),
		errors.Is(err, canvass.ErrOutsideTurf),
		errors.Is(err, canvass.ErrAddDisabled):
		rw.Error(http.StatusForbidden, ErrCodeForbidden, err.Error())
	case remote.IsTransient(err):
		rw.Error(http.StatusBadGateway, ErrCodeExternalServiceFail, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "coordinator unavailable")
	default:
		rw.InternalError(err)
	}
}
