// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/handlers"
	"codeberg.org/procclean/reviewgate/internal/i18n"
	"codeberg.org/procclean/reviewgate/internal/services/auth"
	"codeberg.org/procclean/reviewgate/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func init() {
	_ = i18n.Init()
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.KindInvalidFormat, http.StatusBadRequest},
		{apperr.KindCodeInvalidOrUsed, http.StatusUnprocessableEntity},
		{apperr.KindValidation, http.StatusUnprocessableEntity},
		{apperr.KindRateLimited, http.StatusTooManyRequests},
		{apperr.KindStoreUnavailable, http.StatusServiceUnavailable},
		{apperr.KindInconsistency, http.StatusInternalServerError},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.Kind("unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, handlers.StatusFor(tt.kind))
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"code used", apperr.CodeInvalidOrUsed(), http.StatusUnprocessableEntity, "code_invalid_or_used"},
		{"store down", apperr.Store(errors.New("disk I/O error")), http.StatusServiceUnavailable, "store_unavailable"},
		{"credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, "http_error"},
		{"echo 400", echo.ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/", nil)

			handlers.ErrorHandler(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.kind, body.Error)
			assert.NotEmpty(t, body.Message)
			assert.Empty(t, rec.Header().Get("Retry-After"))
		})
	}
}

func TestErrorHandler_StoreDetailsHidden(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/", nil)

	handlers.ErrorHandler(apperr.Store(errors.New("disk I/O error at /var/lib")), c)

	assert.NotContains(t, rec.Body.String(), "/var/lib")
}

func TestErrorHandler_RetryAfter(t *testing.T) {
	tests := []struct {
		wait    time.Duration
		header  string
		message string
	}{
		{1500 * time.Millisecond, "2", "2 seconds"},
		{time.Second, "1", "1 second"},
		{90 * time.Second, "90", "2 minutes"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", nil)

			handlers.ErrorHandler(apperr.RateLimited(tt.wait), c)

			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
			assert.Equal(t, tt.header, rec.Header().Get("Retry-After"))
			assert.Contains(t, decodeError(t, rec).Message, tt.message)
		})
	}
}

func TestErrorHandler_Spanish(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", nil)
	req := c.Request()
	c.SetRequest(req.WithContext(i18n.WithLocale(req.Context(), language.Spanish)))

	handlers.ErrorHandler(apperr.CodeInvalidOrUsed(), c)

	assert.Contains(t, decodeError(t, rec).Message, "no es válido")
}

func TestErrorHandler_ValidationFields(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodPost, "/", nil)

	handlers.ErrorHandler(apperr.Validation(map[string]string{"name": "too short"}), c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]string{"name": "too short"}, decodeError(t, rec).Fields)
}

func TestErrorHandler_Head(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodHead, "/", nil)

	handlers.ErrorHandler(apperr.NotFound("review"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestErrorHandler_Committed(t *testing.T) {
	c, rec := testutil.NewEchoContext(echo.New(), http.MethodGet, "/", nil)
	require.NoError(t, c.String(http.StatusOK, "done"))

	handlers.ErrorHandler(apperr.NotFound("review"), c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}
