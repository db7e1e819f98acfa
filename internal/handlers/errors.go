// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/i18n"
	"codeberg.org/procclean/reviewgate/internal/services/auth"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Fields     map[string]string `json:"fields,omitempty"`
	Error      string            `json:"error"`
	Message    string            `json:"message"`
	RetryAfter int               `json:"retryAfter,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidFormat:
		return http.StatusBadRequest
	case apperr.KindCodeInvalidOrUsed, apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindInconsistency:
		return http.StatusInternalServerError
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors as localized JSON. It is installed as the
// echo HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := errorBody(c, err)
	if body.RetryAfter > 0 {
		c.Response().Header().Set("Retry-After", strconv.Itoa(body.RetryAfter))
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, body)
	}
	if writeErr != nil {
		slog.Error("failed to write error response", "error", writeErr)
	}
}

func errorBody(c echo.Context, err error) (int, ErrorResponse) {
	ctx := c.Request().Context()

	if errors.Is(err, auth.ErrInvalidCredentials) {
		return http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: i18n.T(ctx, "error_invalid_credentials"),
		}
	}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body := ErrorResponse{
			Error:   string(ae.Kind),
			Message: localize(c, ae),
			Fields:  ae.Fields,
		}
		if ae.Kind == apperr.KindRateLimited {
			body.RetryAfter = int(math.Ceil(ae.RetryAfter.Seconds()))
		}
		return StatusFor(ae.Kind), body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		kind := "http_error"
		if he.Code == http.StatusBadRequest {
			kind = "bad_request"
			msg = i18n.T(ctx, "error_bad_request")
		}
		return he.Code, ErrorResponse{Error: kind, Message: msg}
	}

	slog.Error("unhandled error", "path", c.Path(), "error", err)
	return http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: http.StatusText(http.StatusInternalServerError),
	}
}

// localize renders the user-facing message for ae in the request locale,
// falling back to the built-in English message.
func localize(c echo.Context, ae *apperr.Error) string {
	id := "error_" + string(ae.Kind)
	msg := i18n.TData(c.Request().Context(), id, map[string]any{
		"Wait": waitText(c, ae.RetryAfter),
		"Min":  sanitize.MinCodeLength,
		"Max":  sanitize.MaxCodeLength,
	})
	if msg == id {
		return ae.Message
	}
	return msg
}

// waitText renders d rounded up to whole seconds, or whole minutes past
// one minute.
func waitText(c echo.Context, d time.Duration) string {
	ctx := c.Request().Context()
	if d <= time.Minute {
		return i18n.TPlural(ctx, "wait_seconds", max(int(math.Ceil(d.Seconds())), 1))
	}
	return i18n.TPlural(ctx, "wait_minutes", int(math.Ceil(d.Minutes())))
}
