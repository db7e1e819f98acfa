// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package apperr defines the error taxonomy shared by the code ledger,
// the review store and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Kind classifies an error for callers and for the HTTP mapping.
type Kind string

const (
	KindInvalidFormat     Kind = "invalid_format"
	KindCodeInvalidOrUsed Kind = "code_invalid_or_used"
	KindValidation        Kind = "validation_error"
	KindRateLimited       Kind = "rate_limited"
	KindStoreUnavailable  Kind = "store_unavailable"
	KindInconsistency     Kind = "inconsistency"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindUnauthorized      Kind = "unauthorized"
)

// Error is the typed error returned across service boundaries.
// Message is always safe to show to an end user; Err carries the
// internal cause and is only ever logged.
type Error struct { //nolint:govet // fieldalignment: readability over optimization
	Kind       Kind
	Message    string
	Fields     map[string]string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" [")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %s", k, e.Fields[k])
		}
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is and errors.As to reach the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinel values below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidFormat     = &Error{Kind: KindInvalidFormat}
	ErrCodeInvalidOrUsed = &Error{Kind: KindCodeInvalidOrUsed}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrStoreUnavailable  = &Error{Kind: KindStoreUnavailable}
	ErrInconsistency     = &Error{Kind: KindInconsistency}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
)

// InvalidFormat reports a syntactically invalid access code.
func InvalidFormat(msg string) *Error {
	return &Error{Kind: KindInvalidFormat, Message: msg}
}

// CodeInvalidOrUsed deliberately does not say which of the two applies.
func CodeInvalidOrUsed() *Error {
	return &Error{Kind: KindCodeInvalidOrUsed, Message: "code is invalid or has already been used"}
}

// Validation reports field-scoped validation failures.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

// RateLimited reports a throttled action with the time left until the window resets.
func RateLimited(retryAfter time.Duration) *Error {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Error{
		Kind:       KindRateLimited,
		Message:    "too many attempts, please wait " + FormatWait(retryAfter),
		RetryAfter: retryAfter,
	}
}

// Store wraps a raw data-store failure. The cause must not reach end users.
func Store(err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "service temporarily unavailable", Err: err}
}

// StoreOp logs a raw data-store failure for operators and returns it
// wrapped as StoreUnavailable. Typed errors pass through unchanged.
func StoreOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	slog.Error("store operation failed", "op", op, "error", err)
	return Store(fmt.Errorf("%s: %w", op, err))
}

// Inconsistency reports a broken code/review invariant.
func Inconsistency(msg string) *Error {
	return &Error{Kind: KindInconsistency, Message: msg}
}

// NotFound reports a missing record.
func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

// Conflict reports a uniqueness violation or a state conflict.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Unauthorized reports missing or invalid admin credentials.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// KindOf returns the kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FormatWait renders a duration as a short human readable wait time,
// rounded up to whole seconds or minutes.
func FormatWait(d time.Duration) string {
	if d <= time.Minute {
		secs := int((d + time.Second - 1) / time.Second)
		if secs <= 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	if mins < 60 {
		return fmt.Sprintf("%d minutes", mins)
	}
	hours := mins / 60
	rest := mins % 60
	unit := "hours"
	if hours == 1 {
		unit = "hour"
	}
	if rest == 0 {
		return fmt.Sprintf("%d %s", hours, unit)
	}
	return fmt.Sprintf("%d %s %d minutes", hours, unit, rest)
}
