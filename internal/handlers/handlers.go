// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API of the review server.
package handlers

import (
	"net/http"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/i18n"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"codeberg.org/procclean/reviewgate/internal/services/audit"
	"codeberg.org/procclean/reviewgate/internal/services/auth"
	"codeberg.org/procclean/reviewgate/internal/services/codes"
	"codeberg.org/procclean/reviewgate/internal/services/ratelimit"
	"codeberg.org/procclean/reviewgate/internal/services/reviews"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"codeberg.org/procclean/reviewgate/internal/services/session"
	"codeberg.org/procclean/reviewgate/internal/sse"
	"github.com/labstack/echo/v4"
)

// Limiters groups the rate limiters by the scope name used in the admin
// reset endpoint.
type Limiters struct {
	Login     *ratelimit.Limiter
	Review    *ratelimit.Limiter
	CodeCheck *ratelimit.Limiter
}

// Deps are the services the handlers call.
type Deps struct {
	Repo     *repository.Repository
	Codes    *codes.Service
	Reviews  *reviews.Service
	Audit    *audit.Service
	Auth     *auth.Service
	Sessions *session.Manager
	Hub      *sse.Hub
	Limiters Limiters
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	Deps
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	return &Handlers{Deps: deps}
}

// Health reports whether the database is reachable.
func (h *Handlers) Health(c echo.Context) error {
	if err := h.Repo.Ping(c.Request().Context()); err != nil {
		return apperr.StoreOp("ping", err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// CodeRequest is the body of a code validation request.
type CodeRequest struct {
	Code string `json:"code"`
}

// ValidateCode tells a visitor whether a code can be redeemed without
// consuming it.
func (h *Handlers) ValidateCode(c echo.Context) error {
	var req CodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	var code string
	err := h.guardCodeGuess(c, func() error {
		var err error
		code, err = h.Reviews.ValidateCode(c.Request().Context(), req.Code)
		return err
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{
		"valid":   true,
		"code":    code,
		"message": i18n.T(c.Request().Context(), "code_valid"),
	})
}

// guardCodeGuess runs fn under the client's code-guess budget. Malformed or
// unknown codes count against the IP; other failures do not.
func (h *Handlers) guardCodeGuess(c echo.Context, fn func() error) error {
	ip := c.RealIP()
	limiter := h.Limiters.CodeCheck
	if res := limiter.Check(ip); !res.Allowed {
		return apperr.RateLimited(res.RetryAfter(time.Now()))
	}

	err := fn()
	if k := apperr.KindOf(err); err != nil && (k == apperr.KindInvalidFormat || k == apperr.KindCodeInvalidOrUsed) {
		limiter.Increment(ip)
	}
	return err
}

// SubmitRequest is the body of a review submission.
type SubmitRequest struct {
	Code string `json:"code"`
	sanitize.ReviewInput
}

// SubmitReview redeems a code and stores the review. It shares the
// code-guess budget with ValidateCode.
func (h *Handlers) SubmitReview(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	var rv *models.Review
	err := h.guardCodeGuess(c, func() error {
		var err error
		rv, err = h.Reviews.Submit(c.Request().Context(), req.Code, req.ReviewInput)
		return err
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"review":  rv.Public(),
		"message": i18n.T(c.Request().Context(), "review_thanks"),
	})
}

// ListReviews returns the published reviews without moderation data.
func (h *Handlers) ListReviews(c echo.Context) error {
	list, err := h.Reviews.List(c.Request().Context(), false)
	if err != nil {
		return err
	}

	out := make([]models.PublicReview, 0, len(list))
	for i := range list {
		out = append(out, list[i].Public())
	}
	return c.JSON(http.StatusOK, out)
}

// ReviewStats returns the rating summary over published reviews.
func (h *Handlers) ReviewStats(c echo.Context) error {
	summary, err := h.Reviews.Stats(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summary)
}
