// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/auth"
	"codeberg.org/procclean/reviewgate/internal/models"
	authsvc "codeberg.org/procclean/reviewgate/internal/services/auth"
	"codeberg.org/procclean/reviewgate/internal/services/codes"
	"codeberg.org/procclean/reviewgate/internal/services/ratelimit"
	"codeberg.org/procclean/reviewgate/internal/services/reviews"
	"github.com/labstack/echo/v4"
)

// LoginRequest is the body of an admin login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks admin credentials and sets the session cookie.
func (h *Handlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	admin, err := h.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	cookie, err := h.Sessions.Create(admin.ID, admin.Email)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]any{"admin": admin})
}

// Logout clears the session cookie.
func (h *Handlers) Logout(c echo.Context) error {
	c.SetCookie(h.Sessions.Clear())
	return c.NoContent(http.StatusNoContent)
}

// Session returns the signed-in admin.
func (h *Handlers) Session(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"admin": auth.GetAdmin(c.Request().Context())})
}

// PasswordRequest is the body of a password change.
type PasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword replaces the signed-in admin's password. The session
// stays valid.
func (h *Handlers) ChangePassword(c echo.Context) error {
	var req PasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	admin := auth.GetAdmin(c.Request().Context())
	err := h.Auth.ChangePassword(c.Request().Context(), admin.ID, req.CurrentPassword, req.NewPassword)

	var perr *authsvc.PasswordError
	switch {
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return apperr.Validation(map[string]string{"currentPassword": "current password is incorrect"})
	case errors.As(err, &perr):
		return apperr.Validation(map[string]string{"newPassword": strings.Join(perr.Problems, "; ")})
	case err != nil:
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// CodeCounts returns how many codes are available and used.
func (h *Handlers) CodeCounts(c echo.Context) error {
	counts, err := h.Codes.Count(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, counts)
}

// ListCodes returns codes in the ?status= state, available by default.
func (h *Handlers) ListCodes(c echo.Context) error {
	var (
		list []models.AccessCode
		err  error
	)
	switch models.CodeStatus(c.QueryParam("status")) {
	case "", models.CodeAvailable:
		list, err = h.Codes.ListAvailable(c.Request().Context())
	case models.CodeUsed:
		list, err = h.Codes.ListUsed(c.Request().Context())
	default:
		return apperr.Validation(map[string]string{"status": "must be available or used"})
	}
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.AccessCode{}
	}
	return c.JSON(http.StatusOK, list)
}

// CreateCodeRequest is the body of a single code creation.
type CreateCodeRequest struct {
	Code        string `json:"code"`
	ClientLabel string `json:"clientLabel"`
}

// CreateCode adds one code with an admin-chosen value.
func (h *Handlers) CreateCode(c echo.Context) error {
	var req CreateCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	code, err := h.Codes.Create(c.Request().Context(), req.Code, req.ClientLabel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, code)
}

// GenerateRequest is the body of a bulk generation.
type GenerateRequest struct {
	Prefix      string `json:"prefix"`
	ClientLabel string `json:"clientLabel"`
	Count       int    `json:"count"`
}

// GenerateCodes creates random codes. A partial result is still 201.
func (h *Handlers) GenerateCodes(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	res, err := h.Codes.Generate(c.Request().Context(), req.Count, req.Prefix, req.ClientLabel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"created":   res.Created,
		"requested": res.Requested,
		"partial":   res.Partial(),
	})
}

// ImportCodes loads a JSON batch of codes from the request body.
func (h *Handlers) ImportCodes(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.ErrBadRequest
	}

	res, err := h.Codes.Import(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// DeleteCode hard-deletes a code.
func (h *Handlers) DeleteCode(c echo.Context) error {
	if err := h.Codes.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AdminListReviews returns every review, flagged ones included.
func (h *Handlers) AdminListReviews(c echo.Context) error {
	list, err := h.Reviews.List(c.Request().Context(), true)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.Review{}
	}
	return c.JSON(http.StatusOK, list)
}

// UpdateReview edits a review.
func (h *Handlers) UpdateReview(c echo.Context) error {
	var req reviews.UpdateInput
	if err := c.Bind(&req); err != nil {
		return echo.ErrBadRequest
	}

	rv, err := h.Reviews.Update(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rv)
}

// DeleteReview removes a review and releases its code. ?code= is
// optional and only cross-checked against the stored code.
func (h *Handlers) DeleteReview(c echo.Context) error {
	if err := h.Reviews.Delete(c.Request().Context(), c.Param("id"), c.QueryParam("code")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ImportReviews loads a JSON batch of reviews from the request body.
func (h *Handlers) ImportReviews(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.ErrBadRequest
	}

	res, err := h.Reviews.Import(c.Request().Context(), raw)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// ListAudit returns open audit entries, or all with ?all=true.
func (h *Handlers) ListAudit(c echo.Context) error {
	all, _ := strconv.ParseBool(c.QueryParam("all"))
	list, err := h.Audit.List(c.Request().Context(), all)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.AuditEntry{}
	}
	return c.JSON(http.StatusOK, list)
}

// Reconcile scans for broken code/review invariants.
func (h *Handlers) Reconcile(c echo.Context) error {
	report, err := h.Audit.Reconcile(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// ResolveAudit marks an audit entry as handled.
func (h *Handlers) ResolveAudit(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return apperr.NotFound("audit entry")
	}
	if err := h.Audit.Resolve(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ResetRateLimit clears one key of a limiter scope: login (by e-mail),
// review (by code) or codecheck (by IP).
func (h *Handlers) ResetRateLimit(c echo.Context) error {
	scope, key := c.Param("scope"), c.Param("key")

	var limiter *ratelimit.Limiter
	switch scope {
	case "login":
		limiter = h.Limiters.Login
		key = strings.ToLower(strings.TrimSpace(key))
	case "review":
		limiter = h.Limiters.Review
		key = codes.Normalize(key)
	case "codecheck":
		limiter = h.Limiters.CodeCheck
	default:
		return apperr.NotFound("rate limit scope")
	}

	limiter.Reset(key)
	attrs := []any{"scope", scope, "key", key}
	if admin := auth.GetAdmin(c.Request().Context()); admin != nil {
		attrs = append(attrs, "admin_id", admin.ID)
	}
	slog.Info("rate_limit_reset", attrs...)
	return c.NoContent(http.StatusNoContent)
}
