// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/procclean/reviewgate/internal/config"
	"codeberg.org/procclean/reviewgate/internal/database"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestConfig returns a configuration for an in-memory server with
// small rate limit windows.
func NewTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:        "localhost",
			Port:        8080,
			BaseURL:     "http://localhost:8080",
			MaxBodySize: 1,
		},
		Database: config.DatabaseConfig{DSN: ":memory:"},
		Session: config.SessionConfig{
			CookieName: "_reviewgate_admin",
			MaxAge:     3600,
			HashKey:    "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		},
		RateLimit: config.RateLimitConfig{
			LoginAttempts:     3,
			LoginWindow:       time.Minute,
			ReviewAttempts:    3,
			ReviewWindow:      time.Minute,
			CodeCheckAttempts: 3,
			CodeCheckWindow:   time.Minute,
			CleanupInterval:   time.Minute,
		},
		Reviews: config.ReviewsConfig{SpamPolicy: "reject"},
	}
}

// NewTestCode creates an available access code.
func NewTestCode(t *testing.T, repo *repository.Repository, code string) *models.AccessCode {
	t.Helper()
	c := &models.AccessCode{
		ID:          uuid.NewString(),
		Code:        code,
		ClientLabel: "Test client",
		Status:      models.CodeAvailable,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.InsertCode(context.Background(), c))
	return c
}

// NewTestReview creates a review for code and marks the code used,
// bypassing the redemption flow.
func NewTestReview(t *testing.T, repo *repository.Repository, code string, rating int) *models.Review {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	rv := &models.Review{
		ID:        uuid.NewString(),
		Name:      "Test reviewer",
		Rating:    rating,
		Comment:   "A perfectly ordinary comment.",
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.InsertReview(ctx, rv))
	_, err := repo.SetCodeUsed(ctx, code, now)
	require.NoError(t, err)
	return rv
}

// NewTestAdmin creates an admin with the given bcrypt hash.
func NewTestAdmin(t *testing.T, repo *repository.Repository, email, passwordHash string) *models.Admin {
	t.Helper()
	admin, err := repo.CreateAdmin(context.Background(), email, passwordHash)
	require.NoError(t, err)
	return admin
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}
