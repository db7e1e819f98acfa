// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth authenticates admins against bcrypt hashes, throttled by
// a per-email fixed window.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/metrics"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"codeberg.org/procclean/reviewgate/internal/services/ratelimit"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrAdminExists        = errors.New("admin already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

type Service struct {
	repo    *repository.Repository
	limiter *ratelimit.Limiter
	now     func() time.Time
	cost    int
}

// NewService creates an auth service. limiter counts failed logins per
// normalized e-mail.
func NewService(repo *repository.Repository, limiter *ratelimit.Limiter) *Service {
	return &Service{
		repo:    repo,
		limiter: limiter,
		now:     time.Now,
		cost:    bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAdmin adds an admin account.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (*models.Admin, error) {
	email = normalizeEmail(email)
	if !sanitize.ValidateEmail(email) {
		return nil, ErrInvalidEmail
	}
	if err := CheckPassword(password, email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin, err := s.repo.CreateAdmin(ctx, email, string(hash))
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, ErrAdminExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}

	slog.Info("admin_created", "admin_id", admin.ID, "email", email)
	return admin, nil
}

// Login authenticates an admin. Failed attempts count against the
// e-mail's window; a success clears it.
func (s *Service) Login(ctx context.Context, email, password string) (*models.Admin, error) {
	key := normalizeEmail(email)

	if res := s.limiter.Check(key); !res.Allowed {
		slog.Warn("login_rate_limited", "email", key)
		metrics.LoginsTotal.WithLabelValues("rate_limited").Inc()
		return nil, apperr.RateLimited(res.RetryAfter(s.now()))
	}

	admin, err := s.repo.GetAdminByEmail(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Constant-time: always perform bcrypt comparison to prevent timing attacks
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, s.fail(key, "admin_not_found")
		}
		return nil, apperr.StoreOp("get admin", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, s.fail(key, "invalid_password")
	}

	s.limiter.Reset(key)
	metrics.LoginsTotal.WithLabelValues("success").Inc()
	slog.Info("login_success", "admin_id", admin.ID, "email", key)
	return admin, nil
}

func (s *Service) fail(key, reason string) error {
	s.limiter.Increment(key)
	metrics.LoginsTotal.WithLabelValues("failure").Inc()
	slog.Warn("login_failed", "email", key, "reason", reason)
	return ErrInvalidCredentials
}

// ChangePassword changes an admin's password when the current one is
// known. Wrong current passwords count against the admin's login window.
func (s *Service) ChangePassword(ctx context.Context, adminID int64, currentPassword, newPassword string) error {
	admin, err := s.repo.GetAdminByID(ctx, adminID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("admin")
	}
	if err != nil {
		return apperr.StoreOp("get admin", err)
	}

	key := normalizeEmail(admin.Email)
	if res := s.limiter.Check(key); !res.Allowed {
		slog.Warn("password_change_rate_limited", "admin_id", adminID)
		return apperr.RateLimited(res.RetryAfter(s.now()))
	}
	if err = bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(currentPassword)); err != nil {
		s.limiter.Increment(key)
		slog.Warn("password_change_failed", "admin_id", adminID)
		return ErrInvalidCredentials
	}
	if err := CheckPassword(newPassword, admin.Email); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdateAdminPassword(ctx, adminID, string(hash)); err != nil {
		return apperr.StoreOp("update admin password", err)
	}

	slog.Info("admin_password_changed", "admin_id", adminID)
	return nil
}

// EnsureAdmin creates the given admin unless at least one admin exists.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	count, err := s.repo.CountAdmins(ctx)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := s.CreateAdmin(ctx, email, password); err != nil && !errors.Is(err, ErrAdminExists) {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	return nil
}

// Admin returns the admin with the given id.
func (s *Service) Admin(ctx context.Context, id int64) (*models.Admin, error) {
	admin, err := s.repo.GetAdminByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("admin")
	}
	if err != nil {
		return nil, apperr.StoreOp("get admin", err)
	}
	return admin, nil
}
