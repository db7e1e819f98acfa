// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package codes manages the lifecycle of single-use access codes.
package codes

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
	"codeberg.org/procclean/reviewgate/internal/services/audit"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"github.com/google/uuid"
)

// Service handles access code operations.
type Service struct {
	repo  *repository.Repository
	audit *audit.Service
	now   func() time.Time
}

// NewService creates a new code ledger service.
func NewService(repo *repository.Repository, auditSvc *audit.Service) *Service {
	return &Service{repo: repo, audit: auditSvc, now: time.Now}
}

// WithRepo returns a copy of s bound to repo, typically a transaction.
func (s *Service) WithRepo(repo *repository.Repository) *Service {
	c := *s
	c.repo = repo
	return &c
}

// Normalize trims and uppercases a user-entered code.
func Normalize(code string) string {
	return sanitize.NormalizeCode(code)
}

// ValidFormat reports whether code, once normalized, is 4 to 20 letters
// or digits.
func ValidFormat(code string) bool {
	return sanitize.ValidCode(Normalize(code))
}

// Create stores a new available code. Unlike redemption, the value must
// already be uppercase.
func (s *Service) Create(ctx context.Context, code, clientLabel string) (*models.AccessCode, error) {
	code = strings.TrimSpace(code)
	if !sanitize.ValidCode(code) {
		return nil, apperr.InvalidFormat(fmt.Sprintf("code must be %d to %d uppercase letters or digits",
			sanitize.MinCodeLength, sanitize.MaxCodeLength))
	}

	c := s.newCode(code, clientLabel, nil)
	if err := s.repo.InsertCode(ctx, c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("code already exists")
		}
		return nil, apperr.StoreOp("insert code", err)
	}

	metrics.CodesTotal.WithLabelValues("created").Inc()
	slog.Info("code_created", "code", c.Code, "id", c.ID)
	return c, nil
}

func (s *Service) newCode(code, clientLabel string, createdAt *time.Time) *models.AccessCode {
	at := s.now().UTC()
	if createdAt != nil {
		at = *createdAt
	}
	return &models.AccessCode{
		ID:          uuid.NewString(),
		Code:        code,
		ClientLabel: sanitize.SanitizeText(clientLabel, sanitize.MaxLabelLength),
		Status:      models.CodeAvailable,
		CreatedAt:   at,
	}
}

// ListAvailable returns codes that can still be redeemed.
func (s *Service) ListAvailable(ctx context.Context) ([]models.AccessCode, error) {
	return s.List(ctx, models.CodeAvailable)
}

// ListUsed returns redeemed codes.
func (s *Service) ListUsed(ctx context.Context) ([]models.AccessCode, error) {
	return s.List(ctx, models.CodeUsed)
}

// List returns codes in the given state.
func (s *Service) List(ctx context.Context, status models.CodeStatus) ([]models.AccessCode, error) {
	if !status.Valid() {
		return nil, apperr.Validation(map[string]string{"status": "must be available or used"})
	}
	codes, err := s.repo.ListCodes(ctx, status)
	if err != nil {
		return nil, apperr.StoreOp("list codes", err)
	}
	return codes, nil
}

// Get returns a code by id.
func (s *Service) Get(ctx context.Context, id string) (*models.AccessCode, error) {
	c, err := s.repo.GetCodeByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("code")
	}
	if err != nil {
		return nil, apperr.StoreOp("get code", err)
	}
	return c, nil
}

// IsAvailable reports whether code exists and has not been redeemed.
func (s *Service) IsAvailable(ctx context.Context, code string) (bool, error) {
	c, err := s.repo.GetCodeByValue(ctx, code)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.StoreOp("get code", err)
	}
	return !c.IsUsed(), nil
}

// Counts is the number of codes per state.
type Counts struct {
	Available int64 `json:"available"`
	Used      int64 `json:"used"`
}

// Count returns how many codes are available and how many are spent.
func (s *Service) Count(ctx context.Context) (*Counts, error) {
	available, err := s.repo.CountCodes(ctx, models.CodeAvailable)
	if err != nil {
		return nil, apperr.StoreOp("count codes", err)
	}
	used, err := s.repo.CountCodes(ctx, models.CodeUsed)
	if err != nil {
		return nil, apperr.StoreOp("count codes", err)
	}
	return &Counts{Available: available, Used: used}, nil
}

// Claim flips code from available to used in one conditional write. A
// missing or already used code yields CodeInvalidOrUsed, so of two
// concurrent claims exactly one wins.
func (s *Service) Claim(ctx context.Context, code string) error {
	ok, err := s.repo.ClaimCode(ctx, code, s.now().UTC())
	if err != nil {
		return apperr.StoreOp("claim code", err)
	}
	if !ok {
		return apperr.CodeInvalidOrUsed()
	}
	return nil
}

// MarkUsed marks code used. A missing code is logged and audited, not
// returned as an error, so retries stay idempotent.
func (s *Service) MarkUsed(ctx context.Context, code string) error {
	found, err := s.repo.SetCodeUsed(ctx, code, s.now().UTC())
	if err != nil {
		return apperr.StoreOp("mark code used", err)
	}
	if !found {
		return s.recordMissing(ctx, code, "mark used")
	}
	return nil
}

// Release makes code available again. A missing code is logged and
// audited, not returned as an error.
func (s *Service) Release(ctx context.Context, code string) error {
	found, err := s.repo.SetCodeAvailable(ctx, code)
	if err != nil {
		return apperr.StoreOp("release code", err)
	}
	if !found {
		return s.recordMissing(ctx, code, "release")
	}
	metrics.CodesTotal.WithLabelValues("released").Inc()
	slog.Info("code_released", "code", code)
	return nil
}

func (s *Service) recordMissing(ctx context.Context, code, op string) error {
	slog.Warn("code_not_found", "code", code, "op", op)
	return s.audit.Record(ctx, s.repo, models.AuditEntry{
		Kind:   models.AuditMissingCode,
		Code:   code,
		Detail: op + " found no code document",
	})
}

// Delete removes a code regardless of its state. Deleting a used code
// keeps its review and records an orphaned_review audit entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		c, err := tx.GetCodeByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("code")
		}
		if err != nil {
			return apperr.StoreOp("get code", err)
		}

		if err := tx.DeleteCode(ctx, id); err != nil {
			return apperr.StoreOp("delete code", err)
		}

		if c.IsUsed() {
			entry := models.AuditEntry{
				Kind:   models.AuditOrphanedReview,
				Code:   c.Code,
				Detail: "used code deleted by admin; review kept",
			}
			if rv, err := tx.GetReviewByCode(ctx, c.Code); err == nil {
				entry.ReviewID = rv.ID
			} else if !errors.Is(err, repository.ErrNotFound) {
				return apperr.StoreOp("get review by code", err)
			}
			if err := s.audit.Record(ctx, tx, entry); err != nil {
				return err
			}
		}

		metrics.CodesTotal.WithLabelValues("deleted").Inc()
		slog.Info("code_deleted", "code", c.Code, "id", id, "status", c.Status)
		return nil
	})
}
