// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package audit records broken code/review invariants for admins.
// Nothing here repairs data.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/metrics"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/repository"
)

// Service handles audit operations.
type Service struct {
	repo *repository.Repository
	now  func() time.Time
}

// NewService creates a new audit service.
func NewService(repo *repository.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Record stores an inconsistency. Pass the transaction-bound repository
// when called inside WithTx; nil uses the service's own.
func (s *Service) Record(ctx context.Context, repo *repository.Repository, e models.AuditEntry) error {
	if repo == nil {
		repo = s.repo
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}

	slog.Warn("inconsistency_recorded",
		"kind", e.Kind,
		"code", e.Code,
		"review_id", e.ReviewID,
		"detail", e.Detail,
	)
	metrics.InconsistenciesTotal.WithLabelValues(string(e.Kind)).Inc()

	return apperr.StoreOp("insert audit entry", repo.InsertAudit(ctx, &e))
}

// List returns audit entries, open ones only unless includeResolved.
func (s *Service) List(ctx context.Context, includeResolved bool) ([]models.AuditEntry, error) {
	entries, err := s.repo.ListAudit(ctx, includeResolved)
	if err != nil {
		return nil, apperr.StoreOp("list audit entries", err)
	}
	return entries, nil
}

// Resolve marks an entry as acknowledged by an admin.
func (s *Service) Resolve(ctx context.Context, id int64) error {
	err := s.repo.ResolveAudit(ctx, id, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("audit entry")
	}
	return apperr.StoreOp("resolve audit entry", err)
}

// Report summarizes a reconciliation scan.
type Report struct {
	UsedWithoutReview int `json:"usedWithoutReview"`
	ReviewOnAvailable int `json:"reviewOnAvailable"`
	ReviewWithoutCode int `json:"reviewWithoutCode"`
	Recorded          int `json:"recorded"`
}

// Found is the number of broken invariants seen, recorded or not.
func (r Report) Found() int {
	return r.UsedWithoutReview + r.ReviewOnAvailable + r.ReviewWithoutCode
}

// Err returns an Inconsistency error when the scan found any broken
// invariant, nil otherwise.
func (r Report) Err() error {
	if n := r.Found(); n > 0 {
		return apperr.Inconsistency(fmt.Sprintf("%d broken code/review pairs", n))
	}
	return nil
}

// Reconcile scans codes and reviews for invariant breaks and records an
// entry for each one that has no open entry yet.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	report := &Report{}

	codes, err := s.repo.ListUsedCodesWithoutReview(ctx)
	if err != nil {
		return nil, apperr.StoreOp("scan used codes", err)
	}
	for _, c := range codes {
		report.UsedWithoutReview++
		recorded, err := s.recordOnce(ctx, models.AuditEntry{
			Kind:   models.AuditUsedWithoutReview,
			Code:   c.Code,
			Detail: "code is used but no review references it",
		})
		if err != nil {
			return nil, err
		}
		if recorded {
			report.Recorded++
		}
	}

	rows, err := s.repo.ListReviewsWithoutUsedCode(ctx)
	if err != nil {
		return nil, apperr.StoreOp("scan reviews", err)
	}
	for _, row := range rows {
		entry := models.AuditEntry{Code: row.Code, ReviewID: row.ReviewID}
		if row.CodeStatus == "" {
			report.ReviewWithoutCode++
			entry.Kind = models.AuditOrphanedReview
			entry.Detail = "review references a code that no longer exists"
		} else {
			report.ReviewOnAvailable++
			entry.Kind = models.AuditReviewOnAvailable
			entry.Detail = fmt.Sprintf("review references a code in state %q", row.CodeStatus)
		}
		recorded, err := s.recordOnce(ctx, entry)
		if err != nil {
			return nil, err
		}
		if recorded {
			report.Recorded++
		}
	}

	slog.Info("reconcile_finished", "found", report.Found(), "recorded", report.Recorded)
	return report, nil
}

func (s *Service) recordOnce(ctx context.Context, e models.AuditEntry) (bool, error) {
	open, err := s.repo.HasOpenAudit(ctx, e.Kind, e.Code, e.ReviewID)
	if err != nil {
		return false, apperr.StoreOp("check audit entry", err)
	}
	if open {
		return false, nil
	}
	return true, s.Record(ctx, nil, e)
}
