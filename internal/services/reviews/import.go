// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package reviews

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/metrics"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"codeberg.org/procclean/reviewgate/internal/services/codes"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"github.com/google/uuid"
)

// importPrefix marks codes synthesized for imported reviews without one.
const importPrefix = "IMP"

// maxSynthAttempts bounds retries when a synthesized code is taken.
const maxSynthAttempts = 5

var errSkip = errors.New("skip record")

// ImportResult counts the outcome of a batch import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Dropped  int `json:"dropped"`
}

// Import stores the well-formed reviews of a JSON batch. Each record
// runs in its own transaction: it claims its available code, or creates
// the code as used when none exists. Records whose code is already used
// are skipped.
func (s *Service) Import(ctx context.Context, raw []byte) (*ImportResult, error) {
	batch, err := sanitize.ValidateImportedBatch(raw, sanitize.BatchReviews)
	if err != nil {
		return nil, apperr.Validation(map[string]string{"batch": err.Error()})
	}

	result := &ImportResult{Dropped: batch.Dropped}
	for _, rec := range batch.Reviews {
		err := s.importOne(ctx, rec)
		switch {
		case err == nil:
			result.Imported++
		case errors.Is(err, errSkip):
			result.Skipped++
		default:
			return result, err
		}
	}

	metrics.ReviewsImportedTotal.Add(float64(result.Imported))
	slog.Info("reviews_imported", "imported", result.Imported, "skipped", result.Skipped, "dropped", result.Dropped)
	return result, nil
}

func (s *Service) importOne(ctx context.Context, rec sanitize.ImportedReview) error {
	at := s.now().UTC()
	if rec.CreatedAt != nil {
		at = *rec.CreatedAt
	}

	return s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		code, err := s.importCode(ctx, tx, rec.Code, at)
		if err != nil {
			return err
		}

		rv := &models.Review{
			ID:        uuid.NewString(),
			Name:      rec.Name,
			Rating:    rec.Rating,
			Comment:   rec.Comment,
			Project:   rec.Project,
			Code:      code,
			Flagged:   rec.Flagged,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := tx.InsertReview(ctx, rv); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return errSkip
			}
			return apperr.StoreOp("import review", err)
		}
		return nil
	})
}

// importCode leaves the record's code used and returns it. An empty
// code is replaced by a fresh synthesized one.
func (s *Service) importCode(ctx context.Context, tx *repository.Repository, code string, at time.Time) (string, error) {
	if code == "" {
		return s.synthesizeCode(ctx, tx, at)
	}

	c, err := tx.GetCodeByValue(ctx, code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		if err := insertUsedCode(ctx, tx, code, at); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return "", errSkip
			}
			return "", err
		}
		return code, nil
	case err != nil:
		return "", apperr.StoreOp("get code", err)
	case c.IsUsed():
		slog.Info("import_review_skipped", "code", code, "reason", "code already used")
		return "", errSkip
	}

	// The immediate transaction already holds the write lock, so the
	// status read above cannot go stale.
	if err := s.codes.WithRepo(tx).MarkUsed(ctx, code); err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) synthesizeCode(ctx context.Context, tx *repository.Repository, at time.Time) (string, error) {
	for range maxSynthAttempts {
		code, err := codes.RandomCode(importPrefix)
		if err != nil {
			return "", err
		}
		err = insertUsedCode(ctx, tx, code, at)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		return code, err
	}
	return "", apperr.Conflict("could not allocate a code for an imported review")
}

func insertUsedCode(ctx context.Context, tx *repository.Repository, code string, at time.Time) error {
	err := tx.InsertCode(ctx, &models.AccessCode{
		ID:          uuid.NewString(),
		Code:        code,
		ClientLabel: "imported",
		Status:      models.CodeUsed,
		CreatedAt:   at,
		UsedAt:      &at,
	})
	if err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return apperr.StoreOp("insert imported code", err)
	}
	return err
}
