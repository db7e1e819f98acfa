// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package codes

import (
	"context"
	"errors"
	"log/slog"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/metrics"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
)

// ImportResult counts the outcome of a batch import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Dropped  int `json:"dropped"`
}

// Import stores the well-formed records of a JSON batch as available
// codes. Malformed records are dropped; codes that already exist are
// skipped. The batch commits as a whole.
func (s *Service) Import(ctx context.Context, raw []byte) (*ImportResult, error) {
	batch, err := sanitize.ValidateImportedBatch(raw, sanitize.BatchCodes)
	if err != nil {
		return nil, apperr.Validation(map[string]string{"batch": err.Error()})
	}

	result := &ImportResult{Dropped: batch.Dropped}
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		for _, rec := range batch.Codes {
			c := s.newCode(rec.Code, rec.ClientLabel, rec.CreatedAt)
			// Already sanitized by the batch validator.
			c.ClientLabel = rec.ClientLabel
			if err := tx.InsertCode(ctx, c); err != nil {
				if errors.Is(err, repository.ErrDuplicate) {
					result.Skipped++
					continue
				}
				return apperr.StoreOp("import code", err)
			}
			result.Imported++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CodesTotal.WithLabelValues("imported").Add(float64(result.Imported))
	slog.Info("codes_imported", "imported", result.Imported, "skipped", result.Skipped, "dropped", result.Dropped)
	return result, nil
}
