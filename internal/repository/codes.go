// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/procclean/reviewgate/internal/models"
)

const codeColumns = `id, code, client_label, status, created_at, used_at`

// InsertCode stores c unless its code value already exists. The unique
// constraint decides; there is no read before the write.
func (r *Repository) InsertCode(ctx context.Context, c *models.AccessCode) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO access_codes (`+codeColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO NOTHING`,
		c.ID, c.Code, c.ClientLabel, c.Status, c.CreatedAt, c.UsedAt)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

// GetCodeByID retrieves a code by its id.
func (r *Repository) GetCodeByID(ctx context.Context, id string) (*models.AccessCode, error) {
	var c models.AccessCode
	err := r.q.GetContext(ctx, &c, `SELECT `+codeColumns+` FROM access_codes WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// GetCodeByValue retrieves a code by its token.
func (r *Repository) GetCodeByValue(ctx context.Context, code string) (*models.AccessCode, error) {
	var c models.AccessCode
	err := r.q.GetContext(ctx, &c, `SELECT `+codeColumns+` FROM access_codes WHERE code = ?`, code)
	if err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// ListCodes returns codes with the given status, newest first.
func (r *Repository) ListCodes(ctx context.Context, status models.CodeStatus) ([]models.AccessCode, error) {
	order := "created_at DESC"
	if status == models.CodeUsed {
		order = "used_at DESC"
	}
	codes := []models.AccessCode{}
	err := r.q.SelectContext(ctx, &codes,
		`SELECT `+codeColumns+` FROM access_codes WHERE status = ? ORDER BY `+order+`, code`, status)
	return codes, err
}

// ListCodeValues returns every stored code token.
func (r *Repository) ListCodeValues(ctx context.Context) ([]string, error) {
	var values []string
	err := r.q.SelectContext(ctx, &values, `SELECT code FROM access_codes`)
	return values, err
}

// CountCodes returns the number of codes with the given status.
func (r *Repository) CountCodes(ctx context.Context, status models.CodeStatus) (int64, error) {
	var count int64
	err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM access_codes WHERE status = ?`, status)
	return count, err
}

// ClaimCode flips code from available to used in one conditional write.
// It reports false when the code is missing or already used.
func (r *Repository) ClaimCode(ctx context.Context, code string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE access_codes SET status = 'used', used_at = ? WHERE code = ? AND status = 'available'`,
		at, code)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SetCodeUsed marks code used, keeping an existing used_at. It reports
// false only when no such code exists.
func (r *Repository) SetCodeUsed(ctx context.Context, code string, at time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE access_codes SET status = 'used', used_at = COALESCE(used_at, ?) WHERE code = ?`,
		at, code)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// SetCodeAvailable marks code available again. It reports false only
// when no such code exists.
func (r *Repository) SetCodeAvailable(ctx context.Context, code string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE access_codes SET status = 'available', used_at = NULL WHERE code = ?`, code)
	if err != nil {
		return false, err
	}
	return affected(res)
}

// DeleteCode removes a code by id.
func (r *Repository) DeleteCode(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM access_codes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ListUsedCodesWithoutReview finds used codes no review references.
func (r *Repository) ListUsedCodesWithoutReview(ctx context.Context) ([]models.AccessCode, error) {
	codes := []models.AccessCode{}
	err := r.q.SelectContext(ctx, &codes,
		`SELECT c.id, c.code, c.client_label, c.status, c.created_at, c.used_at
		 FROM access_codes c
		 LEFT JOIN reviews rv ON rv.code = c.code
		 WHERE c.status = 'used' AND rv.id IS NULL
		 ORDER BY c.code`)
	return codes, err
}
