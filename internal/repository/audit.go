// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/procclean/reviewgate/internal/models"
)

const auditColumns = `id, kind, code, review_id, detail, created_at, resolved_at`

// InsertAudit stores e and sets its ID.
func (r *Repository) InsertAudit(ctx context.Context, e *models.AuditEntry) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_log (kind, code, review_id, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Kind, e.Code, e.ReviewID, e.Detail, e.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

// ListAudit returns audit entries newest first. Resolved entries are
// left out unless includeResolved is set.
func (r *Repository) ListAudit(ctx context.Context, includeResolved bool) ([]models.AuditEntry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log`
	if !includeResolved {
		query += ` WHERE resolved_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	entries := []models.AuditEntry{}
	err := r.q.SelectContext(ctx, &entries, query)
	return entries, err
}

// HasOpenAudit reports whether an unresolved entry of kind exists for
// the code and review pair.
func (r *Repository) HasOpenAudit(ctx context.Context, kind models.AuditKind, code, reviewID string) (bool, error) {
	var exists bool
	err := r.q.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM audit_log WHERE kind = ? AND code = ? AND review_id = ? AND resolved_at IS NULL)`,
		kind, code, reviewID)
	return exists, err
}

// ResolveAudit marks an entry as acknowledged.
func (r *Repository) ResolveAudit(ctx context.Context, id int64, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE audit_log SET resolved_at = COALESCE(resolved_at, ?) WHERE id = ?`, at, id)
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
