// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"

	"codeberg.org/procclean/reviewgate/internal/models"
)

const reviewColumns = `id, name, rating, comment, project, code, flagged, created_at, updated_at`

// InsertReview stores rv. A second review for the same code is rejected
// with ErrDuplicate.
func (r *Repository) InsertReview(ctx context.Context, rv *models.Review) error {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code) DO NOTHING`,
		rv.ID, rv.Name, rv.Rating, rv.Comment, rv.Project, rv.Code, rv.Flagged, rv.CreatedAt, rv.UpdatedAt)
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

// GetReview retrieves a review by id.
func (r *Repository) GetReview(ctx context.Context, id string) (*models.Review, error) {
	var rv models.Review
	err := r.q.GetContext(ctx, &rv, `SELECT `+reviewColumns+` FROM reviews WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rv, nil
}

// GetReviewByCode retrieves the review redeemed with code.
func (r *Repository) GetReviewByCode(ctx context.Context, code string) (*models.Review, error) {
	var rv models.Review
	err := r.q.GetContext(ctx, &rv, `SELECT `+reviewColumns+` FROM reviews WHERE code = ?`, code)
	if err != nil {
		return nil, wrapError(err)
	}
	return &rv, nil
}

// ListReviews returns reviews newest first. Flagged reviews are left out
// unless includeFlagged is set.
func (r *Repository) ListReviews(ctx context.Context, includeFlagged bool) ([]models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews`
	if !includeFlagged {
		query += ` WHERE flagged = 0`
	}
	query += ` ORDER BY created_at DESC, id`

	reviews := []models.Review{}
	err := r.q.SelectContext(ctx, &reviews, query)
	return reviews, err
}

// ListPublishedRatings returns the ratings of all unflagged reviews.
func (r *Repository) ListPublishedRatings(ctx context.Context) ([]int, error) {
	var ratings []int
	err := r.q.SelectContext(ctx, &ratings, `SELECT rating FROM reviews WHERE flagged = 0`)
	return ratings, err
}

// UpdateReview writes the editable fields of rv.
func (r *Repository) UpdateReview(ctx context.Context, rv *models.Review) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE reviews SET name = ?, rating = ?, comment = ?, project = ?, flagged = ?, updated_at = ?
		 WHERE id = ?`,
		rv.Name, rv.Rating, rv.Comment, rv.Project, rv.Flagged, rv.UpdatedAt, rv.ID)
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

// DeleteReview removes a review by id.
func (r *Repository) DeleteReview(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id)
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

// ListReviewsWithoutUsedCode finds reviews whose code is missing or
// still available. codeStatus is empty when the code row is gone.
func (r *Repository) ListReviewsWithoutUsedCode(ctx context.Context) ([]ReviewCodeState, error) {
	rows := []ReviewCodeState{}
	err := r.q.SelectContext(ctx, &rows,
		`SELECT rv.id, rv.code, COALESCE(c.status, '') AS code_status
		 FROM reviews rv
		 LEFT JOIN access_codes c ON c.code = rv.code
		 WHERE c.id IS NULL OR c.status <> 'used'
		 ORDER BY rv.code`)
	return rows, err
}

// ReviewCodeState pairs a review with the state of its code.
type ReviewCodeState struct {
	ReviewID   string            `db:"id"`
	Code       string            `db:"code"`
	CodeStatus models.CodeStatus `db:"code_status"`
}
