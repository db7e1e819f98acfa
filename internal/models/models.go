// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package models holds the persisted records. Field tags map to the
// SQLite columns created by the goose migrations.
package models

import (
	"time"
)

// CodeStatus is the lifecycle state of an access code.
type CodeStatus string

const (
	CodeAvailable CodeStatus = "available"
	CodeUsed      CodeStatus = "used"
)

// Valid reports whether s is a known status.
func (s CodeStatus) Valid() bool {
	return s == CodeAvailable || s == CodeUsed
}

// AccessCode is a single-use token that unlocks one review.
type AccessCode struct {
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UsedAt      *time.Time `db:"used_at" json:"usedAt"`
	ID          string     `db:"id" json:"id"`
	Code        string     `db:"code" json:"code"`
	ClientLabel string     `db:"client_label" json:"clientLabel"`
	Status      CodeStatus `db:"status" json:"status"`
}

// IsUsed reports whether the code has been redeemed.
func (c *AccessCode) IsUsed() bool {
	return c.Status == CodeUsed
}

// Review is a customer review authorized by exactly one access code.
type Review struct { //nolint:govet // fieldalignment not critical for models
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	Project   string    `db:"project" json:"project"`
	Code      string    `db:"code" json:"code"`
	Flagged   bool      `db:"flagged" json:"flagged"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// PublicReview is the subset of a review shown to visitors.
type PublicReview struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Comment   string    `json:"comment"`
	Project   string    `json:"project,omitempty"`
	Rating    int       `json:"rating"`
}

// Public strips the redeeming code and moderation state.
func (r *Review) Public() PublicReview {
	return PublicReview{
		ID:        r.ID,
		Name:      r.Name,
		Rating:    r.Rating,
		Comment:   r.Comment,
		Project:   r.Project,
		CreatedAt: r.CreatedAt,
	}
}
