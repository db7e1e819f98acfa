// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// AuditKind classifies an audit entry.
type AuditKind string

const (
	// AuditMissingCode: markUsed or release found no code document.
	AuditMissingCode AuditKind = "missing_code"
	// AuditOrphanedReview: a used code was deleted while its review remains.
	AuditOrphanedReview AuditKind = "orphaned_review"
	// AuditUsedWithoutReview: a code is used but no review references it.
	AuditUsedWithoutReview AuditKind = "used_without_review"
	// AuditReviewOnAvailable: a review references a code that is still available.
	AuditReviewOnAvailable AuditKind = "review_on_available_code"
	// AuditCodeMismatch: a delete request named a different code than the review holds.
	AuditCodeMismatch AuditKind = "code_mismatch"
)

// AuditEntry records an inconsistency for an admin to inspect. Entries
// are never acted on automatically.
type AuditEntry struct {
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolvedAt"`
	Kind       AuditKind  `db:"kind" json:"kind"`
	Code       string     `db:"code" json:"code"`
	ReviewID   string     `db:"review_id" json:"reviewId"`
	Detail     string     `db:"detail" json:"detail"`
	ID         int64      `db:"id" json:"id"`
}
