// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package reviews stores reviews and runs the code redemption protocol.
package reviews

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
	"codeberg.org/procclean/reviewgate/internal/services/audit"
	"codeberg.org/procclean/reviewgate/internal/services/codes"
	"codeberg.org/procclean/reviewgate/internal/services/ratelimit"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"codeberg.org/procclean/reviewgate/internal/services/stats"
	"github.com/google/uuid"
)

// notifyTimeout bounds a single notification attempt.
const notifyTimeout = 30 * time.Second

// Notifier is told about every newly submitted review. Errors are
// logged and never affect the submission.
type Notifier interface {
	NotifyReview(ctx context.Context, rv *models.Review) error
}

// Service handles review operations.
type Service struct {
	repo    *repository.Repository
	codes   *codes.Service
	audit   *audit.Service
	limiter *ratelimit.Limiter
	notify  []Notifier
	now     func() time.Time
	policy  sanitize.SpamPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier adds an admin notifier. Nil notifiers are ignored.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notify = append(s.notify, n)
		}
	}
}

// WithSpamPolicy sets what a spam hit does to a public submission.
func WithSpamPolicy(p sanitize.SpamPolicy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService creates a new review service. limiter is keyed by
// normalized code.
func NewService(repo *repository.Repository, codesSvc *codes.Service, auditSvc *audit.Service,
	limiter *ratelimit.Limiter, opts ...Option,
) *Service {
	s := &Service{
		repo:    repo,
		codes:   codesSvc,
		audit:   auditSvc,
		limiter: limiter,
		now:     time.Now,
		policy:  sanitize.SpamReject,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func invalidFormat() *apperr.Error {
	return apperr.InvalidFormat(fmt.Sprintf("code must be %d to %d letters or digits",
		sanitize.MinCodeLength, sanitize.MaxCodeLength))
}

// ValidateCode checks that code is well formed and redeemable without
// consuming it. It returns the normalized code.
func (s *Service) ValidateCode(ctx context.Context, code string) (string, error) {
	normalized := codes.Normalize(code)
	if !sanitize.ValidCode(normalized) {
		return "", invalidFormat()
	}
	ok, err := s.codes.IsAvailable(ctx, normalized)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.CodeInvalidOrUsed()
	}
	return normalized, nil
}

// Submit redeems code and stores the review in one step. The code claim
// and the review insert share a transaction: either both happen or
// neither does, and concurrent submissions for one code yield exactly
// one review.
func (s *Service) Submit(ctx context.Context, code string, in sanitize.ReviewInput) (rv *models.Review, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(apperr.KindOf(err))
		}
		metrics.RedemptionsTotal.WithLabelValues(outcome).Inc()
	}()

	normalized, err := s.ValidateCode(ctx, code)
	if err != nil {
		return nil, err
	}

	clean, flagged, fields := sanitize.ValidateReview(in, s.policy)
	if fields != nil {
		return nil, apperr.Validation(fields)
	}

	now := s.now()
	if res := s.limiter.Check(normalized); !res.Allowed {
		slog.Warn("review_rate_limited", "code", normalized)
		return nil, apperr.RateLimited(res.RetryAfter(now))
	}

	at := now.UTC()
	rv = &models.Review{
		ID:        uuid.NewString(),
		Name:      clean.Name,
		Rating:    clean.Rating,
		Comment:   clean.Comment,
		Project:   clean.Project,
		Code:      normalized,
		Flagged:   flagged,
		CreatedAt: at,
		UpdatedAt: at,
	}

	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := s.codes.WithRepo(tx).Claim(ctx, normalized); err != nil {
			return err
		}
		if err := tx.InsertReview(ctx, rv); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.CodeInvalidOrUsed()
			}
			return apperr.StoreOp("insert review", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.limiter.Increment(normalized)
	slog.Info("review_submitted", "review_id", rv.ID, "code", rv.Code, "rating", rv.Rating, "flagged", rv.Flagged)

	for _, n := range s.notify {
		go notify(context.WithoutCancel(ctx), n, rv)
	}
	return rv, nil
}

func notify(ctx context.Context, n Notifier, rv *models.Review) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := n.NotifyReview(ctx, rv); err != nil {
		slog.Error("review_notification_failed", "review_id", rv.ID, "error", err)
	}
}

// Delete removes a review and releases its code in one transaction. The
// stored code is authoritative; a different code from the caller is
// recorded as a mismatch.
func (s *Service) Delete(ctx context.Context, id, code string) error {
	var released string
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		rv, err := tx.GetReview(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("review")
		}
		if err != nil {
			return apperr.StoreOp("get review", err)
		}

		if given := codes.Normalize(code); given != "" && given != rv.Code {
			slog.Warn("review_code_mismatch", "review_id", id, "given", given, "stored", rv.Code)
			if err := s.audit.Record(ctx, tx, models.AuditEntry{
				Kind:     models.AuditCodeMismatch,
				Code:     rv.Code,
				ReviewID: rv.ID,
				Detail:   fmt.Sprintf("delete request named code %q", given),
			}); err != nil {
				return err
			}
		}

		if err := tx.DeleteReview(ctx, id); err != nil {
			return apperr.StoreOp("delete review", err)
		}
		released = rv.Code
		return s.codes.WithRepo(tx).Release(ctx, rv.Code)
	})
	if err != nil {
		return err
	}

	slog.Info("review_deleted", "review_id", id, "code", released)
	return nil
}

// UpdateInput carries an admin edit. A nil Flagged leaves moderation
// state unchanged.
type UpdateInput struct {
	Flagged *bool `json:"flagged"`
	sanitize.ReviewInput
}

// Update edits a review in place. The redeeming code never changes.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Review, error) {
	clean := sanitize.CleanReview(in.ReviewInput)
	if fields := sanitize.FieldErrors(clean); fields != nil {
		return nil, apperr.Validation(fields)
	}

	rv, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rv.Name = clean.Name
	rv.Rating = clean.Rating
	rv.Comment = clean.Comment
	rv.Project = clean.Project
	if in.Flagged != nil {
		rv.Flagged = *in.Flagged
	}
	rv.UpdatedAt = s.now().UTC()

	if err := s.repo.UpdateReview(ctx, rv); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("review")
		}
		return nil, apperr.StoreOp("update review", err)
	}

	slog.Info("review_updated", "review_id", id)
	return rv, nil
}

// Get returns a review by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Review, error) {
	rv, err := s.repo.GetReview(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("review")
	}
	if err != nil {
		return nil, apperr.StoreOp("get review", err)
	}
	return rv, nil
}

// List returns reviews newest first. Flagged reviews are only included
// for admins.
func (s *Service) List(ctx context.Context, includeFlagged bool) ([]models.Review, error) {
	list, err := s.repo.ListReviews(ctx, includeFlagged)
	if err != nil {
		return nil, apperr.StoreOp("list reviews", err)
	}
	return list, nil
}

// Stats recomputes the summary over published reviews.
func (s *Service) Stats(ctx context.Context) (stats.Summary, error) {
	ratings, err := s.repo.ListPublishedRatings(ctx)
	if err != nil {
		return stats.Summary{}, apperr.StoreOp("list ratings", err)
	}
	return stats.Compute(ratings), nil
}
