// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package audit_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/services/audit"
	"codeberg.org/procclean/reviewgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndList(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := audit.NewService(repo)
	ctx := context.Background()

	err := svc.Record(ctx, nil, models.AuditEntry{
		Kind:   models.AuditMissingCode,
		Code:   "PROC0001",
		Detail: "release found no code",
	})
	require.NoError(t, err)

	entries, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditMissingCode, entries[0].Kind)
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestResolve(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := audit.NewService(repo)
	ctx := context.Background()
	require.NoError(t, svc.Record(ctx, nil, models.AuditEntry{Kind: models.AuditMissingCode, Code: "X"}))
	entries, err := svc.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, svc.Resolve(ctx, entries[0].ID))

	entries, err = svc.List(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, svc.Resolve(ctx, 12345), apperr.ErrNotFound)
}

func TestReconcile_FindsEveryBreakOnce(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := audit.NewService(repo)
	ctx := context.Background()

	testutil.NewTestCode(t, repo, "GOOD0001")
	testutil.NewTestReview(t, repo, "GOOD0001", 5)

	testutil.NewTestCode(t, repo, "LONE0001")
	_, err := repo.SetCodeUsed(ctx, "LONE0001", time.Now().UTC())
	require.NoError(t, err)

	testutil.NewTestCode(t, repo, "AVAIL001")
	testutil.NewTestReview(t, repo, "AVAIL001", 4)
	_, err = repo.SetCodeAvailable(ctx, "AVAIL001")
	require.NoError(t, err)

	gone := testutil.NewTestCode(t, repo, "GONE0001")
	testutil.NewTestReview(t, repo, "GONE0001", 3)
	require.NoError(t, repo.DeleteCode(ctx, gone.ID))

	report, err := svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.UsedWithoutReview)
	assert.Equal(t, 1, report.ReviewOnAvailable)
	assert.Equal(t, 1, report.ReviewWithoutCode)
	assert.Equal(t, 3, report.Found())
	assert.Equal(t, 3, report.Recorded)

	// A second scan finds the same breaks but records nothing new.
	report, err = svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Found())
	assert.Equal(t, 0, report.Recorded)

	// Nothing was repaired.
	c, err := repo.GetCodeByValue(ctx, "LONE0001")
	require.NoError(t, err)
	assert.True(t, c.IsUsed())
}

func TestReport_Err(t *testing.T) {
	assert.NoError(t, audit.Report{}.Err())

	err := audit.Report{UsedWithoutReview: 1, ReviewWithoutCode: 1}.Err()
	require.ErrorIs(t, err, apperr.ErrInconsistency)
	assert.Contains(t, err.Error(), "2 broken")
}
