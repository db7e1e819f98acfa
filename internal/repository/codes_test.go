// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"testing"
	"time"

	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"codeberg.org/procclean/reviewgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertCode_Duplicate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	first := testutil.NewTestCode(t, repo, "PROC0001")

	dup := *first
	dup.ID = "other-id"
	err := repo.InsertCode(ctx, &dup)

	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestGetCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	c := testutil.NewTestCode(t, repo, "PROC0001")

	byID, err := repo.GetCodeByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "PROC0001", byID.Code)
	assert.Equal(t, models.CodeAvailable, byID.Status)
	assert.Nil(t, byID.UsedAt)
	assert.WithinDuration(t, c.CreatedAt, byID.CreatedAt, time.Second)

	_, err = repo.GetCodeByValue(ctx, "NOPE0001")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestClaimCode_OnlyOnce(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestCode(t, repo, "PROC0001")
	now := time.Now().UTC()

	ok, err := repo.ClaimCode(ctx, "PROC0001", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimCode(ctx, "PROC0001", now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ClaimCode(ctx, "MISSING1", now)
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := repo.GetCodeByValue(ctx, "PROC0001")
	require.NoError(t, err)
	assert.True(t, c.IsUsed())
	assert.NotNil(t, c.UsedAt)
}

func TestSetCodeUsedAndAvailable(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestCode(t, repo, "PROC0001")
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	found, err := repo.SetCodeUsed(ctx, "PROC0001", first)
	require.NoError(t, err)
	assert.True(t, found)

	// Idempotent: a second call keeps the original timestamp.
	found, err = repo.SetCodeUsed(ctx, "PROC0001", first.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, found)

	c, err := repo.GetCodeByValue(ctx, "PROC0001")
	require.NoError(t, err)
	require.NotNil(t, c.UsedAt)
	assert.True(t, first.Equal(*c.UsedAt))

	found, err = repo.SetCodeAvailable(ctx, "PROC0001")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.SetCodeAvailable(ctx, "MISSING1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestListCodes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestCode(t, repo, "AVAIL001")
	testutil.NewTestCode(t, repo, "USED0001")
	testutil.NewTestReview(t, repo, "USED0001", 5)

	available, err := repo.ListCodes(ctx, models.CodeAvailable)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "AVAIL001", available[0].Code)

	used, err := repo.ListCodes(ctx, models.CodeUsed)
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, "USED0001", used[0].Code)

	values, err := repo.ListCodeValues(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AVAIL001", "USED0001"}, values)

	count, err := repo.CountCodes(ctx, models.CodeAvailable)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteCode(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	c := testutil.NewTestCode(t, repo, "PROC0001")

	require.NoError(t, repo.DeleteCode(ctx, c.ID))
	assert.ErrorIs(t, repo.DeleteCode(ctx, c.ID), repository.ErrNotFound)
}

func TestListUsedCodesWithoutReview(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.NewTestCode(t, repo, "GOOD0001")
	testutil.NewTestReview(t, repo, "GOOD0001", 4)
	testutil.NewTestCode(t, repo, "LONE0001")
	_, err := repo.SetCodeUsed(ctx, "LONE0001", time.Now().UTC())
	require.NoError(t, err)

	codes, err := repo.ListUsedCodesWithoutReview(ctx)

	require.NoError(t, err)
	require.Len(t, codes, 1)
	assert.Equal(t, "LONE0001", codes[0].Code)
}
