// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package reviews_test

import (
	"context"
	"testing"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImport_OneGoodOneBad(t *testing.T) {
	f := newFixture(t, 5)

	raw := `[
		{"name": "Ana", "rating": 5, "comment": "Excelente trabajo de limpieza"},
		{"name": "", "rating": 7, "comment": "x"}
	]`
	result, err := f.svc.Import(context.Background(), []byte(raw))

	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Dropped)
}

func TestImport_CodeHandling(t *testing.T) {
	f := newFixture(t, 5)
	ctx := context.Background()
	testutil.NewTestCode(t, f.repo, "AVAIL001")
	testutil.NewTestCode(t, f.repo, "USED0001")
	testutil.NewTestReview(t, f.repo, "USED0001", 4)

	raw := `{"reviews": [
		{"name": "Ana", "rating": 5, "comment": "Excelente trabajo de limpieza", "code": "AVAIL001"},
		{"name": "Luis", "rating": 4, "comment": "Muy buena atención del equipo", "code": "NEW00001", "createdAt": "2023-11-02T15:00:00Z"},
		{"name": "Eva", "rating": 3, "comment": "Cumplieron con lo acordado", "code": "USED0001"},
		{"name": "Tom", "rating": 5, "comment": "Great cleaning crew, thanks"}
	]}`
	result, err := f.svc.Import(ctx, []byte(raw))

	require.NoError(t, err)
	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Dropped)

	c, err := f.repo.GetCodeByValue(ctx, "NEW00001")
	require.NoError(t, err)
	assert.True(t, c.IsUsed())

	rv, err := f.repo.GetReviewByCode(ctx, "NEW00001")
	require.NoError(t, err)
	assert.Equal(t, 2023, rv.CreatedAt.Year())

	available, err := f.codes.ListAvailable(ctx)
	require.NoError(t, err)
	assert.Empty(t, available)

	used, err := f.codes.ListUsed(ctx)
	require.NoError(t, err)
	assert.Len(t, used, 4)

	report, err := f.audit.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Found())
}

func TestImport_BadShape(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.svc.Import(context.Background(), []byte(`{"codes": []}`))

	assert.ErrorIs(t, err, apperr.ErrValidation)
}
