// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the command tree against a fresh database file.
func run(t *testing.T, dsn string, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &out
	cmd.ErrWriter = &errOut
	cmd.Reader = strings.NewReader(stdin)

	argv := append([]string{"reviewgate", "--database-dsn", dsn, "--log-level", "error"}, args...)
	err := cmd.Run(context.Background(), argv)
	return out.String(), err
}

func tempDSN(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "reviewgate.db")
}

func TestCodesGenerateAndList(t *testing.T) {
	dsn := tempDSN(t)

	out, err := run(t, dsn, "", "codes", "generate", "--count", "3", "--prefix", "ab")
	require.NoError(t, err)
	var gen struct {
		Created []string `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &gen))
	assert.Len(t, gen.Created, 3)

	out, err = run(t, dsn, "", "codes", "list")
	require.NoError(t, err)
	var list []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 3)
}

func TestCodesImportFromStdin(t *testing.T) {
	out, err := run(t, tempDSN(t), `[{"code":"STDIN001"},{"code":"?"}]`, "codes", "import")

	require.NoError(t, err)
	assert.JSONEq(t, `{"imported":1,"skipped":0,"dropped":1}`, out)
}

func TestReviewsImportFromFile(t *testing.T) {
	dsn := tempDSN(t)
	file := filepath.Join(t.TempDir(), "reviews.json")
	require.NoError(t, os.WriteFile(file,
		[]byte(`{"reviews":[{"name":"Marta Gil","rating":5,"comment":"Flawless tiling, very tidy.","code":"OLD12345"}]}`), 0o600))

	out, err := run(t, dsn, "", "reviews", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, `"imported": 1`)

	out, err = run(t, dsn, "", "codes", "list", "--status", "used")
	require.NoError(t, err)
	assert.Contains(t, out, "OLD12345")

	out, err = run(t, dsn, "", "audit", "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, `"recorded": 0`)
}

func TestReviewsImport_MissingFile(t *testing.T) {
	_, err := run(t, tempDSN(t), "", "reviews", "import", "/does/not/exist.json")

	assert.ErrorContains(t, err, "reading /does/not/exist.json")
}

func TestAdminCreate(t *testing.T) {
	dsn := tempDSN(t)

	out, err := run(t, dsn, "", "admin", "create", "--email", "Owner@Example.com", "--password", "correct horse battery")
	require.NoError(t, err)
	assert.Contains(t, out, "owner@example.com")
	assert.NotContains(t, out, "correct horse battery")

	_, err = run(t, dsn, "", "admin", "create", "--email", "owner@example.com", "--password", "correct horse battery")
	assert.Error(t, err)
}

func TestAuditReconcile_Strict(t *testing.T) {
	dsn := tempDSN(t)
	_, err := run(t, dsn, `[{"code":"LONE0001"}]`, "codes", "import")
	require.NoError(t, err)

	_, err = run(t, dsn, "", "audit", "reconcile", "--strict")
	require.NoError(t, err)

	db, err := database.Open(dsn)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE access_codes SET status = 'used' WHERE code = 'LONE0001'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, dsn, "", "audit", "reconcile", "--strict")
	require.ErrorIs(t, err, apperr.ErrInconsistency)
	assert.Contains(t, out, `"usedWithoutReview": 1`)

	// Without --strict the report is the whole answer.
	_, err = run(t, dsn, "", "audit", "reconcile")
	assert.NoError(t, err)
}

func TestDBStatusAndRollback(t *testing.T) {
	dsn := tempDSN(t)

	out, err := run(t, dsn, "", "db", "status")
	require.NoError(t, err)
	var status struct {
		Version int64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	require.Positive(t, status.Version)
	latest := status.Version

	out, err = run(t, dsn, "", "db", "rollback")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, latest-1, status.Version)
}
