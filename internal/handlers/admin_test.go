// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"codeberg.org/procclean/reviewgate/internal/auth"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "correct horse battery"

func createAdmin(t *testing.T, f *fixture) *models.Admin {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	return testutil.NewTestAdmin(t, f.a.Repo, "owner@example.com", string(hash))
}

// callAs runs fn with admin in the request context, as RequireAdmin would.
func (f *fixture) callAs(admin *models.Admin, fn echo.HandlerFunc, method, path, body string, params ...string) *httptest.ResponseRecorder {
	c, rec := testutil.NewEchoContext(f.e, method, path, strings.NewReader(body))
	c.SetRequest(c.Request().WithContext(auth.WithAdmin(c.Request().Context(), admin)))
	if len(params) > 0 {
		names := make([]string, 0, len(params)/2)
		values := make([]string, 0, len(params)/2)
		for i := 0; i+1 < len(params); i += 2 {
			names = append(names, params[i])
			values = append(values, params[i+1])
		}
		c.SetParamNames(names...)
		c.SetParamValues(values...)
	}
	if err := fn(c); err != nil {
		f.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	createAdmin(t, f)

	rec := f.call(f.h.Login, http.MethodPost, "/admin/login",
		`{"email":"Owner@Example.com","password":"`+adminPassword+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "_reviewgate_admin", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.NotContains(t, rec.Body.String(), "passwordHash")
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newFixture(t)
	createAdmin(t, f)

	rec := f.call(f.h.Login, http.MethodPost, "/admin/login",
		`{"email":"owner@example.com","password":"wrong password!"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeError(t, rec).Error)
	assert.Empty(t, rec.Result().Cookies())
}

func TestLogin_RateLimited(t *testing.T) {
	f := newFixture(t)
	createAdmin(t, f)

	for range 3 {
		f.call(f.h.Login, http.MethodPost, "/admin/login", `{"email":"owner@example.com","password":"nope nope nope"}`)
	}
	rec := f.call(f.h.Login, http.MethodPost, "/admin/login",
		`{"email":"owner@example.com","password":"`+adminPassword+`"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLogout(t *testing.T) {
	f := newFixture(t)

	rec := f.call(f.h.Logout, http.MethodPost, "/admin/logout", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestSession(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.Session, http.MethodGet, "/admin/session", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "owner@example.com")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.ChangePassword, http.MethodPut, "/admin/password",
		`{"currentPassword":"wrong password!","newPassword":"another long passphrase"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "currentPassword")

	rec = f.callAs(admin, f.h.ChangePassword, http.MethodPut, "/admin/password",
		`{"currentPassword":"`+adminPassword+`","newPassword":"short"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "newPassword")

	rec = f.callAs(admin, f.h.ChangePassword, http.MethodPut, "/admin/password",
		`{"currentPassword":"`+adminPassword+`","newPassword":"another long passphrase"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.call(f.h.Login, http.MethodPost, "/admin/login",
		`{"email":"owner@example.com","password":"another long passphrase"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCodeCounts(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)
	testutil.NewTestCode(t, f.a.Repo, "ABCD1234")
	testutil.NewTestCode(t, f.a.Repo, "EFGH5678")
	require.Equal(t, http.StatusCreated, f.call(f.h.SubmitReview, http.MethodPost, "/api/reviews", validReview).Code)

	rec := f.callAs(admin, f.h.CodeCounts, http.MethodGet, "/admin/codes/stats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":1,"used":1}`, rec.Body.String())
}

func TestCodesLifecycle(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.CreateCode, http.MethodPost, "/admin/codes", `{"code":"KITCHEN01","clientLabel":"Garcia"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.AccessCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = f.callAs(admin, f.h.CreateCode, http.MethodPost, "/admin/codes", `{"code":"KITCHEN01"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.callAs(admin, f.h.GenerateCodes, http.MethodPost, "/admin/codes/generate", `{"prefix":"bath","count":3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var gen struct {
		Created []string `json:"created"`
		Partial bool     `json:"partial"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gen))
	assert.Len(t, gen.Created, 3)
	assert.False(t, gen.Partial)
	for _, c := range gen.Created {
		assert.True(t, strings.HasPrefix(c, "BATH"))
	}

	rec = f.callAs(admin, f.h.ListCodes, http.MethodGet, "/admin/codes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.AccessCode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 4)

	rec = f.callAs(admin, f.h.ListCodes, http.MethodGet, "/admin/codes?status=used", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.callAs(admin, f.h.ListCodes, http.MethodGet, "/admin/codes?status=bogus", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "status")

	rec = f.callAs(admin, f.h.DeleteCode, http.MethodDelete, "/admin/codes/"+created.ID, "", "id", created.ID)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.callAs(admin, f.h.DeleteCode, http.MethodDelete, "/admin/codes/"+created.ID, "", "id", created.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateCodes_TooMany(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.GenerateCodes, http.MethodPost, "/admin/codes/generate", `{"count":500}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Fields, "count")
}

func TestImportCodes(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.ImportCodes, http.MethodPost, "/admin/codes/import",
		`[{"code":"IMPORT01"},{"code":"x"},{"code":"IMPORT02","clientLabel":"Ruiz"}]`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported":2,"skipped":0,"dropped":1}`, rec.Body.String())
}

func TestAdminReviews(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)
	testutil.NewTestCode(t, f.a.Repo, "ABCD1234")
	rec := f.call(f.h.SubmitReview, http.MethodPost, "/api/reviews", validReview)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.callAs(admin, f.h.AdminListReviews, http.MethodGet, "/admin/reviews", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Review
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ABCD1234", list[0].Code)
	id := list[0].ID

	rec = f.callAs(admin, f.h.UpdateReview, http.MethodPut, "/admin/reviews/"+id, `{"name":"Ana Lopez","rating":4,"comment":"Great work on our kitchen, thanks!"}`, "id", id)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rating":4`)

	rec = f.callAs(admin, f.h.DeleteReview, http.MethodDelete, "/admin/reviews/"+id, "", "id", id)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// Deleting the review releases its code.
	available, err := f.a.Codes.IsAvailable(context.Background(), "ABCD1234")
	require.NoError(t, err)
	assert.True(t, available)
}

func TestImportReviews(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.ImportReviews, http.MethodPost, "/admin/reviews/import",
		`[{"name":"Luis Perez","rating":4,"comment":"Solid work on the patio."},{"name":"x","rating":0}]`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imported":1,"skipped":0,"dropped":1}`, rec.Body.String())
}

func TestAudit(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.ListAudit, http.MethodGet, "/admin/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.callAs(admin, f.h.Reconcile, http.MethodPost, "/admin/audit/reconcile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recorded":0`)

	rec = f.callAs(admin, f.h.ResolveAudit, http.MethodPost, "/admin/audit/x/resolve", "", "id", "x")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.callAs(admin, f.h.ResolveAudit, http.MethodPost, "/admin/audit/42/resolve", "", "id", "42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetRateLimit(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)
	login := f.a.Limiters.Login
	for range 3 {
		login.Increment("owner@example.com")
	}
	require.False(t, login.Check("owner@example.com").Allowed)

	rec := f.callAs(admin, f.h.ResetRateLimit, http.MethodDelete, "/admin/ratelimit/login/Owner@Example.com", "",
		"scope", "login", "key", "Owner@Example.com")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, login.Check("owner@example.com").Allowed)
}

func TestResetRateLimit_UnknownScope(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)

	rec := f.callAs(admin, f.h.ResetRateLimit, http.MethodDelete, "/admin/ratelimit/nope/x", "",
		"scope", "nope", "key", "x")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
