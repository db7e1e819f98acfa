// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"codeberg.org/procclean/reviewgate/internal/auth"
	"codeberg.org/procclean/reviewgate/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvents(t *testing.T) {
	f := newFixture(t)
	admin := createAdmin(t, f)
	testutil.NewTestCode(t, f.a.Repo, "ABCD1234")

	ctx, cancel := context.WithCancel(auth.WithAdmin(context.Background(), admin))
	defer cancel()
	c, rec := testutil.NewEchoContext(f.e, http.MethodGet, "/admin/events", nil)
	c.SetRequest(c.Request().WithContext(ctx))

	done := make(chan error, 1)
	go func() { done <- f.h.Events(c) }()
	require.Eventually(t, func() bool { return f.a.Hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// The hub is a review notifier, so a submission reaches the stream.
	sub := f.call(f.h.SubmitReview, http.MethodPost, "/api/reviews", validReview)
	require.Equal(t, http.StatusCreated, sub.Code)
	time.Sleep(100 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("event stream did not stop")
	}

	body := rec.Body.String()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: review")
	assert.Contains(t, body, "Ana Lopez")
	assert.Equal(t, 0, f.a.Hub.ClientCount())
}

func TestEvents_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	rec := f.call(f.h.Events, http.MethodGet, "/admin/events", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
