// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"
	"time"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/auth"
	"codeberg.org/procclean/reviewgate/internal/sse"
	"github.com/labstack/echo/v4"
)

// heartbeatInterval keeps idle connections open through proxies.
const heartbeatInterval = 30 * time.Second

// Events streams new reviews to the signed-in admin as Server-Sent Events.
func (h *Handlers) Events(c echo.Context) error {
	admin := auth.GetAdmin(c.Request().Context())
	if admin == nil {
		return apperr.Unauthorized("authentication required")
	}

	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	ch := h.Hub.Register(admin.ID)
	defer h.Hub.Unregister(admin.ID, ch)

	if _, err := w.Write([]byte(sse.FormatEvent(sse.EventConnected, "ok"))); err != nil {
		return nil
	}
	w.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			w.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := w.Write([]byte(msg)); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}
