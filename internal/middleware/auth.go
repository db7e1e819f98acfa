// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"context"
	"log/slog"

	"codeberg.org/procclean/reviewgate/internal/apperr"
	"codeberg.org/procclean/reviewgate/internal/auth"
	"codeberg.org/procclean/reviewgate/internal/models"
	"codeberg.org/procclean/reviewgate/internal/services/session"
	"github.com/labstack/echo/v4"
)

// AdminLoader loads the admin named by a session.
type AdminLoader interface {
	Admin(ctx context.Context, id int64) (*models.Admin, error)
}

// RequireAdmin rejects requests without a valid admin session. The admin
// is reloaded on every request so deleted accounts lose access at once.
func RequireAdmin(sessions *session.Manager, loader AdminLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			data, err := sessions.Parse(req)
			if err != nil {
				slog.Error("failed to parse session", "error", err)
			}
			if data == nil {
				return apperr.Unauthorized("authentication required")
			}

			admin, err := loader.Admin(req.Context(), data.AdminID)
			if err != nil {
				if apperr.KindOf(err) == apperr.KindNotFound {
					c.SetCookie(sessions.Clear())
					return apperr.Unauthorized("authentication required")
				}
				return err
			}

			c.SetRequest(req.WithContext(auth.WithAdmin(req.Context(), admin)))
			return next(c)
		}
	}
}
