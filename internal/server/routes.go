// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/procclean/reviewgate/internal/app"
	"codeberg.org/procclean/reviewgate/internal/handlers"
	"codeberg.org/procclean/reviewgate/internal/middleware"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupRoutes(e *echo.Echo, a *app.App, reg *prometheus.Registry) {
	h := handlers.New(a.HandlerDeps())

	e.GET("/health", h.Health)
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	// Public API
	api := e.Group("/api")
	api.POST("/codes/validate", h.ValidateCode)
	api.GET("/reviews", h.ListReviews)
	api.POST("/reviews", h.SubmitReview)
	api.GET("/reviews/stats", h.ReviewStats)

	// Admin API, CSRF protected
	admin := e.Group("/admin", csrfMiddleware(a.Config))
	admin.GET("/csrf", csrfToken)
	admin.POST("/login", h.Login)
	admin.POST("/logout", h.Logout)

	secured := admin.Group("", middleware.RequireAdmin(a.Sessions, a.Auth))
	secured.GET("/session", h.Session)
	secured.GET("/events", h.Events)
	secured.PUT("/password", h.ChangePassword)

	secured.GET("/codes", h.ListCodes)
	secured.GET("/codes/stats", h.CodeCounts)
	secured.POST("/codes", h.CreateCode)
	secured.POST("/codes/generate", h.GenerateCodes)
	secured.POST("/codes/import", h.ImportCodes)
	secured.DELETE("/codes/:id", h.DeleteCode)

	secured.GET("/reviews", h.AdminListReviews)
	secured.PUT("/reviews/:id", h.UpdateReview)
	secured.DELETE("/reviews/:id", h.DeleteReview)
	secured.POST("/reviews/import", h.ImportReviews)

	secured.GET("/audit", h.ListAudit)
	secured.POST("/audit/reconcile", h.Reconcile)
	secured.POST("/audit/:id/resolve", h.ResolveAudit)

	secured.DELETE("/ratelimit/:scope/:key", h.ResetRateLimit)
}
