// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package app wires the database, services and rate limiters shared by
// the HTTP server and the maintenance commands.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/procclean/reviewgate/internal/config"
	"codeberg.org/procclean/reviewgate/internal/database"
	"codeberg.org/procclean/reviewgate/internal/handlers"
	"codeberg.org/procclean/reviewgate/internal/i18n"
	"codeberg.org/procclean/reviewgate/internal/repository"
	"codeberg.org/procclean/reviewgate/internal/services/audit"
	"codeberg.org/procclean/reviewgate/internal/services/auth"
	"codeberg.org/procclean/reviewgate/internal/services/codes"
	"codeberg.org/procclean/reviewgate/internal/services/email"
	"codeberg.org/procclean/reviewgate/internal/services/ratelimit"
	"codeberg.org/procclean/reviewgate/internal/services/reviews"
	"codeberg.org/procclean/reviewgate/internal/services/sanitize"
	"codeberg.org/procclean/reviewgate/internal/services/session"
	"codeberg.org/procclean/reviewgate/internal/sse"
	"github.com/vinovest/sqlx"
)

// App holds the wired services.
type App struct {
	Config   *config.Config
	DB       *sqlx.DB
	Repo     *repository.Repository
	Codes    *codes.Service
	Reviews  *reviews.Service
	Audit    *audit.Service
	Auth     *auth.Service
	Sessions *session.Manager
	Hub      *sse.Hub
	Limiters handlers.Limiters
}

// Open connects to the database and builds every service from cfg.
func Open(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a, err := New(cfg, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

// New builds the services on an open, migrated database.
func New(cfg *config.Config, db *sqlx.DB) (*App, error) {
	if err := i18n.Init(); err != nil {
		return nil, fmt.Errorf("failed to init i18n: %w", err)
	}

	rl := cfg.RateLimit
	limiters := handlers.Limiters{
		Login:     ratelimit.New(rl.LoginAttempts, rl.LoginWindow, ratelimit.WithName("login")),
		Review:    ratelimit.New(rl.ReviewAttempts, rl.ReviewWindow, ratelimit.WithName("review")),
		CodeCheck: ratelimit.New(rl.CodeCheckAttempts, rl.CodeCheckWindow, ratelimit.WithName("codecheck")),
	}

	sessions, err := session.NewManager(&cfg.Session, cfg.SecureCookies())
	if err != nil {
		return nil, err
	}

	repo := repository.New(db)
	hub := sse.NewHub()
	auditSvc := audit.NewService(repo)
	codesSvc := codes.NewService(repo, auditSvc)

	opts := []reviews.Option{
		reviews.WithSpamPolicy(sanitize.ParseSpamPolicy(cfg.Reviews.SpamPolicy)),
		reviews.WithNotifier(hub),
	}
	if cfg.SMTP.Enabled() {
		mailer, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to configure email: %w", err)
		}
		opts = append(opts, reviews.WithNotifier(mailer))
	} else {
		slog.Debug("email notifications disabled")
	}

	return &App{
		Config:   cfg,
		DB:       db,
		Repo:     repo,
		Codes:    codesSvc,
		Reviews:  reviews.NewService(repo, codesSvc, auditSvc, limiters.Review, opts...),
		Audit:    auditSvc,
		Auth:     auth.NewService(repo, limiters.Login),
		Sessions: sessions,
		Hub:      hub,
		Limiters: limiters,
	}, nil
}

// HandlerDeps returns the dependencies of the HTTP handlers.
func (a *App) HandlerDeps() handlers.Deps {
	return handlers.Deps{
		Repo:     a.Repo,
		Codes:    a.Codes,
		Reviews:  a.Reviews,
		Audit:    a.Audit,
		Auth:     a.Auth,
		Sessions: a.Sessions,
		Hub:      a.Hub,
		Limiters: a.Limiters,
	}
}

// EnsureAdmin creates the configured bootstrap admin when none exists.
func (a *App) EnsureAdmin(ctx context.Context) error {
	if a.Config.Admin.Email == "" || a.Config.Admin.Password == "" {
		return nil
	}
	return a.Auth.EnsureAdmin(ctx, a.Config.Admin.Email, a.Config.Admin.Password)
}

// RunLimiters purges expired rate limit records until ctx is done.
func (a *App) RunLimiters(ctx context.Context) {
	interval := a.Config.RateLimit.CleanupInterval
	for _, l := range []*ratelimit.Limiter{a.Limiters.Login, a.Limiters.Review, a.Limiters.CodeCheck} {
		slog.Info("rate limiter started", "limiter", l.Name(), "max_attempts", l.MaxAttempts(), "window", l.Window())
		go l.Run(ctx, interval)
	}
}

// Close closes the database.
func (a *App) Close() error {
	return a.DB.Close()
}
