// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth provides authentication context helpers.
package auth

import (
	"context"

	"codeberg.org/procclean/reviewgate/internal/ctxkeys"
	"codeberg.org/procclean/reviewgate/internal/models"
)

// WithAdmin returns a copy of ctx carrying admin.
func WithAdmin(ctx context.Context, admin *models.Admin) context.Context {
	return context.WithValue(ctx, ctxkeys.Admin{}, admin)
}

// GetAdmin returns the authenticated admin from the context, or nil if not authenticated.
func GetAdmin(ctx context.Context) *models.Admin {
	if admin, ok := ctx.Value(ctxkeys.Admin{}).(*models.Admin); ok {
		return admin
	}
	return nil
}

// IsAuthenticated returns true if the context has an authenticated admin.
func IsAuthenticated(ctx context.Context) bool {
	return GetAdmin(ctx) != nil
}
