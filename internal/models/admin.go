// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"time"
)

// Admin is a console account.
type Admin struct {
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	ID           int64     `db:"id" json:"id"`
}
