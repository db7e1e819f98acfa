// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"time"

	"codeberg.org/procclean/reviewgate/internal/models"
)

const adminColumns = `id, email, password_hash, created_at`

// CreateAdmin creates a new admin account.
func (r *Repository) CreateAdmin(ctx context.Context, email, passwordHash string) (*models.Admin, error) {
	admin := &models.Admin{
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO admins (email, password_hash, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(email) DO NOTHING`,
		admin.Email, admin.PasswordHash, admin.CreatedAt)
	if err != nil {
		return nil, err
	}
	ok, err := affected(res)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicate
	}
	if admin.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	return admin, nil
}

// GetAdminByID retrieves an admin by ID.
func (r *Repository) GetAdminByID(ctx context.Context, id int64) (*models.Admin, error) {
	var admin models.Admin
	if err := r.q.GetContext(ctx, &admin, `SELECT `+adminColumns+` FROM admins WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &admin, nil
}

// GetAdminByEmail retrieves an admin by e-mail, ignoring case.
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var admin models.Admin
	if err := r.q.GetContext(ctx, &admin, `SELECT `+adminColumns+` FROM admins WHERE email = ?`, email); err != nil {
		return nil, wrapError(err)
	}
	return &admin, nil
}

// UpdateAdminPassword replaces an admin's password hash.
func (r *Repository) UpdateAdminPassword(ctx context.Context, id int64, passwordHash string) error {
	res, err := r.q.ExecContext(ctx, `UPDATE admins SET password_hash = ? WHERE id = ?`, passwordHash, id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of admin accounts.
func (r *Repository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM admins`)
	return count, err
}
