// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package repository provides the SQL data access for codes, reviews,
// audit entries and admins.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vinovest/sqlx"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique value already exists.
	ErrDuplicate = errors.New("record already exists")
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// Repository wraps sqlx for database operations. A Repository handed to
// a WithTx callback runs every query on that transaction.
type Repository struct {
	db *sqlx.DB
	q  querier
	tx *sqlx.Tx
}

// New creates a new Repository instance.
func New(db *sqlx.DB) *Repository {
	return &Repository{db: db, q: db}
}

// WithTx runs fn inside a transaction and commits when fn returns nil.
// Nested calls reuse the outer transaction. Inside fn only the passed
// Repository may touch the database.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Repository{db: r.db, q: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// Ping checks the connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// wrapError converts driver errors to repository errors.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
