/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package pgstore provides identity.Store backed by PostgreSQL via pgx.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prostor/cognitoauth/identity"
)

const pgErrCodeUniqueViolation = "23505"

// DB is a subset of pgx connection methods used by Store.
// Both *pgx.Conn and *pgxpool.Pool implement it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store keeps user records in the "user" table.
type Store struct {
	db DB
}

var _ identity.Store = (*Store)(nil)

// New creates a new Store.
func New(db DB) *Store {
	return &Store{db: db}
}

// CreateSchema creates the "user" table if it doesn't exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS "user" (id uuid PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create user table: %w", err)
	}
	return nil
}

// FindUser implements identity.Store.
func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (identity.User, bool, error) {
	var user identity.User
	if err := s.db.QueryRow(ctx, `SELECT id FROM "user" WHERE id = $1`, id).Scan(&user.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.User{}, false, nil
		}
		return identity.User{}, false, err
	}
	return user, true, nil
}

// InsertUser implements identity.Store.
func (s *Store) InsertUser(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db.Exec(ctx, `INSERT INTO "user" (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	if err != nil {
		return false, mapPgErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
		return fmt.Errorf("%w: %s", identity.ErrUserExists, pgErr.Message)
	}
	return err
}
