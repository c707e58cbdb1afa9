/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package gormstore provides identity.Store backed by GORM.
// It works with any GORM dialect which supports "ON CONFLICT DO NOTHING" (PostgreSQL, SQLite).
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/prostor/cognitoauth/identity"
)

type userModel struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (userModel) TableName() string {
	return "user"
}

// Store keeps user records in the "user" table.
type Store struct {
	db *gorm.DB
}

var _ identity.Store = (*Store)(nil)

// New creates a new Store.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the "user" table.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&userModel{}); err != nil {
		return fmt.Errorf("migrate user table: %w", err)
	}
	return nil
}

// FindUser implements identity.Store.
func (s *Store) FindUser(ctx context.Context, id uuid.UUID) (identity.User, bool, error) {
	var model userModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return identity.User{}, false, nil
		}
		return identity.User{}, false, err
	}
	return identity.User{ID: model.ID}, true, nil
}

// InsertUser implements identity.Store.
func (s *Store) InsertUser(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&userModel{ID: id})
	if res.Error != nil {
		return false, mapDBErr(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func mapDBErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", identity.ErrUserExists, err.Error())
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return fmt.Errorf("%w: %s", identity.ErrUserExists, pgErr.Message)
	}
	return err
}
