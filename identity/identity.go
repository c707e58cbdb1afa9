/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package identity provides find-or-create provisioning of local user records
// for the subjects of verified tokens.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// User is a local user record. Its ID is the subject ("sub") of the identity provider.
// Records are created once and never modified by this package.
type User struct {
	ID uuid.UUID
}

// Store is a persistent storage of user records.
// Implementations must rely on the primary key for uniqueness of the user ID.
type Store interface {
	// FindUser returns the user with the passed ID. found is false if there is no such user.
	FindUser(ctx context.Context, id uuid.UUID) (user User, found bool, err error)

	// InsertUser inserts the user with the passed ID unless it already exists.
	// inserted is false if the user already exists. Implementations may report this case
	// with ErrUserExists instead.
	InsertUser(ctx context.Context, id uuid.UUID) (inserted bool, err error)
}

// ErrUserExists is returned by Store.InsertUser when the unique constraint of the user ID is violated.
var ErrUserExists = errors.New("user already exists")

// ErrStoreUnavailable is matched (via errors.Is) by all errors caused by the failed store operations.
var ErrStoreUnavailable = errors.New("identity store is unavailable")

// ErrProvisionConflict is returned when the user insertion conflicted, but the existing user cannot be found.
var ErrProvisionConflict = errors.New("user provisioning conflict")

// StoreUnavailableError represents a failed store operation.
type StoreUnavailableError struct {
	Op    string
	Inner error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("identity store is unavailable (op: %s): %s", e.Op, e.Inner.Error())
}

func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Inner
}

type ctxKey int

const ctxKeyUser ctxKey = iota

// NewContextWithUser creates a new context with the user.
func NewContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// UserFromContext extracts the user from the context.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(ctxKeyUser).(User)
	return user, ok
}
