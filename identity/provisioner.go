/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/log"
	"github.com/google/uuid"

	"github.com/prostor/cognitoauth/internal/idputil"
	"github.com/prostor/cognitoauth/internal/metrics"
)

// DefaultStoreTimeout is the default timeout of the whole provisioning of a single user.
const DefaultStoreTimeout = time.Second * 5

// ProvisionerOpts contains options for Provisioner.
type ProvisionerOpts struct {
	// StoreTimeout limits the duration of store operations made by single Provision call.
	// Default: DefaultStoreTimeout (5 seconds).
	StoreTimeout time.Duration

	// LoggerProvider is a function that provides a logger for the Provisioner.
	LoggerProvider func(ctx context.Context) log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	PrometheusLibInstanceLabel string
}

// Provisioner finds the local user for the subject or creates it on the first sight.
// Concurrent provisioning of the same subject results in a single record,
// the primary key of the store decides which insertion wins.
type Provisioner struct {
	store          Store
	storeTimeout   time.Duration
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

// NewProvisioner creates a new Provisioner.
func NewProvisioner(store Store) *Provisioner {
	return NewProvisionerWithOpts(store, ProvisionerOpts{})
}

// NewProvisionerWithOpts creates a new Provisioner with options.
func NewProvisionerWithOpts(store Store, opts ProvisionerOpts) *Provisioner {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	return &Provisioner{
		store:          store,
		storeTimeout:   opts.StoreTimeout,
		loggerProvider: opts.LoggerProvider,
		promMetrics:    metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceIdentityProvisioner),
	}
}

// Provision returns the user with the subject ID, creating it if it doesn't exist yet.
// Existing user is never written again. Losing the insertion race to a concurrent request is not an error.
// All store failures are reported as *StoreUnavailableError.
func (p *Provisioner) Provision(ctx context.Context, subject uuid.UUID) (User, error) {
	user, result, err := p.provision(ctx, subject)
	if err != nil {
		p.promMetrics.IncIdentityProvisions(metrics.ProvisionResultError)
		return User{}, err
	}
	p.promMetrics.IncIdentityProvisions(result)
	if result != metrics.ProvisionResultExisting {
		idputil.GetLoggerFromProvider(ctx, p.loggerProvider).Info(
			"user provisioned", log.String("user_id", user.ID.String()), log.String("result", result))
	}
	return user, nil
}

func (p *Provisioner) provision(ctx context.Context, subject uuid.UUID) (User, string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	user, found, err := p.store.FindUser(ctx, subject)
	if err != nil {
		return User{}, "", &StoreUnavailableError{Op: "find user", Inner: err}
	}
	if found {
		return user, metrics.ProvisionResultExisting, nil
	}

	inserted, err := p.store.InsertUser(ctx, subject)
	if err != nil && !errors.Is(err, ErrUserExists) {
		return User{}, "", &StoreUnavailableError{Op: "insert user", Inner: err}
	}
	if err == nil && inserted {
		return User{ID: subject}, metrics.ProvisionResultCreated, nil
	}

	// The user was created concurrently, so read the winner's row.
	if user, found, err = p.store.FindUser(ctx, subject); err != nil {
		return User{}, "", &StoreUnavailableError{Op: "find user after conflict", Inner: err}
	}
	if !found {
		return User{}, "", fmt.Errorf("%w: user %s is not found after insertion conflict", ErrProvisionConflict, subject)
	}
	return user, metrics.ProvisionResultConflictResolved, nil
}
