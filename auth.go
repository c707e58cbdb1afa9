/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cognitoauth

import (
	"context"
	"fmt"
	"time"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"

	"github.com/prostor/cognitoauth/identity"
	"github.com/prostor/cognitoauth/internal/idputil"
	"github.com/prostor/cognitoauth/jwks"
	"github.com/prostor/cognitoauth/jwt"
)

// NewTokenVerifier creates a new TokenVerifier with the given configuration.
// The verifier resolves signing keys through the caching JWKS client of the configured user pool.
// If cfg.JWT.ClaimsCache.Enabled is true, then jwt.CachingValidator created, otherwise - jwt.Validator.
func NewTokenVerifier(cfg *Config, opts ...TokenVerifierOption) (TokenVerifier, error) {
	options := tokenVerifierOptions{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}

	provider, err := cfg.Cognito.Provider()
	if err != nil {
		return nil, fmt.Errorf("make identity provider: %w", err)
	}

	// Make caching JWKS client.
	jwksClient := jwks.NewCachingClientWithOpts(jwks.CachingClientOpts{
		ClientOpts: jwks.ClientOpts{
			Logger:                     options.logger,
			HTTPClient:                 idputil.MakeDefaultHTTPClient(time.Duration(cfg.HTTPClient.RequestTimeout)),
			PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
		},
		CacheTTL:               time.Duration(cfg.JWKS.Cache.TTL),
		CacheUpdateMinInterval: time.Duration(cfg.JWKS.Cache.UpdateMinInterval),
		MissingKeyTTL:          time.Duration(cfg.JWKS.Cache.MissingKeyTTL),
		FetchTimeout:           time.Duration(cfg.JWKS.FetchTimeout),
	})

	// Make JWT validator.

	validatorOpts := jwt.ValidatorOpts{
		Leeway:            time.Duration(cfg.JWT.Leeway),
		AllowedTokenUse:   cfg.JWT.AllowedTokenUse,
		ExpectedClientIDs: cfg.JWT.ExpectedClientIDs,
		LoggerProvider:    options.loggerProvider,
	}

	if cfg.JWT.ClaimsCache.Enabled {
		cachingValidator, err := jwt.NewCachingValidatorWithOpts(jwksClient, provider, jwt.CachingValidatorOpts{
			ValidatorOpts:                validatorOpts,
			CacheMaxEntries:              cfg.JWT.ClaimsCache.MaxEntries,
			CachePrometheusInstanceLabel: options.prometheusLibInstanceLabel,
		})
		if err != nil {
			return nil, fmt.Errorf("new caching JWT validator: %w", err)
		}
		return cachingValidator, nil
	}

	return jwt.NewValidatorWithOpts(jwksClient, provider, validatorOpts), nil
}

type tokenVerifierOptions struct {
	logger                     log.FieldLogger
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// TokenVerifierOption is an option for creating TokenVerifier.
type TokenVerifierOption func(options *tokenVerifierOptions)

// WithTokenVerifierLogger sets the logger for the background work of TokenVerifier (e.g. fetching JWKS).
func WithTokenVerifierLogger(logger log.FieldLogger) TokenVerifierOption {
	return func(options *tokenVerifierOptions) {
		options.logger = logger
	}
}

// WithTokenVerifierLoggerProvider sets the logger provider for TokenVerifier.
func WithTokenVerifierLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) TokenVerifierOption {
	return func(options *tokenVerifierOptions) {
		options.loggerProvider = loggerProvider
	}
}

// WithTokenVerifierPrometheusLibInstanceLabel sets the Prometheus lib instance label for TokenVerifier.
func WithTokenVerifierPrometheusLibInstanceLabel(label string) TokenVerifierOption {
	return func(options *tokenVerifierOptions) {
		options.prometheusLibInstanceLabel = label
	}
}

// NewProvisioner creates a new identity.Provisioner over the store with the given configuration.
func NewProvisioner(cfg *Config, store identity.Store, opts ...ProvisionerOption) *identity.Provisioner {
	options := provisionerOptions{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}
	return identity.NewProvisionerWithOpts(store, identity.ProvisionerOpts{
		StoreTimeout:               time.Duration(cfg.Store.RequestTimeout),
		LoggerProvider:             options.loggerProvider,
		PrometheusLibInstanceLabel: options.prometheusLibInstanceLabel,
	})
}

type provisionerOptions struct {
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// ProvisionerOption is an option for creating identity.Provisioner.
type ProvisionerOption func(options *provisionerOptions)

// WithProvisionerLoggerProvider sets the logger provider for identity.Provisioner.
func WithProvisionerLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) ProvisionerOption {
	return func(options *provisionerOptions) {
		options.loggerProvider = loggerProvider
	}
}

// WithProvisionerPrometheusLibInstanceLabel sets the Prometheus lib instance label for identity.Provisioner.
func WithProvisionerPrometheusLibInstanceLabel(label string) ProvisionerOption {
	return func(options *provisionerOptions) {
		options.prometheusLibInstanceLabel = label
	}
}
