/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwt

import (
	"context"
	"crypto/sha256"
	"time"

	"github.com/acronis/go-appkit/lrucache"

	"github.com/prostor/cognitoauth/idp"
	"github.com/prostor/cognitoauth/internal/metrics"
	"github.com/prostor/cognitoauth/internal/strutil"
)

// DefaultClaimsCacheMaxEntries is the default maximum number of verified claims kept in the cache.
const DefaultClaimsCacheMaxEntries = 1000

// CachingValidatorOpts contains options for CachingValidator.
type CachingValidatorOpts struct {
	ValidatorOpts

	// CacheMaxEntries is the maximum number of cached claims.
	// Default: DefaultClaimsCacheMaxEntries.
	CacheMaxEntries int

	// CachePrometheusInstanceLabel is the value of the lib_instance label of the cache metrics.
	CachePrometheusInstanceLabel string
}

// ClaimsCache is an interface that must be implemented by used cache implementations.
type ClaimsCache interface {
	Get(key [sha256.Size]byte) (*Claims, bool)
	Add(key [sha256.Size]byte, claims *Claims)
	Remove(key [sha256.Size]byte) bool
	Purge()
	Len() int
}

// CachingValidator uses the functionality of Validator to verify JWT, but stores resulted Claims objects in the cache.
// Time-based claims of the cached token are checked on every call, so expired tokens are never accepted.
// Returned claims are shared between callers and must not be modified.
type CachingValidator struct {
	*Validator
	ClaimsCache ClaimsCache
}

// NewCachingValidator creates a new CachingValidator with default options.
func NewCachingValidator(keyResolver KeyResolver, provider idp.Provider) (*CachingValidator, error) {
	return NewCachingValidatorWithOpts(keyResolver, provider, CachingValidatorOpts{})
}

// NewCachingValidatorWithOpts creates a new CachingValidator with the given options.
func NewCachingValidatorWithOpts(
	keyResolver KeyResolver, provider idp.Provider, opts CachingValidatorOpts,
) (*CachingValidator, error) {
	promMetrics := metrics.GetPrometheusMetrics(opts.CachePrometheusInstanceLabel, metrics.SourceJWTValidator)
	if opts.CacheMaxEntries == 0 {
		opts.CacheMaxEntries = DefaultClaimsCacheMaxEntries
	}
	cache, err := lrucache.New[[sha256.Size]byte, *Claims](opts.CacheMaxEntries, promMetrics.TokenClaimsCache)
	if err != nil {
		return nil, err
	}
	return &CachingValidator{
		Validator:   NewValidatorWithOpts(keyResolver, provider, opts.ValidatorOpts),
		ClaimsCache: cache,
	}, nil
}

// getTokenHash converts an access token to a string hash that is used as a cache key.
func getTokenHash(token []byte) [sha256.Size]byte {
	return sha256.Sum256(token)
}

// Verify calls Verify method of embedded Validator but stores result into cache.
func (cv *CachingValidator) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	key := getTokenHash(strutil.StringToBytesUnsafe(rawToken))
	if cachedClaims, found := cv.ClaimsCache.Get(key); found {
		if err := cv.Validator.validateTimeClaims(cachedClaims, time.Now()); err != nil {
			cv.ClaimsCache.Remove(key)
			return nil, err
		}
		return cachedClaims, nil
	}
	claims, err := cv.Validator.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	cv.ClaimsCache.Add(key, claims)
	return claims, nil
}

// InvalidateClaimsCache removes all preserved verified Claims objects from cache.
func (cv *CachingValidator) InvalidateClaimsCache() {
	cv.ClaimsCache.Purge()
}
