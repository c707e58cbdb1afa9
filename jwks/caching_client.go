/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"golang.org/x/sync/singleflight"

	"github.com/prostor/cognitoauth/internal/metrics"
)

// DefaultCacheTTL is the default time-to-live for the cached key set.
// After this duration, the key set is fetched again on the next lookup.
const DefaultCacheTTL = time.Hour * 24

// DefaultCacheUpdateMinInterval is the default minimal interval between fetches of the same key set
// caused by lookups of unknown key IDs.
const DefaultCacheUpdateMinInterval = time.Minute

// DefaultMissingKeyTTL is the default time during which a key ID that was not found
// in the freshly fetched key set is answered as "not found" without a new fetch.
const DefaultMissingKeyTTL = time.Minute

// DefaultFetchTimeout is the default timeout of a single shared key set fetch.
const DefaultFetchTimeout = time.Second * 30

const missingKeysCacheSize = 1000

// CachingClientOpts contains options for CachingClient.
type CachingClientOpts struct {
	ClientOpts

	// CacheTTL is the time-to-live for the cached key set.
	// Default: DefaultCacheTTL (24 hours).
	CacheTTL time.Duration

	// CacheUpdateMinInterval is a minimal interval between fetches of the same key set.
	// Within it, a lookup of the key ID which is absent in the cached key set is answered as "not found"
	// without fetching, so tokens with arbitrary key IDs cannot cause a fetch per request.
	// Expired key set is fetched regardless of it.
	// Default: DefaultCacheUpdateMinInterval (1 minute).
	CacheUpdateMinInterval time.Duration

	// MissingKeyTTL is the time during which unknown key ID is remembered as missing.
	// Lookups of such key ID don't cause fetching until it elapses.
	// Default: DefaultMissingKeyTTL (1 minute).
	MissingKeyTTL time.Duration

	// FetchTimeout limits the duration of the key set fetch shared by concurrent lookups.
	// The fetch is not canceled when the context of the lookup which started it is done.
	// Default: DefaultFetchTimeout (30 seconds).
	FetchTimeout time.Duration
}

// CachingClient is a Client for getting keys from remote JWKS with a caching mechanism.
// Concurrent lookups which miss the cache for the same JWKS URL share a single fetch.
type CachingClient struct {
	mu                     sync.RWMutex
	rawClient              *Client
	keySets                map[string]*keySetCacheEntry
	fetchGroup             singleflight.Group
	cacheTTL               time.Duration
	cacheUpdateMinInterval time.Duration
	missingKeyTTL          time.Duration
	fetchTimeout           time.Duration
	promMetrics            *metrics.PrometheusMetrics
}

// keySetCacheEntry is never modified after it's stored, except for missingKeys which is safe for concurrent use.
type keySetCacheEntry struct {
	updatedAt   time.Time
	expiresAt   time.Time
	keys        KeySet
	missingKeys *lrucache.LRUCache[string, time.Time]
}

func (e *keySetCacheEntry) isExpired() bool {
	return !time.Now().Before(e.expiresAt)
}

// NewCachingClient returns a new Client that can cache fetched data.
func NewCachingClient() *CachingClient {
	return NewCachingClientWithOpts(CachingClientOpts{})
}

// NewCachingClientWithOpts returns a new Client that can cache fetched data with options.
func NewCachingClientWithOpts(opts CachingClientOpts) *CachingClient {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheUpdateMinInterval <= 0 {
		opts.CacheUpdateMinInterval = DefaultCacheUpdateMinInterval
	}
	if opts.MissingKeyTTL <= 0 {
		opts.MissingKeyTTL = DefaultMissingKeyTTL
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	return &CachingClient{
		rawClient:              NewClientWithOpts(opts.ClientOpts),
		keySets:                make(map[string]*keySetCacheEntry),
		cacheTTL:               opts.CacheTTL,
		cacheUpdateMinInterval: opts.CacheUpdateMinInterval,
		missingKeyTTL:          opts.MissingKeyTTL,
		fetchTimeout:           opts.FetchTimeout,
		promMetrics: metrics.GetPrometheusMetrics(
			opts.PrometheusLibInstanceLabel, metrics.SourceJWKSCachingClient),
	}
}

// LookupKey returns the signing key with passed key ID from the JWKS located at jwksURL.
//
// The key set is fetched when it's not cached yet, when the cached one is expired,
// or when the key ID is absent in it, was not recently remembered as missing,
// and the key set was fetched more than CacheUpdateMinInterval ago.
// Not found key is reported as (Key{}, false, nil).
// Fetch failures are returned as *KeySetFetchError and are not cached.
// If ctx is done while waiting for the fetch, ctx.Err() is returned,
// but the fetch itself goes on and populates the cache.
func (cc *CachingClient) LookupKey(ctx context.Context, jwksURL, keyID string) (Key, bool, error) {
	if key, found, needFetch := cc.getKeyFromCache(jwksURL, keyID); !needFetch {
		return key, found, nil
	}
	cc.promMetrics.IncJWKSCacheLookups(metrics.JWKSCacheLookupMiss)

	entry, err := cc.fetchKeySet(ctx, jwksURL, keyID)
	if err != nil {
		return Key{}, false, err
	}
	if key, found := entry.keys[keyID]; found {
		return key, true, nil
	}
	entry.missingKeys.Add(keyID, time.Now())
	return Key{}, false, nil
}

// InvalidateCache drops the cached key set for the JWKS URL, so the next lookup fetches it again.
func (cc *CachingClient) InvalidateCache(jwksURL string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.keySets, jwksURL)
}

func (cc *CachingClient) getKeyFromCache(jwksURL, keyID string) (key Key, found bool, needFetch bool) {
	cc.mu.RLock()
	entry, ok := cc.keySets[jwksURL]
	cc.mu.RUnlock()

	if !ok || entry.isExpired() {
		return Key{}, false, true
	}
	if key, found = entry.keys[keyID]; found {
		cc.promMetrics.IncJWKSCacheLookups(metrics.JWKSCacheLookupHit)
		return key, true, false
	}
	if missedAt, miss := entry.missingKeys.Get(keyID); miss && time.Since(missedAt) < cc.missingKeyTTL {
		cc.promMetrics.IncJWKSCacheLookups(metrics.JWKSCacheLookupNegativeHit)
		return Key{}, false, false
	}
	if time.Since(entry.updatedAt) < cc.cacheUpdateMinInterval {
		cc.promMetrics.IncJWKSCacheLookups(metrics.JWKSCacheLookupNegativeHit)
		return Key{}, false, false
	}
	return Key{}, false, true
}

// fetchKeySet fetches the key set or joins the fetch which is already in flight for the same URL.
// The key ID of the lookup which starts the fetch is remembered as missing (if it is)
// before the fetch is finished, so the following lookups of it don't start a new one.
func (cc *CachingClient) fetchKeySet(ctx context.Context, jwksURL, keyID string) (*keySetCacheEntry, error) {
	resCh := cc.fetchGroup.DoChan(jwksURL, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cc.fetchTimeout)
		defer cancel()
		keys, err := cc.rawClient.GetKeySet(fetchCtx, jwksURL)
		if err != nil {
			return nil, err
		}
		entry, err := cc.storeKeySet(jwksURL, keys)
		if err != nil {
			return nil, err
		}
		if _, found := keys[keyID]; !found {
			entry.missingKeys.Add(keyID, time.Now())
		}
		return entry, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*keySetCacheEntry), nil
	}
}

func (cc *CachingClient) storeKeySet(jwksURL string, keys KeySet) (*keySetCacheEntry, error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	var missingKeys *lrucache.LRUCache[string, time.Time]
	if prev, ok := cc.keySets[jwksURL]; ok {
		missingKeys = prev.missingKeys
	} else {
		var err error
		if missingKeys, err = lrucache.New[string, time.Time](missingKeysCacheSize, nil); err != nil {
			return nil, fmt.Errorf("new lru cache for missing keys: %w", err)
		}
	}
	now := time.Now()
	entry := &keySetCacheEntry{
		updatedAt:   now,
		expiresAt:   now.Add(cc.cacheTTL),
		keys:        keys,
		missingKeys: missingKeys,
	}
	cc.keySets[jwksURL] = entry
	return entry, nil
}
