/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwks

import (
	"context"
	"crypto"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/log"

	"github.com/prostor/cognitoauth/internal/idputil"
	"github.com/prostor/cognitoauth/internal/jwk"
	"github.com/prostor/cognitoauth/internal/metrics"
)

// MaxKeySetSize is the maximum size of the JWKS document in bytes.
const MaxKeySetSize = 1 << 20

const keyUseSignature = "sig"

// Key is a public signing key from the remote JWKS.
type Key struct {
	ID        string
	Alg       string // Optional. If set, the token must be signed with exactly this algorithm.
	Use       string
	PublicKey crypto.PublicKey // *rsa.PublicKey or *ecdsa.PublicKey
}

// KeySet is a set of public signing keys indexed by key ID.
type KeySet map[string]Key

type jwksData struct {
	Keys *[]json.RawMessage `json:"keys"`
}

// ClientOpts contains options for the JWKS client.
type ClientOpts struct {
	// HTTPClient is an HTTP client for making requests.
	HTTPClient *http.Client

	// Logger is a logger for the client.
	Logger log.FieldLogger

	// PrometheusLibInstanceLabel is a label for Prometheus metrics.
	// It allows distinguishing metrics from different instances of the same library.
	PrometheusLibInstanceLabel string
}

// Client gets public keys from remote JWKS.
// Every call makes exactly one HTTP request, there is neither caching nor retrying.
// NOTE: CachingClient should be used in a typical service
// to avoid making HTTP requests on each JWT verification.
type Client struct {
	httpClient  *http.Client
	logger      log.FieldLogger
	promMetrics *metrics.PrometheusMetrics
}

// NewClient returns a new Client.
func NewClient() *Client {
	return NewClientWithOpts(ClientOpts{})
}

// NewClientWithOpts returns a new Client with options.
func NewClientWithOpts(opts ClientOpts) *Client {
	promMetrics := metrics.GetPrometheusMetrics(opts.PrometheusLibInstanceLabel, metrics.SourceJWKSClient)
	opts.Logger = idputil.PrepareLogger(opts.Logger)
	if opts.HTTPClient == nil {
		opts.HTTPClient = idputil.MakeDefaultHTTPClient(idputil.DefaultHTTPRequestTimeout)
	}
	return &Client{httpClient: opts.HTTPClient, logger: opts.Logger, promMetrics: promMetrics}
}

// GetKeySet fetches the JWKS document and decodes all usable signing keys from it.
// Keys which cannot be decoded, have no ID or are not intended for signatures are skipped.
// All errors are returned as *KeySetFetchError.
func (c *Client) GetKeySet(ctx context.Context, jwksURL string) (KeySet, error) {
	data, err := c.getJWKS(ctx, jwksURL)
	if err != nil {
		return nil, &KeySetFetchError{URL: jwksURL, Inner: err}
	}

	keySet := make(KeySet, len(*data.Keys))
	for i, rawKey := range *data.Keys {
		var k jwk.Key
		if err = json.Unmarshal(rawKey, &k); err != nil {
			c.logger.Warn(fmt.Sprintf("skipping JWK #%d (jwks_url: %s): invalid JSON", i, jwksURL), log.Error(err))
			continue
		}
		if k.Kid == "" {
			c.logger.Warn(fmt.Sprintf("skipping JWK #%d (jwks_url: %s): empty kid", i, jwksURL))
			continue
		}
		if k.Use != "" && k.Use != keyUseSignature {
			continue
		}
		if _, exists := keySet[k.Kid]; exists {
			c.logger.Warn(fmt.Sprintf("skipping JWK (kid: %s, jwks_url: %s): duplicate kid", k.Kid, jwksURL))
			continue
		}
		pubKey, decodeErr := k.DecodePublicKey()
		if decodeErr != nil {
			c.logger.Error(fmt.Sprintf("decoding JWK (kid: %s, jwks_url: %s) to public key error",
				k.Kid, jwksURL), log.Error(decodeErr))
			continue
		}
		keySet[k.Kid] = Key{ID: k.Kid, Alg: k.Alg, Use: k.Use, PublicKey: pubKey}
	}
	c.logger.Info(fmt.Sprintf("%d keys fetched (jwks_url: %s)", len(keySet), jwksURL))
	return keySet, nil
}

func (c *Client) getJWKS(ctx context.Context, jwksURL string) (jwksData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, http.NoBody)
	if err != nil {
		return jwksData{}, fmt.Errorf("new request: %w", err)
	}
	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(startTime)
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(http.MethodGet, jwksURL, 0, elapsed, metrics.HTTPRequestErrorDo)
		return jwksData{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if closeBodyErr := resp.Body.Close(); closeBodyErr != nil {
			c.logger.Error(fmt.Sprintf("closing response body error for GET %s", jwksURL), log.Error(closeBodyErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, jwksURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorUnexpectedStatusCode)
		return jwksData{}, &UnexpectedStatusCodeError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxKeySetSize+1))
	if err != nil {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, jwksURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorReadBody)
		return jwksData{}, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxKeySetSize {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, jwksURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorReadBody)
		return jwksData{}, ErrKeySetTooLarge
	}

	var res jwksData
	if err = json.Unmarshal(body, &res); err != nil {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, jwksURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return jwksData{}, fmt.Errorf("%w: decode response body json: %w", ErrKeySetMalformed, err)
	}
	if res.Keys == nil {
		c.promMetrics.ObserveHTTPClientRequest(
			http.MethodGet, jwksURL, resp.StatusCode, elapsed, metrics.HTTPRequestErrorDecodeBody)
		return jwksData{}, fmt.Errorf("%w: no \"keys\" array", ErrKeySetMalformed)
	}

	c.promMetrics.ObserveHTTPClientRequest(http.MethodGet, jwksURL, resp.StatusCode, elapsed, "")
	return res, nil
}
