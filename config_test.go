/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cognitoauth

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/acronis/go-appkit/config"
	"github.com/stretchr/testify/require"

	"github.com/prostor/cognitoauth/identity"
	"github.com/prostor/cognitoauth/jwks"
	"github.com/prostor/cognitoauth/jwt"
)

func TestConfig_Set(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
auth:
  cognito:
    region: us-east-1
    userPoolId: us-east-1_abc123
  httpClient:
    requestTimeout: 1m
  jwt:
    leeway: 5s
    allowedTokenUse:
      - access
    expectedClientIds:
      - 7ks*
      - 1example23456789
    claimsCache:
      enabled: true
      maxEntries: 42000
  jwks:
    cache:
      ttl: 12h
      missingKeyTTL: 2m
      updateMinInterval: 30s
    fetchTimeout: 10s
  store:
    requestTimeout: 3s
`)
		cfg := Config{}
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, &cfg)
		require.NoError(t, err)
		require.Equal(t, CognitoConfig{Region: "us-east-1", UserPoolID: "us-east-1_abc123"}, cfg.Cognito)
		require.Equal(t, config.TimeDuration(time.Minute*1), cfg.HTTPClient.RequestTimeout)
		require.Equal(t, cfg.JWT, JWTConfig{
			Leeway:            config.TimeDuration(time.Second * 5),
			AllowedTokenUse:   []string{"access"},
			ExpectedClientIDs: []string{"7ks*", "1example23456789"},
			ClaimsCache: ClaimsCacheConfig{
				Enabled:    true,
				MaxEntries: 42000,
			},
		})
		require.Equal(t, config.TimeDuration(time.Hour*12), cfg.JWKS.Cache.TTL)
		require.Equal(t, config.TimeDuration(time.Minute*2), cfg.JWKS.Cache.MissingKeyTTL)
		require.Equal(t, config.TimeDuration(time.Second*30), cfg.JWKS.Cache.UpdateMinInterval)
		require.Equal(t, config.TimeDuration(time.Second*10), cfg.JWKS.FetchTimeout)
		require.Equal(t, config.TimeDuration(time.Second*3), cfg.Store.RequestTimeout)

		provider, err := cfg.Cognito.Provider()
		require.NoError(t, err)
		require.Equal(t, "https://cognito-idp.us-east-1.amazonaws.com/us-east-1_abc123", provider.IssuerURL())
	})

	t.Run("defaults", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
auth:
  cognito:
    issuerUrl: https://idp.example.com/pool/
`)
		cfg := Config{}
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, &cfg)
		require.NoError(t, err)

		defaultCfg := NewDefaultConfig()
		defaultCfg.Cognito.IssuerURL = "https://idp.example.com/pool/"
		require.Equal(t, defaultCfg.Cognito, cfg.Cognito)
		require.Equal(t, defaultCfg.HTTPClient, cfg.HTTPClient)
		require.Equal(t, defaultCfg.JWKS, cfg.JWKS)
		require.Equal(t, defaultCfg.Store, cfg.Store)
		require.Equal(t, config.TimeDuration(jwks.DefaultCacheTTL), cfg.JWKS.Cache.TTL)
		require.Equal(t, config.TimeDuration(jwks.DefaultMissingKeyTTL), cfg.JWKS.Cache.MissingKeyTTL)
		require.Equal(t, config.TimeDuration(jwks.DefaultCacheUpdateMinInterval), cfg.JWKS.Cache.UpdateMinInterval)
		require.Equal(t, config.TimeDuration(identity.DefaultStoreTimeout), cfg.Store.RequestTimeout)
		require.Equal(t, jwt.DefaultClaimsCacheMaxEntries, cfg.JWT.ClaimsCache.MaxEntries)
		require.False(t, cfg.JWT.ClaimsCache.Enabled)
		require.Zero(t, cfg.JWT.Leeway)
		require.Empty(t, cfg.JWT.AllowedTokenUse)
		require.Empty(t, cfg.JWT.ExpectedClientIDs)

		provider, err := cfg.Cognito.Provider()
		require.NoError(t, err)
		require.Equal(t, "https://idp.example.com/pool", provider.IssuerURL())
		require.Equal(t, "https://idp.example.com/pool/.well-known/jwks.json", provider.JWKSURL())
	})

	t.Run("custom key prefix", func(t *testing.T) {
		cfgData := bytes.NewBufferString(`
security:
  cognito:
    region: eu-west-1
    userPoolId: eu-west-1_xyz
`)
		cfg := NewConfig(WithKeyPrefix("security"))
		err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, cfg)
		require.NoError(t, err)
		require.Equal(t, "eu-west-1", cfg.Cognito.Region)
		require.Equal(t, "security", cfg.KeyPrefix())
	})
}

func TestConfig_SetErrors(t *testing.T) {
	const cognitoCfg = `
auth:
  cognito:
    region: us-east-1
    userPoolId: us-east-1_abc123
`

	tests := []struct {
		name    string
		cfgData string
		errKey  string
		errMsg  string
	}{
		{
			name: "user pool is not configured",
			cfgData: `
auth:
  httpClient:
    requestTimeout: 1m
`,
			errKey: cfgKeyCognitoRegion,
			errMsg: "cannot be empty",
		},
		{
			name: "user pool ID is missing",
			cfgData: `
auth:
  cognito:
    region: us-east-1
`,
			errKey: cfgKeyCognitoUserPoolID,
			errMsg: "cannot be empty",
		},
		{
			name: "invalid issuer URL",
			cfgData: `
auth:
  cognito:
    issuerUrl: ftp://idp.example.com
`,
			errKey: cfgKeyCognitoIssuerURL,
			errMsg: "must be absolute http(s) URL",
		},
		{
			name: "negative claims cache max entries",
			cfgData: cognitoCfg + `
  jwt:
    claimsCache:
      maxEntries: -1
`,
			errKey: cfgKeyJWTClaimsCacheMaxEntries,
			errMsg: "max entries should be non-negative",
		},
		{
			name: "invalid HTTP client timeout",
			cfgData: cognitoCfg + `
  httpClient:
    requestTimeout: invalid
`,
			errKey: cfgKeyHTTPClientRequestTimeout,
			errMsg: "invalid duration",
		},
		{
			name: "zero HTTP client timeout",
			cfgData: cognitoCfg + `
  httpClient:
    requestTimeout: 0s
`,
			errKey: cfgKeyHTTPClientRequestTimeout,
			errMsg: "should be positive",
		},
		{
			name: "negative leeway",
			cfgData: cognitoCfg + `
  jwt:
    leeway: -1s
`,
			errKey: cfgKeyJWTLeeway,
			errMsg: "leeway should be non-negative",
		},
		{
			name: "unknown token use",
			cfgData: cognitoCfg + `
  jwt:
    allowedTokenUse:
      - refresh
`,
			errKey: cfgKeyJWTAllowedTokenUse,
			errMsg: `unknown token use "refresh"`,
		},
		{
			name: "invalid JWKS cache TTL",
			cfgData: cognitoCfg + `
  jwks:
    cache:
      ttl: invalid
`,
			errKey: cfgKeyJWKSCacheTTL,
			errMsg: "invalid duration",
		},
		{
			name: "negative missing key TTL",
			cfgData: cognitoCfg + `
  jwks:
    cache:
      missingKeyTTL: -1m
`,
			errKey: cfgKeyJWKSCacheMissingKeyTTL,
			errMsg: "should be positive",
		},
		{
			name: "zero JWKS cache update min interval",
			cfgData: cognitoCfg + `
  jwks:
    cache:
      updateMinInterval: 0s
`,
			errKey: cfgKeyJWKSCacheUpdateMinInterval,
			errMsg: "should be positive",
		},
		{
			name: "invalid store request timeout",
			cfgData: cognitoCfg + `
  store:
    requestTimeout: invalid
`,
			errKey: cfgKeyStoreRequestTimeout,
			errMsg: "invalid duration",
		},
		{
			name: "invalid expected client IDs",
			cfgData: cognitoCfg + `
  jwt:
    expectedClientIds: {}
`,
			errKey: cfgKeyJWTExpectedClientIDs,
			errMsg: " unable to cast",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgData := bytes.NewBufferString(tt.cfgData)
			cfg := Config{}
			err := config.NewDefaultLoader("").LoadFromReader(cfgData, config.DataTypeYAML, &cfg)
			require.ErrorContains(t, err, tt.errMsg)
			require.Truef(t, strings.HasPrefix(err.Error(), tt.errKey),
				"expected error starts with %q, got %q", tt.errKey, err.Error())
		})
	}
}
