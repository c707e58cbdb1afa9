/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cognitoauth

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"

	"github.com/prostor/cognitoauth/identity"
	"github.com/prostor/cognitoauth/idp"
	"github.com/prostor/cognitoauth/internal/idputil"
	"github.com/prostor/cognitoauth/jwks"
	"github.com/prostor/cognitoauth/jwt"
)

const cfgDefaultKeyPrefix = "auth"

const (
	cfgKeyCognitoRegion              = "cognito.region"
	cfgKeyCognitoUserPoolID          = "cognito.userPoolId"
	cfgKeyCognitoIssuerURL           = "cognito.issuerUrl"
	cfgKeyHTTPClientRequestTimeout   = "httpClient.requestTimeout"
	cfgKeyJWKSCacheTTL               = "jwks.cache.ttl"
	cfgKeyJWKSCacheMissingKeyTTL     = "jwks.cache.missingKeyTTL"
	cfgKeyJWKSCacheUpdateMinInterval = "jwks.cache.updateMinInterval"
	cfgKeyJWKSFetchTimeout           = "jwks.fetchTimeout"
	cfgKeyJWTLeeway                  = "jwt.leeway"
	cfgKeyJWTAllowedTokenUse         = "jwt.allowedTokenUse"
	cfgKeyJWTExpectedClientIDs       = "jwt.expectedClientIds"
	cfgKeyJWTClaimsCacheEnabled      = "jwt.claimsCache.enabled"
	cfgKeyJWTClaimsCacheMaxEntries   = "jwt.claimsCache.maxEntries"
	cfgKeyStoreRequestTimeout        = "store.requestTimeout"
)

// Config represents a set of configuration parameters for authentication.
type Config struct {
	Cognito    CognitoConfig    `mapstructure:"cognito" yaml:"cognito" json:"cognito"`
	HTTPClient HTTPClientConfig `mapstructure:"httpClient" yaml:"httpClient" json:"httpClient"`
	JWT        JWTConfig        `mapstructure:"jwt" yaml:"jwt" json:"jwt"`
	JWKS       JWKSConfig       `mapstructure:"jwks" yaml:"jwks" json:"jwks"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store" json:"store"`

	keyPrefix string
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// ConfigOption is a type for functional options for the Config.
type ConfigOption func(*configOptions)

type configOptions struct {
	keyPrefix string
}

// WithKeyPrefix returns a ConfigOption that sets a key prefix for parsing configuration parameters.
// This prefix will be used by config.Loader.
func WithKeyPrefix(keyPrefix string) ConfigOption {
	return func(o *configOptions) {
		o.keyPrefix = keyPrefix
	}
}

// NewConfig creates a new instance of the Config.
func NewConfig(options ...ConfigOption) *Config {
	var opts = configOptions{keyPrefix: cfgDefaultKeyPrefix}
	for _, opt := range options {
		opt(&opts)
	}
	return &Config{keyPrefix: opts.keyPrefix}
}

// NewDefaultConfig creates a new instance of the Config with default values.
func NewDefaultConfig(options ...ConfigOption) *Config {
	cfg := NewConfig(options...)
	cfg.HTTPClient = HTTPClientConfig{RequestTimeout: config.TimeDuration(idputil.DefaultHTTPRequestTimeout)}
	cfg.JWT = JWTConfig{ClaimsCache: ClaimsCacheConfig{MaxEntries: jwt.DefaultClaimsCacheMaxEntries}}
	cfg.JWKS = JWKSConfig{
		Cache: JWKSCacheConfig{
			TTL:               config.TimeDuration(jwks.DefaultCacheTTL),
			MissingKeyTTL:     config.TimeDuration(jwks.DefaultMissingKeyTTL),
			UpdateMinInterval: config.TimeDuration(jwks.DefaultCacheUpdateMinInterval),
		},
		FetchTimeout: config.TimeDuration(jwks.DefaultFetchTimeout),
	}
	cfg.Store = StoreConfig{RequestTimeout: config.TimeDuration(identity.DefaultStoreTimeout)}
	return cfg
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
// Implements config.KeyPrefixProvider interface.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values for auth in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyHTTPClientRequestTimeout, idputil.DefaultHTTPRequestTimeout.String())
	dp.SetDefault(cfgKeyJWKSCacheTTL, jwks.DefaultCacheTTL.String())
	dp.SetDefault(cfgKeyJWKSCacheMissingKeyTTL, jwks.DefaultMissingKeyTTL.String())
	dp.SetDefault(cfgKeyJWKSCacheUpdateMinInterval, jwks.DefaultCacheUpdateMinInterval.String())
	dp.SetDefault(cfgKeyJWKSFetchTimeout, jwks.DefaultFetchTimeout.String())
	dp.SetDefault(cfgKeyJWTLeeway, "0s")
	dp.SetDefault(cfgKeyJWTClaimsCacheMaxEntries, jwt.DefaultClaimsCacheMaxEntries)
	dp.SetDefault(cfgKeyStoreRequestTimeout, identity.DefaultStoreTimeout.String())
}

// CognitoConfig identifies the Cognito user pool which tokens are accepted.
// IssuerURL, if set, takes precedence over Region and UserPoolID.
type CognitoConfig struct {
	Region     string `mapstructure:"region" yaml:"region" json:"region"`
	UserPoolID string `mapstructure:"userPoolId" yaml:"userPoolId" json:"userPoolId"`
	IssuerURL  string `mapstructure:"issuerUrl" yaml:"issuerUrl" json:"issuerUrl"`
}

// Provider builds the identity provider descriptor from the configuration.
func (c CognitoConfig) Provider() (idp.Provider, error) {
	if c.IssuerURL != "" {
		return idp.NewProvider(c.IssuerURL)
	}
	return idp.NewCognitoProvider(c.Region, c.UserPoolID)
}

type HTTPClientConfig struct {
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
}

// JWTConfig is a configuration of how JWT will be verified.
type JWTConfig struct {
	Leeway            config.TimeDuration `mapstructure:"leeway" yaml:"leeway" json:"leeway"`
	AllowedTokenUse   []string            `mapstructure:"allowedTokenUse" yaml:"allowedTokenUse" json:"allowedTokenUse"`
	ExpectedClientIDs []string            `mapstructure:"expectedClientIds" yaml:"expectedClientIds" json:"expectedClientIds"`
	ClaimsCache       ClaimsCacheConfig   `mapstructure:"claimsCache" yaml:"claimsCache" json:"claimsCache"`
}

// ClaimsCacheConfig is a configuration of how claims cache will be used.
type ClaimsCacheConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MaxEntries int  `mapstructure:"maxEntries" yaml:"maxEntries" json:"maxEntries"`
}

// JWKSConfig is a configuration of how JWKS will be fetched and cached.
type JWKSConfig struct {
	Cache        JWKSCacheConfig     `mapstructure:"cache" yaml:"cache" json:"cache"`
	FetchTimeout config.TimeDuration `mapstructure:"fetchTimeout" yaml:"fetchTimeout" json:"fetchTimeout"`
}

type JWKSCacheConfig struct {
	TTL               config.TimeDuration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	MissingKeyTTL     config.TimeDuration `mapstructure:"missingKeyTTL" yaml:"missingKeyTTL" json:"missingKeyTTL"`
	UpdateMinInterval config.TimeDuration `mapstructure:"updateMinInterval" yaml:"updateMinInterval" json:"updateMinInterval"`
}

// StoreConfig is a configuration of the user store access.
type StoreConfig struct {
	RequestTimeout config.TimeDuration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
}

// Set sets auth configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error

	if err = c.setCognitoConfig(dp); err != nil {
		return err
	}
	if c.HTTPClient.RequestTimeout, err = getPositiveDuration(dp, cfgKeyHTTPClientRequestTimeout); err != nil {
		return err
	}
	if err = c.setJWTConfig(dp); err != nil {
		return err
	}
	if err = c.setJWKSConfig(dp); err != nil {
		return err
	}
	if c.Store.RequestTimeout, err = getPositiveDuration(dp, cfgKeyStoreRequestTimeout); err != nil {
		return err
	}

	return nil
}

func (c *Config) setCognitoConfig(dp config.DataProvider) error {
	var err error

	if c.Cognito.Region, err = dp.GetString(cfgKeyCognitoRegion); err != nil {
		return err
	}
	if c.Cognito.UserPoolID, err = dp.GetString(cfgKeyCognitoUserPoolID); err != nil {
		return err
	}
	if c.Cognito.IssuerURL, err = dp.GetString(cfgKeyCognitoIssuerURL); err != nil {
		return err
	}

	if c.Cognito.IssuerURL != "" {
		if _, err = idp.NewProvider(c.Cognito.IssuerURL); err != nil {
			return dp.WrapKeyErr(cfgKeyCognitoIssuerURL, err)
		}
		return nil
	}
	if c.Cognito.Region == "" {
		return dp.WrapKeyErr(cfgKeyCognitoRegion, fmt.Errorf("cannot be empty if %s is not set", cfgKeyCognitoIssuerURL))
	}
	if c.Cognito.UserPoolID == "" {
		return dp.WrapKeyErr(cfgKeyCognitoUserPoolID, fmt.Errorf("cannot be empty if %s is not set", cfgKeyCognitoIssuerURL))
	}
	return nil
}

func (c *Config) setJWTConfig(dp config.DataProvider) error {
	var err error

	var leeway time.Duration
	if leeway, err = dp.GetDuration(cfgKeyJWTLeeway); err != nil {
		return err
	}
	if leeway < 0 {
		return dp.WrapKeyErr(cfgKeyJWTLeeway, fmt.Errorf("leeway should be non-negative"))
	}
	c.JWT.Leeway = config.TimeDuration(leeway)
	if c.JWT.AllowedTokenUse, err = dp.GetStringSlice(cfgKeyJWTAllowedTokenUse); err != nil {
		return err
	}
	for _, tokenUse := range c.JWT.AllowedTokenUse {
		if tokenUse != jwt.TokenUseAccess && tokenUse != jwt.TokenUseID {
			return dp.WrapKeyErr(cfgKeyJWTAllowedTokenUse, fmt.Errorf(
				"unknown token use %q, should be %q or %q", tokenUse, jwt.TokenUseAccess, jwt.TokenUseID))
		}
	}
	if c.JWT.ExpectedClientIDs, err = dp.GetStringSlice(cfgKeyJWTExpectedClientIDs); err != nil {
		return err
	}
	if c.JWT.ClaimsCache.Enabled, err = dp.GetBool(cfgKeyJWTClaimsCacheEnabled); err != nil {
		return err
	}
	if c.JWT.ClaimsCache.MaxEntries, err = dp.GetInt(cfgKeyJWTClaimsCacheMaxEntries); err != nil {
		return err
	}
	if c.JWT.ClaimsCache.MaxEntries < 0 {
		return dp.WrapKeyErr(cfgKeyJWTClaimsCacheMaxEntries, fmt.Errorf("max entries should be non-negative"))
	}

	return nil
}

func (c *Config) setJWKSConfig(dp config.DataProvider) error {
	var err error
	if c.JWKS.Cache.TTL, err = getPositiveDuration(dp, cfgKeyJWKSCacheTTL); err != nil {
		return err
	}
	if c.JWKS.Cache.MissingKeyTTL, err = getPositiveDuration(dp, cfgKeyJWKSCacheMissingKeyTTL); err != nil {
		return err
	}
	if c.JWKS.Cache.UpdateMinInterval, err = getPositiveDuration(dp, cfgKeyJWKSCacheUpdateMinInterval); err != nil {
		return err
	}
	if c.JWKS.FetchTimeout, err = getPositiveDuration(dp, cfgKeyJWKSFetchTimeout); err != nil {
		return err
	}
	return nil
}

func getPositiveDuration(dp config.DataProvider, key string) (config.TimeDuration, error) {
	d, err := dp.GetDuration(key)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, dp.WrapKeyErr(key, fmt.Errorf("should be positive"))
	}
	return config.TimeDuration(d), nil
}
