/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package idp describes the identity provider whose tokens are accepted.
package idp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const jwksPath = "/.well-known/jwks.json"

// Provider identifies the identity provider (AWS Cognito user pool) which issues bearer tokens.
// It is constructed once at startup and is immutable afterward.
type Provider struct {
	Region     string
	UserPoolID string

	issuerURL string
	jwksURL   string
}

// NewCognitoProvider creates a Provider for the Cognito user pool in the given AWS region.
func NewCognitoProvider(region, userPoolID string) (Provider, error) {
	if region == "" {
		return Provider{}, errors.New("cognito region is required")
	}
	if userPoolID == "" {
		return Provider{}, errors.New("cognito user pool ID is required")
	}
	issuer := fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, userPoolID)
	return Provider{Region: region, UserPoolID: userPoolID, issuerURL: issuer, jwksURL: issuer + jwksPath}, nil
}

// NewProvider creates a Provider for an arbitrary issuer URL.
// The JWKS URL is derived from the issuer the same way Cognito does it.
func NewProvider(issuerURL string) (Provider, error) {
	u, err := url.Parse(issuerURL)
	if err != nil {
		return Provider{}, fmt.Errorf("parse issuer URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Provider{}, fmt.Errorf("issuer URL %q must be absolute http(s) URL", issuerURL)
	}
	if u.Host == "" {
		return Provider{}, fmt.Errorf("issuer URL %q has no host", issuerURL)
	}
	issuer := strings.TrimSuffix(issuerURL, "/")
	return Provider{issuerURL: issuer, jwksURL: issuer + jwksPath}, nil
}

// IssuerURL returns the exact value expected in the "iss" claim.
func (p Provider) IssuerURL() string {
	return p.issuerURL
}

// JWKSURL returns the URL of the public signing key set.
func (p Provider) JWKSURL() string {
	return p.jwksURL
}
