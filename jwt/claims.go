/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwt

import (
	"strings"

	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Values of the "token_use" claim issued by Cognito.
const (
	TokenUseAccess = "access"
	TokenUseID     = "id"
)

// Claims is a set of claims of the Cognito access or ID token.
// It extends jwt.RegisteredClaims from the "github.com/golang-jwt/jwt/v5" with the Cognito-specific fields.
type Claims struct {
	jwtgo.RegisteredClaims

	// TokenUse is either "access" or "id".
	TokenUse string `json:"token_use,omitempty"`

	// ClientID is the app client which the access token was issued to.
	// ID tokens carry it in the "aud" claim instead.
	ClientID string `json:"client_id,omitempty"`

	// Username is presented in access tokens.
	Username string `json:"username,omitempty"`

	// CognitoUsername is presented in ID tokens.
	CognitoUsername string `json:"cognito:username,omitempty"`

	// Scope is a space-separated list of OAuth scopes.
	Scope string `json:"scope,omitempty"`

	Groups []string `json:"cognito:groups,omitempty"`
}

// SubjectID returns the "sub" claim parsed as UUID.
func (c *Claims) SubjectID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Scopes returns OAuth scopes from the "scope" claim.
func (c *Claims) Scopes() []string {
	return strings.Fields(c.Scope)
}

// GetUsername returns the username regardless of the token kind.
func (c *Claims) GetUsername() string {
	if c.Username != "" {
		return c.Username
	}
	return c.CognitoUsername
}

// Clone returns a deep copy of the Claims.
func (c *Claims) Clone() *Claims {
	newClaims := *c
	if len(c.Audience) != 0 {
		newClaims.Audience = make(jwtgo.ClaimStrings, len(c.Audience))
		copy(newClaims.Audience, c.Audience)
	}
	if len(c.Groups) != 0 {
		newClaims.Groups = make([]string, len(c.Groups))
		copy(newClaims.Groups, c.Groups)
	}
	if c.ExpiresAt != nil {
		newClaims.ExpiresAt = jwtgo.NewNumericDate(c.ExpiresAt.Time)
	}
	if c.NotBefore != nil {
		newClaims.NotBefore = jwtgo.NewNumericDate(c.NotBefore.Time)
	}
	if c.IssuedAt != nil {
		newClaims.IssuedAt = jwtgo.NewNumericDate(c.IssuedAt.Time)
	}
	return &newClaims
}
