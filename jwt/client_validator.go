/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwt

import (
	"github.com/vasayxtx/go-glob"
)

// ClientValidator is a validator that checks if the token was issued to one of the expected app clients.
// Access tokens carry the client in the "client_id" claim, ID tokens in the "aud" claim.
// Expected clients may be specified as glob patterns (e.g. "web-*").
type ClientValidator struct {
	clientMatchers []func(clientID string) bool
}

// NewClientValidator creates a new ClientValidator.
// If clientPatterns is empty, any client is accepted.
func NewClientValidator(clientPatterns []string) *ClientValidator {
	var clientMatchers []func(clientID string) bool
	for i := range clientPatterns {
		clientMatchers = append(clientMatchers, glob.Compile(clientPatterns[i]))
	}
	return &ClientValidator{clientMatchers: clientMatchers}
}

// Validate checks if the client of the token is expected.
func (cv *ClientValidator) Validate(claims *Claims) error {
	if len(cv.clientMatchers) == 0 {
		return nil
	}
	clientIDs := make([]string, 0, len(claims.Audience)+1)
	if claims.ClientID != "" {
		clientIDs = append(clientIDs, claims.ClientID)
	}
	clientIDs = append(clientIDs, claims.Audience...)
	for i := range cv.clientMatchers {
		for j := range clientIDs {
			if cv.clientMatchers[i](clientIDs[j]) {
				return nil
			}
		}
	}
	return &ClientNotExpectedError{ClientIDs: clientIDs}
}
