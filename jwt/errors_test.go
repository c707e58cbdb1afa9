/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package jwt

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{fmt.Errorf("%w: bad header", ErrMalformedToken), ErrorKindMalformedToken},
		{&UnknownSigningKeyError{KeyID: "kid"}, ErrorKindUnknownSigningKey},
		{&UnknownSigningKeyError{KeyID: "kid", Inner: context.Canceled}, ErrorKindUnknownSigningKey},
		{&SignAlgNotAllowedError{Alg: "HS256"}, ErrorKindBadSignature},
		{fmt.Errorf("%w: expired", ErrTokenExpired), ErrorKindTokenExpired},
		{&IssuerMismatchError{Expected: "a", Actual: "b"}, ErrorKindIssuerMismatch},
		{ErrMissingSubject, ErrorKindMissingSubject},
		{&TokenUseNotAllowedError{TokenUse: "id"}, ErrorKindTokenUseNotAllowed},
		{&ClientNotExpectedError{ClientIDs: []string{"x"}}, ErrorKindClientNotExpected},
		{errors.New("something else"), ErrorKindOther},
	}
	for _, tt := range tests {
		require.Equal(t, tt.kind, ErrorKind(tt.err), tt.err.Error())
	}
}

func TestUnknownSigningKeyError(t *testing.T) {
	err := &UnknownSigningKeyError{KeyID: "kid", JWKSURL: "https://idp/.well-known/jwks.json"}
	require.Equal(t, `JWK not found (Key ID: "kid", JWKS URL: "https://idp/.well-known/jwks.json")`, err.Error())
	require.NoError(t, errors.Unwrap(err))

	err.Inner = context.DeadlineExceeded
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrUnknownSigningKey)
}
