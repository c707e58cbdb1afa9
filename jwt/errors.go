/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwt

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedToken means the token is not a well-formed JWS or its header lacks "alg" or "kid".
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownSigningKey means there is no key with the token's "kid" in the JWKS,
	// or the JWKS could not be fetched.
	ErrUnknownSigningKey = errors.New("unknown signing key")

	// ErrBadSignature means the signature doesn't verify, or the algorithm is not allowed
	// or doesn't fit the signing key.
	ErrBadSignature = errors.New("bad signature")

	// ErrTokenExpired means "exp" is missing or in the past, or "nbf" is in the future.
	ErrTokenExpired = errors.New("token expired")

	ErrIssuerMismatch     = errors.New("issuer mismatch")
	ErrMissingSubject     = errors.New("missing subject")
	ErrTokenUseNotAllowed = errors.New("token use not allowed")
	ErrClientNotExpected  = errors.New("client not expected")
)

// SignAlgNotAllowedError represents an error when JWT signing algorithm is not in the allowlist
// or doesn't match the signing key.
type SignAlgNotAllowedError struct {
	Alg    string
	Reason string
}

func (e *SignAlgNotAllowedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("JWT signing algorithm %q is not allowed: %s", e.Alg, e.Reason)
	}
	return fmt.Sprintf("JWT signing algorithm %q is not allowed", e.Alg)
}

func (e *SignAlgNotAllowedError) Is(target error) bool {
	return target == ErrBadSignature
}

// IssuerMismatchError represents an error when JWT issuer is not the configured identity provider.
type IssuerMismatchError struct {
	Expected string
	Actual   string
}

func (e *IssuerMismatchError) Error() string {
	return fmt.Sprintf("JWT issuer %q doesn't match expected %q", e.Actual, e.Expected)
}

func (e *IssuerMismatchError) Is(target error) bool {
	return target == ErrIssuerMismatch
}

// UnknownSigningKeyError represents an error when JWK with the token's key ID cannot be obtained.
// Inner is set when the key set could not be fetched.
type UnknownSigningKeyError struct {
	KeyID   string
	JWKSURL string
	Inner   error
}

func (e *UnknownSigningKeyError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("JWK (Key ID: %q, JWKS URL: %q) cannot be obtained: %s", e.KeyID, e.JWKSURL, e.Inner.Error())
	}
	return fmt.Sprintf("JWK not found (Key ID: %q, JWKS URL: %q)", e.KeyID, e.JWKSURL)
}

func (e *UnknownSigningKeyError) Is(target error) bool {
	return target == ErrUnknownSigningKey
}

func (e *UnknownSigningKeyError) Unwrap() error {
	return e.Inner
}

// TokenUseNotAllowedError represents an error when "token_use" claim is not in the allowed list.
type TokenUseNotAllowedError struct {
	TokenUse string
}

func (e *TokenUseNotAllowedError) Error() string {
	return fmt.Sprintf("JWT token_use %q is not allowed", e.TokenUse)
}

func (e *TokenUseNotAllowedError) Is(target error) bool {
	return target == ErrTokenUseNotAllowed
}

// ClientNotExpectedError represents an error when the token was issued to an unexpected app client.
type ClientNotExpectedError struct {
	ClientIDs []string
}

func (e *ClientNotExpectedError) Error() string {
	return fmt.Sprintf("JWT client %q is not expected", e.ClientIDs)
}

func (e *ClientNotExpectedError) Is(target error) bool {
	return target == ErrClientNotExpected
}

// Error kinds returned by ErrorKind.
const (
	ErrorKindMalformedToken     = "malformed_token"
	ErrorKindUnknownSigningKey  = "unknown_signing_key"
	ErrorKindBadSignature       = "bad_signature"
	ErrorKindTokenExpired       = "token_expired"
	ErrorKindIssuerMismatch     = "issuer_mismatch"
	ErrorKindMissingSubject     = "missing_subject"
	ErrorKindTokenUseNotAllowed = "token_use_not_allowed"
	ErrorKindClientNotExpected  = "client_not_expected"
	ErrorKindOther              = "other"
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrMalformedToken, ErrorKindMalformedToken},
	{ErrUnknownSigningKey, ErrorKindUnknownSigningKey},
	{ErrBadSignature, ErrorKindBadSignature},
	{ErrTokenExpired, ErrorKindTokenExpired},
	{ErrIssuerMismatch, ErrorKindIssuerMismatch},
	{ErrMissingSubject, ErrorKindMissingSubject},
	{ErrTokenUseNotAllowed, ErrorKindTokenUseNotAllowed},
	{ErrClientNotExpected, ErrorKindClientNotExpected},
}

// ErrorKind returns a stable label of the verification error. It's intended for logs and metrics.
func ErrorKind(err error) string {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return ErrorKindOther
}
