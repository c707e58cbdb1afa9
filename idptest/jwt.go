/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"fmt"
	"time"

	jwtgo "github.com/golang-jwt/jwt/v5"

	"github.com/prostor/cognitoauth/jwt"
)

// SignToken signs token with the private key.
func SignToken(token *jwtgo.Token, privateKey interface{}) (string, error) {
	return token.SignedString(privateKey)
}

// MakeTokenStringWithHeader create test signed token with claims and headers.
// A header with nil value is removed from the token.
func MakeTokenStringWithHeader(
	claims jwtgo.Claims, key *SigningKey, header map[string]interface{},
) (string, error) {
	method := jwtgo.GetSigningMethod(key.Alg)
	if method == nil {
		return "", fmt.Errorf("unknown signing algorithm %q", key.Alg)
	}
	token := jwtgo.NewWithClaims(method, claims)
	token.Header["kid"] = key.ID
	for k, v := range header {
		if v == nil {
			delete(token.Header, k)
			continue
		}
		token.Header[k] = v
	}
	return SignToken(token, key.PrivateKey)
}

// MustMakeTokenStringWithHeader create test signed token with claims and headers.
// It panics if error occurs.
func MustMakeTokenStringWithHeader(claims jwtgo.Claims, key *SigningKey, header map[string]interface{}) string {
	token, err := MakeTokenStringWithHeader(claims, key, header)
	if err != nil {
		panic(err)
	}
	return token
}

// MakeTokenString create signed token with claims.
func MakeTokenString(claims jwtgo.Claims, key *SigningKey) (string, error) {
	return MakeTokenStringWithHeader(claims, key, nil)
}

// MustMakeTokenString create signed token with claims.
// It panics if error occurs.
func MustMakeTokenString(claims jwtgo.Claims, key *SigningKey) string {
	return MustMakeTokenStringWithHeader(claims, key, nil)
}

// MakeTokenStringSignedWithTestKey create test token signed with the pre-defined private key (TestKeyID) for testing.
func MakeTokenStringSignedWithTestKey(claims jwtgo.Claims) (string, error) {
	return MakeTokenStringWithHeader(claims, GetTestSigningKey(), nil)
}

// MustMakeTokenStringSignedWithTestKey create test token signed
// with the pre-defined private key (TestKeyID) for testing.
// It panics if error occurs.
func MustMakeTokenStringSignedWithTestKey(claims jwtgo.Claims) string {
	token, err := MakeTokenStringSignedWithTestKey(claims)
	if err != nil {
		panic(err)
	}
	return token
}

// MakeAccessTokenClaims returns claims of the Cognito access token for the subject which expires after ttl.
func MakeAccessTokenClaims(issuer string, subject string, ttl time.Duration) *jwt.Claims {
	now := time.Now()
	return &jwt.Claims{
		RegisteredClaims: jwtgo.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwtgo.NewNumericDate(now),
			ExpiresAt: jwtgo.NewNumericDate(now.Add(ttl)),
		},
		TokenUse: jwt.TokenUseAccess,
		ClientID: TestClientID,
		Username: subject,
		Scope:    "aws.cognito.signin.user.admin",
	}
}
