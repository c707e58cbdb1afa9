/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/prostor/cognitoauth/internal/jwk"
)

// TestKeyID is a key ID of the pre-defined key for testing.
const TestKeyID = "fac01c070cd08ba08809762da6e4f74af14e4790"

const testRSAKeyBits = 2048

var (
	testSigningKey     *SigningKey
	testSigningKeyOnce sync.Once
)

// PublicJWK is a JSON representation of the public signing key as it's served in JWKS.
type PublicJWK struct {
	Alg string `json:"alg,omitempty"`
	Crv string `json:"crv,omitempty"`
	E   string `json:"e,omitempty"`
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	N   string `json:"n,omitempty"`
	Use string `json:"use,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// SigningKey is a private key which tokens are signed with.
type SigningKey struct {
	ID         string
	Alg        string
	PrivateKey crypto.Signer
}

// PublicJWK returns the public part of the key in JWK format.
func (k *SigningKey) PublicJWK() PublicJWK {
	pub, err := jwk.EncodePublicKey(k.ID, k.Alg, k.PrivateKey.Public())
	if err != nil {
		// Only RSA and ECDSA keys can be generated by this package.
		panic(err)
	}
	return PublicJWK{Alg: pub.Alg, Crv: pub.Crv, E: pub.E, Kid: pub.Kid, Kty: pub.Kty, N: pub.N, Use: pub.Use, X: pub.X, Y: pub.Y}
}

// GenerateRSAKey generates a new RSA key for RS256 signing.
func GenerateRSAKey(kid string) (*SigningKey, error) {
	privKey, err := rsa.GenerateKey(rand.Reader, testRSAKeyBits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return &SigningKey{ID: kid, Alg: "RS256", PrivateKey: privKey}, nil
}

// MustGenerateRSAKey generates a new RSA key for RS256 signing.
// It panics if error occurs.
func MustGenerateRSAKey(kid string) *SigningKey {
	k, err := GenerateRSAKey(kid)
	if err != nil {
		panic(err)
	}
	return k
}

// GenerateECKey generates a new ECDSA key for the passed algorithm (ES256, ES384 or ES512).
func GenerateECKey(kid string, alg string) (*SigningKey, error) {
	var curve elliptic.Curve
	switch alg {
	case "ES256":
		curve = elliptic.P256()
	case "ES384":
		curve = elliptic.P384()
	case "ES512":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported ECDSA algorithm %q", alg)
	}
	privKey, err := ecdsa.GenerateKey(curve, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ecdsa key: %w", err)
	}
	return &SigningKey{ID: kid, Alg: alg, PrivateKey: privKey}, nil
}

// MustGenerateECKey generates a new ECDSA key for the passed algorithm.
// It panics if error occurs.
func MustGenerateECKey(kid string, alg string) *SigningKey {
	k, err := GenerateECKey(kid, alg)
	if err != nil {
		panic(err)
	}
	return k
}

// GetTestSigningKey returns the pre-defined RS256 key (TestKeyID) for testing.
// The key is generated once per process.
func GetTestSigningKey() *SigningKey {
	testSigningKeyOnce.Do(func() {
		testSigningKey = MustGenerateRSAKey(TestKeyID)
	})
	return testSigningKey
}

// GetTestPublicJWKS returns JWKS with the public part of the pre-defined key.
func GetTestPublicJWKS() []PublicJWK {
	return []PublicJWK{GetTestSigningKey().PublicJWK()}
}
