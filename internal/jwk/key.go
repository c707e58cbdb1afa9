/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package jwk provides JSON Web Key (JWK) structure and methods to convert it from/to public keys.
package jwk

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
)

const (
	TypeRSA = "RSA"
	TypeEC  = "EC"
)

var curves = map[string]elliptic.Curve{
	"P-256": elliptic.P256(),
	"P-384": elliptic.P384(),
	"P-521": elliptic.P521(),
}

// Key defines the public part of a JSON Web Key.
type Key struct {
	Alg string `json:"alg,omitempty"` // algorithm
	Crv string `json:"crv,omitempty"` // curve - for EC keys
	E   string `json:"e,omitempty"`   // public exponent - for RSA keys
	Kid string `json:"kid"`           // Key ID
	Kty string `json:"kty"`           // Key Type
	N   string `json:"n,omitempty"`   // modulus - for RSA keys
	Use string `json:"use,omitempty"`
	X   string `json:"x,omitempty"` // x coordinate - for EC keys
	Y   string `json:"y,omitempty"` // y coordinate - for EC keys
}

// DecodePublicKey decodes Key to public key (*rsa.PublicKey or *ecdsa.PublicKey).
func (j *Key) DecodePublicKey() (crypto.PublicKey, error) {
	switch j.Kty {
	case TypeRSA:
		pubKey, err := j.decodeRSAPublicKey()
		if err != nil {
			return nil, err
		}
		return pubKey, nil
	case TypeEC:
		pubKey, err := j.decodeECPublicKey()
		if err != nil {
			return nil, err
		}
		return pubKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", j.Kty)
	}
}

func (j *Key) decodeRSAPublicKey() (*rsa.PublicKey, error) {
	if j.N == "" || j.E == "" {
		return nil, errors.New("malformed JWK RSA key: missing N or E")
	}
	n, err := decodeBase64URLToBigInt(j.N)
	if err != nil {
		return nil, fmt.Errorf("malformed JWK RSA key: %w", err)
	}
	e, err := decodeBase64URLToBigInt(j.E)
	if err != nil {
		return nil, fmt.Errorf("malformed JWK RSA key: %w", err)
	}
	if !e.IsInt64() || e.Int64() < 2 || e.Int64() > 1<<31-1 {
		return nil, errors.New("malformed JWK RSA key: public exponent out of range")
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

func (j *Key) decodeECPublicKey() (*ecdsa.PublicKey, error) {
	curve, ok := curves[j.Crv]
	if !ok {
		return nil, fmt.Errorf("unsupported EC curve %q", j.Crv)
	}
	if j.X == "" || j.Y == "" {
		return nil, errors.New("malformed JWK EC key: missing X or Y")
	}
	x, err := decodeBase64URLToBigInt(j.X)
	if err != nil {
		return nil, fmt.Errorf("malformed JWK EC key: %w", err)
	}
	y, err := decodeBase64URLToBigInt(j.Y)
	if err != nil {
		return nil, fmt.Errorf("malformed JWK EC key: %w", err)
	}
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("malformed JWK EC key: point is not on curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

// EncodePublicKey makes Key from the public key. It's the reverse of DecodePublicKey.
func EncodePublicKey(kid, alg string, pubKey crypto.PublicKey) (Key, error) {
	switch pk := pubKey.(type) {
	case *rsa.PublicKey:
		return Key{
			Alg: alg,
			Kid: kid,
			Kty: TypeRSA,
			Use: "sig",
			N:   base64.RawURLEncoding.EncodeToString(pk.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pk.E)).Bytes()),
		}, nil
	case *ecdsa.PublicKey:
		params := pk.Curve.Params()
		size := (params.BitSize + 7) / 8
		return Key{
			Alg: alg,
			Kid: kid,
			Kty: TypeEC,
			Use: "sig",
			Crv: params.Name,
			X:   base64.RawURLEncoding.EncodeToString(pk.X.FillBytes(make([]byte, size))),
			Y:   base64.RawURLEncoding.EncodeToString(pk.Y.FillBytes(make([]byte, size))),
		}, nil
	default:
		return Key{}, fmt.Errorf("unsupported public key type %T", pubKey)
	}
}

// decodeBase64URLToBigInt is a helper function to decode base64url without padding.
func decodeBase64URLToBigInt(encoded string) (*big.Int, error) {
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64url: %w", err)
	}
	return new(big.Int).SetBytes(data), nil
}
