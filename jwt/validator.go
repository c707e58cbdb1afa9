/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/acronis/go-appkit/log"
	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/prostor/cognitoauth/idp"
	"github.com/prostor/cognitoauth/internal/idputil"
	"github.com/prostor/cognitoauth/jwks"
)

// allowedSignAlgs maps the allowed signing algorithms to the bit size of the required EC curve (0 for RSA).
// Neither "none" nor HMAC algorithms are ever accepted.
var allowedSignAlgs = map[string]int{
	"RS256": 0,
	"RS384": 0,
	"RS512": 0,
	"ES256": 256,
	"ES384": 384,
	"ES512": 521,
}

// KeyResolver is an interface for looking up public keys for verifying JWT.
// It's implemented by jwks.CachingClient.
type KeyResolver interface {
	LookupKey(ctx context.Context, jwksURL, keyID string) (jwks.Key, bool, error)
}

// ValidatorOpts additional options for Validator.
type ValidatorOpts struct {
	// Leeway is a time margin applied to "exp" and "nbf" checks to compensate clock skew.
	Leeway time.Duration

	// AllowedTokenUse is a list of allowed "token_use" claim values (e.g. "access").
	// If it's empty, the claim is not checked.
	AllowedTokenUse []string

	// ExpectedClientIDs is a list of app client IDs which tokens are accepted from.
	// It's allowed to use glob patterns. If it's empty, the client is not checked.
	ExpectedClientIDs []string

	// LoggerProvider is a function that provides a logger for the Validator.
	LoggerProvider func(ctx context.Context) log.FieldLogger
}

// Validator parses JWT, verifies its signature with the key from the identity provider's JWKS
// and validates its claims.
type Validator struct {
	keyResolver     KeyResolver
	issuerURL       string
	jwksURL         string
	parsers         map[string]*jwtgo.Parser
	leeway          time.Duration
	allowedTokenUse map[string]struct{}
	clientValidator *ClientValidator
	loggerProvider  func(ctx context.Context) log.FieldLogger
}

// NewValidator creates new JWT validator for tokens issued by the provider.
func NewValidator(keyResolver KeyResolver, provider idp.Provider) *Validator {
	return NewValidatorWithOpts(keyResolver, provider, ValidatorOpts{})
}

// NewValidatorWithOpts creates new JWT validator for tokens issued by the provider with additional options.
func NewValidatorWithOpts(keyResolver KeyResolver, provider idp.Provider, opts ValidatorOpts) *Validator {
	parsers := make(map[string]*jwtgo.Parser, len(allowedSignAlgs))
	for alg := range allowedSignAlgs {
		parsers[alg] = jwtgo.NewParser(jwtgo.WithValidMethods([]string{alg}), jwtgo.WithoutClaimsValidation())
	}
	var allowedTokenUse map[string]struct{}
	if len(opts.AllowedTokenUse) != 0 {
		allowedTokenUse = make(map[string]struct{}, len(opts.AllowedTokenUse))
		for _, tu := range opts.AllowedTokenUse {
			allowedTokenUse[tu] = struct{}{}
		}
	}
	return &Validator{
		keyResolver:     keyResolver,
		issuerURL:       provider.IssuerURL(),
		jwksURL:         provider.JWKSURL(),
		parsers:         parsers,
		leeway:          opts.Leeway,
		allowedTokenUse: allowedTokenUse,
		clientValidator: NewClientValidator(opts.ExpectedClientIDs),
		loggerProvider:  opts.LoggerProvider,
	}
}

// Verify parses, verifies and validates passed token (it's string representation).
// Claims are returned only if all checks passed, the subject is in Claims.Subject.
//
// Checks are done in the following order, the first failed one determines the error:
// header ("alg" and "kid") -> algorithm allowlist -> signing key lookup -> signature ->
// "exp"/"nbf" -> "iss" -> "sub" -> "token_use" -> client.
func (v *Validator) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	alg, kid, err := parseHeader(rawToken)
	if err != nil {
		return nil, err
	}
	parser, ok := v.parsers[alg]
	if !ok {
		return nil, &SignAlgNotAllowedError{Alg: alg}
	}

	key, found, err := v.keyResolver.LookupKey(ctx, v.jwksURL, kid)
	if err != nil {
		idputil.GetLoggerFromProvider(ctx, v.loggerProvider).Warn(
			fmt.Sprintf("signing key lookup error (kid: %s, jwks_url: %s)", kid, v.jwksURL), log.Error(err))
		return nil, &UnknownSigningKeyError{KeyID: kid, JWKSURL: v.jwksURL, Inner: err}
	}
	if !found {
		return nil, &UnknownSigningKeyError{KeyID: kid, JWKSURL: v.jwksURL}
	}
	if err = checkKeyFitsAlg(alg, key); err != nil {
		return nil, err
	}

	claims := &Claims{}
	if _, err = parser.ParseWithClaims(rawToken, claims, func(*jwtgo.Token) (interface{}, error) {
		return key.PublicKey, nil
	}); err != nil {
		if errors.Is(err, jwtgo.ErrTokenMalformed) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrBadSignature, err)
	}

	if err = v.validateTimeClaims(claims, time.Now()); err != nil {
		return nil, err
	}
	if claims.Issuer != v.issuerURL {
		return nil, &IssuerMismatchError{Expected: v.issuerURL, Actual: claims.Issuer}
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if _, err = uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not UUID: %w", ErrMissingSubject, err)
	}
	if v.allowedTokenUse != nil {
		if _, ok = v.allowedTokenUse[claims.TokenUse]; !ok {
			return nil, &TokenUseNotAllowedError{TokenUse: claims.TokenUse}
		}
	}
	if err = v.clientValidator.Validate(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (v *Validator) validateTimeClaims(claims *Claims, now time.Time) error {
	if claims.ExpiresAt == nil {
		return fmt.Errorf("%w: \"exp\" claim is missing", ErrTokenExpired)
	}
	if !now.Before(claims.ExpiresAt.Add(v.leeway)) {
		return fmt.Errorf("%w: expired at %s", ErrTokenExpired, claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	if claims.NotBefore != nil && now.Add(v.leeway).Before(claims.NotBefore.Time) {
		return fmt.Errorf("%w: not valid before %s", ErrTokenExpired, claims.NotBefore.UTC().Format(time.RFC3339))
	}
	return nil
}

func parseHeader(rawToken string) (alg string, kid string, err error) {
	parts := strings.Split(rawToken, ".")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("%w: token contains an invalid number of segments", ErrMalformedToken)
	}
	headerBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", fmt.Errorf("%w: decode header: %w", ErrMalformedToken, err)
	}
	var header map[string]interface{}
	if err = json.Unmarshal(headerBytes, &header); err != nil {
		return "", "", fmt.Errorf("%w: unmarshal header: %w", ErrMalformedToken, err)
	}
	if alg, _ = header["alg"].(string); alg == "" {
		return "", "", fmt.Errorf("%w: \"alg\" header is missing", ErrMalformedToken)
	}
	if kid, _ = header["kid"].(string); kid == "" {
		return "", "", fmt.Errorf("%w: \"kid\" header is missing", ErrMalformedToken)
	}
	return alg, kid, nil
}

func checkKeyFitsAlg(alg string, key jwks.Key) error {
	if key.Alg != "" && key.Alg != alg {
		return &SignAlgNotAllowedError{Alg: alg, Reason: fmt.Sprintf("key is intended for %q", key.Alg)}
	}
	curveBits := allowedSignAlgs[alg]
	switch pubKey := key.PublicKey.(type) {
	case *rsa.PublicKey:
		if curveBits != 0 {
			return &SignAlgNotAllowedError{Alg: alg, Reason: "key is RSA"}
		}
	case *ecdsa.PublicKey:
		if curveBits == 0 {
			return &SignAlgNotAllowedError{Alg: alg, Reason: "key is ECDSA"}
		}
		if pubKey.Curve.Params().BitSize != curveBits {
			return &SignAlgNotAllowedError{Alg: alg, Reason: fmt.Sprintf("key curve is %s", pubKey.Curve.Params().Name)}
		}
	default:
		return &SignAlgNotAllowedError{Alg: alg, Reason: fmt.Sprintf("unsupported key type %T", key.PublicKey)}
	}
	return nil
}
