/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cognitoauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/acronis/go-appkit/httpserver/middleware"
	"github.com/acronis/go-appkit/log"
	"github.com/acronis/go-appkit/restapi"
	"github.com/google/uuid"

	"github.com/prostor/cognitoauth/identity"
	"github.com/prostor/cognitoauth/internal/idputil"
	"github.com/prostor/cognitoauth/internal/metrics"
	"github.com/prostor/cognitoauth/jwt"
)

// HeaderAuthorization contains the name of HTTP header with data that is used for authentication.
const HeaderAuthorization = "Authorization"

// Authentication error codes.
// We are using "var" here because some services may want to use different error codes.
var (
	ErrCodeBearerTokenMissing   = "bearerTokenMissing"
	ErrCodeAuthenticationFailed = "authenticationFailed"
	ErrCodeServiceUnavailable   = "serviceUnavailable"
)

// Authentication error messages.
// We are using "var" here because some services may want to use different error messages.
var (
	ErrMessageBearerTokenMissing   = "Authorization bearer token is missing."
	ErrMessageAuthenticationFailed = "Authentication is failed."
	ErrMessageServiceUnavailable   = "Service is temporarily unavailable."
)

// Results of the authentication which are not verification error kinds.
const (
	authResultBearerTokenMissing = "bearer_token_missing"
	authResultStoreUnavailable   = "store_unavailable"
	authResultProvisionFailed    = "provision_failed"
)

type ctxKey int

const (
	ctxKeyClaims ctxKey = iota
	ctxKeyBearerToken
)

// TokenVerifier is an interface for verifying string representation of the bearer token.
// Both *jwt.Validator and *jwt.CachingValidator implement it.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*jwt.Claims, error)
}

// UserProvisioner is an interface for getting the local user of the verified token subject.
type UserProvisioner interface {
	Provision(ctx context.Context, subject uuid.UUID) (identity.User, error)
}

type authHandler struct {
	next           http.Handler
	errorDomain    string
	verifier       TokenVerifier
	provisioner    UserProvisioner
	loggerProvider func(ctx context.Context) log.FieldLogger
	promMetrics    *metrics.PrometheusMetrics
}

type authMiddlewareOpts struct {
	loggerProvider             func(ctx context.Context) log.FieldLogger
	prometheusLibInstanceLabel string
}

// AuthMiddlewareOption is an option for AuthMiddleware.
type AuthMiddlewareOption func(options *authMiddlewareOpts)

// WithLoggerProvider is an option to set a logger provider for AuthMiddleware.
func WithLoggerProvider(loggerProvider func(ctx context.Context) log.FieldLogger) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.loggerProvider = loggerProvider
	}
}

// WithPrometheusLibInstanceLabel is an option to set a label for Prometheus metrics that are used by AuthMiddleware.
func WithPrometheusLibInstanceLabel(label string) AuthMiddlewareOption {
	return func(options *authMiddlewareOpts) {
		options.prometheusLibInstanceLabel = label
	}
}

// AuthMiddleware is a middleware that does authentication
// by the bearer token from the "Authorization" HTTP header of incoming request
// and provisions the local user for the token's subject.
// errorDomain is used for error responses. It is usually the name of the service that uses the middleware.
// All token problems are answered uniformly with 401, for example:
//
//	{"error": {"domain": "MyService", "code": "authenticationFailed", "message": "Authentication is failed."}}
//
// If the user store is unavailable, 503 with the "serviceUnavailable" code is returned.
// On success, the user and the verified claims are put into the request context,
// see GetUserFromContext and GetClaimsFromContext.
func AuthMiddleware(
	errorDomain string, verifier TokenVerifier, provisioner UserProvisioner, opts ...AuthMiddlewareOption,
) func(next http.Handler) http.Handler {
	options := authMiddlewareOpts{loggerProvider: middleware.GetLoggerFromContext}
	for _, opt := range opts {
		opt(&options)
	}
	return func(next http.Handler) http.Handler {
		return &authHandler{
			next:           next,
			errorDomain:    errorDomain,
			verifier:       verifier,
			provisioner:    provisioner,
			loggerProvider: options.loggerProvider,
			promMetrics:    metrics.GetPrometheusMetrics(options.prometheusLibInstanceLabel, metrics.SourceHTTPMiddleware),
		}
	}
}

func (h *authHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	logger := idputil.GetLoggerFromProvider(r.Context(), h.loggerProvider)

	bearerToken := GetBearerTokenFromRequest(r)
	if bearerToken == "" {
		h.promMetrics.IncAuthentications(authResultBearerTokenMissing)
		apiErr := restapi.NewError(h.errorDomain, ErrCodeBearerTokenMissing, ErrMessageBearerTokenMissing)
		restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
		return
	}

	claims, err := h.verifier.Verify(r.Context(), bearerToken)
	if err != nil {
		errKind := jwt.ErrorKind(err)
		logger.Warn("authentication failed", log.String("reason", errKind), log.Error(err))
		h.promMetrics.IncAuthentications(errKind)
		h.respondAuthenticationFailed(rw, logger)
		return
	}

	subject, err := claims.SubjectID()
	if err != nil {
		logger.Warn("authentication failed", log.String("reason", jwt.ErrorKindMissingSubject), log.Error(err))
		h.promMetrics.IncAuthentications(jwt.ErrorKindMissingSubject)
		h.respondAuthenticationFailed(rw, logger)
		return
	}

	user, err := h.provisioner.Provision(r.Context(), subject)
	if err != nil {
		if errors.Is(err, identity.ErrStoreUnavailable) {
			logger.Error("user provisioning failed, identity store is unavailable",
				log.String("user_id", subject.String()), log.Error(err))
			h.promMetrics.IncAuthentications(authResultStoreUnavailable)
			apiErr := restapi.NewError(h.errorDomain, ErrCodeServiceUnavailable, ErrMessageServiceUnavailable)
			restapi.RespondError(rw, http.StatusServiceUnavailable, apiErr, logger)
			return
		}
		logger.Error("user provisioning failed", log.String("user_id", subject.String()), log.Error(err))
		h.promMetrics.IncAuthentications(authResultProvisionFailed)
		h.respondAuthenticationFailed(rw, logger)
		return
	}

	h.promMetrics.IncAuthentications(metrics.AuthenticationResultOK)
	ctx := NewContextWithBearerToken(r.Context(), bearerToken)
	ctx = NewContextWithClaims(ctx, claims)
	ctx = identity.NewContextWithUser(ctx, user)
	h.next.ServeHTTP(rw, r.WithContext(ctx))
}

func (h *authHandler) respondAuthenticationFailed(rw http.ResponseWriter, logger log.FieldLogger) {
	apiErr := restapi.NewError(h.errorDomain, ErrCodeAuthenticationFailed, ErrMessageAuthenticationFailed)
	restapi.RespondError(rw, http.StatusUnauthorized, apiErr, logger)
}

// GetBearerTokenFromRequest extracts the bearer token from request headers.
// The scheme is matched case-insensitively. Empty string is returned if there is no bearer token.
func GetBearerTokenFromRequest(r *http.Request) string {
	const bearerPrefix = "bearer "
	authHeader := strings.TrimSpace(r.Header.Get(HeaderAuthorization))
	if len(authHeader) < len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(bearerPrefix):])
}

// GetUserFromContext extracts the authenticated user from the context.
func GetUserFromContext(ctx context.Context) (identity.User, bool) {
	return identity.UserFromContext(ctx)
}

// NewContextWithClaims creates a new context with verified token claims.
func NewContextWithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims, claims)
}

// GetClaimsFromContext extracts verified token claims from the context.
func GetClaimsFromContext(ctx context.Context) *jwt.Claims {
	value := ctx.Value(ctxKeyClaims)
	if value == nil {
		return nil
	}
	return value.(*jwt.Claims)
}

// NewContextWithBearerToken creates a new context with token.
func NewContextWithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyBearerToken, token)
}

// GetBearerTokenFromContext extracts token from the context.
func GetBearerTokenFromContext(ctx context.Context) string {
	value := ctx.Value(ctxKeyBearerToken)
	if value == nil {
		return ""
	}
	return value.(string)
}
