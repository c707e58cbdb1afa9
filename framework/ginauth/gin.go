/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package ginauth adapts the authentication middleware to the Gin framework.
package ginauth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/prostor/cognitoauth"
	"github.com/prostor/cognitoauth/identity"
)

// DefaultUserKey is the key under which the authenticated user is stored in gin.Context.
const DefaultUserKey = "cognitoauth.user"

type ginStateCtxKey struct{}

type ginState struct {
	c      *gin.Context
	passed bool
}

// NewMiddleware creates a Gin middleware from the authentication middleware
// (usually made by cognitoauth.AuthMiddleware).
// The authentication handler is built once, the current gin.Context reaches it through the request context.
// Requests rejected by it are aborted with the response it has written.
// For accepted ones, the user is available via GetUser and the request context
// (cognitoauth.GetUserFromContext) of c.Request.
func NewMiddleware(authMiddleware func(next http.Handler) http.Handler) gin.HandlerFunc {
	authHandler := authMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		state, ok := r.Context().Value(ginStateCtxKey{}).(*ginState)
		if !ok {
			return
		}
		state.passed = true
		state.c.Request = r
		if user, found := cognitoauth.GetUserFromContext(r.Context()); found {
			state.c.Set(DefaultUserKey, user)
		}
		state.c.Next()
	}))

	return func(c *gin.Context) {
		state := &ginState{c: c}
		authHandler.ServeHTTP(c.Writer, c.Request.WithContext(context.WithValue(c.Request.Context(), ginStateCtxKey{}, state)))
		if !state.passed {
			c.Abort()
		}
	}
}

// GetUser returns the authenticated user from gin.Context.
func GetUser(c *gin.Context) (identity.User, bool) {
	value, exists := c.Get(DefaultUserKey)
	if !exists {
		return identity.User{}, false
	}
	user, ok := value.(identity.User)
	return user, ok
}
