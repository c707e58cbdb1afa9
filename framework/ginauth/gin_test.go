/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ginauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acronis/go-appkit/testutil"
	"github.com/gin-gonic/gin"
	jwtgo "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prostor/cognitoauth"
	"github.com/prostor/cognitoauth/identity"
	"github.com/prostor/cognitoauth/jwt"
)

type fakeVerifier struct {
	subject string
	err     error
}

func (v *fakeVerifier) Verify(_ context.Context, _ string) (*jwt.Claims, error) {
	if v.err != nil {
		return nil, v.err
	}
	return &jwt.Claims{RegisteredClaims: jwtgo.RegisteredClaims{Subject: v.subject}}, nil
}

type fakeProvisioner struct{}

func (fakeProvisioner) Provision(_ context.Context, subject uuid.UUID) (identity.User, error) {
	return identity.User{ID: subject}, nil
}

func newTestRouter(verifier cognitoauth.TokenVerifier, handlerCalled *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(NewMiddleware(cognitoauth.AuthMiddleware("TestDomain", verifier, fakeProvisioner{})))
	router.GET("/me", func(c *gin.Context) {
		*handlerCalled++
		user, ok := GetUser(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		ctxUser, _ := cognitoauth.GetUserFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": user.ID.String(), "ctxId": ctxUser.ID.String()})
	})
	return router
}

func TestNewMiddleware(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		subject := uuid.NewString()
		var handlerCalled int
		router := newTestRouter(&fakeVerifier{subject: subject}, &handlerCalled)

		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set(cognitoauth.HeaderAuthorization, "Bearer a.b.c")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		require.Equal(t, 1, handlerCalled)
		require.JSONEq(t, `{"id":"`+subject+`","ctxId":"`+subject+`"}`, resp.Body.String())
	})

	t.Run("bearer token is missing", func(t *testing.T) {
		var handlerCalled int
		router := newTestRouter(&fakeVerifier{subject: uuid.NewString()}, &handlerCalled)

		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/me", http.NoBody))

		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, "TestDomain", cognitoauth.ErrCodeBearerTokenMissing)
		require.Equal(t, 0, handlerCalled)
	})

	t.Run("authentication failed", func(t *testing.T) {
		var handlerCalled int
		router := newTestRouter(&fakeVerifier{err: errors.New("bad token")}, &handlerCalled)

		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set(cognitoauth.HeaderAuthorization, "Bearer a.b.c")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		testutil.RequireErrorInRecorder(t, resp, http.StatusUnauthorized, "TestDomain", cognitoauth.ErrCodeAuthenticationFailed)
		require.Equal(t, 0, handlerCalled)
	})
}

func TestNewMiddleware_HandlerIsBuiltOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	authMiddleware := cognitoauth.AuthMiddleware("TestDomain", &fakeVerifier{subject: uuid.NewString()}, fakeProvisioner{})
	var buildsNum int
	router := gin.New()
	router.Use(NewMiddleware(func(next http.Handler) http.Handler {
		buildsNum++
		return authMiddleware(next)
	}))
	var handlerCalled int
	router.GET("/me", func(c *gin.Context) {
		handlerCalled++
		_, ok := GetUser(c)
		require.True(t, ok)
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/me", http.NoBody)
		req.Header.Set(cognitoauth.HeaderAuthorization, "Bearer a.b.c")
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		require.Equal(t, http.StatusOK, resp.Code)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/me", http.NoBody))
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	require.Equal(t, 1, buildsNum)
	require.Equal(t, 3, handlerCalled)
}

func TestGetUser(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetUser(c)
	require.False(t, ok)

	c.Set(DefaultUserKey, "not a user")
	_, ok = GetUser(c)
	require.False(t, ok)
}
