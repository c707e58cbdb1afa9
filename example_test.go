/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package cognitoauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prostor/cognitoauth/identity"
	"github.com/prostor/cognitoauth/idptest"
)

// inMemoryStore is a trivial identity.Store used to keep the example self-contained.
// Real services use identity/pgstore or identity/gormstore.
type inMemoryStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]identity.User
}

func (s *inMemoryStore) FindUser(_ context.Context, id uuid.UUID) (identity.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	return user, ok, nil
}

func (s *inMemoryStore) InsertUser(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; ok {
		return false, nil
	}
	s.users[id] = identity.User{ID: id}
	return true, nil
}

func ExampleAuthMiddleware() {
	// Mock of the Cognito user pool which serves JWKS.
	idpSrv := idptest.NewHTTPServer()
	_ = idpSrv.StartAndWaitForReady(time.Second)
	defer func() { _ = idpSrv.Shutdown(context.Background()) }()

	cfg := NewDefaultConfig()
	cfg.Cognito.IssuerURL = idpSrv.URL() // Use cfg.Cognito.Region and cfg.Cognito.UserPoolID for the real user pool.
	verifier, _ := NewTokenVerifier(cfg)
	provisioner := NewProvisioner(cfg, &inMemoryStore{users: make(map[uuid.UUID]identity.User)})
	authN := AuthMiddleware("MyService", verifier, provisioner)

	srvMux := http.NewServeMux()
	srvMux.Handle("/me", authN(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		user, _ := GetUserFromContext(r.Context())
		_, _ = rw.Write([]byte(user.ID.String()))
	})))
	server := httptest.NewServer(srvMux)
	defer server.Close()

	doRequest := func(token string) {
		req, _ := http.NewRequest(http.MethodGet, server.URL+"/me", http.NoBody)
		if token != "" {
			req.Header.Set(HeaderAuthorization, "Bearer "+token)
		}
		resp, _ := server.Client().Do(req)
		respBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		fmt.Println("Status code:", resp.StatusCode)
		if resp.StatusCode == http.StatusOK {
			fmt.Println("Body:", string(respBody))
		}
	}

	fmt.Println("GET /me without token")
	doRequest("")

	fmt.Println("GET /me with invalid token")
	doRequest("invalid-token")

	fmt.Println("GET /me with valid token")
	const subject = "3f1d6c2e-9a4b-4e8f-b1c7-0d2a5e6f7a8b"
	doRequest(idptest.MustMakeTokenStringSignedWithTestKey(
		idptest.MakeAccessTokenClaims(idpSrv.URL(), subject, time.Hour)))

	// Output:
	// GET /me without token
	// Status code: 401
	// GET /me with invalid token
	// Status code: 401
	// GET /me with valid token
	// Status code: 200
	// Body: 3f1d6c2e-9a4b-4e8f-b1c7-0d2a5e6f7a8b
}
