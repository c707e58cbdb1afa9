/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/acronis/go-appkit/testutil"

	"github.com/prostor/cognitoauth/idp"
)

// JWKSEndpointPath is the path of JWKS relative to the issuer URL, as Cognito serves it.
const JWKSEndpointPath = "/.well-known/jwks.json"

// TestClientID is an app client ID which is put into the test tokens.
const TestClientID = "4a1b2c3d4e5f6g7h8i9j0klmno"

const localhostWithDynamicPortAddr = "127.0.0.1:0"

// HTTPServerOption is an option for HTTPServer.
type HTTPServerOption func(s *HTTPServer)

// WithHTTPAddress is an option to set HTTP server address.
func WithHTTPAddress(addr string) HTTPServerOption {
	return func(s *HTTPServer) {
		s.addr.Store(addr)
	}
}

// WithHTTPKeysHandler is an option to set custom handler for GET /.well-known/jwks.json.
// Otherwise, JWKSHandler will be used.
func WithHTTPKeysHandler(handler http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.KeysHandler = handler
	}
}

// WithHTTPPublicJWKS is an option to set public JWKS for JWKSHandler which will be used for GET /.well-known/jwks.json.
func WithHTTPPublicJWKS(keys []PublicJWK) HTTPServerOption {
	return func(s *HTTPServer) {
		s.KeysHandler = &JWKSHandler{PublicJWKS: keys}
	}
}

func WithHTTPMiddleware(mw func(http.Handler) http.Handler) HTTPServerOption {
	return func(s *HTTPServer) {
		s.middleware = mw
	}
}

// HTTPServer is a mock of the Cognito user pool for testing purposes.
// Its URL is the issuer URL, and JWKS is served under JWKSEndpointPath.
type HTTPServer struct {
	*http.Server
	addr        atomic.Value
	middleware  func(http.Handler) http.Handler
	KeysHandler http.Handler
	Router      *http.ServeMux
}

// NewHTTPServer creates a new HTTPServer with provided options.
func NewHTTPServer(options ...HTTPServerOption) *HTTPServer {
	s := &HTTPServer{}
	for _, opt := range options {
		opt(s)
	}
	if s.KeysHandler == nil {
		s.KeysHandler = &JWKSHandler{}
	}

	s.Router = http.NewServeMux()
	s.Router.Handle(JWKSEndpointPath, s.KeysHandler)

	// nolint:gosec // This server is used for testing purposes only.
	s.Server = &http.Server{Handler: s.Router}
	if s.middleware != nil {
		s.Server.Handler = s.middleware(s.Router)
	}
	return s
}

// URL method returns the URL of the server. It's also the issuer URL.
func (s *HTTPServer) URL() string {
	if srvURL := s.addr.Load(); srvURL != nil {
		return "http://" + srvURL.(string)
	}
	return ""
}

// Provider returns the identity provider configuration pointing to the server.
// It must be called after the server is started.
func (s *HTTPServer) Provider() idp.Provider {
	p, err := idp.NewProvider(s.URL())
	if err != nil {
		panic(err)
	}
	return p
}

// Start starts the HTTPServer.
func (s *HTTPServer) Start() error {
	addr, ok := s.addr.Load().(string)
	if !ok {
		addr = localhostWithDynamicPortAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen tcp: %w", err)
	}
	s.addr.Store(ln.Addr().String())

	go func() { _ = s.Server.Serve(ln) }()

	return nil
}

// StartAndWaitForReady starts the server waits for the server to start listening.
func (s *HTTPServer) StartAndWaitForReady(timeout time.Duration) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return testutil.WaitListeningServer(s.addr.Load().(string), timeout)
}
