/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// JWKSHandler is an HTTP handler that responds JWKS.
// PublicJWKS, Delay and StatusCode may be set on creation;
// use the setters to change them while the handler is serving.
type JWKSHandler struct {
	servedCount atomic.Uint64
	mu          sync.RWMutex

	// PublicJWKS is a served key set. GetTestPublicJWKS() is used if it's empty.
	PublicJWKS []PublicJWK

	// Delay is applied before responding. It allows testing concurrent and canceled fetches.
	Delay time.Duration

	// StatusCode, if set to a non-200 value, is responded instead of JWKS.
	StatusCode int
}

func (h *JWKSHandler) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(rw, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}

	h.servedCount.Add(1)

	h.mu.RLock()
	publicJWKS, delay, statusCode := h.PublicJWKS, h.Delay, h.StatusCode
	h.mu.RUnlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if statusCode != 0 && statusCode != http.StatusOK {
		http.Error(rw, http.StatusText(statusCode), statusCode)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	if len(publicJWKS) == 0 {
		publicJWKS = GetTestPublicJWKS()
	}
	if err := json.NewEncoder(rw).Encode(PublicJWKSResponse{Keys: publicJWKS}); err != nil {
		http.Error(rw, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// SetPublicJWKS replaces the served key set. It emulates key rotation.
func (h *JWKSHandler) SetPublicJWKS(keys ...PublicJWK) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.PublicJWKS = keys
}

// SetStatusCode makes the handler respond with the passed status code (0 or 200 restores normal serving).
func (h *JWKSHandler) SetStatusCode(statusCode int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.StatusCode = statusCode
}

// SetDelay changes the delay applied before responding.
func (h *JWKSHandler) SetDelay(delay time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Delay = delay
}

// ServedCount returns the number of times JWKS handler has been served.
func (h *JWKSHandler) ServedCount() uint64 {
	return h.servedCount.Load()
}

type PublicJWKSResponse struct {
	Keys []PublicJWK `json:"keys"`
}
