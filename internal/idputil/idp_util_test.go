/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMakeDefaultHTTPClient(t *testing.T) {
	var gotUserAgent string
	var requestsCount int
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		requestsCount++
		gotUserAgent = r.Header.Get("User-Agent")
		rw.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := MakeDefaultHTTPClient(0)
	require.Equal(t, DefaultHTTPRequestTimeout, client.Timeout)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, 1, requestsCount, "requests must not be retried")
	require.True(t, strings.HasPrefix(gotUserAgent, "cognitoauth/"), gotUserAgent)

	require.Equal(t, 5*time.Second, MakeDefaultHTTPClient(5*time.Second).Timeout)
}

func TestPrepareLogger(t *testing.T) {
	require.NotNil(t, PrepareLogger(nil))
}
