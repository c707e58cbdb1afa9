/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package idputil

import (
	"context"
	"net/http"
	"time"

	"github.com/acronis/go-appkit/httpclient"
	"github.com/acronis/go-appkit/log"

	"github.com/prostor/cognitoauth/internal/libinfo"
)

const DefaultHTTPRequestTimeout = 30 * time.Second

// MakeDefaultHTTPClient creates an HTTP client for requests to the identity provider.
// Requests are not retried: a failed JWKS fetch is reported to the caller
// and the next request which needs the key set triggers a new fetch.
func MakeDefaultHTTPClient(reqTimeout time.Duration) *http.Client {
	if reqTimeout == 0 {
		reqTimeout = DefaultHTTPRequestTimeout
	}
	var tr http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()
	tr = httpclient.NewUserAgentRoundTripper(tr, libinfo.UserAgent())
	return &http.Client{Timeout: reqTimeout, Transport: tr}
}

func PrepareLogger(logger log.FieldLogger) log.FieldLogger {
	if logger == nil {
		return log.NewDisabledLogger()
	}
	return log.NewPrefixedLogger(logger, libinfo.LogPrefix())
}

// GetLoggerFromProvider returns the prefixed logger obtained from the provider,
// or the disabled one if the provider is not set.
func GetLoggerFromProvider(ctx context.Context, provider func(ctx context.Context) log.FieldLogger) log.FieldLogger {
	if provider == nil {
		return log.NewDisabledLogger()
	}
	return PrepareLogger(provider(ctx))
}
