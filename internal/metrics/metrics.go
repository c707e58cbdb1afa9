/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/acronis/go-appkit/lrucache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/prostor/cognitoauth/internal/libinfo"
)

const PrometheusNamespace = "cognitoauth"

const DefaultPrometheusLibInstanceLabel = "default"

const (
	PrometheusLibInstanceLabel = "lib_instance"
	PrometheusLibSourceLabel   = "lib_source"
)

const (
	SourceJWKSClient          = "jwks_client"
	SourceJWKSCachingClient   = "jwks_caching_client"
	SourceJWTValidator        = "jwt_validator"
	SourceHTTPMiddleware      = "http_middleware"
	SourceIdentityProvisioner = "identity_provisioner"
)

func PrometheusLabels() prometheus.Labels {
	return prometheus.Labels{"lib_version": libinfo.GetLibVersion()}
}

const (
	HTTPClientRequestLabelMethod     = "method"
	HTTPClientRequestLabelURL        = "url"
	HTTPClientRequestLabelStatusCode = "status_code"
	HTTPClientRequestLabelError      = "error"

	ResultLabel = "result"
)

const (
	HTTPRequestErrorDo                   = "do_request_error"
	HTTPRequestErrorReadBody             = "read_body_error"
	HTTPRequestErrorDecodeBody           = "decode_body_error"
	HTTPRequestErrorUnexpectedStatusCode = "unexpected_status_code"
)

// Results of the key cache lookups.
const (
	JWKSCacheLookupHit         = "hit"
	JWKSCacheLookupMiss        = "miss"
	JWKSCacheLookupNegativeHit = "negative_hit"
)

// Results of the identity provisioning.
const (
	ProvisionResultExisting         = "existing"
	ProvisionResultCreated          = "created"
	ProvisionResultConflictResolved = "conflict_resolved"
	ProvisionResultError            = "error"
)

// AuthenticationResultOK is a result label value for the successfully authenticated requests.
// Failed requests are labeled with the error kind.
const AuthenticationResultOK = "ok"

var requestDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

var (
	prometheusMetrics     *PrometheusMetrics
	prometheusMetricsOnce sync.Once
)

// PrometheusMetrics represents the collector of metrics.
type PrometheusMetrics struct {
	HTTPClientRequestDuration *prometheus.HistogramVec
	JWKSCacheLookups          *prometheus.CounterVec
	Authentications           *prometheus.CounterVec
	IdentityProvisions        *prometheus.CounterVec
	TokenClaimsCache          *lrucache.PrometheusMetrics
}

func GetPrometheusMetrics(instance string, source string) *PrometheusMetrics {
	prometheusMetricsOnce.Do(func() {
		prometheusMetrics = newPrometheusMetrics()
		prometheusMetrics.MustRegister()
	})
	if instance == "" {
		instance = DefaultPrometheusLibInstanceLabel
	}
	return prometheusMetrics.MustCurryWith(map[string]string{
		PrometheusLibInstanceLabel: instance,
		PrometheusLibSourceLabel:   source,
	})
}

func newPrometheusMetrics() *PrometheusMetrics {
	curriedLabelNames := []string{PrometheusLibInstanceLabel, PrometheusLibSourceLabel}
	makeLabelNames := func(names ...string) []string {
		l := append(make([]string, 0, len(curriedLabelNames)+len(names)), curriedLabelNames...)
		return append(l, names...)
	}

	httpClientReqDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   PrometheusNamespace,
			Name:        "http_client_request_duration_seconds",
			Help:        "A histogram of the http client request durations to IDP endpoints.",
			Buckets:     requestDurationBuckets,
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(HTTPClientRequestLabelMethod, HTTPClientRequestLabelURL,
			HTTPClientRequestLabelStatusCode, HTTPClientRequestLabelError),
	)
	jwksCacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "jwks_cache_lookups_total",
			Help:        "Total number of signing key lookups in the JWKS cache.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(ResultLabel),
	)
	authentications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "authentications_total",
			Help:        "Total number of authentication attempts of incoming requests.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(ResultLabel),
	)
	identityProvisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   PrometheusNamespace,
			Name:        "identity_provisions_total",
			Help:        "Total number of user identity provisioning attempts.",
			ConstLabels: PrometheusLabels(),
		},
		makeLabelNames(ResultLabel),
	)

	tokenClaimsCache := lrucache.NewPrometheusMetricsWithOpts(lrucache.PrometheusMetricsOpts{
		Namespace:         PrometheusNamespace + "_token_claims",
		ConstLabels:       PrometheusLabels(),
		CurriedLabelNames: curriedLabelNames,
	})

	return &PrometheusMetrics{
		HTTPClientRequestDuration: httpClientReqDuration,
		JWKSCacheLookups:          jwksCacheLookups,
		Authentications:           authentications,
		IdentityProvisions:        identityProvisions,
		TokenClaimsCache:          tokenClaimsCache,
	}
}

// MustCurryWith curries the metrics collector with the provided labels.
func (pm *PrometheusMetrics) MustCurryWith(labels prometheus.Labels) *PrometheusMetrics {
	return &PrometheusMetrics{
		HTTPClientRequestDuration: pm.HTTPClientRequestDuration.MustCurryWith(labels).(*prometheus.HistogramVec),
		JWKSCacheLookups:          pm.JWKSCacheLookups.MustCurryWith(labels),
		Authentications:           pm.Authentications.MustCurryWith(labels),
		IdentityProvisions:        pm.IdentityProvisions.MustCurryWith(labels),
		TokenClaimsCache:          pm.TokenClaimsCache.MustCurryWith(labels),
	}
}

// MustRegister does registration of metrics collector in Prometheus and panics if any error occurs.
func (pm *PrometheusMetrics) MustRegister() {
	prometheus.MustRegister(
		pm.HTTPClientRequestDuration,
		pm.JWKSCacheLookups,
		pm.Authentications,
		pm.IdentityProvisions,
	)
	pm.TokenClaimsCache.MustRegister()
}

// Unregister cancels registration of metrics collector in Prometheus.
func (pm *PrometheusMetrics) Unregister() {
	prometheus.Unregister(pm.HTTPClientRequestDuration)
	prometheus.Unregister(pm.JWKSCacheLookups)
	prometheus.Unregister(pm.Authentications)
	prometheus.Unregister(pm.IdentityProvisions)
	pm.TokenClaimsCache.Unregister()
}

func (pm *PrometheusMetrics) ObserveHTTPClientRequest(
	method string, targetURL string, statusCode int, elapsed time.Duration, errorType string,
) {
	pm.HTTPClientRequestDuration.With(prometheus.Labels{
		HTTPClientRequestLabelMethod:     method,
		HTTPClientRequestLabelURL:        targetURL,
		HTTPClientRequestLabelStatusCode: strconv.Itoa(statusCode),
		HTTPClientRequestLabelError:      errorType,
	}).Observe(elapsed.Seconds())
}

func (pm *PrometheusMetrics) IncJWKSCacheLookups(result string) {
	pm.JWKSCacheLookups.With(prometheus.Labels{ResultLabel: result}).Inc()
}

func (pm *PrometheusMetrics) IncAuthentications(result string) {
	pm.Authentications.With(prometheus.Labels{ResultLabel: result}).Inc()
}

func (pm *PrometheusMetrics) IncIdentityProvisions(result string) {
	pm.IdentityProvisions.With(prometheus.Labels{ResultLabel: result}).Inc()
}
