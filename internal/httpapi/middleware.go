package httpapi

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/softmax/underwriting-gateway/internal/apierr"
	"github.com/softmax/underwriting-gateway/internal/auth"
)

type contextKey string

const (
	requestIDKey contextKey = "requestId"
	rawBodyKey   contextKey = "rawBody"
)

// RequestIDMiddleware reads the configured request-id header (default
// X-Request-Id, spec §6.11) and propagates or generates one, binding it
// to both the response header and the per-request logger.
func RequestIDMiddleware(headerName string) func(http.Handler) http.Handler {
	if headerName == "" {
		headerName = "X-Request-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(headerName)
			if requestID == "" {
				requestID = uuid.New().String()
			}
			w.Header().Set(headerName, requestID)

			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			logger := log.With().Str("request_id", requestID).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestIDFromContext retrieves the request id bound by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// readRawBody buffers the request body so HMAC verification can hash the
// exact bytes and downstream handlers can still decode JSON from it
// (spec §4.3: "the verified raw body is retained on the request context
// for downstream hashing").
func readRawBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}

func rawBodyFromContext(ctx context.Context) []byte {
	b, _ := ctx.Value(rawBodyKey).([]byte)
	return b
}

// AuthMiddleware resolves the caller's identity from X-Api-Key or
// Authorization: Bearer, binding an *auth.Context to the request (spec
// §4.3 steps 1-2). It does not check HMAC signatures or scopes; those
// are separate middleware so read-only routes can skip HMAC entirely.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			ac  *auth.Context
			err error
		)
		switch {
		case r.Header.Get("X-Api-Key") != "":
			ac, err = s.Resolver.ResolveAPIKey(r.Context(), r.Header.Get("X-Api-Key"))
		case r.Header.Get("Authorization") != "":
			token := bearerToken(r.Header.Get("Authorization"))
			ac, err = s.Resolver.ResolveBearer(r.Context(), token)
		default:
			err = apierr.Authentication("missing credentials")
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := auth.WithContext(r.Context(), ac)
		ctx = zerolog.Ctx(ctx).With().Str("tenant_id", ac.TenantID).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return header
}

// HMACMiddleware enforces the inbound X-Signature check for write
// requests (spec §4.3, §8 preconditions (a)-(b)). It buffers the body so
// the verified bytes are available to handlers for idempotency hashing.
func (s *Server) HMACMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, r, apierr.Authentication("identity not resolved"))
			return
		}

		body, err := readRawBody(r)
		if err != nil {
			writeError(w, r, apierr.Validation("failed to read request body"))
			return
		}

		if err := auth.VerifyInboundSignature(body, ac.TenantSecret, r.Header.Get(auth.SignatureHeader)); err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), rawBodyKey, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimitMiddleware enforces the per-tenant sliding-window limit (spec
// §4.4) after identity resolution, matching precondition order (a)-(c).
func (s *Server) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, r, apierr.Authentication("identity not resolved"))
			return
		}
		if !s.RateLimiter.Allow(ac.TenantID, ac.RateLimitRPS) {
			writeError(w, r, apierr.RateLimited("rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequestMetricsMiddleware records http_requests_total,
// http_request_duration_ms, and http_request_errors_total (5xx only) for
// every response (spec §4.11). The path label is the chi route template
// (e.g. "/v1/jobs/{id}"), not the raw URL, to bound cardinality across
// tenants and ids.
func (s *Server) RequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		path := routePattern(r)
		tenantID := "none"
		if ac, ok := auth.FromContext(r.Context()); ok {
			tenantID = ac.TenantID
		}
		statusCode := strconv.Itoa(rw.status)

		s.Metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, statusCode, tenantID).Inc()
		s.Metrics.HTTPRequestDurationMS.WithLabelValues(r.Method, path, statusCode, tenantID).
			Observe(float64(time.Since(start).Microseconds()) / 1000.0)
		if rw.status >= 500 {
			s.Metrics.HTTPRequestErrorsTotal.WithLabelValues(r.Method, path, tenantID).Inc()
		}
	})
}

// routePattern returns the matched chi route template, falling back to the
// raw path for requests chi never matched (e.g. 404s).
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// statusRecorder wraps http.ResponseWriter to capture the status code
// written, since the standard library gives no way to read it back.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequireScope rejects the request unless the resolved identity carries
// every scope listed (spec §8 property: scope enforcement).
func RequireScope(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := auth.FromContext(r.Context())
			if !ok {
				writeError(w, r, apierr.Authentication("identity not resolved"))
				return
			}
			if missing := ac.MissingScopes(scopes...); len(missing) > 0 {
				writeError(w, r, apierr.Authorization("missing required scope"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
