// Package httpapi wires the gateway's chi router: request/correlation-id
// propagation, per-request structured logging, authentication, HMAC
// verification, rate limiting, and the handlers for every endpoint spec
// §6 names.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/softmax/underwriting-gateway/internal/auth"
	"github.com/softmax/underwriting-gateway/internal/jobstore"
	"github.com/softmax/underwriting-gateway/internal/metrics"
	"github.com/softmax/underwriting-gateway/internal/queue"
	"github.com/softmax/underwriting-gateway/internal/ratelimit"
	"github.com/softmax/underwriting-gateway/internal/tenant"
	"github.com/softmax/underwriting-gateway/internal/worker"
)

// Server holds the dependencies every handler needs.
type Server struct {
	Store       jobstore.Store
	Tenants     tenant.Store
	Resolver    *auth.Resolver
	RateLimiter *ratelimit.Limiter
	Queue       queue.Notifier
	Underwriter *worker.Underwriter
	Metrics     *metrics.Registry

	RequestIDHeader string
	Sandbox         bool
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

type errorBody struct {
	Detail        string `json:"detail"`
	RequestID     string `json:"request_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// writeError maps any error to its HTTP status via apierr and writes a
// human-readable detail (spec §9 "User-visible failure behavior").
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := translateError(err)
	zerolog.Ctx(r.Context()).Warn().Err(err).Int("status", status).Msg("request failed")
	writeJSON(w, status, errorBody{Detail: detail, RequestID: RequestIDFromContext(r.Context())})
}

func parseLimit(q string, def, max int) int {
	if q == "" {
		return def
	}
	n := 0
	for _, c := range q {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
