package httpapi

import "net/http"

// Healthz is an unauthenticated liveness probe.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Readyz is an unauthenticated readiness probe; it does not check
// downstream dependencies to keep the probe cheap, matching the
// health-check style used across the rest of this package's handlers.
func (s *Server) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
