package webhook

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/softmax/underwriting-gateway/internal/auth"
)

func TestSender_DeliversAndSignsOnFirstSuccess(t *testing.T) {
	var gotSignature string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get(auth.WebhookSignatureHeader)
		body := make([]byte, r.ContentLength)
		r.Body.Read(body)
		gotBody = body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.Client(), 3, time.Millisecond)
	s.Sleep = func(time.Duration) {}

	decision := "APPROVE"
	payload := Payload{Event: EventMemoGenerated, JobID: "job-1", Decision: &decision}
	err := s.Deliver(t.Context(), zerolog.Nop(), srv.URL, "whsec", payload, nil)
	require.NoError(t, err)

	expected := auth.Sign(gotBody, "whsec")
	assert.Equal(t, expected, gotSignature)
	_, err = base64.StdEncoding.DecodeString(gotSignature)
	assert.NoError(t, err)
}

func TestSender_RetriesThenFails(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSender(srv.Client(), 3, time.Millisecond)
	var slept int
	s.Sleep = func(d time.Duration) { slept++ }

	err := s.Deliver(t.Context(), zerolog.Nop(), srv.URL, "whsec", Payload{Event: EventMemoGenerated, JobID: "job-2"}, nil)
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, 2, slept)
}

func TestSender_RetriesThenFails_ReportsErrorPerAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSender(srv.Client(), 3, time.Millisecond)
	s.Sleep = func(time.Duration) {}

	var statuses []string
	err := s.Deliver(t.Context(), zerolog.Nop(), srv.URL, "whsec", Payload{Event: EventMemoGenerated, JobID: "job-4"}, func(status string) {
		statuses = append(statuses, status)
	})
	require.Error(t, err)
	assert.Equal(t, []string{"error", "error", "error"}, statuses)
}

func TestSender_SucceedsOnSecondAttempt(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSender(srv.Client(), 3, time.Millisecond)
	s.Sleep = func(time.Duration) {}

	err := s.Deliver(t.Context(), zerolog.Nop(), srv.URL, "whsec", Payload{Event: EventMemoGenerated, JobID: "job-3"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}
