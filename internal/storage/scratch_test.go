package storage

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratch_DownloadAndCleanup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := New(dir, 1024, srv.Client())

	path, err := s.Download(t.Context(), srv.URL)
	require.NoError(t, err)
	defer s.Cleanup(path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	s.Cleanup(path)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestScratch_RejectsOversized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	s := New(t.TempDir(), 10, srv.Client())
	_, err := s.Download(t.Context(), srv.URL)
	require.Error(t, err)
	assert.IsType(t, ErrTooLarge{}, err)
}

func TestScratch_RejectsWrongMime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	s := New(t.TempDir(), 1024, srv.Client())
	_, err := s.Download(t.Context(), srv.URL)
	require.Error(t, err)
	assert.IsType(t, ErrUnsupportedMime{}, err)
}
