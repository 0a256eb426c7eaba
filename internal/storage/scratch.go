// Package storage implements the gateway's one storage duty: fetching a
// bank-statement PDF to a scratch path for the Parser to read, and
// cleaning it up afterward (spec §1 Non-goals — "no document storage",
// §4.7 steps 2 and 8). Nothing here is retained past one job.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrTooLarge is returned when the remote document exceeds MaxBytes.
type ErrTooLarge struct{ Limit int64 }

func (e ErrTooLarge) Error() string {
	return fmt.Sprintf("document exceeds maximum size of %d bytes", e.Limit)
}

// ErrUnsupportedMime is returned when the response content-type is not a PDF.
type ErrUnsupportedMime struct{ ContentType string }

func (e ErrUnsupportedMime) Error() string {
	return fmt.Sprintf("unsupported content type %q, expected application/pdf", e.ContentType)
}

// Scratch downloads documents into a temp directory under a size cap and
// mime check, and removes them on request.
type Scratch struct {
	Dir      string
	MaxBytes int64
	Client   *http.Client
}

func New(dir string, maxBytes int64, client *http.Client) *Scratch {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scratch{Dir: dir, MaxBytes: maxBytes, Client: client}
}

// Download fetches url into a new scratch file and returns its local path.
// Callers must call Cleanup(path) once done, including on pipeline errors
// (spec §4.7 step 8: "remove any scratch path used for the PDF").
func (s *Scratch) Download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("document fetch failed with status %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "application/pdf") && !strings.Contains(ct, "application/octet-stream") {
		return "", ErrUnsupportedMime{ContentType: ct}
	}

	if resp.ContentLength > 0 && resp.ContentLength > s.MaxBytes {
		return "", ErrTooLarge{Limit: s.MaxBytes}
	}

	path := filepath.Join(s.Dir, uuid.NewString()+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	limited := io.LimitReader(resp.Body, s.MaxBytes+1)
	n, err := io.Copy(f, limited)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	if n > s.MaxBytes {
		os.Remove(path)
		return "", ErrTooLarge{Limit: s.MaxBytes}
	}

	return path, nil
}

// Cleanup removes a scratch path; a missing file is not an error.
func (s *Scratch) Cleanup(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
