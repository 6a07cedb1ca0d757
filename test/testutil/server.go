// Package testutil holds helpers shared by the command tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Route is one canned response of a test image server.
type Route struct {
	Status      int
	ContentType string
	Body        []byte
	Delay       time.Duration
}

// PNG is a tiny valid PNG image.
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41,
	0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00,
	0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}

// NewImageServer serves the given routes keyed by request path and answers 404 otherwise.
// The server is closed when the test ends.
func NewImageServer(t *testing.T, routes map[string]Route) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if route.Delay > 0 {
			select {
			case <-time.After(route.Delay):
			case <-r.Context().Done():
				return
			}
		}
		// An empty content type must stay empty rather than be sniffed.
		w.Header()["Content-Type"] = nil
		if route.ContentType != "" {
			w.Header().Set("Content-Type", route.ContentType)
		}
		status := route.Status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		_, _ = w.Write(route.Body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// WriteConfig writes a config file under dir with the given settings lines
// (e.g. "dest_dir: /tmp/x") and returns its path.
func WriteConfig(t *testing.T, dir string, settings ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var b strings.Builder
	b.WriteString("settings:\n")
	for _, line := range settings {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}
