// Package testutil provides shared test helpers for the reader's packages.
package testutil

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/banshee-data/ctdlog/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// LocalHostRequest creates an httptest request that appears to come from
// localhost, so it passes tsweb's debug access check.
func LocalHostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// CaptureLogs redirects monitoring.Logf for the rest of the test. The
// returned function reports the lines logged so far. The previous logger
// is restored when the test ends.
func CaptureLogs(t testing.TB) func() []string {
	t.Helper()

	var mu sync.Mutex
	var lines []string
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}
