package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/ctdlog/internal/monitoring"
)

func TestAssertStatusCode_Matching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, http.StatusOK, http.StatusOK)
	assert.False(t, fakeT.Failed())
}

func TestLocalHostRequest(t *testing.T) {
	req := LocalHostRequest(http.MethodGet, "/debug/ctd-latest", nil)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/debug/ctd-latest", req.URL.Path)
	assert.Equal(t, "127.0.0.1:12345", req.RemoteAddr)
}

func TestCaptureLogs(t *testing.T) {
	var logs func() []string
	t.Run("capture", func(t *testing.T) {
		logs = CaptureLogs(t)
		monitoring.Logf("dropped %d samples", 3)
		monitoring.Logf("closed")
	})
	assert.Equal(t, []string{"dropped 3 samples", "closed"}, logs())

	// Restored after the subtest: further lines are not captured.
	monitoring.SetLogger(nil)
	monitoring.Logf("ignored")
	assert.Len(t, logs(), 2)
}
