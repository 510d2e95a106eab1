package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerEncodesCounters(t *testing.T) {
	r := NewRegistry()
	r.AddBytesWritten(42)
	r.AddBytesRead(10)
	r.IncPrefetchSeeks()
	r.SetOccupancy(32)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "ringbuffer_bytes_written_total"))
	assert.True(t, strings.Contains(body, "42"))
	assert.True(t, strings.Contains(body, "ringbuffer_occupancy_bytes"))
	assert.True(t, strings.Contains(body, "prefetch_seeks_total"))
}

func TestHandlerRejectsNonGet(t *testing.T) {
	r := NewRegistry()
	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
