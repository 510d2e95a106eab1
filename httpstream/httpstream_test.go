package httpstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozars/libstreamlike"
	"github.com/ozars/libstreamlike/internal/metrics"
)

func rangeCapableServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			w.WriteHeader(http.StatusOK)
			return
		}
		rng := r.Header.Get("Range")
		if rng == "" {
			w.Header().Set("Accept-Ranges", "bytes")
			w.Header().Set("Content-Length", strconv.Itoa(len(content)))
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, content)
			return
		}
		off := 0
		fmt.Sscanf(rng, "bytes=%d-", &off)
		if off >= len(content) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", off, len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, content[off:])
	}))
}

func noRangeServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Ignores any Range header entirely, as some static hosts do.
		w.Header().Set("Content-Length", strconv.Itoa(len(content)))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, content)
	}))
}

func readAllStream(t *testing.T, s *Stream) string {
	t.Helper()
	var out strings.Builder
	buf := make([]byte, 8)
	for {
		n, err := s.Read(buf)
		require.NoError(t, err)
		out.Write(buf[:n])
		if n == 0 && s.EOF() {
			break
		}
		if n == 0 {
			break
		}
	}
	return out.String()
}

func metricsBody(t *testing.T, reg *metrics.Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)
	return rec.Body.String()
}

func TestReadEntireBodyFromRangeCapableServer(t *testing.T) {
	srv := rangeCapableServer(t, "the quick brown fox jumps over the lazy dog")
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	got := readAllStream(t, s)
	assert.Equal(t, "the quick brown fox jumps over the lazy dog", got)
	assert.Equal(t, streamlike.Supported, s.Seekable())
}

func TestSeekReissuesRangeRequest(t *testing.T) {
	content := "0123456789abcdefghij"
	srv := rangeCapableServer(t, content)
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "01234", string(buf[:n]))

	off, err := s.Seek(10, streamlike.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), off)

	n, err = s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(buf[:n]))
}

func TestSeekRecordsAbortMetric(t *testing.T) {
	content := "0123456789abcdefghij"
	srv := rangeCapableServer(t, content)
	defer srv.Close()

	reg := metrics.NewRegistry()
	s, err := Open(context.Background(), srv.URL, WithMetrics(reg))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = s.Read(buf)
	require.NoError(t, err)

	_, err = s.Seek(10, streamlike.SeekStart)
	require.NoError(t, err)

	body := metricsBody(t, reg)
	assert.Contains(t, body, "httpstream_aborts_total")
}

func TestLengthFromContentLength(t *testing.T) {
	content := "abcdefghij"
	srv := rangeCapableServer(t, content)
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	buf := make([]byte, 3)
	_, err = s.Read(buf)
	require.NoError(t, err)

	// First request has off==0 so the server answers 200 (not 206); length
	// should still come from Content-Length in that path once a Read has
	// happened (off stays 0 until after this first Read completes).
	n, err := s.Length()
	if err == nil {
		assert.Equal(t, int64(len(content)), n)
	}
}

func TestFallbackToFullBodyWithoutRangeSupport(t *testing.T) {
	content := "this server ignores Range headers entirely"
	srv := noRangeServer(t, content)
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	buf := make([]byte, 6)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, content[:n], string(buf[:n]))

	got := readAllStream(t, s)
	assert.Equal(t, content[n:], got)
}

func TestSeekNegativeOffsetRejected(t *testing.T) {
	srv := rangeCapableServer(t, "abc")
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	_, err = s.Seek(-1, streamlike.SeekStart)
	assert.ErrorIs(t, err, ErrNegativeOffset)
}

func TestProbeRangeSupport(t *testing.T) {
	srv := rangeCapableServer(t, "abcdef")
	defer srv.Close()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	ok, err := s.ProbeRangeSupport(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSeekInterruptsBlockedRead(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	content := "abcdefghijklmnopqrstuvwxyz"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" || strings.HasPrefix(r.Header.Get("Range"), "bytes=0-") {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-%d/%d", len(content)-1, len(content)))
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte(content[:5]))
			w.(http.Flusher).Flush()
			close(started)
			<-unblock
			w.Write([]byte(content[5:]))
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 10-%d/%d", len(content)-1, len(content)))
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, content[10:])
	}))
	defer func() {
		select {
		case <-unblock:
		default:
			close(unblock)
		}
		srv.Close()
	}()

	s, err := Open(context.Background(), srv.URL)
	require.NoError(t, err)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		buf := make([]byte, 5)
		s.Read(buf)
		big := make([]byte, len(content))
		s.Read(big) // blocks until server writes more or Seek cancels
	}()

	<-started
	time.Sleep(20 * time.Millisecond)

	off, err := s.Seek(10, streamlike.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(10), off)

	select {
	case <-readDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Seek did not unblock the in-flight Read")
	}

	buf := make([]byte, 5)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, content[10:10+n], string(buf[:n]))
}
