package prefetch

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ozars/libstreamlike"
	"github.com/ozars/libstreamlike/filestream"
	"github.com/ozars/libstreamlike/internal/metrics"
)

// memStream is a minimal in-memory streamlike.Stream + Seeker + Lengther
// test double, standing in for httpstream in tests that don't need a real
// network round trip. mu guards pos/eof since blockingMemStream lets a
// Seek run concurrently with a still-in-flight Read, the same way a real
// httpstream.Stream does.
type memStream struct {
	mu   sync.Mutex
	data []byte
	pos  int
	eof  bool
}

func newMemStream(s string) *memStream { return &memStream{data: []byte(s)} }

func (m *memStream) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos >= len(m.data) {
		m.eof = true
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += n
	if m.pos >= len(m.data) {
		m.eof = true
	}
	return n, nil
}

func (m *memStream) EOF() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eof
}

func (m *memStream) Err() error { return nil }

func (m *memStream) Seek(offset int64, whence streamlike.Whence) (int64, error) {
	if whence != streamlike.SeekStart {
		return 0, ErrUnsupportedWhence
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pos = int(offset)
	m.eof = m.pos >= len(m.data)
	return int64(m.pos), nil
}

func (m *memStream) Length() (int64, error) {
	return int64(len(m.data)), nil
}

func readAll(t *testing.T, s *Stream) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 7)
	for {
		n, err := s.Read(buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
		if n == 0 && s.EOF() {
			break
		}
		if n == 0 {
			break
		}
	}
	return out
}

func TestPrefetchReadsEntireInnerStream(t *testing.T) {
	inner := newMemStream("the quick brown fox jumps over the lazy dog")
	s, err := New(inner, WithBufferSize(8), WithStepSize(4))
	require.NoError(t, err)
	defer s.Close()

	got := readAll(t, s)
	assert.Equal(t, "the quick brown fox jumps over the lazy dog", string(got))
}

func TestNewRejectsNilInner(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoInnerStream)
}

func TestSeekRejectsNonStartWhence(t *testing.T) {
	inner := newMemStream("abcdef")
	s, err := New(inner, WithBufferSize(4))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Seek(1, streamlike.SeekCurrent)
	assert.ErrorIs(t, err, ErrUnsupportedWhence)
}

func TestSeekOnFileBackedInnerStream(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	content := make([]byte, 0, 4096)
	for i := 0; i < 4096; i++ {
		content = append(content, byte(i%256))
	}
	require.NoError(t, os.WriteFile(path, content, 0o644))

	inner, err := filestream.Open(path, os.O_RDONLY, 0)
	require.NoError(t, err)

	s, err := New(inner, WithBufferSize(256), WithStepSize(64))
	require.NoError(t, err)
	defer s.Close()

	first := make([]byte, 10)
	n, err := s.Read(first)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	assert.Equal(t, content[:10], first)

	// Give the filler a moment to get ahead before we yank it backward.
	time.Sleep(5 * time.Millisecond)

	off, err := s.Seek(2048, streamlike.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(2048), off)

	out := make([]byte, 100)
	n, err = s.Read(out)
	require.NoError(t, err)
	assert.Equal(t, content[2048:2048+n], out[:n])
}

func TestLengthDelegatesToInner(t *testing.T) {
	inner := newMemStream("0123456789")
	s, err := New(inner, WithBufferSize(4))
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

// blockingMemStream blocks its first Read until unblock is closed, the way
// an httpstream.Stream's Read blocks on a slow or paused HTTP response
// body, so tests can confirm Seek does not wait for such a read to return
// on its own. Its Seek, like httpstream.Stream's, cancels that blocked
// read as a side effect instead of waiting for it.
type blockingMemStream struct {
	memStream
	started     chan struct{}
	unblock     chan struct{}
	unblockOnce sync.Once
	once        bool
}

func (m *blockingMemStream) Read(p []byte) (int, error) {
	if !m.once {
		m.once = true
		close(m.started)
		<-m.unblock
	}
	return m.memStream.Read(p)
}

func (m *blockingMemStream) Seek(offset int64, whence streamlike.Whence) (int64, error) {
	m.unblockOnce.Do(func() { close(m.unblock) })
	return m.memStream.Seek(offset, whence)
}

func TestSeekDoesNotWaitForBlockedFillerRead(t *testing.T) {
	inner := &blockingMemStream{
		memStream: memStream{data: []byte("0123456789abcdefghij")},
		started:   make(chan struct{}),
		unblock:   make(chan struct{}),
	}
	s, err := New(inner, WithBufferSize(64), WithStepSize(4))
	require.NoError(t, err)
	defer func() {
		inner.unblockOnce.Do(func() { close(inner.unblock) })
		s.Close()
	}()

	<-inner.started

	seekDone := make(chan struct{})
	go func() {
		defer close(seekDone)
		off, err := s.Seek(10, streamlike.SeekStart)
		assert.NoError(t, err)
		assert.Equal(t, int64(10), off)
	}()

	select {
	case <-seekDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Seek waited for the filler's blocked inner Read instead of running concurrently")
	}
}

func TestMetricsRecordBytesWrittenAndSeeks(t *testing.T) {
	inner := newMemStream("the quick brown fox jumps over the lazy dog")
	reg := metrics.NewRegistry()
	s, err := New(inner, WithBufferSize(8), WithStepSize(4), WithMetrics(reg))
	require.NoError(t, err)
	defer s.Close()

	_ = readAll(t, s)

	_, err = s.Seek(0, streamlike.SeekStart)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, req)
	body := rec.Body.String()

	assert.Contains(t, body, "ringbuffer_bytes_written_total")
	assert.Contains(t, body, "prefetch_seeks_total")
}

// TestRepeatedSeeksNeverYieldStalePrefix guards against a race where a
// filler iteration's stale-check passes just before a concurrent Seek
// resets the buffer, letting pre-seek bytes land ahead of the new
// offset's data. A tiny buffer and step size maximize the number of
// fill/reset cycles racing against each Seek.
func TestRepeatedSeeksNeverYieldStalePrefix(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i % 256)
	}
	inner := newMemStream(string(data))
	s, err := New(inner, WithBufferSize(8), WithStepSize(3))
	require.NoError(t, err)
	defer s.Close()

	offsets := []int64{0, 512, 64, 2048, 1, 4000, 256, 4095}
	for _, off := range offsets {
		got, err := s.Seek(off, streamlike.SeekStart)
		require.NoError(t, err)
		require.Equal(t, off, got)

		want := 16
		if remaining := len(data) - int(off); remaining < want {
			want = remaining
		}
		out := make([]byte, want)
		n, err := s.Read(out)
		require.NoError(t, err)
		require.Equal(t, want, n)
		assert.Equal(t, data[off:int(off)+want], out, "stale bytes after seeking to %d", off)
	}
}

func TestCloseStopsFiller(t *testing.T) {
	inner := newMemStream("abc")
	s, err := New(inner, WithBufferSize(4))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}
