// Package prefetch adapts a streamlike.Stream into a read-ahead stream
// backed by a ring buffer: a background filler goroutine keeps pulling
// bytes from the inner stream into the buffer so that Read rarely blocks
// on the inner stream's own latency (this matters most for httpstream,
// where a single Read can mean a round trip).
//
// Seeking is re-expressed from the original's seek_lock/seek_cond
// rendezvous (where the filler thread itself performs the inner seek once
// it next checks seek_requested) into a direct call: Seek runs the inner
// stream's Seek itself, on the consumer's own goroutine, rather than
// waiting for the filler to notice a request. A filler blocked inside a
// slow inner.Read (the httpstream case, a round trip mid-flight) would
// never reach a check point to service such a request; httpstream.Read is
// built to let a concurrent Seek cancel it precisely so this direct call
// can interrupt it instead.
//
// A generation counter bumped by every Seek lets the filler recognize,
// once a now-canceled Read returns, that the bytes it produced are stale
// and must be discarded. The buffer Reset that clears old bytes out is
// performed by the filler itself, never by Seek: the filler is the only
// goroutine that also calls Write, so Reset and Write can never interleave
// and a discarded read can never land in a buffer that was already reset
// for the new offset. Seek instead blocks until the filler has confirmed
// the reset for its generation before returning, keeping the seek
// synchronous from the caller's point of view.
package prefetch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ozars/libstreamlike"
	"github.com/ozars/libstreamlike/internal/logging"
	"github.com/ozars/libstreamlike/internal/metrics"
	"github.com/ozars/libstreamlike/ringbuffer"
)

// ErrUnsupportedWhence is returned by Seek for any whence other than
// streamlike.SeekStart, matching the original implementation's literal
// behavior: the filler thread only ever receives resolved absolute
// offsets, never a whence to interpret itself.
var ErrUnsupportedWhence = errors.New("prefetch: only SeekStart is supported")

// ErrNoInnerStream is returned by New when given a nil inner stream.
var ErrNoInnerStream = errors.New("prefetch: inner stream must not be nil")

// ErrClosed is returned by Read/Seek once Close has been called.
var ErrClosed = errors.New("prefetch: stream is closed")

const (
	defaultBufferSize = 1 << 30 // 1 GiB
	defaultStepSize   = 16 << 10
)

// Option configures a Stream at construction time.
type Option func(*config)

type config struct {
	bufferSize int
	stepSize   int
	logger     logging.Logger
	metrics    *metrics.Registry
}

// WithBufferSize overrides the ring buffer's capacity. Default 1 GiB.
func WithBufferSize(n int) Option {
	return func(c *config) { c.bufferSize = n }
}

// WithStepSize overrides how many bytes the filler asks the inner stream
// for per fill iteration. Default 16 KiB.
func WithStepSize(n int) Option {
	return func(c *config) { c.stepSize = n }
}

// WithLogger attaches a logger. The filler writes to it only when closing
// the ring buffer's write side fails; seeks are not logged.
func WithLogger(l logging.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics wires the stream's filler and seek activity into a metrics
// registry: bytes written into the ring buffer, its occupancy after every
// fill iteration, and a count of serviced seeks.
func WithMetrics(m *metrics.Registry) Option {
	return func(c *config) { c.metrics = m }
}

// Stream prefetches an inner streamlike.Stream through a ring buffer
// filled by a background goroutine.
type Stream struct {
	inner streamlike.Stream
	buf   *ringbuffer.Buffer
	log   logging.Logger
	mtr   *metrics.Registry

	stepSize int

	fillerDone chan struct{}
	closeOnce  sync.Once

	// seekMu guards gen, pending, doneGen and closed, and seekCond wakes
	// whichever side (filler or a blocked Seek) needs to notice a change:
	//
	//   - gen is bumped the instant a Seek begins, so the filler can
	//     recognize an already in-flight Read as belonging to a stale
	//     generation as soon as it returns.
	//   - pending is true from a Seek's gen bump until the inner stream's
	//     own Seek returns. The filler must
	//     not start a new inner Read for the new generation while pending,
	//     since that would race the consumer's own call into the inner
	//     stream's Seek.
	//   - doneGen records the generation the filler has most recently
	//     finished resetting the buffer for; Seek waits on it so it only
	//     returns once the buffer is actually ready for the new offset.
	//   - closed tells the filler to exit for good.
	seekMu   sync.Mutex
	seekCond *sync.Cond
	gen      int
	pending  bool
	doneGen  int
	closed   bool

	pos int64
	eof bool
}

// New starts prefetching inner through a freshly allocated ring buffer and
// its own filler goroutine.
func New(inner streamlike.Stream, opts ...Option) (*Stream, error) {
	if inner == nil {
		return nil, ErrNoInnerStream
	}
	cfg := config{
		bufferSize: defaultBufferSize,
		stepSize:   defaultStepSize,
		logger:     logging.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	buf, err := ringbuffer.New(cfg.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("prefetch: allocating ring buffer: %w", err)
	}

	s := &Stream{
		inner:      inner,
		buf:        buf,
		log:        cfg.logger,
		mtr:        cfg.metrics,
		stepSize:   cfg.stepSize,
		fillerDone: make(chan struct{}),
	}
	s.seekCond = sync.NewCond(&s.seekMu)

	go s.fill()

	return s, nil
}

// fill is the filler goroutine's main loop: pull a step of data from the
// inner stream and write it into the ring buffer, parking whenever there is
// nothing to do (the previous generation hit end-of-stream and no seek is
// in progress) until a Seek or Close wakes it.
func (s *Stream) fill() {
	defer close(s.fillerDone)

	fillGen := 0

	for {
		s.seekMu.Lock()
		for !s.closed && (s.pending || (fillGen == s.gen && s.buf.IsWriteClosed())) {
			s.seekCond.Wait()
		}
		closed := s.closed
		gen := s.gen
		s.seekMu.Unlock()

		if closed {
			return
		}

		if gen != fillGen {
			// A Seek has bumped the generation and its call into the inner
			// stream's Seek has already returned (pending is false, or we
			// wouldn't have left the wait loop). Resetting here, on the
			// filler's own goroutine right before it reads anything for
			// the new generation, keeps Reset and Write sequential within
			// one goroutine: no write for the old generation can ever
			// land after this point, since only this loop calls Write.
			s.buf.Reset()
			fillGen = gen
			s.seekMu.Lock()
			s.doneGen = fillGen
			s.seekCond.Broadcast()
			s.seekMu.Unlock()
			continue
		}

		tmp := make([]byte, s.stepSize)
		n, err := s.inner.Read(tmp)

		s.seekMu.Lock()
		stale := s.gen != fillGen
		s.seekMu.Unlock()
		if stale {
			// A concurrent Seek started while this read was in flight; its
			// bytes, valid or not, belong to an offset already abandoned.
			// Loop back around to the reset branch above instead of
			// writing them anywhere.
			continue
		}

		if n > 0 {
			written := s.buf.Write(tmp[:n])
			if s.mtr != nil {
				s.mtr.AddBytesWritten(written)
				s.mtr.SetOccupancy(s.buf.Len())
			}
			if written < n {
				// Read side closed mid-write by a Seek or Close; loop
				// around to notice which via the top-of-loop check.
				continue
			}
		}
		if err != nil || s.inner.EOF() {
			if cerr := s.buf.CloseWrite(); cerr != nil && !errors.Is(cerr, ringbuffer.ErrAlreadyClosed) {
				s.log.Errorf("prefetch: closing write side: %v", cerr)
			}
		}
	}
}

// Read blocks until len(p) bytes are available or the inner stream is
// exhausted (returning a short read). It returns ErrClosed once Close has
// been called.
func (s *Stream) Read(p []byte) (int, error) {
	if s.isClosed() {
		return 0, ErrClosed
	}
	n := s.buf.Read(p)
	s.pos += int64(n)
	if n < len(p) {
		s.eof = true
	}
	return n, nil
}

// EOF reports whether Read has most recently observed end-of-stream.
func (s *Stream) EOF() bool {
	return s.eof
}

// Err delegates to the inner stream's Err, if it implements Errorer.
func (s *Stream) Err() error {
	if e, ok := s.inner.(streamlike.Errorer); ok {
		return e.Err()
	}
	return nil
}

// Length delegates to the inner stream's Length, if it implements
// Lengther.
func (s *Stream) Length() (int64, error) {
	if l, ok := s.inner.(streamlike.Lengther); ok {
		return l.Length()
	}
	return -1, streamlike.ErrUnsupported
}

// Tell reports the consumer's current logical read offset.
func (s *Stream) Tell() (int64, error) {
	return s.pos, nil
}

// Seekable reports the inner stream's seekability, since the prefetch
// layer adds no seek capability of its own beyond what the inner stream
// can already do.
func (s *Stream) Seekable() streamlike.Seekable {
	if sr, ok := s.inner.(streamlike.SeekabilityReporter); ok {
		return sr.Seekable()
	}
	if _, ok := s.inner.(streamlike.Seeker); ok {
		return streamlike.Supported
	}
	return streamlike.NotSupported
}

// Seek repositions the stream. Only streamlike.SeekStart is supported;
// any other whence returns ErrUnsupportedWhence, matching the original
// implementation where the filler thread is only ever handed an absolute
// offset.
//
// Seek runs the inner stream's own Seek directly on the caller's
// goroutine rather than delegating to the filler, so that a filler
// blocked inside a slow inner.Read can be interrupted by it (see the
// package doc comment). It blocks until the filler has reset the ring
// buffer for the new generation, so a Read immediately after Seek returns
// never observes bytes left over from before the seek.
func (s *Stream) Seek(offset int64, whence streamlike.Whence) (int64, error) {
	if whence != streamlike.SeekStart {
		return 0, ErrUnsupportedWhence
	}
	if s.isClosed() {
		return 0, ErrClosed
	}
	seeker, ok := s.inner.(streamlike.Seeker)
	if !ok {
		return 0, fmt.Errorf("prefetch: inner stream does not support seeking: %w", streamlike.ErrUnsupported)
	}

	s.seekMu.Lock()
	s.gen++
	target := s.gen
	s.pending = true
	s.seekMu.Unlock()
	s.seekCond.Broadcast()

	if s.mtr != nil {
		s.mtr.IncPrefetchSeeks()
	}

	// Force the filler out of a blocked Write; any read it already has in
	// flight will be recognized as stale once gen has moved on.
	if err := s.buf.CloseRead(); err != nil && !errors.Is(err, ringbuffer.ErrAlreadyClosed) {
		s.seekMu.Lock()
		s.pending = false
		s.seekMu.Unlock()
		s.seekCond.Broadcast()
		return 0, fmt.Errorf("prefetch: closing read side for seek: %w", err)
	}

	newOff, seekErr := seeker.Seek(offset, streamlike.SeekStart)
	if seekErr == nil {
		s.pos = newOff
		s.eof = false
	}

	// Clearing pending lets the filler proceed to its own reset branch for
	// this generation; it cannot have gotten there any earlier, since the
	// wait condition above keeps it parked while pending is true. Wait for
	// doneGen to catch up so Seek does not return (and let the caller
	// issue a Read) before the reset has actually happened.
	s.seekMu.Lock()
	s.pending = false
	s.seekCond.Broadcast()
	for s.doneGen != target && !s.closed {
		s.seekCond.Wait()
	}
	closedDuringSeek := s.closed
	s.seekMu.Unlock()

	if closedDuringSeek {
		return 0, ErrClosed
	}
	if seekErr != nil {
		return 0, fmt.Errorf("prefetch: seek failed: %w", seekErr)
	}
	return s.pos, nil
}

func (s *Stream) isClosed() bool {
	s.seekMu.Lock()
	defer s.seekMu.Unlock()
	return s.closed
}

// Close stops the filler goroutine and releases the inner stream if it is
// also a Closer.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.seekMu.Lock()
		s.closed = true
		s.seekMu.Unlock()

		if cerr := s.buf.CloseRead(); cerr != nil && !errors.Is(cerr, ringbuffer.ErrAlreadyClosed) {
			err = cerr
		}
		s.seekMu.Lock()
		s.seekCond.Broadcast()
		s.seekMu.Unlock()
		<-s.fillerDone

		if c, ok := s.inner.(interface{ Close() error }); ok {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
