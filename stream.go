package streamlike

import "errors"

// Whence selects the reference point for Seeker.Seek, mirroring io.Seeker's
// SeekStart/SeekCurrent/SeekEnd.
type Whence int

const (
	SeekStart   Whence = 0
	SeekCurrent Whence = 1
	SeekEnd     Whence = 2
)

// Seekable describes whether, and how, a stream supports seeking.
type Seekable int

const (
	// NotSupported means Seek isn't implemented at all.
	NotSupported Seekable = iota
	// Supported means Seek is implemented and exact for any offset.
	Supported
	// Emulated means seeking forward works by discarding read bytes; seeking
	// backward may be expensive or unsupported.
	Emulated
	// CheckpointsOnly means only offsets returned by Checkpointer.Checkpoint
	// can be seeked to exactly.
	CheckpointsOnly
)

func (s Seekable) String() string {
	switch s {
	case NotSupported:
		return "not-supported"
	case Supported:
		return "supported"
	case Emulated:
		return "emulated"
	case CheckpointsOnly:
		return "checkpoints-only"
	default:
		return "unknown"
	}
}

// ErrUnsupported is returned by adapters when an operation is invoked that
// the concrete stream doesn't implement. Callers that type-assert for a
// capability interface before calling it should never see this error; it
// exists for call sites that can't do the assertion ahead of time (e.g.
// generic pipeline code operating on a Stream value).
var ErrUnsupported = errors.New("streamlike: operation not supported")

// Reader reads up to len(p) bytes into p, returning how many bytes were
// read. Like io.Reader, a short read is not itself an error; callers check
// EOF()/Err() on the owning Stream to tell apart "no more data" from
// "something went wrong".
type Reader interface {
	Read(p []byte) (n int, err error)
}

// Peeker exposes zero-copy access to the next contiguous run of buffered
// bytes without advancing the read position. The returned slice is valid
// only until the next call that advances the stream's read position.
type Peeker interface {
	// Input returns up to n bytes of the next contiguous readable run. It
	// never blocks and never advances the stream position; callers that
	// want to consume the bytes call Dispose. err is non-nil only when the
	// underlying source itself failed, not for the ordinary "fewer than n
	// bytes available" case.
	Input(n int) (p []byte, err error)
}

// Disposer advances the read position without copying, discarding bytes
// previously returned by Peeker.Input.
type Disposer interface {
	Dispose(n int) int
}

// Writer writes len(p) bytes from p, returning how many were written.
type Writer interface {
	Write(p []byte) (n int, err error)
}

// Flusher flushes any buffered writes to the underlying sink.
type Flusher interface {
	Flush() error
}

// Seeker repositions the stream and reports the resulting absolute offset.
type Seeker interface {
	Seek(offset int64, whence Whence) (int64, error)
}

// Teller reports the stream's current logical offset.
type Teller interface {
	Tell() (int64, error)
}

// EOFer reports whether the most recent Read returned fewer bytes than
// requested because the stream is exhausted.
type EOFer interface {
	EOF() bool
}

// Errorer reports the last error encountered by Read/Write, distinct from a
// plain EOF.
type Errorer interface {
	Err() error
}

// Lengther reports the total length of the stream, or a negative value if
// unknown. A continuous stream of unknown length is represented by -1;
// this library does not implement continuous streams (see Non-goals).
type Lengther interface {
	Length() (int64, error)
}

// SeekabilityReporter reports how a stream supports Seek.
type SeekabilityReporter interface {
	Seekable() Seekable
}

// Checkpoint is an opaque, source-defined offset marker. Concrete stream
// adapters define their own representation; callers never construct one
// directly.
type Checkpoint interface {
	checkpoint()
}

// Checkpointer exposes pre-computed offsets for efficient random access,
// for sources where the underlying transport has cheap natural seek
// points (e.g. container/archive entry boundaries). None of the concrete
// streams in this module produce checkpoints of their own, and
// prefetch.Stream does not implement Checkpointer, so an inner stream's
// checkpoints are not reachable through it.
type Checkpointer interface {
	CheckpointCount() int
	Checkpoint(idx int) (Checkpoint, bool)
}

// Stream is the minimal contract every adapter in this module implements.
// Additional capabilities are probed for via the interfaces above.
type Stream interface {
	Reader
	EOFer
	Errorer
}
