// Package streamlike provides a uniform byte-stream abstraction over
// heterogeneous sources, local files, HTTP resources, and prefetch-buffered
// variants of both, through a small set of composable interfaces rather
// than a single monolithic contract.
//
// A [Stream] always supports Read, EOF and Err. Additional capabilities
// (Seek, Tell, Length, zero-copy Input, Write, Flush, checkpoints) are
// expressed as separate interfaces that a concrete stream may or may not
// implement; callers probe for them with a type assertion, the same way the
// standard library probes an [io.Reader] for [io.WriterTo]. A capability
// that isn't present is simply absent from the concrete type; there is no
// sentinel "unsupported" value to check first.
//
// Subpackages implement the hard core of the library:
//
//   - [github.com/ozars/libstreamlike/ringbuffer], a blocking
//     single-producer/single-consumer byte ring.
//   - [github.com/ozars/libstreamlike/prefetch], an adapter that runs a
//     background filler goroutine over a ring buffer to prefetch an inner
//     stream, translating seeks into a generation-gated abort/reset
//     protocol between the caller's goroutine and the filler.
//   - [github.com/ozars/libstreamlike/httpstream], a Stream over a
//     streaming HTTP GET with Range-based reseeking.
//   - [github.com/ozars/libstreamlike/filestream], a Stream wrapping
//     *os.File.
package streamlike
