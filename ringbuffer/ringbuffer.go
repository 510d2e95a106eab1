// Package ringbuffer provides a threaded single-producer/single-consumer
// (SPSC) bounded byte ring.
//
// Exactly one goroutine may act as producer (Write/WriteSome/Write2/
// WriteSome2/CloseWrite) and exactly one goroutine may act as consumer
// (Read/ReadSome/InputSome/DisposeSome/CloseRead) for the entire lifetime of a
// Buffer. Mixing producers or mixing consumers is undefined behavior, same
// as the C circbuf this package is a port of.
//
// The buffer always allocates one extra byte of storage beyond the
// requested capacity, so that "full" and "empty" can be told apart without
// a separate occupancy counter: the write offset is never allowed to catch
// up with the read offset from behind.
package ringbuffer

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCapacityZero is returned by New when asked for a zero-capacity buffer.
var ErrCapacityZero = errors.New("ringbuffer: capacity must be greater than zero")

// ErrAlreadyClosed is returned by CloseRead/CloseWrite on a side that was
// already closed.
var ErrAlreadyClosed = errors.New("ringbuffer: already closed")

// WriteCallback supplies bytes into the region given by p, returning how
// many bytes it actually wrote. Returning fewer bytes than len(p) tells the
// driving WriteSome2/Write2 call that the callback's source is exhausted
// (EOF) or has failed, as opposed to the ring buffer itself being full.
type WriteCallback func(p []byte) (n int)

// Buffer is a bounded SPSC byte ring with blocking and non-blocking
// read/write variants.
type Buffer struct {
	data []byte
	size int64 // capacity + 1; the "phantom slot" that disambiguates full/empty

	// wOff is advanced only by the producer; rOff only by the consumer.
	// Both are atomics so that the side which doesn't own an offset can take
	// a consistent snapshot of it without racing the owning side's update.
	wOff atomic.Int64
	rOff atomic.Int64

	wDone atomic.Bool
	rDone atomic.Bool

	// wMu/wCond pair guards and signals wOff updates: the consumer waits on
	// wCond while the buffer is empty and writing is still open.
	wMu   sync.Mutex
	wCond *sync.Cond

	// rMu/rCond pair guards and signals rOff updates: the producer waits on
	// rCond while the buffer is full and reading is still open.
	rMu   sync.Mutex
	rCond *sync.Cond
}

// New allocates a ring buffer able to hold n bytes before blocking a
// producer. It returns ErrCapacityZero if n <= 0.
func New(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, ErrCapacityZero
	}
	b := &Buffer{
		data: make([]byte, n+1),
		size: int64(n + 1),
	}
	b.wCond = sync.NewCond(&b.wMu)
	b.rCond = sync.NewCond(&b.rMu)
	return b, nil
}

// Size returns the allocated size of the underlying storage, i.e. the
// requested capacity plus the reserved phantom slot.
func (b *Buffer) Size() int {
	return int(b.size)
}

// Cap returns the usable capacity (the N passed to New).
func (b *Buffer) Cap() int {
	return int(b.size) - 1
}

// Len returns the number of bytes currently available for reading.
func (b *Buffer) Len() int {
	return int(occupancy(b.rOff.Load(), b.wOff.Load(), b.size))
}

func occupancy(r, w, size int64) int64 {
	if w >= r {
		return w - r
	}
	return size - r + w
}

// IsReadClosed reports whether the consumer has closed the read side.
func (b *Buffer) IsReadClosed() bool {
	return b.rDone.Load()
}

// IsWriteClosed reports whether the producer has closed the write side.
func (b *Buffer) IsWriteClosed() bool {
	return b.wDone.Load()
}

// readSome copies as much of data[:] as is available into p, following the
// ring's two-segment layout. It does not touch synchronization; callers
// publish the new offset themselves.
func readSome(data []byte, size int64, p []byte, r, w int64) (newR int64, n int64) {
	if r == w {
		return r, 0
	}
	if r < w {
		avail := w - r
		toCopy := int64(len(p))
		if toCopy > avail {
			toCopy = avail
		}
		copy(p[:toCopy], data[r:r+toCopy])
		return r + toCopy, toCopy
	}
	// Wrapped: first segment is [r, size), second segment is [0, w).
	avail1 := size - r
	toCopy1 := int64(len(p))
	if toCopy1 > avail1 {
		toCopy1 = avail1
	}
	copy(p[:toCopy1], data[r:r+toCopy1])
	n = toCopy1
	newR = r + toCopy1
	if newR == size {
		newR = 0
	}
	remaining := int64(len(p)) - toCopy1
	if toCopy1 == avail1 && remaining > 0 {
		toCopy2 := remaining
		if toCopy2 > w {
			toCopy2 = w
		}
		copy(p[n:n+toCopy2], data[:toCopy2])
		n += toCopy2
		newR = toCopy2
	}
	return newR, n
}

// ReadSome reads up to len(p) bytes without blocking. It returns the
// number of bytes actually read, which may be 0 if the buffer is
// currently empty.
func (b *Buffer) ReadSome(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	r := b.rOff.Load()
	w := b.wOff.Load()
	newR, n := readSome(b.data, b.size, p, r, w)
	if n == 0 {
		return 0
	}
	b.publishRead(newR)
	return int(n)
}

// publishRead stores the new read offset and wakes any producer blocked on
// a full buffer.
func (b *Buffer) publishRead(newR int64) {
	b.rMu.Lock()
	b.rOff.Store(newR)
	b.rCond.Signal()
	b.rMu.Unlock()
}

// Read reads exactly len(p) bytes, blocking while the buffer is empty and
// writing is still open. It returns fewer bytes than len(p) only once
// writing has been closed and no further data is buffered.
func (b *Buffer) Read(p []byte) int {
	total := 0
	for total < len(p) && (b.rOff.Load() != b.wOff.Load() || !b.IsWriteClosed()) {
		b.wMu.Lock()
		for b.rOff.Load() == b.wOff.Load() && !b.IsWriteClosed() {
			b.wCond.Wait()
		}
		b.wMu.Unlock()
		total += b.ReadSome(p[total:])
	}
	return total
}

// InputSome returns a zero-copy view of the longest contiguous run of bytes
// available for reading, starting at the current read position and capped
// at n bytes and at the buffer's physical wrap boundary. It does not
// advance the read position; pair it with DisposeSome. The returned slice is
// only valid until the next call that advances the read position or
// resets the buffer.
func (b *Buffer) InputSome(n int) []byte {
	r := b.rOff.Load()
	w := b.wOff.Load()
	var avail int64
	if w < r {
		avail = b.size - r
	} else {
		avail = w - r
	}
	if int64(n) < avail {
		avail = int64(n)
	}
	if avail <= 0 {
		return nil
	}
	return b.data[r : r+avail]
}

// DisposeSome advances the read position by up to n bytes without copying,
// discarding bytes previously returned by InputSome. It returns the number of
// bytes actually disposed.
func (b *Buffer) DisposeSome(n int) int {
	avail := occupancy(b.rOff.Load(), b.wOff.Load(), b.size)
	toDispose := int64(n)
	if toDispose > avail {
		toDispose = avail
	}
	if toDispose <= 0 {
		return 0
	}
	r := b.rOff.Load() + toDispose
	if r >= b.size {
		r -= b.size
	}
	b.publishRead(r)
	return int(toDispose)
}

// writeSome mirrors readSome for the producer side, honoring the reserved
// phantom slot that keeps full and empty distinguishable.
func writeSome(data []byte, size int64, p []byte, w, r int64) (newW int64, n int64) {
	// Full: the next slot after w is r.
	if (w+1)%size == r {
		return w, 0
	}
	if w < r {
		avail := r - w - 1
		toCopy := int64(len(p))
		if toCopy > avail {
			toCopy = avail
		}
		copy(data[w:w+toCopy], p[:toCopy])
		return w + toCopy, toCopy
	}
	avail1 := size - w
	if avail1 > int64(len(p)) {
		toCopy := int64(len(p))
		copy(data[w:w+toCopy], p[:toCopy])
		return w + toCopy, toCopy
	}
	// Writing through the end of the array with r == 0 would wrap w around
	// to 0 == r, which reads as empty; stop at size-1 instead, leaving the
	// last slot of this segment empty so the buffer reads as full.
	if r == 0 {
		toCopy := avail1 - 1
		copy(data[w:w+toCopy], p[:toCopy])
		return w + toCopy, toCopy
	}
	copy(data[w:size], p[:avail1])
	n = avail1
	remaining := int64(len(p)) - avail1
	if r > remaining {
		copy(data[0:remaining], p[avail1:avail1+remaining])
		return remaining, avail1 + remaining
	}
	copy(data[0:r-1], p[avail1:avail1+r-1])
	return r - 1, avail1 + r - 1
}

// WriteSome writes up to len(p) bytes without blocking, returning the
// number of bytes actually written.
func (b *Buffer) WriteSome(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	w := b.wOff.Load()
	r := b.rOff.Load()
	newW, n := writeSome(b.data, b.size, p, w, r)
	if n == 0 {
		return 0
	}
	b.publishWrite(newW)
	return int(n)
}

func (b *Buffer) publishWrite(newW int64) {
	b.wMu.Lock()
	b.wOff.Store(newW)
	b.wCond.Signal()
	b.wMu.Unlock()
}

func (b *Buffer) full() bool {
	w := b.wOff.Load()
	r := b.rOff.Load()
	return (w+1)%b.size == r
}

// Write writes exactly len(p) bytes, blocking while the buffer is full and
// reading is still open. It returns fewer bytes than len(p) only once
// reading has been closed.
func (b *Buffer) Write(p []byte) int {
	if b.IsReadClosed() {
		return 0
	}
	total := 0
	for total < len(p) && !b.IsReadClosed() {
		b.rMu.Lock()
		for b.full() && !b.IsReadClosed() {
			b.rCond.Wait()
		}
		b.rMu.Unlock()
		if b.IsReadClosed() {
			break
		}
		total += b.WriteSome(p[total:])
	}
	return total
}

// WriteSome2 fills up to n bytes of free space by invoking writer over one
// or two contiguous regions of the buffer's backing storage, without
// blocking. If writer returns fewer bytes than the region it was given,
// eofReached is set to true and the partial total is returned; this is how
// callers distinguish "producer's source is exhausted" from "ring buffer
// is full".
func (b *Buffer) WriteSome2(writer WriteCallback, n int) (written int, eofReached bool) {
	w := b.wOff.Load()
	r := b.rOff.Load()
	if (w+1)%b.size == r {
		return 0, false
	}

	writeRegion := func(off, length int64) (wrote int64, short bool) {
		got := writer(b.data[off : off+length])
		wrote = int64(got)
		return wrote, int64(got) < length
	}

	if w < r {
		avail := r - w - 1
		length := int64(n)
		if length > avail {
			length = avail
		}
		wrote, short := writeRegion(w, length)
		newW := w + wrote
		if newW == b.size {
			newW = 0
		}
		b.publishWrite(newW)
		return int(wrote), short
	}

	avail1 := b.size - w
	var length1 int64
	switch {
	case avail1 > int64(n):
		length1 = int64(n)
	case r == 0:
		length1 = avail1 - 1
	default:
		length1 = avail1
	}

	wrote1, short1 := writeRegion(w, length1)
	newW := w + wrote1
	if newW == b.size {
		newW = 0
	}
	if short1 || wrote1 < length1 {
		b.publishWrite(newW)
		return int(wrote1), true
	}
	if avail1 > int64(n) || r == 0 {
		// Entire request satisfied within the first segment (or we
		// deliberately stopped one byte short of the phantom slot).
		b.publishWrite(newW)
		return int(wrote1), false
	}

	remaining := int64(n) - wrote1
	length2 := remaining
	if length2 > r-1 {
		length2 = r - 1
	}
	if length2 <= 0 {
		b.publishWrite(newW)
		return int(wrote1), false
	}
	wrote2, short2 := writeRegion(0, length2)
	newW = wrote2
	b.publishWrite(newW)
	return int(wrote1 + wrote2), short2
}

// Write2 fills exactly n bytes by repeatedly invoking WriteSome2, blocking
// while the buffer is full and reading is open. It stops early if reading
// is closed or writer reports end-of-input (a short region write), in
// which case the returned count is less than n.
func (b *Buffer) Write2(writer WriteCallback, n int) int {
	if b.IsReadClosed() {
		return 0
	}
	total := 0
	for total < n && !b.IsReadClosed() {
		b.rMu.Lock()
		for b.full() && !b.IsReadClosed() {
			b.rCond.Wait()
		}
		b.rMu.Unlock()
		if b.IsReadClosed() {
			break
		}
		written, eof := b.WriteSome2(writer, n-total)
		total += written
		if eof {
			break
		}
	}
	return total
}

// CloseRead closes the read side and wakes any producer blocked on a full
// buffer. It returns ErrAlreadyClosed if called twice.
func (b *Buffer) CloseRead() error {
	b.rMu.Lock()
	defer b.rMu.Unlock()
	if b.rDone.Load() {
		return ErrAlreadyClosed
	}
	b.rDone.Store(true)
	b.rCond.Signal()
	return nil
}

// CloseWrite closes the write side and wakes any consumer blocked on an
// empty buffer. It returns ErrAlreadyClosed if called twice.
func (b *Buffer) CloseWrite() error {
	b.wMu.Lock()
	defer b.wMu.Unlock()
	if b.wDone.Load() {
		return ErrAlreadyClosed
	}
	b.wDone.Store(true)
	b.wCond.Signal()
	return nil
}

// Reset clears the buffer and reopens both the read and write sides,
// whether or not they were previously closed. The caller must ensure
// neither the producer nor the consumer is concurrently reading or
// writing; package prefetch calls Reset only from its own producer
// goroutine, between noticing a seek's generation bump and resuming
// filling, so that Reset can never interleave with that same goroutine's
// own Write calls.
func (b *Buffer) Reset() {
	b.wMu.Lock()
	b.wOff.Store(0)
	b.wDone.Store(false)
	b.wMu.Unlock()

	b.rMu.Lock()
	b.rOff.Store(0)
	b.rDone.Store(false)
	b.rMu.Unlock()
}
