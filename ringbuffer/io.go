package ringbuffer

import "io"

// reader adapts a Buffer to io.Reader, translating a closed+drained write
// side into io.EOF.
type reader struct {
	b *Buffer
}

// AsReader returns an io.Reader view of b. Read blocks until data is
// available, the write side is closed and drained (io.EOF), or len(p)
// bytes have been delivered.
func (b *Buffer) AsReader() io.Reader {
	return reader{b: b}
}

func (r reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n := r.b.Read(p)
	if n == 0 && r.b.IsWriteClosed() {
		return 0, io.EOF
	}
	return n, nil
}

// writer adapts a Buffer to io.Writer, translating a closed read side into
// io.ErrClosedPipe.
type writer struct {
	b *Buffer
}

// AsWriter returns an io.Writer view of b. Write blocks until space is
// available or the read side is closed.
func (b *Buffer) AsWriter() io.Writer {
	return writer{b: b}
}

func (w writer) Write(p []byte) (int, error) {
	n := w.b.Write(p)
	if n < len(p) {
		return n, io.ErrClosedPipe
	}
	return n, nil
}
