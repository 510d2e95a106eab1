// Package filestream adapts *os.File to streamlike.Stream, the simplest of
// the three concrete adapters: every capability it exposes is a thin
// pass-through to the os package, since a local file already supports
// everything the streamlike interfaces ask for.
package filestream

import (
	"errors"
	"io"
	"os"

	"github.com/ozars/libstreamlike"
)

// ErrNotOpen is returned by operations on a Stream whose file has already
// been closed.
var ErrNotOpen = errors.New("filestream: file is not open")

// Stream wraps an *os.File as a streamlike.Stream, additionally
// implementing Writer, Flusher, Seeker, Teller, Lengther and
// SeekabilityReporter.
type Stream struct {
	f    *os.File
	eof  bool
	err  error
	open bool
}

// New wraps an already-open *os.File. The returned Stream takes ownership
// of f: Close on it closes f.
func New(f *os.File) *Stream {
	return &Stream{f: f, open: true}
}

// Open opens path with the given flag/perm (as os.OpenFile) and wraps the
// resulting file.
func Open(path string, flag int, perm os.FileMode) (*Stream, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}
	return New(f), nil
}

// Read reads up to len(p) bytes from the file.
func (s *Stream) Read(p []byte) (int, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	n, err := s.f.Read(p)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.eof = true
		} else {
			s.err = err
		}
	}
	return n, err
}

// Write writes len(p) bytes to the file.
func (s *Stream) Write(p []byte) (int, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	n, err := s.f.Write(p)
	if err != nil {
		s.err = err
	}
	return n, err
}

// Flush syncs the file to stable storage.
func (s *Stream) Flush() error {
	if !s.open {
		return ErrNotOpen
	}
	return s.f.Sync()
}

// Seek repositions the file and returns the resulting absolute offset.
func (s *Stream) Seek(offset int64, whence streamlike.Whence) (int64, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	n, err := s.f.Seek(offset, int(whence))
	if err == nil {
		s.eof = false
	} else {
		s.err = err
	}
	return n, err
}

// Tell reports the file's current offset.
func (s *Stream) Tell() (int64, error) {
	if !s.open {
		return 0, ErrNotOpen
	}
	return s.f.Seek(0, io.SeekCurrent)
}

// EOF reports whether a Read has hit end-of-file (os.File returned io.EOF)
// since the last successful Seek. A short Read that stops exactly at the
// end of the file does not set it; the following Read, which returns 0
// bytes and io.EOF, does.
func (s *Stream) EOF() bool {
	return s.eof
}

// Err reports the last non-EOF error encountered.
func (s *Stream) Err() error {
	return s.err
}

// Length reports the file's total size via Stat.
func (s *Stream) Length() (int64, error) {
	if !s.open {
		return -1, ErrNotOpen
	}
	info, err := s.f.Stat()
	if err != nil {
		return -1, err
	}
	return info.Size(), nil
}

// Seekable always reports streamlike.Supported: local files support exact
// seeking to any offset.
func (s *Stream) Seekable() streamlike.Seekable {
	return streamlike.Supported
}

// Close closes the underlying file.
func (s *Stream) Close() error {
	if !s.open {
		return ErrNotOpen
	}
	s.open = false
	return s.f.Close()
}
