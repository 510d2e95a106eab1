package streamlike_test

import (
	"fmt"
	"io"
	"os"

	"github.com/ozars/libstreamlike"
	"github.com/ozars/libstreamlike/filestream"
)

func Example() {
	f, err := os.CreateTemp("", "streamlike-example")
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer os.Remove(f.Name())

	f.WriteString("hello, streamlike")
	f.Seek(0, io.SeekStart)

	s := filestream.New(f)
	defer s.Close()

	buf := make([]byte, 5)
	n, _ := s.Read(buf)
	fmt.Printf("read %d bytes: %s\n", n, buf[:n])
	// Output:
	// read 5 bytes: hello
}

func ExampleSeekable() {
	fmt.Println(streamlike.Supported)
	fmt.Println(streamlike.NotSupported)
	fmt.Println(streamlike.Emulated)
	fmt.Println(streamlike.CheckpointsOnly)
	// Output:
	// supported
	// not-supported
	// emulated
	// checkpoints-only
}

// ExampleSeeker demonstrates that any Stream implementing Seeker reports
// its new absolute offset, the detail this module's capability interfaces
// add over a bare error return.
func ExampleSeeker() {
	f, err := os.CreateTemp("", "streamlike-example-seek")
	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	defer os.Remove(f.Name())

	f.WriteString("0123456789")
	f.Seek(0, io.SeekStart)

	s := filestream.New(f)
	defer s.Close()

	var seeker streamlike.Seeker = s
	off, _ := seeker.Seek(5, streamlike.SeekStart)
	fmt.Printf("seeked to offset %d\n", off)

	buf := make([]byte, 5)
	n, _ := s.Read(buf)
	fmt.Printf("read %d bytes: %s\n", n, buf[:n])
	// Output:
	// seeked to offset 5
	// read 5 bytes: 56789
}
