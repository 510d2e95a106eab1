package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ozars/libstreamlike"
)

func newCatCmd() *cobra.Command {
	var (
		usePrefetch bool
		seekTo      int64
	)

	c := &cobra.Command{
		Use:   "cat <path-or-url>",
		Short: "Stream a file or URL to stdout through the streamlike pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, closeFn, err := openSource(cmd.Context(), args[0], usePrefetch, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			if seekTo > 0 {
				seeker, ok := s.(streamlike.Seeker)
				if !ok {
					return fmt.Errorf("cat: %s does not support seeking", args[0])
				}
				if _, err := seeker.Seek(seekTo, streamlike.SeekStart); err != nil {
					return fmt.Errorf("cat: seek to %d: %w", seekTo, err)
				}
			}

			buf := make([]byte, 32*1024)
			for {
				n, err := s.Read(buf)
				if n > 0 {
					if _, werr := cmd.OutOrStdout().Write(buf[:n]); werr != nil {
						return werr
					}
				}
				if err != nil && err != io.EOF {
					return fmt.Errorf("cat: read: %w", err)
				}
				if n == 0 {
					if s.EOF() {
						return s.Err()
					}
					if err != nil {
						return nil
					}
				}
			}
		},
	}
	c.Flags().BoolVar(&usePrefetch, "prefetch", false, "wrap the source in a prefetch buffer")
	c.Flags().Int64Var(&seekTo, "seek", 0, "seek to this offset before streaming (requires a seekable source)")
	return c
}
