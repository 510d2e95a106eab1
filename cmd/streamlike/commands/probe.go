package commands

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/ozars/libstreamlike"
	"github.com/ozars/libstreamlike/httpstream"
)

func newProbeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "probe <path-or-url>",
		Short: "Report length, seekability, and range support for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[0]
			s, closeFn, err := openSource(cmd.Context(), target, false, nil)
			if err != nil {
				return err
			}
			defer closeFn()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "source: %s\n", target)

			if lengther, ok := s.(streamlike.Lengther); ok {
				if n, err := lengther.Length(); err == nil {
					fmt.Fprintf(out, "length: %d bytes\n", n)
				} else {
					fmt.Fprintf(out, "length: unknown (%v)\n", err)
				}
			}

			if reporter, ok := s.(streamlike.SeekabilityReporter); ok {
				fmt.Fprintf(out, "seekable: %s\n", reporter.Seekable())
			}

			if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
				if hs, ok := s.(*httpstream.Stream); ok {
					honored, err := hs.ProbeRangeSupport(cmd.Context())
					if err != nil {
						fmt.Fprintf(out, "range requests honored: unknown (%v)\n", err)
					} else {
						fmt.Fprintf(out, "range requests honored: %t\n", honored)
					}
				}
			}

			return nil
		},
	}
	return c
}
