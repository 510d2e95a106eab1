package commands

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ozars/libstreamlike/internal/metrics"
)

func newMetricsCmd() *cobra.Command {
	var (
		addr        string
		usePrefetch bool
	)

	c := &cobra.Command{
		Use:   "metrics <path-or-url>",
		Short: "Stream a source while serving Prometheus-shaped metrics over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := metrics.NewRegistry()

			lis, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("metrics: listen on %s: %w", addr, err)
			}

			srv := &http.Server{Handler: reg.Handler()}

			// Run the metrics server and the streaming copy concurrently,
			// the same errgroup.WithContext shape the scheduler in the
			// example corpus uses to coordinate its installer and loader
			// goroutines; the first of the two to fail cancels the group's
			// context and its error is returned.
			group, ctx := errgroup.WithContext(cmd.Context())

			group.Go(func() error {
				if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("metrics: serve: %w", err)
				}
				return nil
			})

			group.Go(func() error {
				defer srv.Close()
				return copyWithMetrics(ctx, cmd, args[0], usePrefetch, reg)
			})

			return group.Wait()
		},
	}
	c.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "address to serve metrics on")
	c.Flags().BoolVar(&usePrefetch, "prefetch", false, "wrap the source in a prefetch buffer")
	return c
}

func copyWithMetrics(ctx context.Context, cmd *cobra.Command, target string, usePrefetch bool, reg *metrics.Registry) error {
	s, closeFn, err := openSource(ctx, target, usePrefetch, reg)
	if err != nil {
		return err
	}
	defer closeFn()

	buf := make([]byte, 32*1024)
	for {
		n, err := s.Read(buf)
		if n > 0 {
			reg.AddBytesRead(n)
			if _, werr := cmd.OutOrStdout().Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil && err != io.EOF {
			return fmt.Errorf("metrics: read: %w", err)
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
}
