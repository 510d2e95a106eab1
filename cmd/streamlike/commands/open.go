package commands

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/ozars/libstreamlike"
	"github.com/ozars/libstreamlike/filestream"
	"github.com/ozars/libstreamlike/httpstream"
	"github.com/ozars/libstreamlike/internal/metrics"
	"github.com/ozars/libstreamlike/prefetch"
)

// openSource opens target (a filesystem path or an http(s) URL) as a
// streamlike.Stream, optionally wrapping it in a prefetch.Stream. A non-nil
// reg wires the resulting stream's pause/abort/seek/occupancy counters into
// that registry.
func openSource(ctx context.Context, target string, usePrefetch bool, reg *metrics.Registry) (streamlike.Stream, func() error, error) {
	var (
		inner   streamlike.Stream
		closeFn func() error
	)

	if u, err := url.Parse(target); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		var opts []httpstream.Option
		if reg != nil {
			opts = append(opts, httpstream.WithMetrics(reg))
		}
		s, err := httpstream.Open(ctx, target, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", target, err)
		}
		inner, closeFn = s, s.Close
	} else {
		s, err := filestream.Open(target, os.O_RDONLY, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", target, err)
		}
		inner, closeFn = s, s.Close
	}

	if !usePrefetch {
		return inner, closeFn, nil
	}

	var opts []prefetch.Option
	if reg != nil {
		opts = append(opts, prefetch.WithMetrics(reg))
	}
	pb, err := prefetch.New(inner, opts...)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("wrap prefetch: %w", err)
	}
	return pb, pb.Close, nil
}
