// Package metrics exposes this module's own runtime counters in
// Prometheus text-exposition format, built directly on dto.MetricFamily
// and expfmt the same way the Docker Model Runner's aggregated metrics
// handler does, rather than depending on the full client_golang registry.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Registry accumulates a fixed set of counters and gauges for one
// process's streamlike pipeline: bytes moved through the ring buffer,
// prefetch seeks, and HTTP range-stream pauses/aborts.
type Registry struct {
	ringbufferBytesWritten atomic.Uint64
	ringbufferBytesRead    atomic.Uint64
	prefetchSeeksTotal     atomic.Uint64
	httpstreamPausesTotal  atomic.Uint64
	httpstreamAbortsTotal  atomic.Uint64

	occupancyMu sync.Mutex
	occupancy   int64
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// AddBytesWritten increments the ring buffer bytes-written counter.
func (r *Registry) AddBytesWritten(n int) {
	r.ringbufferBytesWritten.Add(uint64(n))
}

// AddBytesRead increments the ring buffer bytes-read counter.
func (r *Registry) AddBytesRead(n int) {
	r.ringbufferBytesRead.Add(uint64(n))
}

// IncPrefetchSeeks increments the prefetch seek counter.
func (r *Registry) IncPrefetchSeeks() {
	r.prefetchSeeksTotal.Add(1)
}

// IncHTTPPauses increments the HTTP range-stream pause counter.
func (r *Registry) IncHTTPPauses() {
	r.httpstreamPausesTotal.Add(1)
}

// IncHTTPAborts increments the HTTP range-stream abort counter.
func (r *Registry) IncHTTPAborts() {
	r.httpstreamAbortsTotal.Add(1)
}

// SetOccupancy records the ring buffer's current occupancy gauge.
func (r *Registry) SetOccupancy(n int) {
	r.occupancyMu.Lock()
	r.occupancy = int64(n)
	r.occupancyMu.Unlock()
}

func counterFamily(name, help string, value float64) *dto.MetricFamily {
	counterType := dto.MetricType_COUNTER
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: &counterType,
		Metric: []*dto.Metric{
			{Counter: &dto.Counter{Value: &value}},
		},
	}
}

func gaugeFamily(name, help string, value float64) *dto.MetricFamily {
	gaugeType := dto.MetricType_GAUGE
	return &dto.MetricFamily{
		Name: strPtr(name),
		Help: strPtr(help),
		Type: &gaugeType,
		Metric: []*dto.Metric{
			{Gauge: &dto.Gauge{Value: &value}},
		},
	}
}

func strPtr(s string) *string { return &s }

// Families snapshots the registry as dto.MetricFamily values, in the same
// shape the aggregated metrics handler in the example corpus merges
// per-runner families into. Here there's only ever one "runner" (this
// process), so no label-merging step is needed.
func (r *Registry) Families() []*dto.MetricFamily {
	r.occupancyMu.Lock()
	occupancy := r.occupancy
	r.occupancyMu.Unlock()

	return []*dto.MetricFamily{
		counterFamily("ringbuffer_bytes_written_total", "Bytes written into ring buffers.", float64(r.ringbufferBytesWritten.Load())),
		counterFamily("ringbuffer_bytes_read_total", "Bytes read from ring buffers.", float64(r.ringbufferBytesRead.Load())),
		gaugeFamily("ringbuffer_occupancy_bytes", "Current ring buffer occupancy.", float64(occupancy)),
		counterFamily("prefetch_seeks_total", "Seeks serviced by prefetch buffers.", float64(r.prefetchSeeksTotal.Load())),
		counterFamily("httpstream_pauses_total", "HTTP range-stream pause transitions.", float64(r.httpstreamPausesTotal.Load())),
		counterFamily("httpstream_aborts_total", "HTTP range-stream abort transitions.", float64(r.httpstreamAbortsTotal.Load())),
	}
}

// Handler returns an http.Handler serving the registry's current families
// in Prometheus text-exposition format, mirroring
// AggregatedMetricsHandler.writeAggregatedMetrics but without the
// per-runner label-merge step this module has no use for.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, family := range r.Families() {
			if err := encoder.Encode(family); err != nil {
				fmt.Fprintf(w, "# encode error for %s: %v\n", family.GetName(), err)
			}
		}
	})
}
