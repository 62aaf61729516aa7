// Package metrics exposes Prometheus metrics on a dedicated listener.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/VictoriaMetrics/metrics"

	"github.com/attestly/trustedsign/common"
)

// MetricsServer serves the /metrics endpoint for a service.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. The namespace prefixes
// the standard process metrics set.
func New(namespace, addr string) (*MetricsServer, error) {
	if namespace == "" {
		return nil, fmt.Errorf("metrics namespace is required")
	}

	metrics.GetOrCreateGauge(fmt.Sprintf("%s_up", namespace), func() float64 { return 1 })

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}, nil
}

// ListenAndServe blocks serving metrics until the server is shut down.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Counters for the signing service, shared by the HTTP handlers and the
// blob worker. All carry the package namespace, matching the up gauge.
var (
	SignRequests   = metrics.NewCounter(common.PackageName + "_signing_requests_total")
	SignFailures   = metrics.NewCounter(common.PackageName + "_signing_failures_total")
	VerifyRequests = metrics.NewCounter(common.PackageName + "_verify_requests_total")
	BlobsProcessed = metrics.NewCounter(common.PackageName + "_worker_blobs_processed_total")
	BlobFailures   = metrics.NewCounter(common.PackageName + "_worker_blob_failures_total")
)
