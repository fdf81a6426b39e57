// Package metrics exposes a process's ray-tracing counters over an optional /metrics HTTP
// endpoint, grounded on linkerd-linkerd2's pkg/admin and service-mirror metrics.go: one
// package-level promauto registration block plus a small http.Handler wrapping
// promhttp.Handler(), rather than internal/app threading a *prometheus.Registry through every
// component that wants to count something.
package metrics

import (
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RaysTraced counts primary rays classified by internal/render.Classify, labeled by
	// the resulting raylist.Class so a dashboard can see keep/drop/terminated/boundary
	// proportions per process.
	RaysTraced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gxy_rays_traced_total",
			Help: "Primary rays classified, by resulting class.",
		},
		[]string{"class"},
	)

	// RayPacketsInFlight tracks SPEC_FULL.md §4.9's local_raylist_count, mirrored here as a
	// gauge so it's visible without needing to query a RenderingSet directly.
	RayPacketsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gxy_ray_packets_in_flight",
		Help: "Ray packets currently enqueued or in the thread pool on this process.",
	})

	// PixelsSent and PixelsReceived count individual pixel.Samples crossing the transport in
	// either direction, matching RenderingSet's pixelsSent/pixelsReceived counters.
	PixelsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gxy_pixels_sent_total",
		Help: "Pixel samples shipped off this process toward a framebuffer owner.",
	})
	PixelsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gxy_pixels_received_total",
		Help: "Pixel samples applied to a locally-owned framebuffer.",
	})

	// CommitsApplied counts keyed-object commit broadcasts applied locally, one increment
	// per process per commit (SPEC_FULL.md §4.6).
	CommitsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gxy_commits_applied_total",
			Help: "Keyed-object commit broadcasts applied, by class.",
		},
		[]string{"class"},
	)

	// QuiescenceChecks counts root completion-check round trips (spec.md §4.9's
	// AllReduceSum), split by whether the round found the frame quiescent.
	QuiescenceChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gxy_quiescence_checks_total",
			Help: "Root quiescence completion checks, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Serve starts an HTTP server on addr exposing /metrics, returning once the listener is
// established; the server itself runs until the process exits or ctx-driven shutdown is
// added by a caller, matching admin.NewServer's fire-and-forget style (the original spec
// names this endpoint "optional", so nothing in internal/app depends on it running).
func Serve(addr string) (*http.Server, error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go func() {
		_ = srv.Serve(ln)
	}()
	return srv, nil
}
