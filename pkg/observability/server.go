package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Server carries the operational endpoints of a running marketplace:
// liveness and readiness probes under /health and the Prometheus scrape
// target under /metrics. It is deliberately separate from any session
// transport so probes stay responsive while negotiations run.
type Server struct {
	srv *http.Server
}

// NewServer builds a server listening on the given port. Routes are
// wired at construction; Start only opens the listener.
func NewServer(port int) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", ReadinessHandler())
	mux.Handle("/metrics", MetricsHandler())

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
	}
}

// Start serves requests until Shutdown is called or the listener fails.
// It returns http.ErrServerClosed after a clean shutdown.
func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
