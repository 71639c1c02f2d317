package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the Prometheus registry over HTTP
type Server struct {
	server *http.Server
	log    *slog.Logger
}

// NewServer creates a metrics server listening on addr
func NewServer(addr string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With("component", "metrics"),
	}
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.log.Debug("Metrics server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Metrics server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
