package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/scanner"
)

// Server exposes the live detection feed over HTTP.
type Server struct {
	cfg     Config
	feed    *Feed
	metrics *Metrics
	logger  *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Host       string
	Port       int
	CORSOrigin string
}

// Addr returns host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Response types for API endpoints.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version,omitempty"`
	Time        string `json:"time"`
	Running     bool   `json:"running"`
	Subscribers int    `json:"subscribers"`
}

type DetectionsResponse struct {
	Count      int                 `json:"count"`
	Detections []scanner.Detection `json:"detections"`
	Summary    *scanner.Summary    `json:"summary,omitempty"`
}

// NewServer creates a server around feed. metrics may be nil, in which case
// /metrics is not served.
func NewServer(cfg Config, feed *Feed, metrics *Metrics, logger *slog.Logger) *Server {
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if logger == nil {
		logger = slog.Default()
	}
	if feed == nil {
		feed = NewFeed(logger, metrics)
	}
	return &Server{cfg: cfg, feed: feed, metrics: metrics, logger: logger}
}

// Feed returns the detection feed, for registering it as a scanner observer.
func (s *Server) Feed() *Feed { return s.feed }

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/detections", s.corsMiddleware(s.detectionsHandler))
	mux.HandleFunc("/ws", s.feed.ServeWS)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
}

// Handler returns a mux with all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Feed server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("feed server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("feed server shutdown: %w", err)
		}
		return nil
	}
}
