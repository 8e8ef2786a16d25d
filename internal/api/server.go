package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/brewgator/blink-relay/internal/blink"
	"github.com/brewgator/blink-relay/internal/metrics"
	"github.com/brewgator/blink-relay/internal/notify"
)

// WebhookPath is where Blink delivers events
const WebhookPath = "/blink/webhook"

// maxBodyBytes caps inbound webhook bodies
const maxBodyBytes = 1 << 20

// Options configures the HTTP server
type Options struct {
	Addr               string
	CORSAllowedOrigins []string
	Gatherer           prometheus.Gatherer // nil disables /metrics
}

// Server exposes the Blink webhook, health and metrics endpoints
type Server struct {
	router   *mux.Router
	filter   *blink.Filter
	notifier notify.Notifier
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	server   *http.Server
	started  time.Time
}

// NewServer wires the routes. The returned server is not listening yet.
func NewServer(opts Options, filter *blink.Filter, notifier notify.Notifier, logger zerolog.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		filter:   filter,
		notifier: notifier,
		logger:   logger.With().Str("component", "api").Logger(),
		metrics:  m,
		started:  time.Now(),
	}

	s.setupRoutes(opts.Gatherer)

	var handler http.Handler = s.router
	if len(opts.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: opts.CORSAllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}).Handler(handler)
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.HandleFunc(WebhookPath, s.handleBlinkWebhook).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// Handler returns the root handler, CORS included
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
