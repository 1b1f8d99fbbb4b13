package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/api"
	"github.com/ssvlabs/dvnode/api/handlers"
	"github.com/ssvlabs/dvnode/logging"
)

const (
	shutdownTimeout = 5 * time.Second
	// maxInflightRequests bounds concurrently served requests.
	maxInflightRequests = 32
)

type Server struct {
	logger *zap.Logger
	addr   string

	node               *handlers.Node
	slashingProtection *handlers.SlashingProtection
	metrics            bool
}

// New creates the API server. /metrics is served only when metrics is set.
func New(
	logger *zap.Logger,
	addr string,
	node *handlers.Node,
	slashingProtection *handlers.SlashingProtection,
	metrics bool,
) *Server {
	return &Server{
		logger:             logger.Named(logging.NameAPI),
		addr:               addr,
		node:               node,
		slashingProtection: slashingProtection,
		metrics:            metrics,
	}
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.Throttle(maxInflightRequests))

	router.Get("/v1/node/health", api.Handler(s.node.Health))
	router.Get("/v1/slashing-protection", api.Handler(s.slashingProtection.Export))
	if s.metrics {
		router.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{
				// Opt into OpenMetrics to support exemplars.
				EnableOpenMetrics: true,
			},
		))
	}

	return otelhttp.NewHandler(router, "dvnode-api")
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 12 * time.Second,
		ReadTimeout:       12 * time.Second,
		WriteTimeout:      12 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving API", zap.String("addr", s.addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
