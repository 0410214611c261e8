package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/adapter/metrics"
	"github.com/hansxu66/btcpredict-kalshi/internal/app"
	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	"github.com/hansxu66/btcpredict-kalshi/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
)

type relayService interface {
	Health() domain.Health
	State() app.StateResponse
	NamespaceState(namespace string) (app.StateResponse, error)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	relay  relayService

	websocketHandler http.Handler
	metricsHandler   http.Handler
	httpMetrics      *metrics.HTTPMetrics

	healthChecks HealthChecks
	clock        clockwork.Clock
	startTime    time.Time
}

// NewServer builds the HTTP surface. metricsHandler and httpMetrics may be nil.
func NewServer(cfg *config.Config, relay relayService, websocketHandler, metricsHandler http.Handler, httpMetrics *metrics.HTTPMetrics, healthChecks HealthChecks, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		relay:            relay,
		websocketHandler: websocketHandler,
		metricsHandler:   metricsHandler,
		httpMetrics:      httpMetrics,
		healthChecks:     healthChecks,
		clock:            clock,
		startTime:        clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests. Hijacked websocket connections are not
// tracked here; the broadcaster closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
