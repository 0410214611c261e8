package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hansxu66/btcpredict-kalshi/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const checkTimeout = 3 * time.Second

// HealthCheck is one named dependency check.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthChecks groups checks per endpoint. Startup gates /health/startup until the process
// has booted; Ready gates /health/ready for as long as it runs.
type HealthChecks struct {
	Startup []HealthCheck
	Ready   []HealthCheck
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.checksHandler("started", s.healthChecks.Startup))
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.checksHandler("ready", s.healthChecks.Ready))
	s.echo.GET("/version", s.handleVersion)
}

// checksHandler runs every check and reports each result, answering 503 if any failed.
func (s *Server) checksHandler(okStatus string, checks []HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), checkTimeout)
		defer cancel()

		resp := healthResponse{Status: okStatus, Checks: make(map[string]string, len(checks))}
		code := http.StatusOK
		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				resp.Checks[hc.Name] = err.Error()
				resp.Status = "unhealthy"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[hc.Name] = "ok"
		}

		if err := c.JSON(code, resp); err != nil {
			return fmt.Errorf("failed to write health response: %w", err)
		}
		return nil
	}
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": s.clock.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
