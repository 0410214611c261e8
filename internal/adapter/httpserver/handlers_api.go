package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hansxu66/btcpredict-kalshi/internal/domain"
	apperrors "github.com/hansxu66/btcpredict-kalshi/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerAPIRoutes() {
	api := s.echo.Group("/api", corsMiddleware())
	api.GET("/health", s.handleAPIHealth)
	api.GET("/state", s.handleState)
	api.GET("/state/:namespace", s.handleNamespaceState)
}

func (s *Server) handleRoot(c echo.Context) error {
	if s.config.FrontendDir != "" {
		index := filepath.Join(s.config.FrontendDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			return c.File(index)
		}
	}

	if err := c.JSON(http.StatusOK, map[string]string{"message": "Dashboard API", "status": "running"}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleAPIHealth(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.relay.Health()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleState(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.relay.State()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleNamespaceState(c echo.Context) error {
	namespace := c.Param("namespace")

	resp, err := s.relay.NamespaceState(namespace)
	if errors.Is(err, domain.ErrNamespaceUnknown) {
		return apperrors.NotFoundError("namespace not tracked").WithField("namespace", namespace)
	}
	if err != nil {
		return apperrors.InternalError("failed to read state", err).WithField("namespace", namespace)
	}

	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
