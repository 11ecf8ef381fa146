package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTP serves GET /health: 200 with the report when every check passes, 503 otherwise.
func (s *Server) HTTP(c echo.Context) error {
	r := s.Run(c.Request().Context())
	if !r.Healthy() {
		return c.JSON(http.StatusServiceUnavailable, r)
	}
	return c.JSON(http.StatusOK, r)
}
