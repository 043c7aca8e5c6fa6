package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"plotweave/pkg/schema"
)

func (s *Server) handleGetRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service":  "plotweave",
		"status":   "ok",
		"outlines": len(s.Outlines()),
	})
}

// GET /api/outlines
func (s *Server) handleGetOutlines(c echo.Context) error {
	outlines := s.Outlines()
	out := make([][]string, len(outlines))
	for i, o := range outlines {
		out[i] = o.Strings()
	}
	return c.JSON(http.StatusOK, map[string]any{"outlines": out})
}

// GET /api/schema/:name
func (s *Server) handleGetSchema(c echo.Context) error {
	switch c.Param("name") {
	case "story":
		return c.JSON(http.StatusOK, schema.StoryRequestSchema)
	case "evaluate":
		return c.JSON(http.StatusOK, schema.EvaluateRequestSchema)
	case "compile":
		return c.JSON(http.StatusOK, schema.CompileRequestSchema)
	}
	return echo.NewHTTPError(http.StatusNotFound, "unknown schema")
}
