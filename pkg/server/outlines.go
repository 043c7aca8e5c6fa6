package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"plotweave/pkg/asp"
	"plotweave/pkg/outline"
	"plotweave/pkg/schema"
)

func (s *Server) compileRequest(c echo.Context) (outline.Outline, error) {
	var req schema.CompileRequest
	if err := c.Bind(&req); err != nil {
		s.Logger.Warn("invalid JSON in /api/outlines", "error", err)
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	facts, err := asp.ParseSymbols(req.Facts)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o, err := s.Compiler.Compile(facts)
	if err != nil {
		var malformed *outline.MalformedFactError
		if errors.As(err, &malformed) {
			return nil, echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return nil, err
	}
	return o, nil
}

// POST /api/outlines/compile
func (s *Server) handlePostCompile(c echo.Context) error {
	o, err := s.compileRequest(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, schema.CompileResponse{Outline: o.Strings(), Line: o.String()})
}

// POST /api/outlines
func (s *Server) handlePostOutlines(c echo.Context) error {
	o, err := s.compileRequest(c)
	if err != nil {
		return err
	}
	if len(o) == 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "model has no scenes")
	}
	n := s.addOutline(o)
	s.Logger.Info("outline added", "outline", o, "pool", n)
	return c.JSON(http.StatusCreated, schema.CompileResponse{Outline: o.Strings(), Line: o.String(), Pool: n})
}
