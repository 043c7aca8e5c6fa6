package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"plotweave/pkg/eval"
	"plotweave/pkg/schema"
	"plotweave/pkg/utils"
)

// POST /api/evaluate
func (s *Server) handlePostEvaluate(c echo.Context) error {
	var req schema.EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	method := req.Method
	if method == "" {
		method = eval.MethodEmbedding
	}
	if method != eval.MethodEmbedding && method != eval.MethodLexical {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown method "+method)
	}
	if method == eval.MethodEmbedding && s.Embedder == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "no embedder configured; use method lexical")
	}

	scores, err := eval.Score(c.Request().Context(), method, s.Embedder, req.Stories)
	switch {
	case errors.Is(err, eval.ErrEmptyBatch), errors.Is(err, eval.ErrRaggedBatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.Logger.Error("evaluation failed", "method", method, "error", err)
		return c.JSON(http.StatusBadGateway, utils.ErrJSON("evaluation failed"))
	}
	return c.JSON(http.StatusOK, schema.EvaluateResponse{Method: method, Scores: scores})
}
