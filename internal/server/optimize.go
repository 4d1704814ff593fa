package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/born-ml/graphopt/internal/optimizer"
	"github.com/born-ml/graphopt/internal/serialization"
)

func (s *Server) handleOptimize(c *echo.Context) error {
	req, err := decodeJSON[OptimizeRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Graph == nil {
		return writeBadRequest(c, "graph is required")
	}
	opts, err := req.options(s.defaults)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	g, err := serialization.ToGraph(req.Graph, nil)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if err := g.Validate(); err != nil {
		return writeBadRequest(c, err.Error())
	}
	passes, err := s.registry.Build(g, req.Passes, opts)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	id := requestIDFrom(c)
	log := s.log.With("request_id", id, "graph", g.Name())
	m := optimizer.NewManager(optimizer.WithLogger(log), optimizer.WithValidation(s.validate))
	m.Add(passes...)

	resp := OptimizeResponse{RequestID: id}
	resp.Results, err = m.Run(c.Request().Context(), g)
	if resp.Results == nil {
		resp.Results = []optimizer.PassResult{}
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		resp.Error = &ResponseError{Message: err.Error(), Type: errTypeServer}
		return c.JSON(http.StatusServiceUnavailable, resp)
	case err != nil:
		log.Warn("optimize failed", "error", err)
		resp.Error = &ResponseError{Message: err.Error(), Type: errTypePassFailed}
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}

	resp.Graph = serialization.FromGraph(g, true)
	return c.JSON(http.StatusOK, resp)
}
