package server

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/tensor"
)

func (s *Server) handleFakeQuant(c *echo.Context) error {
	req, err := decodeJSON[FakeQuantRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	p, err := req.Quant.apply(s.defaults.Quant)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}

	var resp *FakeQuantResponse
	if req.perChannel() {
		resp, err = fakeQuantPerChannel(&req, p)
	} else {
		resp, err = fakeQuantTensor(&req, p)
	}
	if err != nil {
		// Every functor failure is a property of the request.
		return writeBadRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func fakeQuantTensor(req *FakeQuantRequest, p quant.Params) (*FakeQuantResponse, error) {
	resp := &FakeQuantResponse{Output: make([]float32, len(req.Values))}
	scales, err := quant.FakeQuantVars(req.Values, resp.Output, req.Min, req.Max, p)
	if err != nil {
		return nil, err
	}
	resp.WeightsScale, resp.InputsScale = scales.Weights, scales.Inputs

	if req.Gradients == nil {
		return resp, nil
	}
	resp.Backprops = make([]float32, len(req.Gradients))
	gMin, gMax, err := quant.GradientVars(req.Gradients, req.Values, resp.Backprops, req.Min, req.Max, p)
	if err != nil {
		return nil, err
	}
	resp.GradMin, resp.GradMax = &gMin, &gMax
	return resp, nil
}

// fakeQuantPerChannel treats Values as a tensor of Shape quantized along
// Axis. Without a shape the values are one row of channels.
func fakeQuantPerChannel(req *FakeQuantRequest, p quant.Params) (*FakeQuantResponse, error) {
	shape := tensor.Shape(req.Shape)
	axis := req.Axis
	if len(shape) == 0 {
		shape = tensor.Shape{1, len(req.Values)}
		axis = 1
	}
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	resp := &FakeQuantResponse{Output: make([]float32, len(req.Values))}
	if err := quant.PerChannelAxis(req.Values, resp.Output, shape, axis, req.Mins, req.Maxs, p); err != nil {
		return nil, err
	}

	if req.Gradients == nil {
		return resp, nil
	}
	resp.Backprops = make([]float32, len(req.Gradients))
	var err error
	resp.GradMins, resp.GradMaxs, err = quant.PerChannelGradientAxis(
		req.Gradients, req.Values, resp.Backprops, shape, axis, req.Mins, req.Maxs, p)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
