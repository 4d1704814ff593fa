package server

import (
	"github.com/born-ml/graphopt/internal/optimizer"
	"github.com/born-ml/graphopt/internal/quant"
	"github.com/born-ml/graphopt/internal/serialization"
	"github.com/born-ml/graphopt/internal/tensor"
)

// QuantOptions overrides individual quantization parameters. Unset fields
// keep the server defaults.
type QuantOptions struct {
	QuantMin     *int     `json:"quant_min,omitempty"`
	QuantMax     *int     `json:"quant_max,omitempty"`
	EVQuant      *bool    `json:"ev_quant,omitempty"`
	TensorType   string   `json:"tensor_type,omitempty"`
	WeightsScale *float32 `json:"weights_scale,omitempty"`
	InputsScale  *float32 `json:"inputs_scale,omitempty"`
}

func (q *QuantOptions) apply(p quant.Params) (quant.Params, error) {
	if q == nil {
		return p, nil
	}
	if q.QuantMin != nil {
		p.QuantMin = *q.QuantMin
	}
	if q.QuantMax != nil {
		p.QuantMax = *q.QuantMax
	}
	if q.EVQuant != nil {
		p.EVQuant = *q.EVQuant
	}
	if q.TensorType != "" {
		tt, err := quant.ParseTensorType(q.TensorType)
		if err != nil {
			return p, err
		}
		p.TensorType = tt
	}
	if q.WeightsScale != nil {
		p.WeightsScale = *q.WeightsScale
	}
	if q.InputsScale != nil {
		p.InputsScale = *q.InputsScale
	}
	return p, nil
}

type OptimizeRequest struct {
	Graph      *serialization.Document `json:"graph"`
	Passes     []string                `json:"passes"`
	LayoutFrom string                  `json:"layout_from,omitempty"`
	LayoutTo   string                  `json:"layout_to,omitempty"`
	Quant      *QuantOptions           `json:"quant,omitempty"`
}

func (r *OptimizeRequest) options(base optimizer.Options) (optimizer.Options, error) {
	opts := base
	var err error
	if r.LayoutFrom != "" {
		if opts.LayoutFrom, err = tensor.ParseLayout(r.LayoutFrom); err != nil {
			return opts, err
		}
	}
	if r.LayoutTo != "" {
		if opts.LayoutTo, err = tensor.ParseLayout(r.LayoutTo); err != nil {
			return opts, err
		}
	}
	opts.Quant, err = r.Quant.apply(opts.Quant)
	return opts, err
}

type OptimizeResponse struct {
	RequestID string                  `json:"request_id,omitempty"`
	Graph     *serialization.Document `json:"graph,omitempty"`
	Results   []optimizer.PassResult  `json:"results"`
	Error     *ResponseError          `json:"error,omitempty"`
}

// FakeQuantRequest runs the whole-tensor functor when Min/Max are given and
// the per-channel functor when Mins/Maxs are. Gradients, when present, are
// the incoming gradients and also request the backward pass.
type FakeQuantRequest struct {
	Values    []float32     `json:"values"`
	Min       float32       `json:"min"`
	Max       float32       `json:"max"`
	Shape     []int         `json:"shape,omitempty"`
	Axis      int           `json:"axis,omitempty"`
	Mins      []float32     `json:"mins,omitempty"`
	Maxs      []float32     `json:"maxs,omitempty"`
	Gradients []float32     `json:"gradients,omitempty"`
	Quant     *QuantOptions `json:"quant,omitempty"`
}

func (r *FakeQuantRequest) perChannel() bool {
	return len(r.Mins) > 0 || len(r.Maxs) > 0
}

type FakeQuantResponse struct {
	Output       []float32 `json:"output"`
	WeightsScale float32   `json:"weights_scale,omitempty"`
	InputsScale  float32   `json:"inputs_scale,omitempty"`
	Backprops    []float32 `json:"backprops,omitempty"`
	GradMin      *float32  `json:"grad_min,omitempty"`
	GradMax      *float32  `json:"grad_max,omitempty"`
	GradMins     []float32 `json:"grad_mins,omitempty"`
	GradMaxs     []float32 `json:"grad_maxs,omitempty"`
}

type PassesResponse struct {
	Passes []string `json:"passes"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}
