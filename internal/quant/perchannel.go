package quant

import (
	"fmt"

	"github.com/born-ml/graphopt/internal/parallel"
	"github.com/born-ml/graphopt/internal/tensor"
)

// channelLayout views a tensor as [outer, channels, inner].
type channelLayout struct {
	outer, channels, inner int
}

func newChannelLayout(shape tensor.Shape, axis int) (channelLayout, error) {
	if axis < 0 {
		axis += len(shape)
	}
	if axis < 0 || axis >= len(shape) {
		return channelLayout{}, fmt.Errorf("channel axis %d out of range for shape %v", axis, shape)
	}
	l := channelLayout{outer: 1, channels: shape[axis], inner: 1}
	for _, d := range shape[:axis] {
		l.outer *= d
	}
	for _, d := range shape[axis+1:] {
		l.inner *= d
	}
	return l, nil
}

func (l channelLayout) each(c int, f func(i int)) {
	for o := 0; o < l.outer; o++ {
		base := (o*l.channels + c) * l.inner
		for j := 0; j < l.inner; j++ {
			f(base + j)
		}
	}
}

// nudgeChannels validates every channel range up front so that no output is
// written when any channel is invalid. Degenerate channels get ok=false.
func nudgeChannels(mins, maxs []float32, p Params) ([]Nudged, []bool, error) {
	if err := checkLen("max", len(maxs), len(mins)); err != nil {
		return nil, nil, err
	}
	nudged := make([]Nudged, len(mins))
	ok := make([]bool, len(mins))
	for c := range mins {
		if isDegenerate(mins[c], maxs[c]) {
			continue
		}
		n, err := Nudge(mins[c], maxs[c], p)
		if err != nil {
			return nil, nil, fmt.Errorf("channel %d: %w", c, err)
		}
		nudged[c], ok[c] = n, true
	}
	return nudged, ok, nil
}

// PerChannel fake-quantizes a row-major [b, d] matrix where column c uses
// range [mins[c], maxs[c]] and d = len(mins).
func PerChannel(in, out, mins, maxs []float32, p Params) error {
	d := len(mins)
	if d == 0 || len(in)%d != 0 {
		return fmt.Errorf("%d values do not split into %d channels: %w", len(in), d, ErrShapeMismatch)
	}
	return PerChannelAxis(in, out, tensor.Shape{len(in) / d, d}, 1, mins, maxs, p)
}

// PerChannelAxis fake-quantizes in, shaped as shape, independently along
// axis. Channels with a (0, 0) range are zeroed.
func PerChannelAxis(in, out []float32, shape tensor.Shape, axis int, mins, maxs []float32, p Params) error {
	l, err := checkChannelArgs(len(in), shape, axis, len(mins))
	if err != nil {
		return err
	}
	if err := checkLen("out", len(out), len(in)); err != nil {
		return err
	}
	nudged, ok, err := nudgeChannels(mins, maxs, p)
	if err != nil {
		return err
	}

	parallel.For(l.channels, func(c int) {
		if !ok[c] {
			l.each(c, func(i int) { out[i] = 0 })
			return
		}
		n := nudged[c]
		l.each(c, func(i int) { out[i] = quantize(in[i], n) })
	}, parallel.DefaultConfig())
	return nil
}

// PerChannelGradient is the per-column counterpart of GradientVars for a
// row-major [b, d] matrix.
func PerChannelGradient(grads, in, backprops, mins, maxs []float32, p Params) (gradMins, gradMaxs []float32, err error) {
	d := len(mins)
	if d == 0 || len(grads)%d != 0 {
		return nil, nil, fmt.Errorf("%d values do not split into %d channels: %w", len(grads), d, ErrShapeMismatch)
	}
	return PerChannelGradientAxis(grads, in, backprops, tensor.Shape{len(grads) / d, d}, 1, mins, maxs, p)
}

// PerChannelGradientAxis is the per-channel counterpart of GradientVars
// along axis. Range gradients are summed sequentially within each channel.
func PerChannelGradientAxis(grads, in, backprops []float32, shape tensor.Shape, axis int, mins, maxs []float32, p Params) (gradMins, gradMaxs []float32, err error) {
	l, err := checkChannelArgs(len(grads), shape, axis, len(mins))
	if err != nil {
		return nil, nil, err
	}
	if err := checkLen("inputs", len(in), len(grads)); err != nil {
		return nil, nil, err
	}
	if err := checkLen("backprops", len(backprops), len(grads)); err != nil {
		return nil, nil, err
	}
	nudged, ok, err := nudgeChannels(mins, maxs, p)
	if err != nil {
		return nil, nil, err
	}

	gradMins = make([]float32, l.channels)
	gradMaxs = make([]float32, l.channels)
	parallel.For(l.channels, func(c int) {
		if !ok[c] {
			l.each(c, func(i int) { backprops[i] = grads[i] })
			return
		}
		n := nudged[c]
		var below, above float64
		l.each(c, func(i int) {
			switch x := in[i]; {
			case x < n.Min:
				backprops[i] = 0
				below += float64(grads[i])
			case x > n.Max:
				backprops[i] = 0
				above += float64(grads[i])
			default:
				backprops[i] = grads[i]
			}
		})
		gradMins[c], gradMaxs[c] = float32(below), float32(above)
	}, parallel.DefaultConfig())
	return gradMins, gradMaxs, nil
}

// checkShape rejects negative or overflowing dims and a shape that does not
// hold exactly n values.
func checkShape(shape tensor.Shape, n int) error {
	want, err := shape.CheckedNumElements(4)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrShapeMismatch, err)
	}
	if want != n {
		return fmt.Errorf("shape %v needs %d values, got %d: %w", shape, want, n, ErrShapeMismatch)
	}
	return nil
}

func checkChannelArgs(n int, shape tensor.Shape, axis, numRanges int) (channelLayout, error) {
	if err := checkShape(shape, n); err != nil {
		return channelLayout{}, err
	}
	l, err := newChannelLayout(shape, axis)
	if err != nil {
		return channelLayout{}, err
	}
	if l.channels != numRanges {
		return channelLayout{}, fmt.Errorf("%d channels but %d ranges: %w", l.channels, numRanges, ErrShapeMismatch)
	}
	return l, nil
}

// ChannelRanges returns per-channel [min, max] along axis, widened to include
// zero as Nudge requires. An all-zero channel yields the degenerate (0, 0).
func ChannelRanges(data []float32, shape tensor.Shape, axis int) (mins, maxs []float32, err error) {
	if err := checkShape(shape, len(data)); err != nil {
		return nil, nil, err
	}
	l, err := newChannelLayout(shape, axis)
	if err != nil {
		return nil, nil, err
	}
	mins = make([]float32, l.channels)
	maxs = make([]float32, l.channels)
	for c := 0; c < l.channels; c++ {
		l.each(c, func(i int) {
			mins[c] = min(mins[c], data[i])
			maxs[c] = max(maxs[c], data[i])
		})
	}
	return mins, maxs, nil
}

// TensorRange returns the whole-tensor [min, max] widened to include zero.
func TensorRange(data []float32) (minVal, maxVal float32) {
	for _, v := range data {
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
	}
	return minVal, maxVal
}
