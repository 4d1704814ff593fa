package tensor

import (
	"fmt"
	"strings"
)

// Layout names the dimension order of a 4-D activation tensor.
type Layout int

// Supported layouts.
const (
	NCHW Layout = iota
	NHWC
)

// String returns the conventional name of the layout.
func (l Layout) String() string {
	switch l {
	case NCHW:
		return "NCHW"
	case NHWC:
		return "NHWC"
	default:
		return "unknown"
	}
}

// ParseLayout parses "NCHW" or "NHWC" (case-insensitive).
func ParseLayout(s string) (Layout, error) {
	switch strings.ToUpper(s) {
	case "NCHW":
		return NCHW, nil
	case "NHWC":
		return NHWC, nil
	default:
		return 0, fmt.Errorf("unknown layout %q", s)
	}
}

// ChannelAxis returns the index of the channel dimension.
func (l Layout) ChannelAxis() int {
	if l == NHWC {
		return 3
	}
	return 1
}

// LayoutPermutation returns perm such that shape.Permute(perm) converts a
// 4-D shape laid out as from into one laid out as to.
func LayoutPermutation(from, to Layout) []int {
	switch {
	case from == NHWC && to == NCHW:
		return []int{0, 3, 1, 2}
	case from == NCHW && to == NHWC:
		return []int{0, 2, 3, 1}
	default:
		return []int{0, 1, 2, 3}
	}
}

// MapAxis translates an axis index of a 4-D tensor from one layout to the
// other. Negative axes are normalized first.
func MapAxis(axis int, from, to Layout) (int, error) {
	if axis < 0 {
		axis += 4
	}
	if axis < 0 || axis >= 4 {
		return 0, fmt.Errorf("axis %d out of range for rank 4", axis)
	}
	perm := LayoutPermutation(from, to)
	for i, p := range perm {
		if p == axis {
			return i, nil
		}
	}
	return axis, nil
}
