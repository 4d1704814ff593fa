package serialization

import (
	"fmt"
	"slices"
	"strings"
)

// Limits applied when reading untrusted files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// tensorSpan is one tensor's byte range within the data section.
type tensorSpan struct {
	Name   string
	Offset int64
	Size   int64
}

// validateSpans rejects negative, out-of-bounds and overlapping ranges.
func validateSpans(spans []tensorSpan, dataSize int64) error {
	if len(spans) > MaxTensorCount {
		return &ValidationError{Kind: ErrTooManyTensors, Details: fmt.Sprintf("got %d, max %d", len(spans), MaxTensorCount)}
	}
	sorted := slices.Clone(spans)
	slices.SortFunc(sorted, func(a, b tensorSpan) int {
		switch {
		case a.Offset < b.Offset:
			return -1
		case a.Offset > b.Offset:
			return 1
		default:
			return strings.Compare(a.Name, b.Name)
		}
	})

	for i, s := range sorted {
		if s.Offset < 0 || s.Size < 0 {
			return &ValidationError{Kind: ErrNegativeOffset, Tensor: s.Name,
				Details: fmt.Sprintf("offset=%d size=%d", s.Offset, s.Size)}
		}
		if s.Offset+s.Size > dataSize {
			return &ValidationError{Kind: ErrOutOfBounds, Tensor: s.Name,
				Details: fmt.Sprintf("offset %d + size %d > data size %d", s.Offset, s.Size, dataSize)}
		}
		if i+1 < len(sorted) {
			next := sorted[i+1]
			if s.Offset+s.Size > next.Offset {
				return &ValidationError{Kind: ErrOffsetOverlap, Tensor: s.Name, Tensor2: next.Name,
					Details: fmt.Sprintf("[%d, %d) and [%d, %d)", s.Offset, s.Offset+s.Size, next.Offset, next.Offset+next.Size)}
			}
		}
	}
	return nil
}

// validateTensorName rejects empty, oversized and NUL-carrying names. Graph
// tensor names routinely contain '/' and '.', so those are allowed.
func validateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name[:64] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen)}
	case strings.ContainsRune(name, 0):
		return &ValidationError{Kind: ErrInvalidTensorName, Tensor: name, Details: "contains a null byte"}
	}
	return nil
}
