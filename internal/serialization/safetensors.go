package serialization

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/goccy/go-json"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
)

const metadataKey = "__metadata__"

// SafeTensors dtype names.
const (
	dtypeF16  = "F16"
	dtypeBF16 = "BF16"
	dtypeF32  = "F32"
	dtypeF64  = "F64"
	dtypeI8   = "I8"
	dtypeI32  = "I32"
	dtypeI64  = "I64"
	dtypeU8   = "U8"
	dtypeBool = "BOOL"
)

type tensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Weights is the content of one SafeTensors file.
type Weights struct {
	Metadata map[string]string
	Tensors  map[string]*graph.Tensor
}

// Names returns tensor names in sorted order.
func (w *Weights) Names() []string {
	names := make([]string, 0, len(w.Tensors))
	for name := range w.Tensors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ReadSafeTensors loads every tensor of a SafeTensors file.
func ReadSafeTensors(path string) (*Weights, error) {
	//nolint:gosec // G304: path is supplied by the user on purpose.
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open weights: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	w, err := DecodeSafeTensors(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// DecodeSafeTensors reads a SafeTensors stream. Payloads are converted to
// float32; the original element type is kept in Tensor.Type. F16 and BF16
// are rejected.
func DecodeSafeTensors(r io.Reader) (*Weights, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, &ValidationError{Kind: ErrHeaderTooLarge, Details: fmt.Sprintf("%d bytes", headerSize)}
	}
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerBytes); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	w := &Weights{Metadata: map[string]string{}, Tensors: make(map[string]*graph.Tensor, len(raw))}
	headers := make(map[string]tensorHeader, len(raw))
	spans := make([]tensorSpan, 0, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &w.Metadata); err != nil {
				return nil, fmt.Errorf("parse metadata: %w", err)
			}
			continue
		}
		if err := validateTensorName(name); err != nil {
			return nil, err
		}
		var h tensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, fmt.Errorf("parse tensor %q: %w", name, err)
		}
		headers[name] = h
		spans = append(spans, tensorSpan{Name: name, Offset: h.DataOffsets[0], Size: h.DataOffsets[1] - h.DataOffsets[0]})
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}
	if err := validateSpans(spans, int64(len(data))); err != nil {
		return nil, err
	}
	if err := verifyChecksum(data, w.Metadata[MetadataChecksum]); err != nil {
		return nil, err
	}

	for name, h := range headers {
		t, err := decodeTensor(name, h, data[h.DataOffsets[0]:h.DataOffsets[1]])
		if err != nil {
			return nil, err
		}
		w.Tensors[name] = t
	}
	return w, nil
}

func decodeTensor(name string, h tensorHeader, payload []byte) (*graph.Tensor, error) {
	dtype, err := fromSafeTensorsDType(h.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	dims := make(tensor.Shape, len(h.Shape))
	for i, d := range h.Shape {
		dims[i] = int(d)
	}
	n, err := dims.CheckedNumElements(dtype.Size())
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w: %w", name, ErrSizeMismatch, err)
	}
	if len(payload) != n*dtype.Size() {
		return nil, fmt.Errorf("tensor %q: %d bytes for %d %s values: %w", name, len(payload), n, h.DType, ErrSizeMismatch)
	}

	out := make([]float32, n)
	le := binary.LittleEndian
	for i := range out {
		switch dtype {
		case tensor.Float32:
			out[i] = math.Float32frombits(le.Uint32(payload[4*i:]))
		case tensor.Float64:
			out[i] = float32(math.Float64frombits(le.Uint64(payload[8*i:])))
		case tensor.Int32:
			out[i] = float32(int32(le.Uint32(payload[4*i:])))
		case tensor.Int64:
			out[i] = float32(int64(le.Uint64(payload[8*i:])))
		case tensor.Int8:
			out[i] = float32(int8(payload[i]))
		case tensor.Uint8, tensor.Bool:
			out[i] = float32(payload[i])
		}
	}
	return &graph.Tensor{Name: name, Dims: dims, Type: dtype, Data: out}, nil
}

// WriteSafeTensors writes tensors to path. See EncodeSafeTensors.
func WriteSafeTensors(path string, tensors []*graph.Tensor, metadata map[string]string) error {
	//nolint:gosec // G304: path is supplied by the user on purpose.
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create weights: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := EncodeSafeTensors(bw, tensors, metadata); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeSafeTensors writes tensors in name order, each converted from
// float32 to its declared Type. The data checksum is recorded in the
// metadata under MetadataChecksum.
func EncodeSafeTensors(w io.Writer, tensors []*graph.Tensor, metadata map[string]string) error {
	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b *graph.Tensor) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		default:
			return 0
		}
	})

	header := make(map[string]any, len(sorted)+1)
	var data []byte
	for i, t := range sorted {
		if i > 0 && sorted[i-1].Name == t.Name {
			return fmt.Errorf("tensor %q written twice", t.Name)
		}
		if err := t.Validate(); err != nil {
			return err
		}
		dtype, err := toSafeTensorsDType(t.Type)
		if err != nil {
			return fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		start := int64(len(data))
		data = appendPayload(data, t)
		shape := make([]int64, len(t.Dims))
		for j, d := range t.Dims {
			shape[j] = int64(d)
		}
		header[t.Name] = tensorHeader{DType: dtype, Shape: shape, DataOffsets: [2]int64{start, int64(len(data))}}
	}

	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	meta[MetadataChecksum] = checksum(data)
	header[metadataKey] = meta

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write data: %w", err)
	}
	return nil
}

func appendPayload(buf []byte, t *graph.Tensor) []byte {
	le := binary.LittleEndian
	for _, v := range t.Data {
		switch t.Type {
		case tensor.Float32:
			buf = le.AppendUint32(buf, math.Float32bits(v))
		case tensor.Float64:
			buf = le.AppendUint64(buf, math.Float64bits(float64(v)))
		case tensor.Int32:
			buf = le.AppendUint32(buf, uint32(int32(v)))
		case tensor.Int64:
			buf = le.AppendUint64(buf, uint64(int64(v)))
		case tensor.Int8:
			buf = append(buf, byte(int8(v)))
		case tensor.Uint8:
			buf = append(buf, byte(v))
		case tensor.Bool:
			if v != 0 {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		}
	}
	return buf
}

func fromSafeTensorsDType(s string) (tensor.DataType, error) {
	switch s {
	case dtypeF32:
		return tensor.Float32, nil
	case dtypeF64:
		return tensor.Float64, nil
	case dtypeI8:
		return tensor.Int8, nil
	case dtypeI32:
		return tensor.Int32, nil
	case dtypeI64:
		return tensor.Int64, nil
	case dtypeU8:
		return tensor.Uint8, nil
	case dtypeBool:
		return tensor.Bool, nil
	default:
		// F16, BF16 and anything newer.
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, s)
	}
}

func toSafeTensorsDType(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return dtypeF32, nil
	case tensor.Float64:
		return dtypeF64, nil
	case tensor.Int8:
		return dtypeI8, nil
	case tensor.Int32:
		return dtypeI32, nil
	case tensor.Int64:
		return dtypeI64, nil
	case tensor.Uint8:
		return dtypeU8, nil
	case tensor.Bool:
		return dtypeBool, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDType, dt)
	}
}

// AttachWeights copies matching tensors into the initializers of g and
// returns how many were attached. Tensors without a matching initializer are
// ignored.
func AttachWeights(g *graph.Graph, w *Weights) (int, error) {
	n := 0
	for _, name := range w.Names() {
		if !g.HasInitializer(name) {
			continue
		}
		t := w.Tensors[name]
		if err := g.UpdateInitializerTensor(name, t.Dims, t.Data); err != nil {
			return n, fmt.Errorf("attach %q: %w", name, err)
		}
		n++
	}
	return n, nil
}
