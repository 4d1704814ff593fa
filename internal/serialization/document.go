package serialization

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/graphopt/internal/graph"
	"github.com/born-ml/graphopt/internal/tensor"
)

// Document is the file form of a graph.
type Document struct {
	Name         string         `json:"name" yaml:"name"`
	InputName    string         `json:"input_name,omitempty" yaml:"input_name,omitempty"`
	OutputName   string         `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	Nodes        []NodeDoc      `json:"nodes" yaml:"nodes"`
	Initializers []TensorDoc    `json:"initializers,omitempty" yaml:"initializers,omitempty"`
	Inputs       []ValueInfoDoc `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Outputs      []ValueInfoDoc `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// NodeDoc is one node.
type NodeDoc struct {
	Name       string                  `json:"name,omitempty" yaml:"name,omitempty"`
	OpType     string                  `json:"op_type" yaml:"op_type"`
	Inputs     []string                `json:"inputs" yaml:"inputs"`
	Outputs    []string                `json:"outputs" yaml:"outputs"`
	Attributes map[string]AttributeDoc `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// AttributeDoc holds exactly one of its value fields. Type is only written
// for empty lists, where the value alone cannot tell ints from floats.
type AttributeDoc struct {
	Type   string    `json:"type,omitempty" yaml:"type,omitempty"`
	Int    *int64    `json:"int,omitempty" yaml:"int,omitempty"`
	Float  *float32  `json:"float,omitempty" yaml:"float,omitempty"`
	String *string   `json:"string,omitempty" yaml:"string,omitempty"`
	Ints   []int64   `json:"ints,omitempty" yaml:"ints,omitempty,flow"`
	Floats []float32 `json:"floats,omitempty" yaml:"floats,omitempty,flow"`
}

// TensorDoc is an initializer. Data may be omitted when weights come from a
// separate file.
type TensorDoc struct {
	Name string          `json:"name" yaml:"name"`
	Dims []int           `json:"dims" yaml:"dims,flow"`
	Type tensor.DataType `json:"type" yaml:"type"`
	Data []float32       `json:"data,omitempty" yaml:"data,omitempty,flow"`
}

// ValueInfoDoc is a graph input or output.
type ValueInfoDoc struct {
	Name string          `json:"name" yaml:"name"`
	Dims []int           `json:"dims" yaml:"dims,flow"`
	Type tensor.DataType `json:"type" yaml:"type"`
}

// Format selects the document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, path)
	}
}

// Decode reads a document in the given format. Unknown JSON fields are
// rejected.
func Decode(r io.Reader, f Format) (*Document, error) {
	var doc Document
	switch f {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	return &doc, nil
}

// Encode writes doc in the given format.
func Encode(w io.Writer, doc *Document, f Format) error {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = w.Write(append(b, '\n'))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// ReadDocument loads a document, choosing the format by extension.
func ReadDocument(path string) (*Document, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	//nolint:gosec // G304: path is supplied by the user on purpose.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(b), f)
}

// WriteDocument stores a document, choosing the format by extension.
func WriteDocument(path string, doc *Document) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, doc, f); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ToGraph builds a graph from doc. Initializers without inline data take
// their payload from weights; one found in neither place is an error.
// Unnamed nodes are named "<op_type>_<uuid>".
func ToGraph(doc *Document, weights *Weights) (*graph.Graph, error) {
	g := graph.New(doc.Name)
	g.SetInputName(doc.InputName)
	g.SetOutputName(doc.OutputName)

	for _, v := range doc.Inputs {
		if err := g.AddInput(&graph.ValueInfo{Name: v.Name, Dims: v.Dims, Type: v.Type}); err != nil {
			return nil, err
		}
	}
	for _, v := range doc.Outputs {
		if err := g.AddOutput(&graph.ValueInfo{Name: v.Name, Dims: v.Dims, Type: v.Type}); err != nil {
			return nil, err
		}
	}
	for _, td := range doc.Initializers {
		t := &graph.Tensor{Name: td.Name, Dims: td.Dims, Type: td.Type, Data: td.Data}
		if len(td.Data) == 0 && tensor.Shape(td.Dims).NumElements() > 0 {
			w, ok := lookupWeight(weights, td.Name)
			if !ok {
				return nil, fmt.Errorf("%w: initializer %q has no data", ErrInvalidDocument, td.Name)
			}
			t.Data = w.Data
		}
		if err := g.AddInitializer(t); err != nil {
			return nil, err
		}
	}
	for i, nd := range doc.Nodes {
		if nd.OpType == "" {
			return nil, fmt.Errorf("%w: node %d has no op_type", ErrInvalidDocument, i)
		}
		name := nd.Name
		if name == "" {
			name = strings.ToLower(nd.OpType) + "_" + uuid.NewString()
		}
		n := graph.NewNode(name, nd.OpType, nd.Inputs, nd.Outputs)
		for k, ad := range nd.Attributes {
			a, err := ad.attribute()
			if err != nil {
				return nil, fmt.Errorf("%w: node %q attribute %q: %v", ErrInvalidDocument, name, k, err)
			}
			n.SetAttribute(k, a)
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func lookupWeight(w *Weights, name string) (*graph.Tensor, bool) {
	if w == nil {
		return nil, false
	}
	t, ok := w.Tensors[name]
	return t, ok
}

// FromGraph converts g to a document. Initializer data is inlined only when
// inline is set.
func FromGraph(g *graph.Graph, inline bool) *Document {
	doc := &Document{
		Name:       g.Name(),
		InputName:  g.InputName(),
		OutputName: g.OutputName(),
	}
	for _, v := range g.Inputs() {
		doc.Inputs = append(doc.Inputs, ValueInfoDoc{Name: v.Name, Dims: v.Dims, Type: v.Type})
	}
	for _, v := range g.Outputs() {
		doc.Outputs = append(doc.Outputs, ValueInfoDoc{Name: v.Name, Dims: v.Dims, Type: v.Type})
	}
	for _, t := range g.Initializers() {
		td := TensorDoc{Name: t.Name, Dims: t.Dims, Type: t.Type}
		if inline {
			td.Data = t.Data
		}
		doc.Initializers = append(doc.Initializers, td)
	}
	doc.Nodes = make([]NodeDoc, 0, len(g.Nodes()))
	for _, n := range g.Nodes() {
		nd := NodeDoc{Name: n.Name, OpType: n.OpType, Inputs: n.Inputs, Outputs: n.Outputs}
		if len(n.Attributes) > 0 {
			nd.Attributes = make(map[string]AttributeDoc, len(n.Attributes))
			for _, k := range n.AttributeNames() {
				nd.Attributes[k] = attributeDoc(n.Attributes[k])
			}
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

func attributeDoc(a graph.Attribute) AttributeDoc {
	switch a.Type {
	case graph.AttrInt:
		v := a.I
		return AttributeDoc{Int: &v}
	case graph.AttrFloat:
		v := a.F
		return AttributeDoc{Float: &v}
	case graph.AttrString:
		v := a.S
		return AttributeDoc{String: &v}
	case graph.AttrInts:
		if len(a.Ints) == 0 {
			return AttributeDoc{Type: "ints"}
		}
		return AttributeDoc{Ints: a.Ints}
	default:
		if len(a.Floats) == 0 {
			return AttributeDoc{Type: "floats"}
		}
		return AttributeDoc{Floats: a.Floats}
	}
}

func (d AttributeDoc) attribute() (graph.Attribute, error) {
	set := 0
	var a graph.Attribute
	if d.Int != nil {
		a, set = graph.Int(*d.Int), set+1
	}
	if d.Float != nil {
		a, set = graph.Float(*d.Float), set+1
	}
	if d.String != nil {
		a, set = graph.String(*d.String), set+1
	}
	if d.Ints != nil {
		a, set = graph.Ints(d.Ints...), set+1
	}
	if d.Floats != nil {
		a, set = graph.Floats(d.Floats...), set+1
	}
	switch {
	case set > 1:
		return a, fmt.Errorf("%d values set, want 1", set)
	case set == 1:
		return a, nil
	}
	switch d.Type {
	case "ints":
		return graph.Ints(), nil
	case "floats":
		return graph.Floats(), nil
	default:
		return a, errors.New("no value")
	}
}
