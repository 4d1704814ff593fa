package graph

import (
	"fmt"
	"slices"
)

// AttrType identifies which field of an Attribute is populated.
type AttrType int

// Attribute kinds.
const (
	AttrInt AttrType = iota
	AttrFloat
	AttrString
	AttrInts
	AttrFloats
)

// String returns the attribute kind name.
func (t AttrType) String() string {
	switch t {
	case AttrInt:
		return "int"
	case AttrFloat:
		return "float"
	case AttrString:
		return "string"
	case AttrInts:
		return "ints"
	case AttrFloats:
		return "floats"
	default:
		return "unknown"
	}
}

// Attribute is a small variant value attached to a node.
type Attribute struct {
	Type   AttrType
	I      int64     // AttrInt
	F      float32   // AttrFloat
	S      string    // AttrString
	Ints   []int64   // AttrInts
	Floats []float32 // AttrFloats
}

// Int returns an integer attribute.
func Int(v int64) Attribute { return Attribute{Type: AttrInt, I: v} }

// Float returns a float attribute.
func Float(v float32) Attribute { return Attribute{Type: AttrFloat, F: v} }

// String returns a string attribute.
func String(v string) Attribute { return Attribute{Type: AttrString, S: v} }

// Ints returns an integer-list attribute. The slice is copied.
func Ints(v ...int64) Attribute { return Attribute{Type: AttrInts, Ints: slices.Clone(v)} }

// Floats returns a float-list attribute. The slice is copied.
func Floats(v ...float32) Attribute { return Attribute{Type: AttrFloats, Floats: slices.Clone(v)} }

// Clone deep-copies the attribute.
func (a Attribute) Clone() Attribute {
	a.Ints = slices.Clone(a.Ints)
	a.Floats = slices.Clone(a.Floats)
	return a
}

// Equal reports whether two attributes hold the same value.
func (a Attribute) Equal(b Attribute) bool {
	return a.Type == b.Type && a.I == b.I && a.F == b.F && a.S == b.S &&
		slices.Equal(a.Ints, b.Ints) && slices.Equal(a.Floats, b.Floats)
}

// Value returns the populated field as an untyped value.
func (a Attribute) Value() any {
	switch a.Type {
	case AttrInt:
		return a.I
	case AttrFloat:
		return a.F
	case AttrString:
		return a.S
	case AttrInts:
		return a.Ints
	case AttrFloats:
		return a.Floats
	default:
		return nil
	}
}

// String formats the attribute value for logs and inspection output.
func (a Attribute) String() string {
	return fmt.Sprintf("%v", a.Value())
}

// GetAttrInt returns an integer attribute or default value.
func GetAttrInt(node *Node, name string, defaultVal int64) int64 {
	if a, ok := node.Attributes[name]; ok && a.Type == AttrInt {
		return a.I
	}
	return defaultVal
}

// GetAttrFloat returns a float attribute or default value.
func GetAttrFloat(node *Node, name string, defaultVal float32) float32 {
	if a, ok := node.Attributes[name]; ok && a.Type == AttrFloat {
		return a.F
	}
	return defaultVal
}

// GetAttrInts returns an integer-list attribute or default value.
func GetAttrInts(node *Node, name string, defaultVal []int64) []int64 {
	if a, ok := node.Attributes[name]; ok && a.Type == AttrInts {
		return a.Ints
	}
	return defaultVal
}

// GetAttrString returns a string attribute or default value.
func GetAttrString(node *Node, name string, defaultVal string) string {
	if a, ok := node.Attributes[name]; ok && a.Type == AttrString {
		return a.S
	}
	return defaultVal
}
