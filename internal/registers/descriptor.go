// internal/registers/descriptor.go
package registers

import (
	"fmt"
	"math"
	"sort"
)

// Type is the wire data type of one register quantity.
type Type int

const (
	Float32 Type = iota
	Int16
	UInt16
	Int32
	UInt32
)

// Words returns the register footprint of the type (1 or 2 holding registers).
func (t Type) Words() uint16 {
	switch t {
	case Int16, UInt16:
		return 1
	default:
		return 2
	}
}

func (t Type) String() string {
	switch t {
	case Float32:
		return "float32"
	case Int16:
		return "int16"
	case UInt16:
		return "uint16"
	case Int32:
		return "int32"
	case UInt32:
		return "uint32"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// ParseType maps a configuration type name to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "float", "float32":
		return Float32, nil
	case "int16":
		return Int16, nil
	case "uint16":
		return UInt16, nil
	case "int32":
		return Int32, nil
	case "uint32":
		return UInt32, nil
	default:
		return 0, fmt.Errorf("registers: unknown type %q", s)
	}
}

// Descriptor describes one named quantity exposed by every meter on the bus.
// Address uses the conventional 40001-based holding register numbering.
type Descriptor struct {
	Name    string
	Type    Type
	Address uint16

	// WordSwapped selects CDAB register order for 32-bit integers.
	// Floats are always transmitted word-swapped by the device and
	// ignore this flag.
	WordSwapped bool
}

// Range is an inclusive validation range for one quantity.
type Range struct {
	Min float64
	Max float64
}

// DefaultRange covers quantities with no configured range.
func DefaultRange() Range {
	return Range{Min: 0, Max: math.Inf(1)}
}

// SortByAddress returns a copy sorted ascending by address.
// Planning assumes this order.
func SortByAddress(descs []Descriptor) []Descriptor {
	out := make([]Descriptor, len(descs))
	copy(out, descs)
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
