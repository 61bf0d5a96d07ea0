// internal/rtu/decode.go
package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/sseevri/substation-monitor/internal/registers"
)

// ErrDecode marks a malformed numeric payload. The retry loop treats it
// exactly like a frame error for the affected batch.
var ErrDecode = errors.New("rtu: decode failed")

// floatSaneLimit rejects garbage that still parses as a finite float.
const floatSaneLimit = 1e10

// Decode converts raw register bytes into the declared numeric type.
// Floats arrive as two 16-bit words in swapped (CDAB) order; integers are
// plain big-endian unless the descriptor asks for the swapped word order.
func Decode(t registers.Type, raw []byte, wordSwapped bool) (float64, error) {
	want := int(t.Words()) * 2
	if len(raw) != want {
		return 0, fmt.Errorf("%w: got %d bytes for %s, want %d", ErrDecode, len(raw), t, want)
	}

	switch t {
	case registers.Float32:
		bits := binary.BigEndian.Uint32(swapWords(raw))
		v := float64(math.Float32frombits(bits))
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > floatSaneLimit {
			return 0, fmt.Errorf("%w: unreasonable float value %v", ErrDecode, v)
		}
		return v, nil

	case registers.Int16:
		return float64(int16(binary.BigEndian.Uint16(raw))), nil

	case registers.UInt16:
		return float64(binary.BigEndian.Uint16(raw)), nil

	case registers.Int32:
		return float64(int32(binary.BigEndian.Uint32(orderWords(raw, wordSwapped)))), nil

	case registers.UInt32:
		return float64(binary.BigEndian.Uint32(orderWords(raw, wordSwapped))), nil

	default:
		return 0, fmt.Errorf("%w: unsupported type %s", ErrDecode, t)
	}
}

// swapWords reorders [b0 b1 b2 b3] into [b2 b3 b0 b1].
func swapWords(raw []byte) []byte {
	return []byte{raw[2], raw[3], raw[0], raw[1]}
}

func orderWords(raw []byte, swapped bool) []byte {
	if swapped {
		return swapWords(raw)
	}
	return raw
}
