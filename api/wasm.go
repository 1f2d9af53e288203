// Package api defines the small set of Wasm value types and encoding
// helpers shared by every other package in this module.
package api

import "math"

// ValueType describes a numeric type used in the WebAssembly 1.0 (20191205)
// core spec. Function parameters and results are only definable as a value
// type.
//
// The following describes how to convert between Wasm and Go types:
//
//   - ValueTypeI32 - uint64(uint32,int32)
//   - ValueTypeI64 - uint64(int64)
//   - ValueTypeF32 - EncodeF32 / DecodeF32 from float32
//   - ValueTypeF64 - EncodeF64 / DecodeF64 from float64
type ValueType = byte

const (
	// ValueTypeI32 is a 32-bit integer.
	ValueTypeI32 ValueType = 0x7f
	// ValueTypeI64 is a 64-bit integer.
	ValueTypeI64 ValueType = 0x7e
	// ValueTypeF32 is a 32-bit floating point number.
	ValueTypeF32 ValueType = 0x7d
	// ValueTypeF64 is a 64-bit floating point number.
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the Wasm text format name of t, or "unknown".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// EncodeI32 encodes input as a 64-bit value the way the engine stores i32 on
// its operand stack: the 32 bits in the low half, zero-extended (the upper
// 32 bits are always 0).
func EncodeI32(input int32) uint64 {
	return uint64(uint32(input))
}

// EncodeI64 encodes input as a 64-bit value.
func EncodeI64(input int64) uint64 {
	return uint64(input)
}

// EncodeF32 encodes input as a 64-bit value the way the engine stores f32.
func EncodeF32(input float32) uint64 {
	return uint64(math.Float32bits(input))
}

// DecodeF32 decodes input, the output of EncodeF32, back to a float32.
func DecodeF32(input uint64) float32 {
	return math.Float32frombits(uint32(input))
}

// EncodeF64 encodes input as a 64-bit value.
func EncodeF64(input float64) uint64 {
	return math.Float64bits(input)
}

// DecodeF64 decodes input, the output of EncodeF64, back to a float64.
func DecodeF64(input uint64) float64 {
	return math.Float64frombits(input)
}
