// Package hostbind implements the host-function binding protocol: a
// declarative way for a host-side capability to expose typed functions to
// Wasm guests under a namespace, over a closed set of marshallable kinds,
// identically across two back-ends.
//
// A Func declares its signature explicitly rather than deriving one from
// an arbitrary Go func via reflection; the explicit shape is what lets one
// decode/invoke/encode core drive both back-ends instead of duplicating
// binding logic per reflection quirk.
package hostbind

import (
	"fmt"

	"github.com/wasmproc/wasmproc/api"
	"github.com/wasmproc/wasmproc/procenv"
)

// Kind is one of the closed set of marshallable kinds.
type Kind int

const (
	KindI32 Kind = iota
	KindI64
	KindF32
	KindF64
	// KindToU32 is a custom host type converted to a Wasm i32 result via
	// ToU32Func.
	KindToU32
	// KindFromU32 is a custom host type converted from a Wasm i32 argument
	// via FromU32Func.
	KindFromU32
	// KindBytesPtrLen is a borrowed byte slice, written on the wire as two
	// consecutive i32 Wasm values (offset, length).
	KindBytesPtrLen
)

// ToU32Func converts a host-side value produced by Invoke into the u32
// Wasm sees, given the capability's mutable state and the calling
// instance's environment. A failed conversion traps the instance.
type ToU32Func func(state interface{}, env *procenv.Env, value interface{}) (uint32, error)

// FromU32Func constructs a host-side value from a Wasm-supplied index,
// given the capability's mutable state and environment. A failed
// conversion traps the instance.
type FromU32Func func(state interface{}, env *procenv.Env, idx uint32) (interface{}, error)

// Param describes one declared parameter.
type Param struct {
	Kind Kind
	// FromU32 is required when Kind is KindFromU32.
	FromU32 FromU32Func
}

// Result describes one declared result.
type Result struct {
	Kind Kind
	// ToU32 is required when Kind is KindToU32.
	ToU32 ToU32Func
}

// Func is one declared host function: a namespace-qualified name, its
// marshalled signature, and the already-converted-argument callback the
// capability implements. The same Func value drives both AddToLinker and
// AddToWasmerLinker, which is what makes a capability declaration
// back-end-neutral.
type Func struct {
	Namespace string
	Name      string
	Params    []Param
	Results   []Result
	// Invoke receives one Go value per declared Param, in order
	// (KindBytesPtrLen yields a single []byte) and returns one Go value per
	// declared Result, in order (KindToU32 expects the raw pre-conversion
	// value, which ToU32 then reduces to a uint32).
	Invoke func(state interface{}, env *procenv.Env, args []interface{}) ([]interface{}, error)
}

// wasmParamTypes returns the flattened Wasm-level parameter types this
// Func's Params marshal to (KindBytesPtrLen expands to two i32s).
func wasmParamTypes(params []Param) []api.ValueType {
	var out []api.ValueType
	for _, p := range params {
		out = append(out, wasmTypesFor(p.Kind)...)
	}
	return out
}

func wasmResultTypes(results []Result) []api.ValueType {
	var out []api.ValueType
	for _, r := range results {
		out = append(out, wasmTypesFor(r.Kind)...)
	}
	return out
}

func wasmTypesFor(k Kind) []api.ValueType {
	switch k {
	case KindI32, KindToU32, KindFromU32:
		return []api.ValueType{api.ValueTypeI32}
	case KindI64:
		return []api.ValueType{api.ValueTypeI64}
	case KindF32:
		return []api.ValueType{api.ValueTypeF32}
	case KindF64:
		return []api.ValueType{api.ValueTypeF64}
	case KindBytesPtrLen:
		return []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}
	default:
		return nil
	}
}

// rawValue is a back-end-neutral Wasm value: callers populate exactly one
// field per declared Wasm-level value type.
type rawValue struct {
	i32 int32
	i64 int64
	f32 float32
	f64 float64
}

// decodeParams reads raw Wasm arguments per the declared shape, runs
// FromU32 conversions against state and env, and borrows instance memory
// for pointer+length pairs. It consumes exactly
// len(wasmParamTypes(params)) raw values. Borrowed slices alias the
// instance's live memory and are valid only for the duration of the call.
func decodeParams(params []Param, raw []rawValue, state interface{}, env *procenv.Env) ([]interface{}, error) {
	out := make([]interface{}, 0, len(params))
	i := 0
	for _, p := range params {
		switch p.Kind {
		case KindI32:
			out = append(out, raw[i].i32)
			i++
		case KindI64:
			out = append(out, raw[i].i64)
			i++
		case KindF32:
			out = append(out, raw[i].f32)
			i++
		case KindF64:
			out = append(out, raw[i].f64)
			i++
		case KindFromU32:
			if p.FromU32 == nil {
				return nil, fmt.Errorf("hostbind: KindFromU32 param missing FromU32Func")
			}
			v, err := p.FromU32(state, env, uint32(raw[i].i32))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			i++
		case KindBytesPtrLen:
			offset := uint32(raw[i].i32)
			length := uint32(raw[i+1].i32)
			i += 2
			mem := env.Memory.Bytes()
			if uint64(offset)+uint64(length) > uint64(len(mem)) {
				return nil, fmt.Errorf("hostbind: pointer+length %d+%d out of bounds (memory size %d)", offset, length, len(mem))
			}
			out = append(out, mem[offset:offset+length])
		default:
			return nil, fmt.Errorf("hostbind: unsupported param kind %d", p.Kind)
		}
	}
	return out, nil
}

// encodeResults applies ToU32 conversions, then flattens every result into
// raw Wasm values in declared order.
func encodeResults(results []Result, values []interface{}, state interface{}, env *procenv.Env) ([]rawValue, error) {
	if len(values) != len(results) {
		return nil, fmt.Errorf("hostbind: capability returned %d values, declared %d results", len(values), len(results))
	}
	out := make([]rawValue, 0, len(results))
	for idx, r := range results {
		switch r.Kind {
		case KindI32:
			out = append(out, rawValue{i32: values[idx].(int32)})
		case KindI64:
			out = append(out, rawValue{i64: values[idx].(int64)})
		case KindF32:
			out = append(out, rawValue{f32: values[idx].(float32)})
		case KindF64:
			out = append(out, rawValue{f64: values[idx].(float64)})
		case KindToU32:
			if r.ToU32 == nil {
				return nil, fmt.Errorf("hostbind: KindToU32 result missing ToU32Func")
			}
			u, err := r.ToU32(state, env, values[idx])
			if err != nil {
				return nil, err
			}
			out = append(out, rawValue{i32: int32(u)})
		default:
			return nil, fmt.Errorf("hostbind: unsupported result kind %d", r.Kind)
		}
	}
	return out, nil
}

// call is the back-end-neutral core: decode, invoke, encode. Both
// AddToLinker and AddToWasmerLinker wrap this with their back-end's own
// raw-value and trap conventions.
func call(fn Func, state interface{}, env *procenv.Env, raw []rawValue) ([]rawValue, error) {
	args, err := decodeParams(fn.Params, raw, state, env)
	if err != nil {
		return nil, err
	}
	results, err := fn.Invoke(state, env, args)
	if err != nil {
		return nil, err
	}
	return encodeResults(fn.Results, results, state, env)
}
