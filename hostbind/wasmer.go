package hostbind

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasmproc/wasmproc/api"
	"github.com/wasmproc/wasmproc/procenv"
)

// AddToWasmerLinker is the second back-end's binding operation: the same
// protocol as AddToLinker, against wasmer-go's ImportObject instead of a
// wasmtime.Linker. It behaves identically to AddToLinker on the same Func
// declarations; both share the call pipeline and only the raw-value
// marshaling at the edges differs.
func AddToWasmerLinker(fns []Func, state interface{}, env *procenv.Env, store *wasmer.Store, importObject *wasmer.ImportObject) error {
	byNamespace := make(map[string]map[string]wasmer.IntoExtern)
	for _, fn := range fns {
		fn := fn
		paramTypes := wasmParamTypes(fn.Params)
		resultTypes := wasmResultTypes(fn.Results)
		ft := wasmer.NewFunctionType(toWasmerValueTypes(paramTypes), toWasmerValueTypes(resultTypes))
		wf := wasmer.NewFunction(store, ft, func(args []wasmer.Value) ([]wasmer.Value, error) {
			raw, err := fromWasmerValues(paramTypes, args)
			if err != nil {
				return nil, err
			}
			results, err := call(fn, state, env, raw)
			if err != nil {
				return nil, err
			}
			return toWasmerValues(resultTypes, results), nil
		})

		ns, ok := byNamespace[fn.Namespace]
		if !ok {
			ns = map[string]wasmer.IntoExtern{}
			byNamespace[fn.Namespace] = ns
		}
		ns[fn.Name] = wf
	}

	for ns, exports := range byNamespace {
		importObject.Register(ns, exports)
	}
	return nil
}

func toWasmerValueTypes(kinds []api.ValueType) []*wasmer.ValueType {
	out := make([]*wasmer.ValueType, len(kinds))
	for i, k := range kinds {
		out[i] = wasmer.NewValueType(wasmerKind(k))
	}
	return out
}

func wasmerKind(k api.ValueType) wasmer.ValueKind {
	switch k {
	case api.ValueTypeI32:
		return wasmer.I32
	case api.ValueTypeI64:
		return wasmer.I64
	case api.ValueTypeF32:
		return wasmer.F32
	case api.ValueTypeF64:
		return wasmer.F64
	default:
		return wasmer.I32
	}
}

func fromWasmerValues(kinds []api.ValueType, vals []wasmer.Value) ([]rawValue, error) {
	if len(vals) != len(kinds) {
		return nil, fmt.Errorf("hostbind: wasmer gave %d args, expected %d", len(vals), len(kinds))
	}
	out := make([]rawValue, len(vals))
	for i, k := range kinds {
		switch k {
		case api.ValueTypeI32:
			out[i] = rawValue{i32: vals[i].I32()}
		case api.ValueTypeI64:
			out[i] = rawValue{i64: vals[i].I64()}
		case api.ValueTypeF32:
			out[i] = rawValue{f32: vals[i].F32()}
		case api.ValueTypeF64:
			out[i] = rawValue{f64: vals[i].F64()}
		}
	}
	return out, nil
}

func toWasmerValues(kinds []api.ValueType, raw []rawValue) []wasmer.Value {
	out := make([]wasmer.Value, len(raw))
	for i, k := range kinds {
		switch k {
		case api.ValueTypeI32:
			out[i] = wasmer.NewI32(raw[i].i32)
		case api.ValueTypeI64:
			out[i] = wasmer.NewI64(raw[i].i64)
		case api.ValueTypeF32:
			out[i] = wasmer.NewF32(raw[i].f32)
		case api.ValueTypeF64:
			out[i] = wasmer.NewF64(raw[i].f64)
		}
	}
	return out
}
