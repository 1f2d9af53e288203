package hostbind

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasmproc/wasmproc/api"
	"github.com/wasmproc/wasmproc/procenv"
)

// AddToLinker is the primary back-end's binding operation: for each
// declared Func, register a host callback under (fn.Namespace, fn.Name)
// into linker that runs the shared decode/invoke/encode pipeline. Any
// error out of that pipeline, including a failed custom-type conversion,
// surfaces as a trap on the guest call.
func AddToLinker(fns []Func, state interface{}, env *procenv.Env, store *wasmtime.Store, linker *wasmtime.Linker) error {
	for _, fn := range fns {
		fn := fn
		paramTypes := wasmParamTypes(fn.Params)
		resultTypes := wasmResultTypes(fn.Results)
		ft := wasmtime.NewFuncType(toValTypes(paramTypes), toValTypes(resultTypes))
		wf := wasmtime.NewFunc(store, ft, func(_ *wasmtime.Caller, args []wasmtime.Val) ([]wasmtime.Val, *wasmtime.Trap) {
			raw, err := fromWasmtimeVals(paramTypes, args)
			if err != nil {
				return nil, wasmtime.NewTrap(err.Error())
			}
			results, err := call(fn, state, env, raw)
			if err != nil {
				return nil, wasmtime.NewTrap(err.Error())
			}
			return toWasmtimeVals(resultTypes, results), nil
		})
		if err := linker.Define(fn.Namespace, fn.Name, wf); err != nil {
			return fmt.Errorf("hostbind: define %s.%s: %w", fn.Namespace, fn.Name, err)
		}
	}
	return nil
}

func toValTypes(kinds []api.ValueType) []*wasmtime.ValType {
	out := make([]*wasmtime.ValType, len(kinds))
	for i, k := range kinds {
		out[i] = wasmtime.NewValType(wasmtimeKind(k))
	}
	return out
}

func wasmtimeKind(k api.ValueType) wasmtime.ValKind {
	switch k {
	case api.ValueTypeI32:
		return wasmtime.KindI32
	case api.ValueTypeI64:
		return wasmtime.KindI64
	case api.ValueTypeF32:
		return wasmtime.KindF32
	case api.ValueTypeF64:
		return wasmtime.KindF64
	default:
		return wasmtime.KindI32
	}
}

func fromWasmtimeVals(kinds []api.ValueType, vals []wasmtime.Val) ([]rawValue, error) {
	if len(vals) != len(kinds) {
		return nil, fmt.Errorf("hostbind: wasmtime gave %d args, expected %d", len(vals), len(kinds))
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

func toWasmtimeVals(kinds []api.ValueType, raw []rawValue) []wasmtime.Val {
	out := make([]wasmtime.Val, len(raw))
	for i, k := range kinds {
		switch k {
		case api.ValueTypeI32:
			out[i] = wasmtime.ValI32(raw[i].i32)
		case api.ValueTypeI64:
			out[i] = wasmtime.ValI64(raw[i].i64)
		case api.ValueTypeF32:
			out[i] = wasmtime.ValF32(raw[i].f32)
		case api.ValueTypeF64:
			out[i] = wasmtime.ValF64(raw[i].f64)
		}
	}
	return out
}
