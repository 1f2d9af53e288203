// Package wasmdecode is the thin adapter over the third-party Wasm
// decoder this runtime delegates binary parsing to. Rather than
// re-deriving a Wasm binary-format parser, it leans on wasmtime-go's own
// validating parser and walks the resulting *wasmtime.Module to recover
// the plan tables the rest of the runtime needs: import/export signatures
// and the declared linear-memory limits.
package wasmdecode

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasmproc/wasmproc/api"
	"github.com/wasmproc/wasmproc/internal/sigreg"
)

// FuncImport describes one function a module imports.
type FuncImport struct {
	Module string
	Name   string
	Sig    sigreg.Signature
}

// FuncExport describes one function a module exports.
type FuncExport struct {
	Name string
	Sig  sigreg.Signature
}

// MemoryPlan is a declared linear memory's page-count bounds. Page size is
// fixed at 64 KiB per the Wasm spec.
type MemoryPlan struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// Decoded is everything the rest of the core needs out of a parsed module.
type Decoded struct {
	Wasm    *wasmtime.Module
	Imports []FuncImport
	Exports []FuncExport
	Memory  MemoryPlan
	// HasMemory is false for modules that neither import nor export a
	// linear memory.
	HasMemory bool
}

// Decode validates and parses raw Wasm bytes against engine, then derives
// the plan tables. A malformed or invalid module surfaces the decoder's
// own error, unwrapped; callers attach the error kind.
func Decode(engine *wasmtime.Engine, raw []byte) (*Decoded, error) {
	m, err := wasmtime.NewModule(engine, raw)
	if err != nil {
		return nil, err
	}
	return analyze(m)
}

// DecodeSerialized recovers a Decoded from a module reconstructed via
// wasmtime.NewModuleDeserialize, skipping raw-bytes validation since the
// deserializer already checked engine-version compatibility.
func DecodeSerialized(m *wasmtime.Module) (*Decoded, error) {
	return analyze(m)
}

func analyze(m *wasmtime.Module) (*Decoded, error) {
	d := &Decoded{Wasm: m}

	for _, imp := range m.Type().Imports() {
		ty := imp.Type()
		switch {
		case ty.FuncType() != nil:
			sig, err := funcSig(ty.FuncType())
			if err != nil {
				return nil, fmt.Errorf("wasmdecode: import %s.%s: %w", imp.Module(), *imp.Name(), err)
			}
			name := ""
			if imp.Name() != nil {
				name = *imp.Name()
			}
			d.Imports = append(d.Imports, FuncImport{Module: imp.Module(), Name: name, Sig: sig})
		case ty.MemoryType() != nil:
			d.Memory = memoryPlan(ty.MemoryType())
			d.HasMemory = true
		}
	}

	for _, exp := range m.Type().Exports() {
		ty := exp.Type()
		switch {
		case ty.FuncType() != nil:
			sig, err := funcSig(ty.FuncType())
			if err != nil {
				return nil, fmt.Errorf("wasmdecode: export %s: %w", exp.Name(), err)
			}
			d.Exports = append(d.Exports, FuncExport{Name: exp.Name(), Sig: sig})
		case ty.MemoryType() != nil:
			d.Memory = memoryPlan(ty.MemoryType())
			d.HasMemory = true
		}
	}

	return d, nil
}

func funcSig(ft *wasmtime.FuncType) (sigreg.Signature, error) {
	params, err := valTypes(ft.Params())
	if err != nil {
		return sigreg.Signature{}, err
	}
	results, err := valTypes(ft.Results())
	if err != nil {
		return sigreg.Signature{}, err
	}
	return sigreg.Signature{Params: params, Results: results}, nil
}

func valTypes(in []*wasmtime.ValType) ([]api.ValueType, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make([]api.ValueType, len(in))
	for i, v := range in {
		switch v.Kind() {
		case wasmtime.KindI32:
			out[i] = api.ValueTypeI32
		case wasmtime.KindI64:
			out[i] = api.ValueTypeI64
		case wasmtime.KindF32:
			out[i] = api.ValueTypeF32
		case wasmtime.KindF64:
			out[i] = api.ValueTypeF64
		default:
			return nil, fmt.Errorf("wasmdecode: unsupported value kind %v", v.Kind())
		}
	}
	return out, nil
}

func memoryPlan(mt *wasmtime.MemoryType) MemoryPlan {
	plan := MemoryPlan{Min: uint32(mt.Minimum())}
	if ok, max := mt.Maximum(); ok {
		plan.Max = uint32(max)
		plan.HasMax = true
	}
	return plan
}
