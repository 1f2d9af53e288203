// Package module defines the compiled module: a validated, compiled Wasm
// artifact ready for cheap, repeated instantiation. A Descriptor is built
// exclusively by a jit.Engine's Compile or Deserialize and is immutable
// afterward; many
// instances may share one Descriptor.
package module

import (
	"fmt"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasmproc/wasmproc/errs"
	"github.com/wasmproc/wasmproc/internal/codemem"
	"github.com/wasmproc/wasmproc/internal/sigreg"
	"github.com/wasmproc/wasmproc/internal/wasmdecode"
)

// Descriptor is a Compiled Module. Construct only via jit.Engine.Compile or
// jit.Engine.Deserialize.
type Descriptor struct {
	// EngineID identifies the jit.Engine that produced this Descriptor.
	// Instantiating against any other engine fails: modules never move
	// between engines.
	EngineID uint64

	// Name is an optional identifier, empty unless the caller attached one.
	Name string

	Wasm    *wasmtime.Module
	Imports []wasmdecode.FuncImport
	Exports []wasmdecode.FuncExport
	Memory  wasmdecode.MemoryPlan

	// Trampolines records the unique signatures this module's
	// imports/exports touched at compile time and the code-memory slice
	// holding each one's trampoline. Actual guest execution dispatches
	// through Wasm, not through these pointers; see internal/backend.
	Trampolines map[sigreg.ID]codemem.Slice
}

// Import returns the signature of the named import under module, or
// ok=false if no such import exists.
func (d *Descriptor) Import(mod, name string) (sigreg.Signature, bool) {
	for _, imp := range d.Imports {
		if imp.Module == mod && imp.Name == name {
			return imp.Sig, true
		}
	}
	return sigreg.Signature{}, false
}

// Export returns the signature of the named export, or ok=false if absent.
func (d *Descriptor) Export(name string) (sigreg.Signature, bool) {
	for _, exp := range d.Exports {
		if exp.Name == name {
			return exp.Sig, true
		}
	}
	return sigreg.Signature{}, false
}

// Instantiate delegates to the resolver (a fully-wired *wasmtime.Linker,
// built by package linker) to resolve imports and produce a live instance.
// Calling Instantiate multiple times against the same store or different
// stores produces fully independent instances that share only this
// Descriptor's immutable code.
func (d *Descriptor) Instantiate(store *wasmtime.Store, resolver *wasmtime.Linker) (*wasmtime.Instance, error) {
	inst, err := resolver.Instantiate(store, d.Wasm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrInstantiation, err.Error())
	}
	return inst, nil
}
