// Package jit implements the JIT engine: the end-to-end compile pipeline,
// and the owner of code memory, the signature registry, and the trampoline
// table.
//
// Guest execution itself rides on the wasmtime module obtained via
// internal/wasmdecode. What this package compiles directly, via
// internal/backend into internal/codemem, is one real, page-protected,
// executable trampoline per unique function signature.
package jit

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasmproc/wasmproc/engine"
	"github.com/wasmproc/wasmproc/errs"
	"github.com/wasmproc/wasmproc/internal/backend"
	"github.com/wasmproc/wasmproc/internal/codemem"
	"github.com/wasmproc/wasmproc/internal/sigreg"
	"github.com/wasmproc/wasmproc/internal/wasmdecode"
	"github.com/wasmproc/wasmproc/module"
)

// serializeFormatVersion tags every blob Engine.Serialize produces so
// Deserialize can reject foreign or stale blobs before even asking
// wasmtime to decode them. Bump this if the on-disk shape ever changes.
const serializeFormatVersion = 1

var nextEngineID uint64

// Engine is the JIT Engine. The zero value is not usable; construct with
// New.
type Engine struct {
	id  uint64
	wt  *wasmtime.Engine
	cfg engine.Config

	compiler backend.Compiler

	mu          sync.Mutex
	sigs        *sigreg.Registry
	code        *codemem.Memory
	trampolines map[sigreg.ID]codemem.Slice
}

// New builds a JIT Engine against the process-wide engine.Get() singleton.
func New() (*Engine, error) {
	compiler, err := backend.NewGolangAsm()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrCompile, err.Error())
	}
	return &Engine{
		id:          atomic.AddUint64(&nextEngineID, 1),
		wt:          engine.Get(),
		cfg:         engine.Current(),
		compiler:    compiler,
		sigs:        sigreg.New(),
		code:        codemem.New(),
		trampolines: make(map[sigreg.ID]codemem.Slice),
	}, nil
}

// ID uniquely identifies this engine instance among all engines in the
// process; module.Descriptor.EngineID is compared against it to reject
// cross-engine instantiation.
func (e *Engine) ID() uint64 { return e.id }

// Validate reports whether raw is a well-formed, valid Wasm module under
// this engine's feature set, without producing a Descriptor.
func (e *Engine) Validate(raw []byte) error {
	_, err := wasmtime.NewModule(e.wt, raw)
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrCompile, err.Error())
	}
	return nil
}

// Compile parses and validates raw, builds the unique-signature set in
// first-occurrence declaration order, compiles and publishes a trampoline
// per signature not already known to this engine, and returns an immutable
// Descriptor. Guest function bodies stay owned by the underlying wasmtime
// module; only trampolines go through this engine's own code memory.
func (e *Engine) Compile(raw []byte) (*module.Descriptor, error) {
	decoded, err := wasmdecode.Decode(e.wt, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrCompile, err.Error())
	}
	return e.finishCompile(decoded)
}

// Deserialize reconstructs a Descriptor from a blob produced by Serialize
// on an engine with the same configuration. The format is opaque and
// engine-version-scoped, never portable across versions: a version
// mismatch or corrupt blob yields ErrDeserialize.
func (e *Engine) Deserialize(blob []byte) (*module.Descriptor, error) {
	if len(blob) == 0 || blob[0] != serializeFormatVersion {
		return nil, fmt.Errorf("%w: unrecognized serialized module format", errs.ErrDeserialize)
	}
	m, err := wasmtime.NewModuleDeserialize(e.wt, blob[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrDeserialize, err.Error())
	}
	decoded, err := wasmdecode.DecodeSerialized(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrDeserialize, err.Error())
	}
	return e.finishCompile(decoded)
}

// Serialize produces an opaque, engine-version-scoped byte string that
// Deserialize on an engine with the same configuration reconstructs into
// an equivalent Descriptor.
func (e *Engine) Serialize(cm *module.Descriptor) ([]byte, error) {
	if cm.EngineID != e.id {
		return nil, fmt.Errorf("%w: module was not compiled by this engine", errs.ErrInstantiation)
	}
	raw, err := cm.Wasm.Serialize()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrSerialize, err.Error())
	}
	out := make([]byte, 0, len(raw)+1)
	out = append(out, serializeFormatVersion)
	out = append(out, raw...)
	return out, nil
}

// Instantiate delegates to the module's own instantiation routine after
// confirming cm was compiled by this engine; a module handed to the wrong
// engine fails with ErrInstantiation rather than being silently accepted.
func (e *Engine) Instantiate(cm *module.Descriptor, store *wasmtime.Store, resolver *wasmtime.Linker) (*wasmtime.Instance, error) {
	if cm.EngineID != e.id {
		return nil, fmt.Errorf("%w: module compiled by a different engine", errs.ErrInstantiation)
	}
	return cm.Instantiate(store, resolver)
}

// RegisterSignature interns sig into this engine's Signature Registry.
func (e *Engine) RegisterSignature(sig sigreg.Signature) sigreg.ID { return e.sigs.Register(sig) }

// LookupSignature returns the signature interned as id, if any.
func (e *Engine) LookupSignature(id sigreg.ID) (sigreg.Signature, bool) { return e.sigs.Lookup(id) }

// Trampoline returns the executable trampoline for id, if one has been
// compiled on this engine.
func (e *Engine) Trampoline(id sigreg.ID) (codemem.Slice, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.trampolines[id]
	return t, ok
}

func (e *Engine) finishCompile(decoded *wasmdecode.Decoded) (*module.Descriptor, error) {
	// Unique-signature set, first-occurrence declaration order. A slice
	// (not a map) keeps trampoline creation order deterministic across
	// runs.
	var order []sigreg.ID
	seen := make(map[sigreg.ID]bool)
	addSig := func(sig sigreg.Signature) {
		id := e.sigs.Register(sig)
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for _, imp := range decoded.Imports {
		addSig(imp.Sig)
	}
	for _, exp := range decoded.Exports {
		addSig(exp.Sig)
	}

	e.mu.Lock()
	for _, id := range order {
		if _, ok := e.trampolines[id]; ok {
			continue // signature already has a trampoline on this engine
		}
		sig, _ := e.sigs.Lookup(id)
		code, err := e.compiler.CompileTrampoline(sig)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: trampoline for %s: %s", errs.ErrCompile, sig, err.Error())
		}
		slice, err := e.code.AllocateForFunction(code)
		if err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", errs.ErrResourceExhausted, err.Error())
		}
		e.trampolines[id] = slice
	}
	if err := e.code.Publish(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", errs.ErrResourceExhausted, err.Error())
	}

	moduleTrampolines := make(map[sigreg.ID]codemem.Slice, len(order))
	for _, id := range order {
		moduleTrampolines[id] = e.trampolines[id]
	}
	e.mu.Unlock()

	return &module.Descriptor{
		EngineID:    e.id,
		Wasm:        decoded.Wasm,
		Imports:     decoded.Imports,
		Exports:     decoded.Exports,
		Memory:      decoded.Memory,
		Trampolines: moduleTrampolines,
	}, nil
}
