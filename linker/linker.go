// Package linker implements the instance linker: a transient, single-use
// builder that, given a compiled module and a memory choice, builds a
// fresh store and linker, materializes the instance's linear memory,
// builds a process environment, and binds every host capability into the
// linker.
package linker

import (
	"fmt"
	"sync"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasmproc/wasmproc/engine"
	"github.com/wasmproc/wasmproc/errs"
	"github.com/wasmproc/wasmproc/jit"
	"github.com/wasmproc/wasmproc/module"
	"github.com/wasmproc/wasmproc/procenv"
	"github.com/wasmproc/wasmproc/sched"
)

// MemoryChoiceKind selects how an instance's linear memory is obtained.
type MemoryChoiceKind int

const (
	// MemoryNew allocates a fresh memory per the module's declared plan.
	MemoryNew MemoryChoiceKind = iota
	// MemoryExisting reuses a caller-provided memory. Not yet implemented;
	// Link fails it cleanly with ErrUnsupported, never silently falling
	// back to MemoryNew.
	MemoryExisting
)

// MemoryChoice selects the memory strategy as a first-class value, so the
// unsupported arm is an error, not a runtime panic.
type MemoryChoice struct {
	Kind MemoryChoiceKind
}

// NewMemory selects MemoryNew.
func NewMemory() MemoryChoice { return MemoryChoice{Kind: MemoryNew} }

// ExistingMemory selects the not-yet-implemented MemoryExisting arm.
func ExistingMemory() MemoryChoice { return MemoryChoice{Kind: MemoryExisting} }

// Capability is a host-side object that binds its own typed functions into
// a wasmtime.Linker under its own namespace via the Host-Function Binding
// Protocol (package hostbind). Each capability owns its mutable per-instance
// state.
type Capability interface {
	Namespace() string
	AddToLinker(env procenv.Env, store *wasmtime.Store, linker *wasmtime.Linker) error
}

// Builder is the transient, single-use Instance Linker. Construct with New;
// call Link exactly once.
type Builder struct {
	mu        sync.Mutex
	used      bool
	je        *jit.Engine
	cm        *module.Descriptor
	memChoice MemoryChoice
	yielder   sched.Token
	caps      []Capability
}

// New prepares a Builder for one instantiation of cm.
func New(je *jit.Engine, cm *module.Descriptor, memChoice MemoryChoice, yielder sched.Token, caps ...Capability) *Builder {
	return &Builder{je: je, cm: cm, memChoice: memChoice, yielder: yielder, caps: caps}
}

// Link acquires the engine singleton, builds a fresh store and linker,
// materializes the linear memory, builds a process environment, and binds
// every capability. The returned store and linker are ready for
// jit.Engine.Instantiate(cm, store, linker), which is left to the caller
// since the JIT engine, not the linker, owns the foreign-module check.
//
// Link may be called at most once per Builder; a second call fails with
// ErrInstantiation.
func (b *Builder) Link() (*wasmtime.Store, *wasmtime.Linker, procenv.Env, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used {
		return nil, nil, procenv.Env{}, fmt.Errorf("%w: linker already consumed", errs.ErrInstantiation)
	}
	b.used = true

	if b.memChoice.Kind == MemoryExisting {
		return nil, nil, procenv.Env{}, fmt.Errorf("%w: MemoryChoice.Existing", errs.ErrUnsupported)
	}

	wt := engine.Get()
	store := wasmtime.NewStore(wt)
	wlinker := wasmtime.NewLinker(wt)

	var max uint32
	if b.cm.Memory.HasMax {
		max = b.cm.Memory.Max
	}
	memType := wasmtime.NewMemoryType(b.cm.Memory.Min, b.cm.Memory.HasMax, max)
	mem, err := wasmtime.NewMemory(store, memType)
	if err != nil {
		return nil, nil, procenv.Env{}, fmt.Errorf("%w: memory allocation: %s", errs.ErrInstantiation, err.Error())
	}

	// One shared handle for the environment, and a second, independent
	// reference held by the (lunatic, memory) import: two owning
	// references to one memory, both valid for the full instance lifetime.
	memHandle := procenv.NewMemoryHandle(func() []byte { return mem.UnsafeData(store) })
	if err := wlinker.Define("lunatic", "memory", mem); err != nil {
		return nil, nil, procenv.Env{}, fmt.Errorf("%w: memory import: %s", errs.ErrInstantiation, err.Error())
	}

	env := procenv.New(b.cm, memHandle, b.yielder)

	for _, cap := range b.caps {
		if err := cap.AddToLinker(env.Clone(), store, wlinker); err != nil {
			return nil, nil, procenv.Env{}, fmt.Errorf("%w: capability %q: %s", errs.ErrInstantiation, cap.Namespace(), err.Error())
		}
	}

	return store, wlinker, env, nil
}

// Instantiate runs Link, then delegates to the JIT engine's Instantiate,
// which rejects a module compiled by a different engine. The returned
// store must be kept alive as long as the instance: every export call and
// memory access goes through it.
func (b *Builder) Instantiate() (*wasmtime.Store, *wasmtime.Instance, procenv.Env, error) {
	store, wlinker, env, err := b.Link()
	if err != nil {
		return nil, nil, procenv.Env{}, err
	}
	inst, err := b.je.Instantiate(b.cm, store, wlinker)
	if err != nil {
		return nil, nil, procenv.Env{}, err
	}
	return store, inst, env, nil
}
