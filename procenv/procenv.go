// Package procenv implements the per-instance process environment: a
// small, cheaply-cloneable handle carrying the module descriptor, a shared
// handle to the instance's linear memory, and an opaque yielder token host
// functions use to suspend cooperatively.
//
// The same linear memory is referenced twice per instance: once as the
// `(lunatic, memory)` import registered in the linker, once held here for
// host-function access. The import holds the back-end's own memory object;
// MemoryHandle is the environment's explicit, refcounted reference, and
// every Env.Clone takes another counted reference. The import's reference
// is not part of that count.
package procenv

import (
	"sync/atomic"

	"github.com/wasmproc/wasmproc/module"
	"github.com/wasmproc/wasmproc/sched"
)

// MemoryHandle is a refcounted, shareable reference to one instance's
// linear memory. bytesFn is supplied by whichever back-end created the
// memory, so this type stays back-end-neutral, which is what lets
// hostbind's binding protocol run unmodified over either back-end.
type MemoryHandle struct {
	bytesFn func() []byte
	refs    *int32
}

// NewMemoryHandle wraps a backend-specific memory accessor as the single
// initial owning reference (refcount 1).
func NewMemoryHandle(bytesFn func() []byte) *MemoryHandle {
	n := int32(1)
	return &MemoryHandle{bytesFn: bytesFn, refs: &n}
}

// Clone returns a second independent owning handle to the same memory,
// incrementing the shared refcount. Both the returned handle and h remain
// valid and interchangeable.
func (h *MemoryHandle) Clone() *MemoryHandle {
	atomic.AddInt32(h.refs, 1)
	return &MemoryHandle{bytesFn: h.bytesFn, refs: h.refs}
}

// Release drops this handle's ownership stake and returns the refcount
// remaining afterward. Callers that bring it to zero are the last owner;
// the backing memory is freed once the underlying back-end object itself
// is garbage collected, since neither back-end exposes an earlier explicit
// free.
func (h *MemoryHandle) Release() int32 {
	return atomic.AddInt32(h.refs, -1)
}

// Bytes returns the live, mutable view of the instance's linear memory.
// Valid only while the owning instance exists.
func (h *MemoryHandle) Bytes() []byte {
	return h.bytesFn()
}

// Env is the Process Environment. The zero value is not meaningful;
// construct via New.
type Env struct {
	Module  *module.Descriptor
	Memory  *MemoryHandle
	Yielder sched.Token
}

// New builds a fresh Process Environment around an already-materialized
// memory handle and yielder.
func New(mod *module.Descriptor, mem *MemoryHandle, yielder sched.Token) Env {
	return Env{Module: mod, Memory: mem, Yielder: yielder}
}

// Clone copies three pointer-sized fields and takes a new owning reference
// to the memory (refcount bump), never duplicating the memory itself.
// Every host capability binding can hold its own Clone safely; all clones
// observe the same linear memory and yielder.
func (e Env) Clone() Env {
	return Env{Module: e.Module, Memory: e.Memory.Clone(), Yielder: e.Yielder}
}
