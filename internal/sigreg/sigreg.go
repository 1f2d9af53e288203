// Package sigreg interns Wasm function types and hands out opaque, dense
// identifiers for them, unique within one Registry.
package sigreg

import (
	"strconv"
	"sync"

	"github.com/wasmproc/wasmproc/api"
)

// ID is an interned identifier for a Wasm function type, unique within the
// Registry that issued it; separate Registries each count from 0. IDs are
// dense (0, 1, 2, ...) and never reused within a Registry's lifetime.
type ID uint64

// Signature is a Wasm function type: the ordered parameter and result
// value kinds.
type Signature struct {
	Params  []api.ValueType
	Results []api.ValueType
}

// key renders a Signature into a comparable Go map key.
func (s Signature) key() string {
	b := make([]byte, 0, len(s.Params)+len(s.Results)+1)
	b = append(b, s.Params...)
	b = append(b, 0xff) // separator: never a valid ValueType
	b = append(b, s.Results...)
	return string(b)
}

func (s Signature) String() string {
	str := "("
	for i, p := range s.Params {
		if i > 0 {
			str += ", "
		}
		str += api.ValueTypeName(p)
	}
	str += ") -> ("
	for i, r := range s.Results {
		if i > 0 {
			str += ", "
		}
		str += api.ValueTypeName(r)
	}
	return str + ")"
}

// Registry interns Signatures and is safe for concurrent use. The zero
// value is not usable; construct with New.
type Registry struct {
	mu      sync.RWMutex
	byKey   map[string]ID
	signats []Signature // index == ID
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{byKey: make(map[string]ID)}
}

// Register interns sig, returning its ID. Calling Register twice with
// equal signatures returns the same ID (idempotent); registering before a
// successful Lookup of that ID happens-before the lookup observing it.
func (r *Registry) Register(sig Signature) ID {
	k := sig.key()

	r.mu.RLock()
	if id, ok := r.byKey[k]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	// Re-check under the write lock: another goroutine may have registered
	// the same signature between the RUnlock above and this Lock.
	if id, ok := r.byKey[k]; ok {
		return id
	}
	id := ID(len(r.signats))
	r.signats = append(r.signats, sig)
	r.byKey[k] = id
	return id
}

// Lookup returns the signature interned as id, or ok=false if id was never
// registered with this Registry. Lookup never errors.
func (r *Registry) Lookup(id ID) (sig Signature, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.signats) {
		return Signature{}, false
	}
	return r.signats[id], true
}

// Len returns the number of distinct signatures interned so far.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.signats)
}

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }
