// Package process is the "lunatic" namespace host capability: it lets a
// guest spawn further Wasm processes. This capability owns only the
// binding contract and recursion point, delegating the real work to a
// SpawnFunc the runtime facade supplies, since the facade alone can close
// over a jit.Engine and build a fresh linker.Builder without an import
// cycle.
package process

import (
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasmproc/wasmproc/hostbind"
	"github.com/wasmproc/wasmproc/module"
	"github.com/wasmproc/wasmproc/procenv"
)

// SpawnFunc spawns a fresh process from cm and returns its process id.
type SpawnFunc func(cm *module.Descriptor) (uint32, error)

// Capability implements linker.Capability under the "lunatic" namespace.
type Capability struct {
	spawn    SpawnFunc
	spawnCnt int64
}

// New builds a process-spawning capability backed by spawn.
func New(spawn SpawnFunc) *Capability {
	return &Capability{spawn: spawn}
}

// Namespace implements linker.Capability.
func (c *Capability) Namespace() string { return "lunatic" }

// SpawnCount returns how many times spawn has succeeded, for tests and
// diagnostics.
func (c *Capability) SpawnCount() int64 { return atomic.LoadInt64(&c.spawnCnt) }

func (c *Capability) funcs() []hostbind.Func {
	return []hostbind.Func{
		{
			Namespace: c.Namespace(),
			Name:      "spawn",
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, _ []interface{}) ([]interface{}, error) {
				pid, err := c.spawn(e.Module)
				if err != nil {
					return nil, err
				}
				atomic.AddInt64(&c.spawnCnt, 1)
				return []interface{}{int32(pid)}, nil
			},
		},
	}
}

// AddToLinker implements linker.Capability.
func (c *Capability) AddToLinker(env procenv.Env, store *wasmtime.Store, linker *wasmtime.Linker) error {
	return hostbind.AddToLinker(c.funcs(), c, &env, store, linker)
}

// AddToWasmerLinker mirrors AddToLinker against the second back-end.
func (c *Capability) AddToWasmerLinker(env procenv.Env, store *wasmer.Store, importObject *wasmer.ImportObject) error {
	return hostbind.AddToWasmerLinker(c.funcs(), c, &env, store, importObject)
}
