// Package channel is the "channel" namespace host capability: simple
// in-memory byte-message channels between processes.
package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasmproc/wasmproc/hostbind"
	"github.com/wasmproc/wasmproc/procenv"
)

// Capability implements linker.Capability under the "channel" namespace.
// Safe for concurrent use across instances that share it.
type Capability struct {
	mu       sync.Mutex
	channels map[uint32]chan []byte
	nextID   uint32
}

// New returns an empty channel table.
func New() *Capability {
	return &Capability{channels: make(map[uint32]chan []byte)}
}

// Namespace implements linker.Capability.
func (c *Capability) Namespace() string { return "channel" }

func (c *Capability) create(capacity int32) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if capacity < 0 {
		capacity = 0
	}
	id := atomic.AddUint32(&c.nextID, 1)
	c.channels[id] = make(chan []byte, capacity)
	return id
}

func (c *Capability) lookup(handle uint32) (chan []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[handle]
	return ch, ok
}

func (c *Capability) funcs() []hostbind.Func {
	ns := c.Namespace()
	return []hostbind.Func{
		{
			Namespace: ns,
			Name:      "create",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, _ *procenv.Env, args []interface{}) ([]interface{}, error) {
				id := c.create(args[0].(int32))
				return []interface{}{int32(id)}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "send",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}, {Kind: hostbind.KindBytesPtrLen}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, args []interface{}) ([]interface{}, error) {
				ch, ok := c.lookup(uint32(args[0].(int32)))
				if !ok {
					return []interface{}{int32(-1)}, nil
				}
				buf := args[1].([]byte)
				cp := make([]byte, len(buf))
				copy(cp, buf)
				if err := e.Yielder.Yield(context.Background()); err != nil {
					return nil, err
				}
				ch <- cp
				return []interface{}{int32(0)}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "receive",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}, {Kind: hostbind.KindBytesPtrLen}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, args []interface{}) ([]interface{}, error) {
				ch, ok := c.lookup(uint32(args[0].(int32)))
				if !ok {
					return []interface{}{int32(-1)}, nil
				}
				if err := e.Yielder.Yield(context.Background()); err != nil {
					return nil, err
				}
				data, open := <-ch
				if !open {
					return []interface{}{int32(-1)}, nil
				}
				n := copy(args[1].([]byte), data)
				return []interface{}{int32(n)}, nil
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
