// Package tcp is the "networking" namespace host capability: a minimal
// TCP surface (connect, listen, accept, read, write, close) over Go's net
// package, with cooperative yield points before any call that would block.
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasmproc/wasmproc/hostbind"
	"github.com/wasmproc/wasmproc/procenv"
)

// Capability implements linker.Capability under the "networking" namespace.
type Capability struct {
	mu        sync.Mutex
	conns     map[uint32]net.Conn
	listeners map[uint32]net.Listener
	nextID    uint32
}

// New returns an empty connection/listener table.
func New() *Capability {
	return &Capability{conns: make(map[uint32]net.Conn), listeners: make(map[uint32]net.Listener)}
}

// Namespace implements linker.Capability.
func (c *Capability) Namespace() string { return "networking" }

func (c *Capability) addConn(conn net.Conn) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := atomic.AddUint32(&c.nextID, 1)
	c.conns[id] = conn
	return id
}

func (c *Capability) addListener(l net.Listener) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := atomic.AddUint32(&c.nextID, 1)
	c.listeners[id] = l
	return id
}

func (c *Capability) conn(handle uint32) (net.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn, ok := c.conns[handle]
	return conn, ok
}

func (c *Capability) listener(handle uint32) (net.Listener, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.listeners[handle]
	return l, ok
}

func (c *Capability) closeHandle(handle uint32) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if conn, ok := c.conns[handle]; ok {
		delete(c.conns, handle)
		if conn.Close() != nil {
			return -1
		}
		return 0
	}
	if l, ok := c.listeners[handle]; ok {
		delete(c.listeners, handle)
		if l.Close() != nil {
			return -1
		}
		return 0
	}
	return -1
}

func (c *Capability) funcs() []hostbind.Func {
	ns := c.Namespace()
	return []hostbind.Func{
		{
			Namespace: ns,
			Name:      "connect",
			Params:    []hostbind.Param{{Kind: hostbind.KindBytesPtrLen}, {Kind: hostbind.KindI32}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, args []interface{}) ([]interface{}, error) {
				host := string(args[0].([]byte))
				port := args[1].(int32)
				if err := e.Yielder.Yield(context.Background()); err != nil {
					return nil, err
				}
				conn, err := net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
				if err != nil {
					return []interface{}{int32(-1)}, nil
				}
				return []interface{}{int32(c.addConn(conn))}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "listen",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, _ *procenv.Env, args []interface{}) ([]interface{}, error) {
				port := args[0].(int32)
				l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
				if err != nil {
					return []interface{}{int32(-1)}, nil
				}
				return []interface{}{int32(c.addListener(l))}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "accept",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, args []interface{}) ([]interface{}, error) {
				l, ok := c.listener(uint32(args[0].(int32)))
				if !ok {
					return []interface{}{int32(-1)}, nil
				}
				if err := e.Yielder.Yield(context.Background()); err != nil {
					return nil, err
				}
				conn, err := l.Accept()
				if err != nil {
					return []interface{}{int32(-1)}, nil
				}
				return []interface{}{int32(c.addConn(conn))}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "read",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}, {Kind: hostbind.KindBytesPtrLen}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, args []interface{}) ([]interface{}, error) {
				conn, ok := c.conn(uint32(args[0].(int32)))
				if !ok {
					return []interface{}{int32(-1)}, nil
				}
				if err := e.Yielder.Yield(context.Background()); err != nil {
					return nil, err
				}
				n, err := conn.Read(args[1].([]byte))
				if err != nil && n == 0 {
					return []interface{}{int32(-1)}, nil
				}
				return []interface{}{int32(n)}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "write",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}, {Kind: hostbind.KindBytesPtrLen}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, e *procenv.Env, args []interface{}) ([]interface{}, error) {
				conn, ok := c.conn(uint32(args[0].(int32)))
				if !ok {
					return []interface{}{int32(-1)}, nil
				}
				if err := e.Yielder.Yield(context.Background()); err != nil {
					return nil, err
				}
				n, err := conn.Write(args[1].([]byte))
				if err != nil {
					return []interface{}{int32(-1)}, nil
				}
				return []interface{}{int32(n)}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "close",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, _ *procenv.Env, args []interface{}) ([]interface{}, error) {
				return []interface{}{c.closeHandle(uint32(args[0].(int32)))}, nil
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
