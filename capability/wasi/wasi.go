// Package wasi is the "wasi_snapshot_preview1" namespace host capability:
// the minimal subset of WASI a guest needs to exit and to write to stdout
// or stderr.
package wasi

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasmproc/wasmproc/hostbind"
	"github.com/wasmproc/wasmproc/procenv"
)

// ErrExit carries the exit code a guest requested via proc_exit.
type ErrExit struct{ Code uint32 }

func (e *ErrExit) Error() string { return "wasi: proc_exit" }

const (
	errnoSuccess = 0
	errnoBadf    = 8
)

// Capability implements linker.Capability under the "wasi_snapshot_preview1"
// namespace.
type Capability struct {
	stdout   io.Writer
	stderr   io.Writer
	exited   int32
	exitCode uint32
}

// New binds fd 1 to stdout and fd 2 to stderr.
func New(stdout, stderr io.Writer) *Capability {
	return &Capability{stdout: stdout, stderr: stderr}
}

// Namespace implements linker.Capability.
func (c *Capability) Namespace() string { return "wasi_snapshot_preview1" }

// Exited reports whether proc_exit has been called, and with what code.
func (c *Capability) Exited() (bool, uint32) {
	return atomic.LoadInt32(&c.exited) != 0, atomic.LoadUint32(&c.exitCode)
}

func (c *Capability) writerFor(fd int32) (io.Writer, bool) {
	switch fd {
	case 1:
		return c.stdout, true
	case 2:
		return c.stderr, true
	default:
		return nil, false
	}
}

// fdWrite writes a single iovec (ptr, len pair already resolved to a slice
// by hostbind) to fd and returns the WASI errno.
func (c *Capability) fdWrite(fd int32, data []byte) (int32, uint32) {
	w, ok := c.writerFor(fd)
	if !ok {
		return 0, errnoBadf
	}
	n, err := w.Write(data)
	if err != nil {
		return int32(n), errnoBadf
	}
	return int32(n), errnoSuccess
}

func (c *Capability) funcs() []hostbind.Func {
	ns := c.Namespace()
	return []hostbind.Func{
		{
			Namespace: ns,
			Name:      "fd_write",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}, {Kind: hostbind.KindBytesPtrLen}},
			Results:   []hostbind.Result{{Kind: hostbind.KindI32}},
			Invoke: func(_ interface{}, _ *procenv.Env, args []interface{}) ([]interface{}, error) {
				fd := args[0].(int32)
				data := args[1].([]byte)
				n, errno := c.fdWrite(fd, data)
				if errno != errnoSuccess {
					return []interface{}{int32(errno)}, nil
				}
				return []interface{}{n}, nil
			},
		},
		{
			Namespace: ns,
			Name:      "proc_exit",
			Params:    []hostbind.Param{{Kind: hostbind.KindI32}},
			Results:   nil,
			Invoke: func(_ interface{}, _ *procenv.Env, args []interface{}) ([]interface{}, error) {
				code := uint32(args[0].(int32))
				atomic.StoreUint32(&c.exitCode, code)
				atomic.StoreInt32(&c.exited, 1)
				return nil, &ErrExit{Code: code}
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

// IsExit reports whether err is (or wraps) an ErrExit, and returns its code.
func IsExit(err error) (uint32, bool) {
	var ex *ErrExit
	if errors.As(err, &ex) {
		return ex.Code, true
	}
	return 0, false
}
