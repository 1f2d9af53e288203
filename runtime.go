package wasmproc

import (
	"os"
	"sync"
	"sync/atomic"

	"github.com/bytecodealliance/wasmtime-go"

	"github.com/wasmproc/wasmproc/capability/channel"
	"github.com/wasmproc/wasmproc/capability/process"
	"github.com/wasmproc/wasmproc/capability/tcp"
	"github.com/wasmproc/wasmproc/capability/wasi"
	"github.com/wasmproc/wasmproc/jit"
	"github.com/wasmproc/wasmproc/linker"
	"github.com/wasmproc/wasmproc/module"
	"github.com/wasmproc/wasmproc/procenv"
	"github.com/wasmproc/wasmproc/sched"
)

// Process is one instantiated, running (or exited) guest module. Store is
// the instance's own store and stays alive as long as the Process does.
type Process struct {
	PID      uint32
	Store    *wasmtime.Store
	Instance *wasmtime.Instance
	Env      procenv.Env
}

// Func returns the exported function name, or nil if the guest does not
// export it.
func (p *Process) Func(name string) *wasmtime.Func {
	return p.Instance.GetFunc(p.Store, name)
}

// Runtime owns one JIT Engine and the shared host capabilities every
// spawned Process is linked against. The "lunatic" (process), "channel",
// and "networking" capabilities are shared singletons so guests can
// actually communicate across processes; each Process still gets its own
// store, linker, and linear memory.
type Runtime struct {
	engine *jit.Engine
	logger Logger

	mu        sync.Mutex
	nextPID   uint32
	processes map[uint32]*Process

	channels *channel.Capability
	tcp      *tcp.Capability
	wasi     *wasi.Capability
	proc     *process.Capability
}

// Option configures a Runtime at construction time.
type Option func(*Runtime)

// WithLogger overrides the default stderr logger.
func WithLogger(l Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithStdio overrides what fd 1/2 (stdout/stderr) the wasi capability
// writes to; the default is os.Stdout/os.Stderr.
func WithStdio(stdout, stderr *os.File) Option {
	return func(r *Runtime) { r.wasi = wasi.New(stdout, stderr) }
}

// NewRuntime builds a Runtime backed by a fresh JIT engine.
func NewRuntime(opts ...Option) (*Runtime, error) {
	je, err := jit.New()
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		engine:    je,
		logger:    defaultLogger(),
		processes: make(map[uint32]*Process),
		channels:  channel.New(),
		tcp:       tcp.New(),
		wasi:      wasi.New(os.Stdout, os.Stderr),
	}
	r.proc = process.New(r.spawnFromGuest)
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Compile validates and JIT-compiles raw Wasm bytes into a module
// Descriptor, ready to Spawn any number of times.
func (r *Runtime) Compile(raw []byte) (*module.Descriptor, error) {
	cm, err := r.engine.Compile(raw)
	if err != nil {
		r.logger.Printf("compile failed: %v", err)
		return nil, err
	}
	return cm, nil
}

// Deserialize restores a module Descriptor previously produced by
// Serialize, rejecting blobs that are not in the serialized format this
// engine produces or that wasmtime cannot decode. The blob carries no
// engine identity: the restored Descriptor belongs to this Runtime's
// engine.
func (r *Runtime) Deserialize(blob []byte) (*module.Descriptor, error) {
	cm, err := r.engine.Deserialize(blob)
	if err != nil {
		r.logger.Printf("deserialize failed: %v", err)
		return nil, err
	}
	return cm, nil
}

// Serialize produces a portable blob for cm, usable with Deserialize by
// any Runtime built from the same Engine Singleton configuration.
func (r *Runtime) Serialize(cm *module.Descriptor) ([]byte, error) {
	return r.engine.Serialize(cm)
}

// Spawn instantiates cm as a new Process, linking it against every shared
// capability via package linker.
func (r *Runtime) Spawn(cm *module.Descriptor) (*Process, error) {
	b := linker.New(r.engine, cm, linker.NewMemory(), sched.NewToken(), r.proc, r.channels, r.tcp, r.wasi)
	store, inst, env, err := b.Instantiate()
	if err != nil {
		r.logger.Printf("instantiate failed: %v", err)
		return nil, err
	}

	pid := atomic.AddUint32(&r.nextPID, 1)
	p := &Process{PID: pid, Store: store, Instance: inst, Env: env}

	r.mu.Lock()
	r.processes[pid] = p
	r.mu.Unlock()

	return p, nil
}

// Process returns the Process registered under pid, if it is still known
// to this Runtime.
func (r *Runtime) Process(pid uint32) (*Process, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.processes[pid]
	return p, ok
}

// ProcessCount reports how many processes this Runtime has spawned and
// still tracks.
func (r *Runtime) ProcessCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processes)
}

// spawnFromGuest adapts Spawn to capability/process's SpawnFunc shape, the
// dependency-inversion seam that lets a guest recursively spawn further
// processes from the same module without an import cycle between
// capability/process and either jit or linker.
func (r *Runtime) spawnFromGuest(cm *module.Descriptor) (uint32, error) {
	p, err := r.Spawn(cm)
	if err != nil {
		return 0, err
	}
	return p.PID, nil
}
