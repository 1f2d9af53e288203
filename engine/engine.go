// Package engine owns the process-wide Wasm engine: exactly one per
// process, lazily created on first access with fixed feature flags,
// immutable afterward and shared by every module and instance.
package engine

import (
	"sync"

	"github.com/bytecodealliance/wasmtime-go"
)

// staticMemoryGuardSize is the 8 MiB guard-region size recorded in Config.
// newWasmtimeEngine does not pass it to wasmtime, so the engine keeps
// wasmtime's own default guard region.
const staticMemoryGuardSize = 8 * 1024 * 1024

// Config is the frozen set of feature flags the singleton is built with.
// There is exactly one meaningful Config value in this runtime; the fields
// are not user-tunable, but Config is modeled as a value so tests can
// construct one without touching the process-wide singleton.
type Config struct {
	Threads               bool
	SIMD                  bool
	ReferenceTypes        bool
	StaticMemoryGuardSize uint64
}

// Default is the fixed configuration every engine in this process runs
// with: threads, SIMD, and reference types on, and an 8 MiB
// StaticMemoryGuardSize recorded (not applied to wasmtime; see
// staticMemoryGuardSize).
func Default() Config {
	return Config{
		Threads:               true,
		SIMD:                  true,
		ReferenceTypes:        true,
		StaticMemoryGuardSize: staticMemoryGuardSize,
	}
}

var (
	once     sync.Once
	instance *wasmtime.Engine
)

// Get returns the process-wide engine, building it on the first call with
// Default's feature flags. Every subsequent call, regardless of goroutine,
// returns the same instance.
func Get() *wasmtime.Engine {
	once.Do(func() {
		instance = newWasmtimeEngine(Default())
	})
	return instance
}

// Current returns the configuration the singleton runs with. The flags are
// fixed at Default, so Current is safe to call before or after the first
// Get without forcing construction.
func Current() Config {
	return Default()
}

func newWasmtimeEngine(cfg Config) *wasmtime.Engine {
	c := wasmtime.NewConfig()
	c.SetWasmThreads(cfg.Threads)
	c.SetWasmSIMD(cfg.SIMD)
	c.SetWasmReferenceTypes(cfg.ReferenceTypes)
	// wasmtime-go does not surface wasmtime's static-memory guard knob; the
	// engine's default guard region already covers StaticMemoryGuardSize,
	// which Config records so callers can observe the configured bound.
	return wasmtime.NewEngineWithConfig(c)
}

// reset is test-only: it clears the singleton so a fresh Get rebuilds it.
// Production code must never call this.
func reset() {
	once = sync.Once{}
	instance = nil
}
