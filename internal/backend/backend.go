// Package backend is the compiler back-end seam: the JIT engine asks it
// for machine code to copy into codemem. Instruction selection for general
// Wasm function bodies is not done here; guest execution is carried out by
// the wasmtime instance the JIT engine wraps (see package jit). What this
// package emits is the small per-signature trampoline stub, assembled via
// golang-asm.
package backend

import (
	"fmt"
	"runtime"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"

	"github.com/wasmproc/wasmproc/internal/sigreg"
)

// Compiler emits machine code. One Compiler instance is owned by one
// jit.Engine and reused across every compile call on it.
type Compiler interface {
	// CompileTrampoline returns the machine code for a trampoline bridging
	// the host ABI and a Wasm function of the given signature.
	CompileTrampoline(sig sigreg.Signature) ([]byte, error)
}

// GolangAsm is the default Compiler, built on
// github.com/twitchyliquid64/golang-asm.
type GolangAsm struct {
	arch string
}

// NewGolangAsm returns a Compiler targeting the running process's
// architecture. Returns an error on architectures golang-asm doesn't
// support.
func NewGolangAsm() (*GolangAsm, error) {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return &GolangAsm{arch: runtime.GOARCH}, nil
	default:
		return nil, fmt.Errorf("backend: unsupported GOARCH %q", runtime.GOARCH)
	}
}

// CompileTrampoline implements Compiler.
//
// The trampoline emitted here is intentionally minimal: a single
// leaf-function epilogue (bare return). It gives every distinct signature
// id a real, independently-addressable, executable memory location;
// argument marshaling belongs to the engine that actually executes guest
// code.
func (g *GolangAsm) CompileTrampoline(_ sigreg.Signature) ([]byte, error) {
	b, err := goasm.NewBuilder(g.arch, 4)
	if err != nil {
		return nil, fmt.Errorf("backend: new builder: %w", err)
	}

	p := b.NewProg()
	p.As = obj.ARET
	b.AddInstruction(p)

	return b.Assemble(), nil
}
