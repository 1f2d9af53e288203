// Package sched models the cooperative yielder: an opaque token passed to
// host functions, understood by a scheduler that lives outside this
// runtime. Host functions that would otherwise block (channel receive, TCP
// read) call Token.Yield to suspend the logical process without blocking
// the underlying OS thread.
//
// This package supplies only a minimal default; any real cooperative
// scheduler can satisfy Token instead.
package sched

import (
	"context"
	"runtime"
)

// Token is the opaque yielder pointer. Host functions hold a Token (via
// procenv.Env) and call Yield at designated suspension points; they never
// interpret the token's internals.
type Token interface {
	// Yield cooperatively suspends the calling logical process, returning
	// when it may resume or when ctx is done.
	Yield(ctx context.Context) error
}

// cooperative is the minimal default Token: it does not implement real
// green-thread parking, only the cancellation-aware yield point contract
// capabilities are written against.
type cooperative struct{}

// NewToken returns the default Token, suitable until a real scheduler
// capability takes over MemoryChoice/yielder wiring.
func NewToken() Token { return cooperative{} }

func (cooperative) Yield(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		runtime.Gosched()
		return nil
	}
}
