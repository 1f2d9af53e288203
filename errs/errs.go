// Package errs defines the closed set of error kinds this runtime can
// surface to callers, per the error handling design: compile, resource
// exhaustion, instantiation, (de)serialize, trap and unsupported-path
// failures are each a distinct sentinel, wrapped with context via %w so
// callers can still errors.Is/errors.As against the kind.
package errs

import "errors"

var (
	// ErrCompile marks a validation or back-end failure during module compile.
	ErrCompile = errors.New("compile error")

	// ErrResourceExhausted marks a code-memory allocation failure.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInstantiation marks import resolution, signature mismatch, memory
	// allocation failure, or a module handed to the wrong engine.
	ErrInstantiation = errors.New("instantiation error")

	// ErrSerialize marks a failure producing a serialized module blob.
	ErrSerialize = errors.New("serialize error")

	// ErrDeserialize marks a corrupt or version-mismatched serialized blob.
	ErrDeserialize = errors.New("deserialize error")

	// ErrTrap marks a non-recoverable, per-call host function failure. It
	// unwinds the current Wasm call only; the instance remains usable for
	// new calls at the caller's discretion.
	ErrTrap = errors.New("trap")

	// ErrUnsupported marks a path not yet implemented, e.g.
	// MemoryChoice.Existing.
	ErrUnsupported = errors.New("unsupported")
)

// Compile returns an ErrCompile carrying reason.
func Compile(reason string) error { return &wrapped{ErrCompile, reason} }

// ResourceExhausted returns an ErrResourceExhausted carrying reason.
func ResourceExhausted(reason string) error { return &wrapped{ErrResourceExhausted, reason} }

// Instantiation returns an ErrInstantiation carrying reason.
func Instantiation(reason string) error { return &wrapped{ErrInstantiation, reason} }

// Serialize returns an ErrSerialize carrying reason.
func Serialize(reason string) error { return &wrapped{ErrSerialize, reason} }

// Deserialize returns an ErrDeserialize carrying reason.
func Deserialize(reason string) error { return &wrapped{ErrDeserialize, reason} }

// Trap returns an ErrTrap carrying reason.
func Trap(reason string) error { return &wrapped{ErrTrap, reason} }

// Unsupported returns an ErrUnsupported carrying reason.
func Unsupported(reason string) error { return &wrapped{ErrUnsupported, reason} }

type wrapped struct {
	kind   error
	reason string
}

func (w *wrapped) Error() string { return w.kind.Error() + ": " + w.reason }

func (w *wrapped) Unwrap() error { return w.kind }
