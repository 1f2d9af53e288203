package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrappedErrorsMatchTheirKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"compile", Compile("bad opcode"), ErrCompile},
		{"resource-exhausted", ResourceExhausted("mmap failed"), ErrResourceExhausted},
		{"instantiation", Instantiation("unresolved import"), ErrInstantiation},
		{"serialize", Serialize("write failed"), ErrSerialize},
		{"deserialize", Deserialize("bad magic"), ErrDeserialize},
		{"trap", Trap("conversion failed"), ErrTrap},
		{"unsupported", Unsupported("existing memory"), ErrUnsupported},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, tc.err, tc.kind)
			require.Contains(t, tc.err.Error(), tc.kind.Error())
		})
	}
}

func TestKindsAreDistinct(t *testing.T) {
	require.NotErrorIs(t, Compile("x"), ErrTrap)
	require.NotErrorIs(t, Trap("x"), ErrCompile)
}

func TestFmtWrappingPreservesKind(t *testing.T) {
	err := fmt.Errorf("%w: module was not compiled by this engine", ErrInstantiation)
	require.True(t, errors.Is(err, ErrInstantiation))
}
