package procenv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmproc/wasmproc/module"
	"github.com/wasmproc/wasmproc/sched"
)

func TestCloneSharesMemoryNotCopiesIt(t *testing.T) {
	backing := []byte{1, 2, 3, 4}
	h := NewMemoryHandle(func() []byte { return backing })
	env := New(&module.Descriptor{Name: "m"}, h, sched.NewToken())

	clone := env.Clone()
	clone.Memory.Bytes()[0] = 0xAB
	require.Equal(t, byte(0xAB), env.Memory.Bytes()[0], "clone and original must observe the same backing memory")
}

func TestCloneBumpsRefcount(t *testing.T) {
	h := NewMemoryHandle(func() []byte { return nil })
	env := New(&module.Descriptor{}, h, sched.NewToken())

	clone1 := env.Clone()
	clone2 := env.Clone()

	require.EqualValues(t, 1, clone2.Memory.Release())
	require.EqualValues(t, 2, clone1.Memory.Release())
	require.EqualValues(t, 1, h.Release())
}

func TestMemoryHandleReleaseNeverGoesBelowWhatWasAcquired(t *testing.T) {
	h := NewMemoryHandle(func() []byte { return nil })
	require.EqualValues(t, 0, h.Release())
}
