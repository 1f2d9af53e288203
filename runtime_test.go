package wasmproc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memImportModule imports its linear memory as (lunatic, memory) with
// limits (min=16, max=32) and declares nothing else.
var memImportModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x02, 0x14, 0x01, 0x07, 'l', 'u', 'n', 'a', 't', 'i', 'c',
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x01, 0x10, 0x20,
}

// spawnModule imports lunatic.spawn and exports run, which calls it once
// and returns the new process id.
var spawnModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
	0x02, 0x11, 0x01, 0x07, 'l', 'u', 'n', 'a', 't', 'i', 'c',
	0x05, 's', 'p', 'a', 'w', 'n', 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 'r', 'u', 'n', 0x00, 0x01,
	0x0a, 0x06, 0x01, 0x04, 0x00, 0x10, 0x00, 0x0b,
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	r, err := NewRuntime(WithLogger(NoopLogger()))
	require.NoError(t, err)
	return r
}

func TestSpawnGivesEachInstanceItsOwnMemory(t *testing.T) {
	r := newTestRuntime(t)
	cm, err := r.Compile(memImportModule)
	require.NoError(t, err)
	require.EqualValues(t, 16, cm.Memory.Min)
	require.True(t, cm.Memory.HasMax)
	require.EqualValues(t, 32, cm.Memory.Max)

	p1, err := r.Spawn(cm)
	require.NoError(t, err)
	mem1 := p1.Env.Memory.Bytes()
	require.Len(t, mem1, 16*65536)
	require.EqualValues(t, 0, mem1[0])
	mem1[0] = 0xAB
	require.EqualValues(t, 0xAB, p1.Env.Memory.Bytes()[0])

	p2, err := r.Spawn(cm)
	require.NoError(t, err)
	require.EqualValues(t, 0, p2.Env.Memory.Bytes()[0], "second instance must start from zeroed memory")
	require.EqualValues(t, 0xAB, p1.Env.Memory.Bytes()[0])
}

func TestSpawnManyConcurrently(t *testing.T) {
	r := newTestRuntime(t)
	cm, err := r.Compile(memImportModule)
	require.NoError(t, err)

	const n = 64
	var wg sync.WaitGroup
	spawnErrs := make([]error, n)
	procs := make([]*Process, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.Spawn(cm)
			procs[i], spawnErrs[i] = p, err
			if err == nil {
				p.Env.Memory.Bytes()[0] = byte(i)
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, spawnErrs[i])
		require.False(t, seen[procs[i].PID], "process ids must be unique")
		seen[procs[i].PID] = true
		require.EqualValues(t, byte(i), procs[i].Env.Memory.Bytes()[0])
	}
	require.Equal(t, n, r.ProcessCount())
}

func TestSerializeDeserializeSpawnRoundTrip(t *testing.T) {
	r := newTestRuntime(t)
	cm, err := r.Compile(memImportModule)
	require.NoError(t, err)

	blob, err := r.Serialize(cm)
	require.NoError(t, err)

	restored, err := r.Deserialize(blob)
	require.NoError(t, err)
	require.Equal(t, cm.Memory, restored.Memory)

	_, err = r.Spawn(restored)
	require.NoError(t, err)
}

func TestProcessLookup(t *testing.T) {
	r := newTestRuntime(t)
	cm, err := r.Compile(memImportModule)
	require.NoError(t, err)

	p, err := r.Spawn(cm)
	require.NoError(t, err)

	got, ok := r.Process(p.PID)
	require.True(t, ok)
	require.Same(t, p, got)

	_, ok = r.Process(p.PID + 1000)
	require.False(t, ok)
}

func TestGuestSpawnsFurtherProcess(t *testing.T) {
	r := newTestRuntime(t)
	cm, err := r.Compile(spawnModule)
	require.NoError(t, err)

	parent, err := r.Spawn(cm)
	require.NoError(t, err)
	require.Equal(t, 1, r.ProcessCount())

	run := parent.Func("run")
	require.NotNil(t, run)

	result, err := run.Call(parent.Store)
	require.NoError(t, err)

	childPID := uint32(result.(int32))
	require.Equal(t, 2, r.ProcessCount())
	child, ok := r.Process(childPID)
	require.True(t, ok)
	require.NotSame(t, parent, child)
}
