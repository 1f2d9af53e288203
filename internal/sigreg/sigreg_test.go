package sigreg

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmproc/wasmproc/api"
)

func TestRegisterIdempotent(t *testing.T) {
	r := New()
	sig := Signature{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}

	id1 := r.Register(sig)
	id2 := r.Register(sig)
	require.Equal(t, id1, id2)
	require.Equal(t, 1, r.Len())
}

func TestRegisterDistinctSignaturesGetDistinctIDs(t *testing.T) {
	r := New()
	a := r.Register(Signature{Params: []api.ValueType{api.ValueTypeI32}})
	b := r.Register(Signature{Params: []api.ValueType{api.ValueTypeI64}})
	require.NotEqual(t, a, b)
}

func TestLookupRoundTrip(t *testing.T) {
	r := New()
	sig := Signature{Results: []api.ValueType{api.ValueTypeF64}}
	id := r.Register(sig)

	got, ok := r.Lookup(id)
	require.True(t, ok)
	require.Equal(t, sig, got)
}

func TestLookupUnknownIsAbsentNotError(t *testing.T) {
	r := New()
	_, ok := r.Lookup(ID(999))
	require.False(t, ok)
}

func TestConcurrentRegisterLookup(t *testing.T) {
	r := New()
	sig := Signature{Params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}}

	var wg sync.WaitGroup
	ids := make([]ID, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = r.Register(sig)
		}(i)
	}
	wg.Wait()

	first := ids[0]
	for _, id := range ids {
		require.Equal(t, first, id)
	}
	require.Equal(t, 1, r.Len())
}
