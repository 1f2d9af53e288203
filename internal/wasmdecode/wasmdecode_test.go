package wasmdecode

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/stretchr/testify/require"

	"github.com/wasmproc/wasmproc/api"
)

// emptyModule is the smallest legal Wasm binary: just the magic and version
// header, no sections.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestDecodeEmptyModule(t *testing.T) {
	engine := wasmtime.NewEngine()
	d, err := Decode(engine, emptyModule)
	require.NoError(t, err)
	require.Empty(t, d.Imports)
	require.Empty(t, d.Exports)
	require.False(t, d.HasMemory)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	engine := wasmtime.NewEngine()
	_, err := Decode(engine, []byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}

func TestValTypesMapsAllFourKinds(t *testing.T) {
	in := []*wasmtime.ValType{
		wasmtime.NewValType(wasmtime.KindI32),
		wasmtime.NewValType(wasmtime.KindI64),
		wasmtime.NewValType(wasmtime.KindF32),
		wasmtime.NewValType(wasmtime.KindF64),
	}
	out, err := valTypes(in)
	require.NoError(t, err)
	require.Equal(t, []api.ValueType{
		api.ValueTypeI32, api.ValueTypeI64, api.ValueTypeF32, api.ValueTypeF64,
	}, out)
}

func TestValTypesRejectsUnsupportedKind(t *testing.T) {
	in := []*wasmtime.ValType{wasmtime.NewValType(wasmtime.KindFuncref)}
	_, err := valTypes(in)
	require.Error(t, err)
}
