package module_test

import (
	"testing"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/stretchr/testify/require"

	"github.com/wasmproc/wasmproc/api"
	"github.com/wasmproc/wasmproc/engine"
	"github.com/wasmproc/wasmproc/internal/sigreg"
	"github.com/wasmproc/wasmproc/internal/wasmdecode"
	"github.com/wasmproc/wasmproc/jit"
	"github.com/wasmproc/wasmproc/module"
)

var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestImportExportLookup(t *testing.T) {
	sigI32 := sigreg.Signature{Results: []api.ValueType{api.ValueTypeI32}}
	d := &module.Descriptor{
		Imports: []wasmdecode.FuncImport{{Module: "env", Name: "log", Sig: sigI32}},
		Exports: []wasmdecode.FuncExport{{Name: "run", Sig: sigI32}},
	}

	got, ok := d.Import("env", "log")
	require.True(t, ok)
	require.Equal(t, sigI32, got)

	_, ok = d.Import("env", "missing")
	require.False(t, ok)

	got, ok = d.Export("run")
	require.True(t, ok)
	require.Equal(t, sigI32, got)

	_, ok = d.Export("missing")
	require.False(t, ok)
}

func TestInstantiateTwiceYieldsIndependentInstances(t *testing.T) {
	je, err := jit.New()
	require.NoError(t, err)
	cm, err := je.Compile(emptyModule)
	require.NoError(t, err)

	wt := engine.Get()

	st1 := wasmtime.NewStore(wt)
	i1, err := cm.Instantiate(st1, wasmtime.NewLinker(wt))
	require.NoError(t, err)

	st2 := wasmtime.NewStore(wt)
	i2, err := cm.Instantiate(st2, wasmtime.NewLinker(wt))
	require.NoError(t, err)

	require.NotSame(t, i1, i2)
}

func TestInstantiateSurfacesResolutionFailure(t *testing.T) {
	je, err := jit.New()
	require.NoError(t, err)

	// Imports lunatic.spawn; an empty linker cannot resolve it.
	needsImport := []byte{
		0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
		0x01, 0x05, 0x01, 0x60, 0x00, 0x01, 0x7f,
		0x02, 0x11, 0x01, 0x07, 'l', 'u', 'n', 'a', 't', 'i', 'c',
		0x05, 's', 'p', 'a', 'w', 'n', 0x00, 0x00,
	}
	cm, err := je.Compile(needsImport)
	require.NoError(t, err)

	wt := engine.Get()
	_, err = cm.Instantiate(wasmtime.NewStore(wt), wasmtime.NewLinker(wt))
	require.Error(t, err)
}
