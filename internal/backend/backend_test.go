package backend

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmproc/wasmproc/api"
	"github.com/wasmproc/wasmproc/internal/sigreg"
)

func TestNewGolangAsmSupportedArch(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skipf("unsupported test host arch %q", runtime.GOARCH)
	}
	c, err := NewGolangAsm()
	require.NoError(t, err)
	require.NotNil(t, c)
}

func TestCompileTrampolineReturnsMachineCode(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skipf("unsupported test host arch %q", runtime.GOARCH)
	}
	c, err := NewGolangAsm()
	require.NoError(t, err)

	sig := sigreg.Signature{Params: []api.ValueType{api.ValueTypeI32}, Results: []api.ValueType{api.ValueTypeI32}}
	code, err := c.CompileTrampoline(sig)
	require.NoError(t, err)
	require.NotEmpty(t, code)
}

func TestCompileTrampolineIgnoresSignatureShape(t *testing.T) {
	if runtime.GOARCH != "amd64" && runtime.GOARCH != "arm64" {
		t.Skipf("unsupported test host arch %q", runtime.GOARCH)
	}
	c, err := NewGolangAsm()
	require.NoError(t, err)

	a, err := c.CompileTrampoline(sigreg.Signature{})
	require.NoError(t, err)
	b, err := c.CompileTrampoline(sigreg.Signature{Params: []api.ValueType{api.ValueTypeF64, api.ValueTypeF64}})
	require.NoError(t, err)
	require.Equal(t, a, b)
}
