package wasi

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmproc/wasmproc/procenv"
	"github.com/wasmproc/wasmproc/sched"
)

var errBoring = errors.New("boring")

func testEnv() *procenv.Env {
	e := procenv.New(nil, procenv.NewMemoryHandle(func() []byte { return nil }), sched.NewToken())
	return &e
}

func collect(c *Capability) map[string]func(interface{}, *procenv.Env, []interface{}) ([]interface{}, error) {
	set := make(map[string]func(interface{}, *procenv.Env, []interface{}) ([]interface{}, error))
	for _, fn := range c.funcs() {
		set[fn.Name] = fn.Invoke
	}
	return set
}

func TestFdWriteToStdoutSucceeds(t *testing.T) {
	var out bytes.Buffer
	c := New(&out, &bytes.Buffer{})
	fns := collect(c)

	res, err := fns["fd_write"](c, testEnv(), []interface{}{int32(1), []byte("hello")})
	require.NoError(t, err)
	require.EqualValues(t, 5, res[0].(int32))
	require.Equal(t, "hello", out.String())
}

func TestFdWriteToUnknownFdReturnsBadf(t *testing.T) {
	c := New(&bytes.Buffer{}, &bytes.Buffer{})
	fns := collect(c)

	res, err := fns["fd_write"](c, testEnv(), []interface{}{int32(99), []byte("x")})
	require.NoError(t, err)
	require.EqualValues(t, errnoBadf, res[0].(int32))
}

func TestProcExitReturnsErrExitAndRecordsCode(t *testing.T) {
	c := New(&bytes.Buffer{}, &bytes.Buffer{})
	fns := collect(c)

	_, err := fns["proc_exit"](c, testEnv(), []interface{}{int32(3)})
	require.Error(t, err)

	code, ok := IsExit(err)
	require.True(t, ok)
	require.EqualValues(t, 3, code)

	exited, exitCode := c.Exited()
	require.True(t, exited)
	require.EqualValues(t, 3, exitCode)
}

func TestIsExitFalseForOtherErrors(t *testing.T) {
	_, ok := IsExit(errBoring)
	require.False(t, ok)
}
