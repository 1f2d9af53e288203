package channel

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmproc/wasmproc/procenv"
	"github.com/wasmproc/wasmproc/sched"
)

func testEnv() *procenv.Env {
	e := procenv.New(nil, procenv.NewMemoryHandle(func() []byte { return nil }), sched.NewToken())
	return &e
}

func TestCreateSendReceiveRoundTrip(t *testing.T) {
	c := New()
	fns := c.funcs()

	var createFn, sendFn, receiveFn func(interface{}, *procenv.Env, []interface{}) ([]interface{}, error)
	for _, fn := range fns {
		switch fn.Name {
		case "create":
			createFn = fn.Invoke
		case "send":
			sendFn = fn.Invoke
		case "receive":
			receiveFn = fn.Invoke
		}
	}
	require.NotNil(t, createFn)
	require.NotNil(t, sendFn)
	require.NotNil(t, receiveFn)

	env := testEnv()

	out, err := createFn(c, env, []interface{}{int32(4)})
	require.NoError(t, err)
	handle := out[0].(int32)

	_, err = sendFn(c, env, []interface{}{handle, []byte("hi")})
	require.NoError(t, err)

	buf := make([]byte, 8)
	out, err = receiveFn(c, env, []interface{}{handle, buf})
	require.NoError(t, err)
	n := out[0].(int32)
	require.EqualValues(t, 2, n)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestSendToUnknownHandleReturnsError(t *testing.T) {
	c := New()
	var sendFn func(interface{}, *procenv.Env, []interface{}) ([]interface{}, error)
	for _, fn := range c.funcs() {
		if fn.Name == "send" {
			sendFn = fn.Invoke
		}
	}

	out, err := sendFn(c, testEnv(), []interface{}{int32(999), []byte("x")})
	require.NoError(t, err)
	require.EqualValues(t, -1, out[0].(int32))
}
