package bog_test

import (
	"bytes"
	"testing"

	"github.com/dasimmet/bog"
	"github.com/dasimmet/bog/internal/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAndRun(t *testing.T) {
	mod, err := bog.Compile("t.bog", []byte("let x = 1 + 2\nreturn x"))
	require.NoError(t, err)

	v := bog.NewVM(bog.Options{})
	result, err := v.Run(mod)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.IntVal())
}

func TestCompileParseErrorRendersDiagnostics(t *testing.T) {
	_, err := bog.Compile("t.bog", []byte("let x = )"))
	require.Error(t, err)

	f, ok := err.(*bog.Failure)
	require.True(t, ok)
	assert.Equal(t, bog.ParseError, f.Kind)

	var buf bytes.Buffer
	require.NoError(t, bog.Render(&buf, f, []byte("let x = )")))
	assert.Contains(t, buf.String(), "t.bog")
}

func TestCompileTokenizeErrorKind(t *testing.T) {
	_, err := bog.Compile("t.bog", []byte("let x = 09"))
	require.Error(t, err)
	f, ok := err.(*bog.Failure)
	require.True(t, ok)
	assert.Equal(t, bog.TokenizeError, f.Kind)
}

func TestRunRuntimeErrorKind(t *testing.T) {
	mod, err := bog.Compile("t.bog", []byte("return 1 << -1"))
	require.NoError(t, err)

	v := bog.NewVM(bog.Options{})
	_, err = v.Run(mod)
	require.Error(t, err)
	f, ok := err.(*bog.Failure)
	require.True(t, ok)
	assert.Equal(t, bog.RuntimeError, f.Kind)
}

func TestRegisterNativeAndCall(t *testing.T) {
	mod, err := bog.Compile("t.bog", []byte(`fn double(x) x * 2
return {"fn": double}`))
	require.NoError(t, err)

	v := bog.NewVM(bog.Options{})
	var called bool
	v.RegisterNative("noop", 0, false, func(i value.Interp, args []value.Value) (value.Value, error) {
		called = true
		return value.None, nil
	})

	result, err := v.Run(mod)
	require.NoError(t, err)

	got, err := v.CallFunction("t.bog", result, value.Str("fn"), []value.Value{value.Int(21)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.IntVal())
	assert.False(t, called) // native registered but never invoked from script in this test
}

func TestLoadOptionsRoundTrip(t *testing.T) {
	opts, err := bog.LoadOptions([]byte(`{"import_files": true, "repl": true}`))
	require.NoError(t, err)
	assert.True(t, opts.ImportFiles)
	assert.True(t, opts.Repl)
}

func TestEncodeDecodeModule(t *testing.T) {
	mod, err := bog.Compile("t.bog", []byte("return 42"))
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = mod.Encode(&buf)
	require.NoError(t, err)

	decoded, err := bog.Decode(&buf, "t.bog")
	require.NoError(t, err)

	v := bog.NewVM(bog.Options{})
	result, err := v.Run(decoded)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.IntVal())
}
