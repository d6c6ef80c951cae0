package bytecode_test

import (
	"bytes"
	"testing"

	"github.com/dasimmet/bog/internal/bytecode"
	"github.com/dasimmet/bog/internal/compiler"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/parser"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func compileModule(t *testing.T, src string) *bytecode.Module {
	t.Helper()
	var diags diag.List
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	module, err := compiler.Compile(tree, "t.bog", &diags)
	require.NoError(t, err)
	return module
}

func TestBogcRoundTrip(t *testing.T) {
	m := compileModule(t, "let x = 1 + 2\nreturn x")

	var buf bytes.Buffer
	hash, err := bytecode.Write(&buf, m, &bytecode.Meta{SourcePath: "t.bog"})
	require.NoError(t, err)
	require.NotZero(t, hash)

	decoded, meta, err := bytecode.Read(&buf, "t.bog")
	require.NoError(t, err)
	require.NotNil(t, meta)

	if diff := cmp.Diff(m.Code, decoded.Code); diff != "" {
		t.Errorf("code mismatch after round-trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(m.Strings, decoded.Strings); diff != "" {
		t.Errorf("strings mismatch after round-trip (-want +got):\n%s", diff)
	}
	require.Equal(t, m.Entry, decoded.Entry)
	require.Equal(t, "t.bog", meta.SourcePath)
}

func TestBogcRejectsCorruptHash(t *testing.T) {
	m := compileModule(t, "return 1")

	var buf bytes.Buffer
	_, err := bytecode.Write(&buf, m, nil)
	require.NoError(t, err)

	corrupt := buf.Bytes()
	corrupt[len(corrupt)-1] ^= 0xFF // flip every bit of the last code byte (no strings, no meta)

	_, _, err = bytecode.Read(bytes.NewReader(corrupt), "t.bog")
	require.Error(t, err)
}
