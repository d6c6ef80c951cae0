package compiler_test

import (
	"testing"

	"github.com/dasimmet/bog/internal/compiler"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseAndCompile(t *testing.T, src string) (*diag.List, error) {
	t.Helper()
	var diags diag.List
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	_, err = compiler.Compile(tree, "t.bog", &diags)
	return &diags, err
}

func TestCompileValidProgram(t *testing.T) {
	diags, err := parseAndCompile(t, "let x = 1\nlet y = x + 2\nreturn y")
	require.NoError(t, err)
	assert.False(t, diags.HasErr())
}

func TestCompileUndefinedVariable(t *testing.T) {
	diags, err := parseAndCompile(t, "return undefined_name")
	require.Error(t, err)
	require.True(t, diags.HasErr())
	assert.Contains(t, diags.Entries[0].Message, "undefined variable")
}

func TestCompileFunctionClosure(t *testing.T) {
	diags, err := parseAndCompile(t, `let n = 10
fn addN(x) x + n
return addN(5)`)
	require.NoError(t, err)
	assert.False(t, diags.HasErr())
}

func TestCompileUnknownTypeName(t *testing.T) {
	diags, err := parseAndCompile(t, "return 1 is NotARealType")
	require.Error(t, err)
	assert.Contains(t, diags.Entries[0].Message, "unknown type name")
}
