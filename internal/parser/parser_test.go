package parser_test

import (
	"testing"

	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidProgram(t *testing.T) {
	var diags diag.List
	tree, err := parser.Parse([]byte("let x = 1 + 2\nreturn x"), &diags)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.False(t, diags.HasErr())
}

func TestParseUnexpectedTokenFails(t *testing.T) {
	var diags diag.List
	_, err := parser.Parse([]byte("let x = )"), &diags)
	require.Error(t, err)
	assert.True(t, diags.HasErr())
}

func TestParseTokenizeErrorIsDistinguishable(t *testing.T) {
	var diags diag.List
	_, err := parser.Parse([]byte("let x = 09"), &diags)
	require.Error(t, err)
	var lexErr *parser.LexError
	assert.ErrorAs(t, err, &lexErr)
}

func TestParseAndOrMixRequiresParens(t *testing.T) {
	// spec.md §9: "and"/"or" chains are not mixed in one precedence level
	// without explicit grouping.
	var diags diag.List
	_, err := parser.Parse([]byte("return true and false or true"), &diags)
	require.Error(t, err)
}

func TestParseIfElse(t *testing.T) {
	var diags diag.List
	tree, err := parser.Parse([]byte("return if (true) 1 else 2"), &diags)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.False(t, diags.HasErr())
}

func TestParseMatchExpression(t *testing.T) {
	var diags diag.List
	src := `let x = 1
return match (x) {
	1: "one"
	_: "other"
}`
	tree, err := parser.Parse([]byte(src), &diags)
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.False(t, diags.HasErr())
}
