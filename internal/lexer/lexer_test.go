package lexer_test

import (
	"testing"

	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/lexer"
	"github.com/dasimmet/bog/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, src string) ([]token.Token, diag.List) {
	t.Helper()
	var diags diag.List
	lx := lexer.New([]byte(src), &diags)
	var toks []token.Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err, "unexpected tokenize error for %q", src)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, diags
}

func TestBasedAndScientificNumbers(t *testing.T) {
	toks, _ := tokenize(t, "0xdeadP2")
	require.Len(t, toks, 2)
	assert.Equal(t, token.Number, toks[0].Kind)
	assert.Equal(t, token.EOF, toks[1].Kind)
}

func TestLeadingZeroIsTokenizeError(t *testing.T) {
	var diags diag.List
	lx := lexer.New([]byte("09"), &diags)
	_, err := lx.Next()
	require.Error(t, err)
}

func TestPunctuationAndOperators(t *testing.T) {
	toks, _ := tokenize(t, "a += 1 << 2 ... 3")
	kinds := make([]token.Kind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	assert.Contains(t, kinds, token.PlusEq)
	assert.Contains(t, kinds, token.Shl)
	assert.Contains(t, kinds, token.DotDotDot)
}

func TestKeywords(t *testing.T) {
	toks, _ := tokenize(t, "let fn if else while for match catch try error import is as in not and or")
	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.KwLet, token.KwFn, token.KwIf, token.KwElse, token.KwWhile,
		token.KwFor, token.KwMatch, token.KwCatch, token.KwTry, token.KwError,
		token.KwImport, token.KwIs, token.KwAs, token.KwIn, token.KwNot,
		token.KwAnd, token.KwOr, token.EOF,
	}, kinds)
}

func TestStringEscapes(t *testing.T) {
	toks, diags := tokenize(t, `"a\nb\"c"`)
	require.False(t, diags.HasErr())
	require.Len(t, toks, 2)
	assert.Equal(t, token.String, toks[0].Kind)
	assert.Equal(t, "a\nb\"c", toks[0].Text)
}

// TestTokenizerRoundTrip checks spec.md §8's tokenizer round-trip property
// for a source with no comments: concatenating token source-slice views
// reconstructs the non-whitespace, non-comment text.
func TestTokenizerRoundTrip(t *testing.T) {
	src := "let x=1+2\nreturn x"
	toks, diags := tokenize(t, src)
	require.False(t, diags.HasErr())

	var rebuilt string
	for _, tok := range toks {
		if tok.Kind == token.EOF || tok.Kind == token.NL {
			continue
		}
		rebuilt += tok.Text
	}
	assert.Equal(t, "letx=1+2returnx", rebuilt)
}
