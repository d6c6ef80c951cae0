// Package parser implements Bog's recursive-descent parser: a strict
// precedence climb over the token stream that allocates into an
// ast.Builder's arena.
//
// Grounded on the teacher's runtime/parser/parser.go structure (tokenize
// first via the lexer, then walk tokens with a position cursor, recording
// diagnostics rather than recovering) generalized from its event-stream
// replay model to conventional recursive-descent functions returning
// ast.Ref, one per precedence level named in spec.md §4.2.
package parser

import (
	"fmt"

	"github.com/dasimmet/bog/internal/ast"
	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/lexer"
	"github.com/dasimmet/bog/internal/token"
)

// bailout unwinds the recursive descent to the top-level Parse call on the
// first diagnostic, matching spec.md §4.2's "no recovery" error policy.
type bailout struct{ err error }

type parser struct {
	toks   []token.Token
	pos    int
	skipNL int

	diags *diag.List
	b     *ast.Builder
}

// Parse tokenizes and parses src, returning the resulting tree. On failure
// it returns a non-nil error and diags will contain at least one Err entry;
// Entries accumulated before the failure remain in diags for rendering.
func Parse(src []byte, diags *diag.List) (tree *ast.Tree, err error) {
	toks, lexErr := tokenizeAll(src, diags)
	if lexErr != nil {
		return nil, lexErr
	}

	p := &parser{toks: toks, diags: diags, b: ast.NewBuilder()}

	defer func() {
		if r := recover(); r != nil {
			bo, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			err = bo.err
		}
	}()

	root := p.parseProgram()
	return p.b.Build(root), nil
}

// LexError distinguishes a tokenizer failure from a parse-stage failure, so
// a host embedding the compiler can surface spec.md §6's separate
// TokenizeError and ParseError kinds without string-matching error text.
type LexError struct{ Err error }

func (e *LexError) Error() string { return fmt.Sprintf("tokenize error: %v", e.Err) }
func (e *LexError) Unwrap() error { return e.Err }

func tokenizeAll(src []byte, diags *diag.List) ([]token.Token, error) {
	lx := lexer.New(src, diags)
	var toks []token.Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, &LexError{Err: err}
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, nil
}

// --- token cursor -----------------------------------------------------

func (p *parser) skipNLs() {
	if p.skipNL > 0 {
		for p.toks[p.pos].Kind == token.NL {
			p.pos++
		}
	}
}

func (p *parser) cur() token.Token {
	p.skipNLs()
	return p.toks[p.pos]
}

func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) advance() token.Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) pushSkipNL() { p.skipNL++ }
func (p *parser) popSkipNL()  { p.skipNL-- }

func (p *parser) fail(offset int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.diags.Err(offset, "%s", msg)
	panic(bailout{err: fmt.Errorf("parse error: %s", msg)})
}

func (p *parser) expect(k token.Kind) token.Token {
	if !p.at(k) {
		p.fail(p.cur().Offset, "expected %s, found %s", k, p.cur().Kind)
	}
	return p.advance()
}

// expectIdentText expects an Ident token and returns its text.
func (p *parser) expectIdentText() (string, int) {
	t := p.expect(token.Ident)
	return t.Text, t.Offset
}

func (p *parser) push(n ast.Node) ast.Ref { return p.b.Push(n) }

// --- program ------------------------------------------------------------

func (p *parser) parseProgram() ast.Ref {
	var kids []ast.Ref
	off := p.cur().Offset
	for p.at(token.NL) {
		p.advance()
	}
	for !p.at(token.EOF) {
		kids = append(kids, p.parseExprTop())
		if p.at(token.NL) {
			for p.at(token.NL) {
				p.advance()
			}
		} else if !p.at(token.EOF) {
			p.fail(p.cur().Offset, "expected newline after statement, found %s", p.cur().Kind)
		}
	}
	return p.push(ast.Node{Kind: ast.KindBlock, Off: int32(off), Kids: kids})
}

// --- precedence level 1: fn literal / jump / let, then assignment -------

func (p *parser) parseExprTop() ast.Ref {
	switch p.cur().Kind {
	case token.KwFn:
		return p.parseFnLiteral()
	case token.KwLet:
		return p.parseLet()
	case token.KwReturn, token.KwBreak, token.KwContinue:
		return p.parseJump()
	default:
		return p.parseAssign()
	}
}

func (p *parser) parseLet() ast.Ref {
	off := p.advance().Offset // 'let'
	pat := p.parsePattern()
	p.expect(token.Eq)
	body := p.parseExprTop()
	return p.push(ast.Node{Kind: ast.KindLet, Off: int32(off), A: pat, B: body})
}

func (p *parser) parseFnLiteral() ast.Ref {
	off := p.advance().Offset // 'fn'
	name := ""
	if p.at(token.Ident) && !p.cur().IsDiscard() {
		name = p.advance().Text
	}
	p.expect(token.LParen)
	p.pushSkipNL()
	var params []ast.Ref
	for !p.at(token.RParen) {
		params = append(params, p.parsePattern())
		if p.at(token.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.popSkipNL()
	p.expect(token.RParen)
	body := p.parseExprTop()
	fn := p.push(ast.Node{Kind: ast.KindFn, Off: int32(off), A: body, Kids: params})
	if name == "" {
		return fn
	}
	ident := p.push(ast.Node{Kind: ast.KindUnwrapIdent, Off: int32(off), Str: name})
	return p.push(ast.Node{Kind: ast.KindLet, Off: int32(off), A: ident, B: fn})
}

func (p *parser) jumpHasValue() bool {
	switch p.cur().Kind {
	case token.NL, token.EOF, token.RParen, token.RBrace, token.RBracket, token.Comma, token.Colon:
		return false
	default:
		return true
	}
}

func (p *parser) parseJump() ast.Ref {
	tok := p.advance()
	switch tok.Kind {
	case token.KwContinue:
		return p.push(ast.Node{Kind: ast.KindContinue, Off: int32(tok.Offset)})
	case token.KwBreak:
		val := ast.NoRef
		if p.jumpHasValue() {
			val = p.parseExprTop()
		}
		return p.push(ast.Node{Kind: ast.KindBreak, Off: int32(tok.Offset), A: val})
	default: // KwReturn
		val := ast.NoRef
		if p.jumpHasValue() {
			val = p.parseExprTop()
		}
		return p.push(ast.Node{Kind: ast.KindReturn, Off: int32(tok.Offset), A: val})
	}
}

// --- precedence level 2: assignment -------------------------------------

var compoundAssignOps = map[token.Kind]ast.Op{
	token.PlusEq:       ast.OpAddAssign,
	token.MinusEq:      ast.OpSubAssign,
	token.StarEq:       ast.OpMulAssign,
	token.StarStarEq:   ast.OpPowAssign,
	token.SlashEq:      ast.OpDivAssign,
	token.SlashSlashEq: ast.OpFloorDivAssign,
	token.PercentEq:    ast.OpModAssign,
	token.ShlEq:        ast.OpShlAssign,
	token.ShrEq:        ast.OpShrAssign,
	token.AmpEq:        ast.OpBitAndAssign,
	token.PipeEq:       ast.OpBitOrAssign,
	token.CaretEq:      ast.OpBitXorAssign,
}

func (p *parser) parseAssign() ast.Ref {
	left := p.parseBoolean()
	if p.skipNL > 0 {
		return left
	}
	if p.at(token.Eq) {
		off := p.advance().Offset
		right := p.parseExprTop()
		return p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpAssign, Off: int32(off), A: left, B: right})
	}
	if op, ok := compoundAssignOps[p.cur().Kind]; ok {
		off := p.advance().Offset
		right := p.parseBitwiseCatch()
		return p.push(ast.Node{Kind: ast.KindInfix, Op: op, Off: int32(off), A: left, B: right})
	}
	return left
}

// --- precedence level 3: boolean (not / and / or) -----------------------

func (p *parser) parseBoolUnary() ast.Ref {
	if p.at(token.KwNot) {
		off := p.advance().Offset
		rhs := p.parseBoolUnary()
		return p.push(ast.Node{Kind: ast.KindPrefix, Op: ast.OpBoolNot, Off: int32(off), A: rhs})
	}
	return p.parseComparison()
}

func (p *parser) parseBoolean() ast.Ref {
	left := p.parseBoolUnary()
	switch p.cur().Kind {
	case token.KwAnd:
		for p.at(token.KwAnd) {
			off := p.advance().Offset
			right := p.parseBoolUnary()
			left = p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpAnd, Off: int32(off), A: left, B: right})
		}
	case token.KwOr:
		for p.at(token.KwOr) {
			off := p.advance().Offset
			right := p.parseBoolUnary()
			left = p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpOr, Off: int32(off), A: left, B: right})
		}
	}
	return left
}

// --- precedence level 4: comparison (non-associative) / is --------------

var comparisonOps = map[token.Kind]ast.Op{
	token.Lt: ast.OpLt, token.LtEq: ast.OpLte,
	token.Gt: ast.OpGt, token.GtEq: ast.OpGte,
	token.EqEq: ast.OpEq, token.NotEq: ast.OpNeq,
	token.KwIn: ast.OpIn,
}

func (p *parser) parseComparison() ast.Ref {
	left := p.parseRange()
	if op, ok := comparisonOps[p.cur().Kind]; ok {
		off := p.advance().Offset
		right := p.parseRange()
		return p.push(ast.Node{Kind: ast.KindInfix, Op: op, Off: int32(off), A: left, B: right})
	}
	if p.at(token.KwIs) {
		off := p.advance().Offset
		typeName, _ := p.parseTypeName()
		return p.push(ast.Node{Kind: ast.KindTypeInfix, Op: ast.OpIs, Off: int32(off), A: left, Str: typeName})
	}
	return left
}

func (p *parser) parseTypeName() (string, int) {
	return p.expectIdentText()
}

// --- precedence level 5: range (non-associative) -------------------------

func (p *parser) parseRange() ast.Ref {
	left := p.parseBitwiseCatch()
	if p.at(token.DotDotDot) {
		off := p.advance().Offset
		right := p.parseBitwiseCatch()
		return p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpRange, Off: int32(off), A: left, B: right})
	}
	return left
}

// --- precedence level 6: bitwise (&, |, ^) and catch ---------------------

func (p *parser) parseBitwiseCatch() ast.Ref {
	left := p.parseShift()
	switch p.cur().Kind {
	case token.Amp:
		for p.at(token.Amp) {
			off := p.advance().Offset
			right := p.parseShift()
			left = p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpBitAnd, Off: int32(off), A: left, B: right})
		}
	case token.Pipe:
		for p.at(token.Pipe) {
			off := p.advance().Offset
			right := p.parseShift()
			left = p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpBitOr, Off: int32(off), A: left, B: right})
		}
	case token.Caret:
		for p.at(token.Caret) {
			off := p.advance().Offset
			right := p.parseShift()
			left = p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpBitXor, Off: int32(off), A: left, B: right})
		}
	}
	if p.at(token.KwCatch) {
		off := p.advance().Offset
		pat := ast.NoRef
		if p.at(token.KwLet) {
			p.advance()
			pat = p.parsePattern()
			p.expect(token.Colon)
		}
		rhs := p.parseShift()
		left = p.push(ast.Node{Kind: ast.KindCatch, Off: int32(off), A: left, B: pat, C: rhs})
	}
	return left
}

// --- precedence level 7: shift -------------------------------------------

func (p *parser) parseShift() ast.Ref {
	left := p.parseAdditive()
	for p.at(token.Shl) || p.at(token.Shr) {
		off := p.cur().Offset
		op := ast.OpShl
		if p.cur().Kind == token.Shr {
			op = ast.OpShr
		}
		p.advance()
		right := p.parseAdditive()
		left = p.push(ast.Node{Kind: ast.KindInfix, Op: op, Off: int32(off), A: left, B: right})
	}
	return left
}

// --- precedence level 8: additive ----------------------------------------

func (p *parser) parseAdditive() ast.Ref {
	left := p.parseMultiplicative()
	for p.at(token.Plus) || p.at(token.Minus) {
		off := p.cur().Offset
		op := ast.OpAdd
		if p.cur().Kind == token.Minus {
			op = ast.OpSub
		}
		p.advance()
		right := p.parseMultiplicative()
		left = p.push(ast.Node{Kind: ast.KindInfix, Op: op, Off: int32(off), A: left, B: right})
	}
	return left
}

// --- precedence level 9: multiplicative -----------------------------------

func (p *parser) parseMultiplicative() ast.Ref {
	left := p.parseCast()
	for {
		var op ast.Op
		switch p.cur().Kind {
		case token.Star:
			op = ast.OpMul
		case token.Slash:
			op = ast.OpDiv
		case token.SlashSlash:
			op = ast.OpFloorDiv
		case token.Percent:
			op = ast.OpMod
		default:
			return left
		}
		off := p.advance().Offset
		right := p.parseCast()
		left = p.push(ast.Node{Kind: ast.KindInfix, Op: op, Off: int32(off), A: left, B: right})
	}
}

// --- precedence level 10: cast (as) ---------------------------------------

func (p *parser) parseCast() ast.Ref {
	left := p.parsePrefix()
	for p.at(token.KwAs) {
		off := p.advance().Offset
		typeName, _ := p.parseTypeName()
		left = p.push(ast.Node{Kind: ast.KindTypeInfix, Op: ast.OpAs, Off: int32(off), A: left, Str: typeName})
	}
	return left
}

// --- precedence level 11: prefix ------------------------------------------

func (p *parser) parsePrefix() ast.Ref {
	var op ast.Op
	switch p.cur().Kind {
	case token.KwTry:
		op = ast.OpTry
	case token.Minus:
		op = ast.OpNeg
	case token.Plus:
		op = ast.OpPos
	case token.Tilde:
		op = ast.OpBitNot
	default:
		return p.parsePower()
	}
	off := p.advance().Offset
	rhs := p.parsePrefix()
	return p.push(ast.Node{Kind: ast.KindPrefix, Op: op, Off: int32(off), A: rhs})
}

// --- precedence level 12: power (right-associative) -----------------------

func (p *parser) parsePower() ast.Ref {
	left := p.parseSuffix()
	if p.at(token.StarStar) {
		off := p.advance().Offset
		right := p.parsePower()
		return p.push(ast.Node{Kind: ast.KindInfix, Op: ast.OpPow, Off: int32(off), A: left, B: right})
	}
	return left
}

// --- precedence level 13: suffix ([] () .) --------------------------------

func (p *parser) parseSuffix() ast.Ref {
	left := p.parsePrimary()
	for {
		switch p.cur().Kind {
		case token.LBracket:
			off := p.advance().Offset
			p.pushSkipNL()
			idx := p.parseExprTop()
			p.popSkipNL()
			p.expect(token.RBracket)
			left = p.push(ast.Node{Kind: ast.KindIndex, Off: int32(off), A: left, B: idx})
		case token.LParen:
			off := p.advance().Offset
			p.pushSkipNL()
			var args []ast.Ref
			for !p.at(token.RParen) {
				args = append(args, p.parseExprTop())
				if p.at(token.Comma) {
					p.advance()
				} else {
					break
				}
			}
			p.popSkipNL()
			p.expect(token.RParen)
			left = p.push(ast.Node{Kind: ast.KindCall, Off: int32(off), A: left, Kids: args})
		case token.Dot:
			off := p.advance().Offset
			name, _ := p.expectIdentText()
			left = p.push(ast.Node{Kind: ast.KindMember, Off: int32(off), A: left, Str: name})
		default:
			return left
		}
	}
}

// --- precedence level 14: primary -----------------------------------------

func (p *parser) parsePrimary() ast.Ref {
	tok := p.cur()
	switch tok.Kind {
	case token.Number:
		return p.parseNumberLit()
	case token.String:
		p.advance()
		return p.push(ast.Node{Kind: ast.KindStrLit, Off: int32(tok.Offset), Str: tok.Text})
	case token.KwTrue:
		p.advance()
		return p.push(ast.Node{Kind: ast.KindTrue, Off: int32(tok.Offset)})
	case token.KwFalse:
		p.advance()
		return p.push(ast.Node{Kind: ast.KindFalse, Off: int32(tok.Offset)})
	case token.Ident:
		p.advance()
		switch tok.Text {
		case "_":
			return p.push(ast.Node{Kind: ast.KindDiscard, Off: int32(tok.Offset)})
		case "none":
			return p.push(ast.Node{Kind: ast.KindNone, Off: int32(tok.Offset)})
		default:
			return p.push(ast.Node{Kind: ast.KindIdent, Off: int32(tok.Offset), Str: tok.Text})
		}
	case token.LParen:
		return p.parseParenOrTuple()
	case token.LBrace:
		return p.parseBraceExpr()
	case token.LBracket:
		return p.parseList()
	case token.KwError:
		return p.parseErrorExpr()
	case token.KwImport:
		return p.parseImport()
	case token.KwIf:
		return p.parseIf()
	case token.KwWhile:
		return p.parseWhile()
	case token.KwFor:
		return p.parseFor()
	case token.KwMatch:
		return p.parseMatch()
	default:
		p.fail(tok.Offset, "expected primary expression, found %s", tok.Kind)
		panic("unreachable")
	}
}

func (p *parser) parseNumberLit() ast.Ref {
	tok := p.advance()
	isFloat, i, f, err := lexer.ParseNumberText(tok.Text)
	if err != nil {
		p.fail(tok.Offset, "invalid number literal %q: %v", tok.Text, err)
	}
	if isFloat {
		return p.push(ast.Node{Kind: ast.KindNumLit, Off: int32(tok.Offset), Num: f})
	}
	return p.push(ast.Node{Kind: ast.KindIntLit, Off: int32(tok.Offset), Int: i})
}

func (p *parser) parseParenOrTuple() ast.Ref {
	off := p.advance().Offset // '('
	p.pushSkipNL()
	defer p.popSkipNL()
	if p.at(token.RParen) {
		p.advance()
		return p.push(ast.Node{Kind: ast.KindTuple, Off: int32(off)})
	}
	first := p.parseExprTop()
	if p.at(token.Comma) {
		kids := []ast.Ref{first}
		for p.at(token.Comma) {
			p.advance()
			if p.at(token.RParen) {
				break
			}
			kids = append(kids, p.parseExprTop())
		}
		p.expect(token.RParen)
		return p.push(ast.Node{Kind: ast.KindTuple, Off: int32(off), Kids: kids})
	}
	p.expect(token.RParen)
	return p.push(ast.Node{Kind: ast.KindGrouped, Off: int32(off), A: first})
}

func (p *parser) parseBraceExpr() ast.Ref {
	off := p.advance().Offset // '{'
	if p.at(token.NL) {
		for p.at(token.NL) {
			p.advance()
		}
		var kids []ast.Ref
		for !p.at(token.RBrace) {
			kids = append(kids, p.parseExprTop())
			if p.at(token.NL) {
				for p.at(token.NL) {
					p.advance()
				}
			} else {
				break
			}
		}
		p.expect(token.RBrace)
		return p.push(ast.Node{Kind: ast.KindBlock, Off: int32(off), Kids: kids})
	}

	p.pushSkipNL()
	defer p.popSkipNL()
	var kids []ast.Ref
	for !p.at(token.RBrace) {
		kids = append(kids, p.parseMapItem())
		if p.at(token.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBrace)
	return p.push(ast.Node{Kind: ast.KindMap, Off: int32(off), Kids: kids})
}

func (p *parser) parseMapItem() ast.Ref {
	off := p.cur().Offset
	first := p.parseExprTop()
	if p.at(token.Colon) {
		p.advance()
		val := p.parseExprTop()
		return p.push(ast.Node{Kind: ast.KindMapItem, Off: int32(off), A: first, B: val})
	}
	return p.push(ast.Node{Kind: ast.KindMapItem, Off: int32(off), A: ast.NoRef, B: first})
}

func (p *parser) parseList() ast.Ref {
	off := p.advance().Offset // '['
	p.pushSkipNL()
	defer p.popSkipNL()
	var kids []ast.Ref
	for !p.at(token.RBracket) {
		kids = append(kids, p.parseExprTop())
		if p.at(token.Comma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(token.RBracket)
	return p.push(ast.Node{Kind: ast.KindList, Off: int32(off), Kids: kids})
}

func (p *parser) parseErrorExpr() ast.Ref {
	off := p.advance().Offset // 'error'
	p.expect(token.LParen)
	p.pushSkipNL()
	inner := p.parseExprTop()
	p.popSkipNL()
	p.expect(token.RParen)
	return p.push(ast.Node{Kind: ast.KindError, Off: int32(off), A: inner})
}

func (p *parser) parseImport() ast.Ref {
	off := p.advance().Offset // 'import'
	p.expect(token.LParen)
	p.pushSkipNL()
	pathTok := p.expect(token.String)
	p.popSkipNL()
	p.expect(token.RParen)
	return p.push(ast.Node{Kind: ast.KindImport, Off: int32(off), Str: pathTok.Text})
}

// parseCondHeader parses the "(" ("let" pattern "=")? expr ")" shared by
// if/while, returning the condition expr and the optional let-pattern.
func (p *parser) parseCondHeader() (cond, pat ast.Ref) {
	p.expect(token.LParen)
	p.pushSkipNL()
	pat = ast.NoRef
	if p.at(token.KwLet) {
		p.advance()
		pat = p.parsePattern()
		p.expect(token.Eq)
	}
	cond = p.parseExprTop()
	p.popSkipNL()
	p.expect(token.RParen)
	return cond, pat
}

func (p *parser) parseIf() ast.Ref {
	off := p.advance().Offset // 'if'
	cond, pat := p.parseCondHeader()
	body := p.parseExprTop()
	elseBody := ast.NoRef
	if p.at(token.KwElse) {
		p.advance()
		elseBody = p.parseExprTop()
	}
	return p.push(ast.Node{Kind: ast.KindIf, Off: int32(off), A: cond, B: pat, C: body, D: elseBody})
}

func (p *parser) parseWhile() ast.Ref {
	off := p.advance().Offset // 'while'
	cond, pat := p.parseCondHeader()
	body := p.parseExprTop()
	return p.push(ast.Node{Kind: ast.KindWhile, Off: int32(off), A: cond, B: pat, C: body})
}

func (p *parser) parseFor() ast.Ref {
	off := p.advance().Offset // 'for'
	p.expect(token.LParen)
	p.pushSkipNL()
	p.expect(token.KwLet)
	pat := p.parsePattern()
	p.expect(token.KwIn)
	rangeExpr := p.parseExprTop()
	p.popSkipNL()
	p.expect(token.RParen)
	body := p.parseExprTop()
	return p.push(ast.Node{Kind: ast.KindFor, Off: int32(off), A: pat, B: rangeExpr, C: body})
}

func (p *parser) parseMatch() ast.Ref {
	off := p.advance().Offset // 'match'
	scrutinee := p.parseExprTop()
	p.expect(token.LBrace)
	for p.at(token.NL) {
		p.advance()
	}
	var cases []ast.Ref
	for !p.at(token.RBrace) {
		cases = append(cases, p.parseMatchCase())
		for p.at(token.NL) {
			p.advance()
		}
	}
	p.expect(token.RBrace)
	return p.push(ast.Node{Kind: ast.KindMatch, Off: int32(off), A: scrutinee, Kids: cases})
}

func (p *parser) parseMatchCase() ast.Ref {
	off := p.cur().Offset
	if p.at(token.Ident) && p.cur().Text == "_" {
		p.advance()
		p.expect(token.Colon)
		body := p.parseExprTop()
		return p.push(ast.Node{Kind: ast.KindMatchCatchAll, Off: int32(off), A: body})
	}
	if p.at(token.KwLet) {
		p.advance()
		pat := p.parsePattern()
		p.expect(token.Colon)
		body := p.parseExprTop()
		return p.push(ast.Node{Kind: ast.KindMatchLet, Off: int32(off), A: body, B: pat})
	}
	var exprs []ast.Ref
	exprs = append(exprs, p.parseBitwiseCatch())
	for p.at(token.Comma) {
		p.advance()
		if p.at(token.Colon) {
			break
		}
		exprs = append(exprs, p.parseBitwiseCatch())
	}
	p.expect(token.Colon)
	body := p.parseExprTop()
	return p.push(ast.Node{Kind: ast.KindMatchCase, Off: int32(off), A: body, Kids: exprs})
}

// --- patterns (unwrap) ----------------------------------------------------

func (p *parser) parsePattern() ast.Ref {
	tok := p.cur()
	switch tok.Kind {
	case token.Ident:
		p.advance()
		if tok.Text == "_" {
			return p.push(ast.Node{Kind: ast.KindUnwrapDiscard, Off: int32(tok.Offset)})
		}
		return p.push(ast.Node{Kind: ast.KindUnwrapIdent, Off: int32(tok.Offset), Str: tok.Text})
	case token.LParen:
		p.advance()
		p.pushSkipNL()
		var kids []ast.Ref
		for !p.at(token.RParen) {
			kids = append(kids, p.parsePattern())
			if p.at(token.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.popSkipNL()
		p.expect(token.RParen)
		return p.push(ast.Node{Kind: ast.KindUnwrapTuple, Off: int32(tok.Offset), Kids: kids})
	case token.LBracket:
		p.advance()
		p.pushSkipNL()
		var kids []ast.Ref
		for !p.at(token.RBracket) {
			kids = append(kids, p.parsePattern())
			if p.at(token.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.popSkipNL()
		p.expect(token.RBracket)
		return p.push(ast.Node{Kind: ast.KindUnwrapList, Off: int32(tok.Offset), Kids: kids})
	case token.LBrace:
		p.advance()
		p.pushSkipNL()
		var kids []ast.Ref
		for !p.at(token.RBrace) {
			kids = append(kids, p.parseUnwrapMapItem())
			if p.at(token.Comma) {
				p.advance()
			} else {
				break
			}
		}
		p.popSkipNL()
		p.expect(token.RBrace)
		return p.push(ast.Node{Kind: ast.KindUnwrapMap, Off: int32(tok.Offset), Kids: kids})
	case token.KwError:
		p.advance()
		p.expect(token.LParen)
		inner := p.parsePattern()
		p.expect(token.RParen)
		return p.push(ast.Node{Kind: ast.KindUnwrapError, Off: int32(tok.Offset), A: inner})
	default:
		p.fail(tok.Offset, "expected pattern, found %s", tok.Kind)
		panic("unreachable")
	}
}

func (p *parser) parseUnwrapMapItem() ast.Ref {
	off := p.cur().Offset
	name, _ := p.expectIdentText()
	if p.at(token.Colon) {
		p.advance()
		pat := p.parsePattern()
		return p.push(ast.Node{Kind: ast.KindUnwrapMapItem, Off: int32(off), Str: name, B: pat})
	}
	pat := p.push(ast.Node{Kind: ast.KindUnwrapIdent, Off: int32(off), Str: name})
	return p.push(ast.Node{Kind: ast.KindUnwrapMapItem, Off: int32(off), Str: name, B: pat})
}
