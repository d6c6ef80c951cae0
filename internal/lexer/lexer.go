// Package lexer implements Bog's single-pass tokenizer: a state machine
// over UTF-8 code points with states for multi-character operator
// prefixes, string literals and their escapes, line continuations,
// comments and numeric literals by base.
//
// Grounded on the teacher's runtime/lexer/lexer.go rune-at-a-time scanner
// (readChar/peekChar driving an ASCII classification table, with a
// unicode.IsSpace fallback for non-ASCII input) generalized from its
// three-mode shell/decorator lexer into Bog's single flat token stream.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dasimmet/bog/internal/diag"
	"github.com/dasimmet/bog/internal/token"
)

// ASCII classification tables, precomputed once. Mirrors the teacher's
// isWhitespace/isIdentStart/isIdentPart lookup arrays.
var (
	isIdentStart [128]bool
	isIdentPart  [128]bool
	isDigit      [128]bool
	isHexDigit   [128]bool
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		letter := ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isIdentStart[i] = letter
		isDigit[i] = '0' <= ch && ch <= '9'
		isIdentPart[i] = letter || isDigit[i]
		isHexDigit[i] = isDigit[i] || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')
	}
}

// isHorizontalSpace reports whether r is ASCII space/tab or one of the
// Unicode horizontal-space code points spec.md §4.1 enumerates.
func isHorizontalSpace(r rune) bool {
	switch r {
	case ' ', '\t':
		return true
	case 0x00A0, 0x1680, 0x180E, 0x202F, 0x205F, 0x3000, 0xFEFF, 0xFFA0:
		return true
	}
	if r >= 0x2000 && r <= 0x200A {
		return true
	}
	return false
}

// Lexer tokenizes a UTF-8 source buffer on demand.
type Lexer struct {
	src     string
	pos     int // byte offset of ch
	readPos int
	ch      rune

	diags *diag.List
}

// New returns a Lexer over src, recording failures into diags.
func New(src []byte, diags *diag.List) *Lexer {
	l := &Lexer{src: string(src), diags: diags}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	l.pos = l.readPos
	if l.readPos >= len(l.src) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.src[l.readPos:])
	if r == utf8.RuneError && size <= 1 {
		r = rune(l.src[l.readPos])
		size = 1
	}
	l.ch = r
	l.readPos += size
}

func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.src) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool { return l.pos >= len(l.src) && l.ch == 0 }

// Next returns the next token, or an error if the input is malformed. The
// tokenizer is non-recovering: on invalid input it appends a diagnostic and
// returns an error; callers must stop tokenizing.
func (l *Lexer) Next() (token.Token, error) {
	l.skipInsignificant()

	start := l.pos
	ch := l.ch

	if l.atEOF() {
		return token.Token{Kind: token.EOF, Offset: start}, nil
	}

	switch {
	case ch == '\r':
		l.readChar()
		if l.ch != '\n' {
			return l.fail(start, "bare carriage return is not a valid newline")
		}
		l.readChar()
		return token.Token{Kind: token.NL, Offset: start}, nil
	case ch == '\n':
		l.readChar()
		return token.Token{Kind: token.NL, Offset: start}, nil
	case ch == '#':
		l.skipLineComment()
		return l.Next()
	case ch < 128 && isIdentStart[ch]:
		return l.lexIdentifier(start), nil
	case ch == '0' && (l.peekChar() == 'b' || l.peekChar() == 'o' || l.peekChar() == 'x'):
		return l.lexBasedNumber(start)
	case ch < 128 && isDigit[ch]:
		return l.lexNumber(start)
	case ch == '\'' || ch == '"':
		return l.lexString(start, ch)
	default:
		return l.lexOperator(start)
	}
}

// skipInsignificant consumes horizontal whitespace and backslash-newline
// line continuations. Vertical whitespace (\n, \r\n) is significant and
// yielded as an NL token by the caller.
func (l *Lexer) skipInsignificant() {
	for {
		if l.ch == '\\' && (l.peekChar() == '\n' || l.peekChar() == '\r') {
			l.readChar() // consume backslash
			if l.ch == '\r' {
				l.readChar()
			}
			if l.ch == '\n' {
				l.readChar()
			}
			continue
		}
		if isHorizontalSpace(l.ch) {
			l.readChar()
			continue
		}
		return
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) fail(offset int, format string, args ...any) (token.Token, error) {
	l.diags.Err(offset, format, args...)
	return token.Token{}, fmt.Errorf(format, args...)
}

func (l *Lexer) lexIdentifier(start int) token.Token {
	for l.ch < 128 && isIdentPart[byte(l.ch)] {
		l.readChar()
	}
	text := l.src[start:l.pos]
	if kw, ok := token.Keywords[text]; ok {
		return token.Token{Kind: kw, Text: text, Offset: start}
	}
	return token.Token{Kind: token.Ident, Text: text, Offset: start}
}

// lexBasedNumber handles 0b/0o/0x prefixed integers and 0x...p... hex
// floats.
func (l *Lexer) lexBasedNumber(start int) (token.Token, error) {
	l.readChar() // '0'
	base := l.ch
	l.readChar() // 'b'/'o'/'x'

	digitOK := func(r rune) bool {
		switch base {
		case 'b':
			return r == '0' || r == '1'
		case 'o':
			return r >= '0' && r <= '7'
		default: // 'x'
			return r < 128 && isHexDigit[byte(r)]
		}
	}

	sawDigit := false
	for digitOK(l.ch) || l.ch == '_' {
		if l.ch != '_' {
			sawDigit = true
		}
		l.readChar()
	}
	if !sawDigit {
		return l.fail(start, "expected digits after 0%c prefix", base)
	}

	isFloat := false
	if base == 'x' && (l.ch == 'p' || l.ch == 'P') {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !(l.ch < 128 && isDigit[byte(l.ch)]) {
			return l.fail(l.pos, "expected exponent digits")
		}
		for l.ch < 128 && (isDigit[byte(l.ch)] || l.ch == '_') {
			l.readChar()
		}
	}

	text := l.src[start:l.pos]
	if isFloat {
		return token.Token{Kind: token.Number, Text: text, Offset: start}, nil
	}
	return token.Token{Kind: token.Number, Text: text, Offset: start}, nil
}

// lexNumber handles decimal integers and floats (with fractional part
// and/or decimal exponent). A leading 0 followed by another decimal digit
// is reserved for 0o octal and is an error here.
func (l *Lexer) lexNumber(start int) (token.Token, error) {
	if l.ch == '0' {
		l.readChar()
		if l.ch < 128 && isDigit[byte(l.ch)] {
			return l.fail(start, "leading zero is not a valid number literal; use 0o for octal")
		}
	} else {
		for l.ch < 128 && (isDigit[byte(l.ch)] || l.ch == '_') {
			l.readChar()
		}
	}

	if l.ch == '.' && l.peekChar() < 128 && isDigit[byte(l.peekChar())] {
		l.readChar() // '.'
		for l.ch < 128 && (isDigit[byte(l.ch)] || l.ch == '_') {
			l.readChar()
		}
	}

	if l.ch == 'e' || l.ch == 'E' {
		save := l.pos
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !(l.ch < 128 && isDigit[byte(l.ch)]) {
			// Not actually an exponent (e.g. a trailing identifier char);
			// this is a malformed number.
			return l.fail(save, "expected exponent digits")
		}
		for l.ch < 128 && (isDigit[byte(l.ch)] || l.ch == '_') {
			l.readChar()
		}
	}

	return token.Token{Kind: token.Number, Text: l.src[start:l.pos], Offset: start}, nil
}

func (l *Lexer) lexString(start int, quote rune) (token.Token, error) {
	l.readChar() // opening quote
	var sb strings.Builder
	for {
		if l.ch == 0 {
			return l.fail(start, "unterminated string literal")
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch == '\n' || l.ch == '\r' {
			return l.fail(l.pos, "unescaped newline in string literal")
		}
		if l.ch == '\\' {
			if err := l.lexEscape(&sb); err != nil {
				return token.Token{}, err
			}
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return token.Token{Kind: token.String, Text: sb.String(), Offset: start}, nil
}

func (l *Lexer) lexEscape(sb *strings.Builder) error {
	escOff := l.pos
	l.readChar() // backslash
	switch l.ch {
	case '\'':
		sb.WriteByte('\'')
	case '"':
		sb.WriteByte('"')
	case '\\':
		sb.WriteByte('\\')
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case '\n':
		// line continuation inside a string: consumes, emits nothing
		l.readChar()
		return nil
	case '\r':
		l.readChar()
		if l.ch == '\n' {
			l.readChar()
		}
		return nil
	case 'x':
		l.readChar()
		v := 0
		n := 0
		for n < 2 && l.ch < 128 && isHexDigit[byte(l.ch)] {
			v = v*16 + hexVal(byte(l.ch))
			l.readChar()
			n++
		}
		if n == 0 {
			_, err := l.fail(escOff, "expected hex digits after \\x")
			return err
		}
		sb.WriteByte(byte(v))
		return nil
	case 'u':
		l.readChar()
		if l.ch != '{' {
			_, err := l.fail(escOff, "expected '{' after \\u")
			return err
		}
		l.readChar()
		v := 0
		n := 0
		for l.ch != '}' {
			if n >= 6 || !(l.ch < 128 && isHexDigit[byte(l.ch)]) {
				_, err := l.fail(escOff, "invalid \\u{...} escape")
				return err
			}
			v = v*16 + hexVal(byte(l.ch))
			l.readChar()
			n++
		}
		l.readChar() // '}'
		if n == 0 || v > 0x10FFFF {
			_, err := l.fail(escOff, "invalid \\u{...} escape")
			return err
		}
		sb.WriteRune(rune(v))
		return nil
	default:
		_, err := l.fail(escOff, "unknown escape sequence '\\%c'", l.ch)
		return err
	}
	l.readChar()
	return nil
}

func hexVal(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	default:
		return int(ch-'A') + 10
	}
}

type opDef struct {
	kind token.Kind
	text string
}

// multiCharOps lists operators longer than one character, ordered longest
// first so the greedy scan below never misreads a prefix (e.g. "**=" before
// "**" before "*").
var multiCharOps = []opDef{
	{token.DotDotDot, "..."},
	{token.StarStarEq, "**="},
	{token.SlashSlashEq, "//="},
	{token.StarStar, "**"},
	{token.SlashSlash, "//"},
	{token.ShlEq, "<<="},
	{token.ShrEq, ">>="},
	{token.Shl, "<<"},
	{token.Shr, ">>"},
	{token.EqEq, "=="},
	{token.NotEq, "!="},
	{token.LtEq, "<="},
	{token.GtEq, ">="},
	{token.PlusEq, "+="},
	{token.MinusEq, "-="},
	{token.StarEq, "*="},
	{token.SlashEq, "/="},
	{token.PercentEq, "%="},
	{token.AmpEq, "&="},
	{token.PipeEq, "|="},
	{token.CaretEq, "^="},
}

var singleCharOps = map[rune]token.Kind{
	'(': token.LParen, ')': token.RParen,
	'[': token.LBracket, ']': token.RBracket,
	'{': token.LBrace, '}': token.RBrace,
	',': token.Comma, ':': token.Colon, '.': token.Dot,
	'+': token.Plus, '-': token.Minus, '*': token.Star,
	'/': token.Slash, '%': token.Percent,
	'&': token.Amp, '|': token.Pipe, '^': token.Caret, '~': token.Tilde,
	'=': token.Eq, '<': token.Lt, '>': token.Gt,
}

func (l *Lexer) lexOperator(start int) (token.Token, error) {
	rest := l.src[start:]
	for _, def := range multiCharOps {
		if strings.HasPrefix(rest, def.text) {
			for range def.text {
				l.readChar()
			}
			return token.Token{Kind: def.kind, Text: def.text, Offset: start}, nil
		}
	}
	if kind, ok := singleCharOps[l.ch]; ok {
		l.readChar()
		return token.Token{Kind: kind, Text: l.src[start:l.pos], Offset: start}, nil
	}
	ch := l.ch
	l.readChar()
	return l.fail(start, "unexpected character %q", ch)
}

// ParseNumberText converts a Number token's raw text into either an int64
// or a float64, honoring the bases and separators spec.md §4.1 describes.
// Exported for the parser, which uses it to build number literal nodes.
func ParseNumberText(text string) (isFloat bool, i int64, f float64, err error) {
	clean := strings.ReplaceAll(text, "_", "")
	switch {
	case strings.HasPrefix(clean, "0b"):
		v, e := strconv.ParseInt(clean[2:], 2, 64)
		return false, v, 0, e
	case strings.HasPrefix(clean, "0o"):
		v, e := strconv.ParseInt(clean[2:], 8, 64)
		return false, v, 0, e
	case strings.HasPrefix(clean, "0x"):
		if strings.ContainsAny(clean, "pP") {
			v, e := strconv.ParseFloat(clean, 64)
			return true, 0, v, e
		}
		v, e := strconv.ParseUint(clean[2:], 16, 64)
		return false, int64(v), 0, e
	case strings.ContainsAny(clean, ".eE"):
		v, e := strconv.ParseFloat(clean, 64)
		return true, 0, v, e
	default:
		v, e := strconv.ParseInt(clean, 10, 64)
		return false, v, 0, e
	}
}
