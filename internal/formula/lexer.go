package formula

import "strings"

// Lexer tokenizes formula text.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	if l.pos >= len(l.input) {
		return Token{Type: TOKEN_EOF, Pos: l.pos}
	}
	start := l.pos
	switch l.input[l.pos] {
	case '[':
		return l.readIdent()
	case '\'':
		return l.readString()
	case '.':
		l.pos++
		return Token{Type: TOKEN_DOT, Literal: ".", Pos: start}
	}
	for l.pos < len(l.input) && !isBoundary(l.input[l.pos]) {
		l.pos++
	}
	return Token{Type: TOKEN_TEXT, Literal: l.input[start:l.pos], Pos: start}
}

// Tokens returns all tokens up to and excluding EOF.
func (l *Lexer) Tokens() []Token {
	var toks []Token
	for {
		tok := l.NextToken()
		if tok.Type == TOKEN_EOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func isBoundary(ch byte) bool {
	return ch == '[' || ch == '\'' || ch == '.'
}

// readIdent reads a bracketed identifier. "]]" inside brackets is an
// escaped "]".
func (l *Lexer) readIdent() Token {
	start := l.pos
	l.pos++ // skip [
	var b strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ']' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == ']' {
				b.WriteByte(']')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TOKEN_IDENT, Literal: l.input[start:l.pos], Value: b.String(), Pos: start}
		}
		b.WriteByte(ch)
		l.pos++
	}
	return Token{Type: TOKEN_ILLEGAL, Literal: l.input[start:], Pos: start}
}

// readString reads a single-quoted literal; "''" is an escaped quote.
func (l *Lexer) readString() Token {
	start := l.pos
	l.pos++ // skip '
	for l.pos < len(l.input) {
		if l.input[l.pos] == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TOKEN_STRING, Literal: l.input[start:l.pos], Pos: start}
		}
		l.pos++
	}
	return Token{Type: TOKEN_ILLEGAL, Literal: l.input[start:], Pos: start}
}
