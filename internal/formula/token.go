// Package formula parses calculated-measure formulas into a flat AST of SQL
// text and measure references, and substitutes references in one pass.
package formula

// TokenType identifies the type of a token.
type TokenType int

const (
	TOKEN_EOF     TokenType = iota
	TOKEN_TEXT              // any SQL text outside brackets and string literals
	TOKEN_STRING            // '...'
	TOKEN_IDENT             // [...]
	TOKEN_DOT               // .
	TOKEN_ILLEGAL           // unterminated bracket or string
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:     "EOF",
	TOKEN_TEXT:    "TEXT",
	TOKEN_STRING:  "STRING",
	TOKEN_IDENT:   "IDENT",
	TOKEN_DOT:     "DOT",
	TOKEN_ILLEGAL: "ILLEGAL",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token is a lexical token. Literal holds the raw source text; for IDENT
// tokens Value holds the unescaped name between the brackets.
type Token struct {
	Type    TokenType
	Literal string
	Value   string
	Pos     int
}
