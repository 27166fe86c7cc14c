package model

import "fmt"

// TokenType identifies the type of a lexical token.
type TokenType int

// Token types.
const (
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT
	NUMBER

	// Operators and delimiters
	TILDE    // ~
	ARROW    // <-
	PLUS     // +
	MINUS    // -
	STAR     // *
	SLASH    // /
	CARET    // ^
	COMMA    // ,
	COLON    // :
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]

	// Keywords
	MODEL
	FOR
	IN
)

var tokenNames = map[TokenType]string{
	EOF:      "EOF",
	ILLEGAL:  "ILLEGAL",
	IDENT:    "IDENT",
	NUMBER:   "NUMBER",
	TILDE:    "~",
	ARROW:    "<-",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	CARET:    "^",
	COMMA:    ",",
	COLON:    ":",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACE:   "{",
	RBRACE:   "}",
	LBRACKET: "[",
	RBRACKET: "]",
	MODEL:    "model",
	FOR:      "for",
	IN:       "in",
}

// String returns a human-readable name for the token type.
func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"model": MODEL,
	"for":   FOR,
	"in":    IN,
}

// LookupIdent returns the keyword token type for an identifier, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Position represents a location in a model source file.
type Position struct {
	Line   int // 1-based line number
	Column int // 1-based column number
}

// String formats the position as line:column.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a lexical token with its literal text and source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}
