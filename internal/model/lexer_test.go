package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_Relation(t *testing.T) {
	input := "y[i] ~ dnorm(mu[i], tau)"
	lexer := NewLexer(input)

	expected := []struct {
		typ TokenType
		lit string
	}{
		{IDENT, "y"},
		{LBRACKET, "["},
		{IDENT, "i"},
		{RBRACKET, "]"},
		{TILDE, "~"},
		{IDENT, "dnorm"},
		{LPAREN, "("},
		{IDENT, "mu"},
		{LBRACKET, "["},
		{IDENT, "i"},
		{RBRACKET, "]"},
		{COMMA, ","},
		{IDENT, "tau"},
		{RPAREN, ")"},
		{EOF, ""},
	}

	for i, exp := range expected {
		tok := lexer.NextToken()
		assert.Equal(t, exp.typ, tok.Type, "token[%d] type", i)
		if exp.typ != EOF {
			assert.Equal(t, exp.lit, tok.Literal, "token[%d] literal", i)
		}
	}
}

func TestLexer_ArrowAndKeywords(t *testing.T) {
	input := "model { for (i in 1:N) { mu <- alpha } }"
	lexer := NewLexer(input)

	expected := []TokenType{
		MODEL, LBRACE, FOR, LPAREN, IDENT, IN, NUMBER, COLON, IDENT,
		RPAREN, LBRACE, IDENT, ARROW, IDENT, RBRACE, RBRACE, EOF,
	}
	for i, typ := range expected {
		tok := lexer.NextToken()
		assert.Equal(t, typ, tok.Type, "token[%d]", i)
	}
}

func TestLexer_NumbersAndComments(t *testing.T) {
	input := "# priors\ntau ~ dgamma(0.001, 1e-3)"
	lexer := NewLexer(input)

	tok := lexer.NextToken()
	require.Equal(t, IDENT, tok.Type)
	assert.Equal(t, "tau", tok.Literal)
	assert.Equal(t, 2, tok.Pos.Line, "comment line should be skipped")

	var literals []string
	for {
		tok = lexer.NextToken()
		if tok.Type == EOF {
			break
		}
		if tok.Type == NUMBER {
			literals = append(literals, tok.Literal)
		}
	}
	assert.Equal(t, []string{"0.001", "1e-3"}, literals)
}

func TestLexer_IllegalLess(t *testing.T) {
	// A bare < is not an operator; only <- is valid.
	lexer := NewLexer("a < b")
	lexer.NextToken() // a
	tok := lexer.NextToken()
	assert.Equal(t, ILLEGAL, tok.Type)
}
