package model

// Lexer tokenizes model-language input.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

// peekChar returns the next character without advancing.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col}
}

// skipWhitespaceAndComments consumes whitespace and # line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch l.ch {
		case ' ', '\t', '\r', '\n':
			l.readChar()
		case '#':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	var tok Token
	tok.Pos = pos

	switch l.ch {
	case 0:
		tok.Type = EOF
		tok.Literal = ""
		return tok
	case '~':
		tok = l.newToken(TILDE, "~")
	case '+':
		tok = l.newToken(PLUS, "+")
	case '-':
		tok = l.newToken(MINUS, "-")
	case '*':
		tok = l.newToken(STAR, "*")
	case '/':
		tok = l.newToken(SLASH, "/")
	case '^':
		tok = l.newToken(CARET, "^")
	case ',':
		tok = l.newToken(COMMA, ",")
	case ':':
		tok = l.newToken(COLON, ":")
	case '(':
		tok = l.newToken(LPAREN, "(")
	case ')':
		tok = l.newToken(RPAREN, ")")
	case '{':
		tok = l.newToken(LBRACE, "{")
	case '}':
		tok = l.newToken(RBRACE, "}")
	case '[':
		tok = l.newToken(LBRACKET, "[")
	case ']':
		tok = l.newToken(RBRACKET, "]")
	case '<':
		if l.peekChar() == '-' {
			l.readChar()
			tok = Token{Type: ARROW, Literal: "<-", Pos: pos}
			l.readChar()
			return tok
		}
		tok = l.newToken(ILLEGAL, "<")
	default:
		switch {
		case isLetter(l.ch):
			lit := l.readIdentifier()
			return Token{Type: LookupIdent(lit), Literal: lit, Pos: pos}
		case isDigit(l.ch) || l.ch == '.':
			lit := l.readNumber()
			return Token{Type: NUMBER, Literal: lit, Pos: pos}
		default:
			tok = l.newToken(ILLEGAL, string(l.ch))
		}
	}

	return tok
}

func (l *Lexer) newToken(t TokenType, literal string) Token {
	tok := Token{Type: t, Literal: literal, Pos: l.currentPos()}
	l.readChar()
	return tok
}

// readIdentifier reads an identifier (letters, digits, dots, underscores).
func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads a numeric literal, including scientific notation
// (e.g. 1.0E-6) as used for vague priors.
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) || l.ch == '.' {
		l.readChar()
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return l.input[start:l.pos]
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
