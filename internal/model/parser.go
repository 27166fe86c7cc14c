package model

import (
	"fmt"
	"strconv"
)

// Parser parses model-language input into a Model.
type Parser struct {
	lexer *Lexer
	token Token // current token
	peek  Token // next token

	name string // model name (from the file name)
}

// ParseError is a parse failure with a source position.
type ParseError struct {
	Msg string
	Pos Position
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Parse parses a model file's content. The name is used for error reporting
// and run records, conventionally the file name without extension.
func Parse(name, input string) (*Model, error) {
	p := &Parser{lexer: NewLexer(input), name: name}
	p.nextToken()
	p.nextToken()
	return p.parseModel()
}

func (p *Parser) nextToken() {
	p.token = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(pos Position, format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Pos: pos}
}

func (p *Parser) expect(t TokenType) (Token, error) {
	if p.token.Type != t {
		return Token{}, p.errorf(p.token.Pos, "expected %s, got %q", t, p.token.Literal)
	}
	tok := p.token
	p.nextToken()
	return tok, nil
}

// parseModel parses: model { stmt... }
func (p *Parser) parseModel() (*Model, error) {
	if _, err := p.expect(MODEL); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	m := &Model{Name: p.name}
	for p.token.Type != RBRACE {
		if p.token.Type == EOF {
			return nil, p.errorf(p.token.Pos, "unexpected end of file, expected }")
		}
		stmt, err := p.parseStmt(false)
		if err != nil {
			return nil, err
		}
		m.Stmts = append(m.Stmts, stmt)
	}
	p.nextToken() // consume }

	if p.token.Type != EOF {
		return nil, p.errorf(p.token.Pos, "unexpected %q after model block", p.token.Literal)
	}
	if len(m.Stmts) == 0 {
		return nil, p.errorf(p.token.Pos, "model block is empty")
	}
	return m, nil
}

// parseStmt parses one relation or for loop. inLoop rejects nested loops.
func (p *Parser) parseStmt(inLoop bool) (Stmt, error) {
	if p.token.Type == FOR {
		if inLoop {
			return nil, p.errorf(p.token.Pos, "nested for loops are not supported")
		}
		return p.parseForLoop()
	}
	return p.parseRelation()
}

// parseForLoop parses: for (i in lo:hi) { relation... }
func (p *Parser) parseForLoop() (Stmt, error) {
	pos := p.token.Pos
	p.nextToken() // consume for

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	idx, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IN); err != nil {
		return nil, err
	}
	lo, err := p.parseBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON); err != nil {
		return nil, err
	}
	hi, err := p.parseBound()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	if _, err := p.expect(LBRACE); err != nil {
		return nil, err
	}

	loop := &ForLoop{Index: idx.Literal, Lo: lo, Hi: hi, Pos: pos}
	for p.token.Type != RBRACE {
		if p.token.Type == EOF {
			return nil, p.errorf(p.token.Pos, "unexpected end of file in for loop body")
		}
		stmt, err := p.parseStmt(true)
		if err != nil {
			return nil, err
		}
		loop.Body = append(loop.Body, stmt)
	}
	p.nextToken() // consume }

	if len(loop.Body) == 0 {
		return nil, p.errorf(pos, "for loop body is empty")
	}
	return loop, nil
}

// parseBound parses a loop bound: an integer literal or a data scalar name.
func (p *Parser) parseBound() (Expr, error) {
	switch p.token.Type {
	case NUMBER:
		return p.parseNumber()
	case IDENT:
		ref := &Ref{Name: p.token.Literal, Pos: p.token.Pos}
		p.nextToken()
		return ref, nil
	default:
		return nil, p.errorf(p.token.Pos, "expected loop bound, got %q", p.token.Literal)
	}
}

// parseRelation parses: ref ~ dist(args) | ref <- expr
func (p *Parser) parseRelation() (Stmt, error) {
	lhs, err := p.parseRef()
	if err != nil {
		return nil, err
	}

	switch p.token.Type {
	case TILDE:
		p.nextToken()
		dist, err := p.parseDistCall()
		if err != nil {
			return nil, err
		}
		return &StochasticRel{LHS: lhs, Dist: dist}, nil
	case ARROW:
		p.nextToken()
		expr, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		return &DeterministicRel{LHS: lhs, Expr: expr}, nil
	default:
		return nil, p.errorf(p.token.Pos, "expected ~ or <- after %s, got %q", lhs.Name, p.token.Literal)
	}
}

// parseRef parses a scalar or indexed reference: name | name[index]
func (p *Parser) parseRef() (*Ref, error) {
	tok, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	ref := &Ref{Name: tok.Literal, Pos: tok.Pos}

	if p.token.Type == LBRACKET {
		p.nextToken()
		switch p.token.Type {
		case IDENT:
			ref.Index = &Ref{Name: p.token.Literal, Pos: p.token.Pos}
			p.nextToken()
		case NUMBER:
			idx, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			ref.Index = idx
		default:
			return nil, p.errorf(p.token.Pos, "expected index variable or integer, got %q", p.token.Literal)
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

// parseDistCall parses: dname(arg, ...)
func (p *Parser) parseDistCall() (*DistCall, error) {
	tok, err := p.expect(IDENT)
	if err != nil {
		return nil, err
	}
	dc := &DistCall{Name: tok.Literal, Pos: tok.Pos}

	if _, err := p.expect(LPAREN); err != nil {
		return nil, err
	}
	for p.token.Type != RPAREN {
		arg, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		dc.Args = append(dc.Args, arg)
		if p.token.Type == COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if _, err := p.expect(RPAREN); err != nil {
		return nil, err
	}
	return dc, nil
}

// Expression precedence levels for the Pratt parser.
const (
	precLowest = iota
	precSum    // + -
	precProd   // * /
	precUnary  // unary -
	precPower  // ^
)

func precedenceOf(t TokenType) int {
	switch t {
	case PLUS, MINUS:
		return precSum
	case STAR, SLASH:
		return precProd
	case CARET:
		return precPower
	default:
		return precLowest
	}
}

// parseExpression parses an arithmetic expression via precedence climbing.
func (p *Parser) parseExpression(minPrec int) (Expr, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		prec := precedenceOf(p.token.Type)
		if prec <= minPrec {
			break
		}
		op := p.token.Type
		p.nextToken()
		// ^ is right-associative
		nextMin := prec
		if op == CARET {
			nextMin = prec - 1
		}
		right, err := p.parseExpression(nextMin)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parsePrefix() (Expr, error) {
	switch p.token.Type {
	case MINUS:
		p.nextToken()
		expr, err := p.parseExpression(precUnary)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: MINUS, Expr: expr}, nil
	case NUMBER:
		return p.parseNumber()
	case LPAREN:
		p.nextToken()
		expr, err := p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return expr, nil
	case IDENT:
		return p.parseIdentExpr()
	default:
		return nil, p.errorf(p.token.Pos, "unexpected %q in expression", p.token.Literal)
	}
}

// parseIdentExpr parses a reference or function call following an identifier.
func (p *Parser) parseIdentExpr() (Expr, error) {
	tok := p.token
	p.nextToken()

	if p.token.Type == LPAREN {
		if !IsFunction(tok.Literal) {
			return nil, p.errorf(tok.Pos, "unknown function %q", tok.Literal)
		}
		call := &CallExpr{Name: tok.Literal, Pos: tok.Pos}
		p.nextToken()
		for p.token.Type != RPAREN {
			arg, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.token.Type == COMMA {
				p.nextToken()
				continue
			}
			break
		}
		if _, err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		if want := FunctionArity(call.Name); want >= 0 && len(call.Args) != want {
			return nil, p.errorf(tok.Pos, "%s expects %d argument(s), got %d", call.Name, want, len(call.Args))
		}
		return call, nil
	}

	ref := &Ref{Name: tok.Literal, Pos: tok.Pos}
	if p.token.Type == LBRACKET {
		p.nextToken()
		switch p.token.Type {
		case IDENT:
			ref.Index = &Ref{Name: p.token.Literal, Pos: p.token.Pos}
			p.nextToken()
		case NUMBER:
			idx, err := p.parseNumber()
			if err != nil {
				return nil, err
			}
			ref.Index = idx
		default:
			return nil, p.errorf(p.token.Pos, "expected index variable or integer, got %q", p.token.Literal)
		}
		if _, err := p.expect(RBRACKET); err != nil {
			return nil, err
		}
	}
	return ref, nil
}

func (p *Parser) parseNumber() (*NumberLit, error) {
	tok, err := p.expect(NUMBER)
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		return nil, p.errorf(tok.Pos, "invalid number %q", tok.Literal)
	}
	return &NumberLit{Value: v, Pos: tok.Pos}, nil
}
