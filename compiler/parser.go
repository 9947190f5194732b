package compiler

import (
	"fmt"
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for ember script blocks
// ---------------------------------------------------------------------------

// ParseError is a syntax error with its source position.
type ParseError struct {
	Pos Position
	Msg string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// Parser consumes a token stream and produces a Program. A malformed
// statement is recorded and skipped via synchronization; it does not abort
// the rest of the block.
type Parser struct {
	tokens []Token
	pos    int
	errors []ParseError
}

// NewParser creates a parser over a token stream produced by the lexer.
func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses the token stream into a Program. The leading block-start
// token is skipped if present; parsing stops at EOF. Collected syntax
// errors are available via Errors.
func Parse(tokens []Token) (*Program, []ParseError) {
	p := NewParser(tokens)
	prog := p.ParseProgram()
	return prog, p.Errors()
}

// Errors returns the syntax errors collected while parsing.
func (p *Parser) Errors() []ParseError {
	return p.errors
}

// ParseProgram parses statements until the end of the stream.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}

	if p.cur().Type == TokenBlockStart {
		p.advance()
	}

	for !p.atEnd() {
		if p.cur().Type == TokenSemicolon {
			p.advance()
			continue
		}
		if p.cur().Type == TokenError {
			p.record(p.cur().Pos, p.cur().Literal)
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			p.recordErr(err)
			p.synchronize()
			continue
		}
		prog.Statements = append(prog.Statements, stmt)
	}

	return prog
}

// ---------------------------------------------------------------------------
// Token stream helpers
// ---------------------------------------------------------------------------

func (p *Parser) cur() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Type: TokenEOF}
}

func (p *Parser) advance() Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) curIs(t TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) atEnd() bool {
	switch p.cur().Type {
	case TokenEOF, TokenBlockEnd:
		return true
	}
	return false
}

// expect consumes the current token if it matches, otherwise fails.
func (p *Parser) expect(t TokenType) (Token, error) {
	if p.curIs(t) {
		return p.advance(), nil
	}
	return Token{}, p.errorf(p.cur().Pos, "expected %s, got %s", t, p.cur().Type)
}

func (p *Parser) errorf(pos Position, format string, args ...interface{}) error {
	return ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *Parser) record(pos Position, msg string) {
	p.errors = append(p.errors, ParseError{Pos: pos, Msg: msg})
}

func (p *Parser) recordErr(err error) {
	if pe, ok := err.(ParseError); ok {
		p.errors = append(p.errors, pe)
		return
	}
	p.errors = append(p.errors, ParseError{Msg: err.Error()})
}

// synchronize discards tokens until a statement boundary: a statement
// terminator (consumed) or a statement-starting keyword (left in place).
func (p *Parser) synchronize() {
	for !p.atEnd() {
		if p.curIs(TokenSemicolon) {
			p.advance()
			return
		}
		switch p.cur().Type {
		case TokenVar, TokenIf, TokenWhile, TokenReturn:
			return
		}
		p.advance()
	}
}

// canStartExpr reports whether a token can begin an expression.
func canStartExpr(t TokenType) bool {
	switch t {
	case TokenNumber, TokenString, TokenTrue, TokenFalse, TokenNull,
		TokenIdentifier, TokenLParen, TokenMinus, TokenNot:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() (Stmt, error) {
	switch p.cur().Type {
	case TokenVar:
		return p.parseVarDecl()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenReturn:
		return p.parseReturn()
	default:
		return p.parseExprOrAssignment()
	}
}

func (p *Parser) parseVarDecl() (Stmt, error) {
	start := p.advance() // var

	name, err := p.expect(TokenIdentifier)
	if err != nil {
		return nil, err
	}

	decl := &VarDecl{PosVal: start.Pos, Name: name.Literal}
	if p.curIs(TokenAssign) {
		p.advance()
		init, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		decl.Init = init
	}
	p.eatSemicolon()
	return decl, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	start := p.advance() // if

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenThen); err != nil {
		return nil, err
	}

	stmt := &IfStmt{PosVal: start.Pos, Cond: cond}
	stmt.Then = p.parseBody(TokenElse, TokenElseIf, TokenEndIf)

	for p.curIs(TokenElseIf) {
		branch := ElseIf{PosVal: p.advance().Pos}
		branch.Cond, err = p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenThen); err != nil {
			return nil, err
		}
		branch.Body = p.parseBody(TokenElse, TokenElseIf, TokenEndIf)
		stmt.ElseIfs = append(stmt.ElseIfs, branch)
	}

	if p.curIs(TokenElse) {
		p.advance()
		stmt.Else = p.parseBody(TokenEndIf)
	}

	if _, err := p.expect(TokenEndIf); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	start := p.advance() // while

	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenDo); err != nil {
		return nil, err
	}

	stmt := &WhileStmt{PosVal: start.Pos, Cond: cond}
	stmt.Body = p.parseBody(TokenEndWhile)

	if _, err := p.expect(TokenEndWhile); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	start := p.advance() // return

	stmt := &ReturnStmt{PosVal: start.Pos}
	if canStartExpr(p.cur().Type) {
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Value = value
	}
	p.eatSemicolon()
	return stmt, nil
}

// parseExprOrAssignment parses a full expression, then turns it into an
// assignment if an = follows. Only an identifier or a member access is a
// valid assignment target.
func (p *Parser) parseExprOrAssignment() (Stmt, error) {
	pos := p.cur().Pos
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	if p.curIs(TokenAssign) {
		switch expr.(type) {
		case *Identifier, *MemberExpr:
		default:
			return nil, p.errorf(p.cur().Pos, "invalid assignment target")
		}
		p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		p.eatSemicolon()
		return &Assignment{PosVal: pos, Target: expr, Value: value}, nil
	}

	p.eatSemicolon()
	return &ExprStmt{PosVal: pos, Expr: expr}, nil
}

// parseBody parses statements until one of the terminator tokens (left in
// place) or the end of the stream. Bad statements inside a body are
// recovered the same way as at top level.
func (p *Parser) parseBody(terminators ...TokenType) []Stmt {
	var body []Stmt
	for !p.atEnd() {
		t := p.cur().Type
		for _, term := range terminators {
			if t == term {
				return body
			}
		}
		if t == TokenSemicolon {
			p.advance()
			continue
		}
		if t == TokenError {
			p.record(p.cur().Pos, p.cur().Literal)
			p.advance()
			continue
		}
		stmt, err := p.parseStatement()
		if err != nil {
			p.recordErr(err)
			p.synchronize()
			continue
		}
		body = append(body, stmt)
	}
	return body
}

func (p *Parser) eatSemicolon() {
	if p.curIs(TokenSemicolon) {
		p.advance()
	}
}

// ---------------------------------------------------------------------------
// Expressions
//
// Precedence, tight to loose: unary, multiplicative, additive, relational,
// equality, and, or. Postfix .member and (args) chains bind tighter than
// any operator.
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression() (Expr, error) {
	return p.parseOr()
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenOr) {
		op := p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{PosVal: op.Pos, Op: "or", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenAnd) {
		op := p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{PosVal: op.Pos, Op: "and", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenEq) || p.curIs(TokenNotEq) {
		op := p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{PosVal: op.Pos, Op: op.Literal, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseRelational() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenLt) || p.curIs(TokenLtEq) || p.curIs(TokenGt) || p.curIs(TokenGtEq) {
		op := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{PosVal: op.Pos, Op: op.Literal, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenPlus) || p.curIs(TokenMinus) {
		op := p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{PosVal: op.Pos, Op: op.Literal, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.curIs(TokenStar) || p.curIs(TokenSlash) || p.curIs(TokenPercent) {
		op := p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{PosVal: op.Pos, Op: op.Literal, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	switch p.cur().Type {
	case TokenNot:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{PosVal: op.Pos, Op: "not", Operand: operand}, nil
	case TokenMinus:
		op := p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{PosVal: op.Pos, Op: "-", Operand: operand}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by any chain of .member accesses
// and (args) calls, e.g. a.b.c(x).d.
func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for {
		switch p.cur().Type {
		case TokenDot:
			dot := p.advance()
			name, err := p.expect(TokenIdentifier)
			if err != nil {
				return nil, err
			}
			expr = &MemberExpr{PosVal: dot.Pos, Object: expr, Name: name.Literal}

		case TokenLParen:
			lparen := p.advance()
			var args []Expr
			if !p.curIs(TokenRParen) {
				for {
					arg, err := p.parseExpression()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.curIs(TokenComma) {
						break
					}
					p.advance()
				}
			}
			if _, err := p.expect(TokenRParen); err != nil {
				return nil, err
			}
			expr = &CallExpr{PosVal: lparen.Pos, Callee: expr, Args: args}

		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case TokenNumber:
		p.advance()
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(tok.Pos, "invalid number literal %q", tok.Literal)
		}
		return &NumberLit{PosVal: tok.Pos, Value: value}, nil

	case TokenString:
		p.advance()
		return &StringLit{PosVal: tok.Pos, Value: tok.Literal}, nil

	case TokenTrue:
		p.advance()
		return &BoolLit{PosVal: tok.Pos, Value: true}, nil

	case TokenFalse:
		p.advance()
		return &BoolLit{PosVal: tok.Pos, Value: false}, nil

	case TokenNull:
		p.advance()
		return &NullLit{PosVal: tok.Pos}, nil

	case TokenIdentifier:
		p.advance()
		return &Identifier{PosVal: tok.Pos, Name: tok.Literal}, nil

	case TokenLParen:
		p.advance()
		inner, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRParen); err != nil {
			return nil, err
		}
		return &GroupExpr{PosVal: tok.Pos, Expr: inner}, nil
	}

	return nil, p.errorf(tok.Pos, "unexpected token %s", tok.Type)
}
