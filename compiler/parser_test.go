package compiler

import (
	"strings"
	"testing"
)

// parseSource wraps the source in a block, lexes it, and parses it.
func parseSource(t *testing.T, src string) (*Program, []ParseError) {
	t.Helper()
	l := NewLexer("@em{ " + src + " }")
	tokens, ok := l.NextBlock()
	if !ok {
		t.Fatalf("no block extracted from %q", src)
	}
	return Parse(tokens)
}

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	prog, errs := parseSource(t, src)
	if len(errs) > 0 {
		t.Fatalf("parse %q: unexpected errors: %v", src, errs)
	}
	return prog
}

func TestParseVarDecl(t *testing.T) {
	prog := mustParse(t, "var x = 10")
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(prog.Statements))
	}
	decl, ok := prog.Statements[0].(*VarDecl)
	if !ok {
		t.Fatalf("expected *VarDecl, got %T", prog.Statements[0])
	}
	if decl.Name != "x" {
		t.Errorf("expected name x, got %q", decl.Name)
	}
	if num, ok := decl.Init.(*NumberLit); !ok || num.Value != 10 {
		t.Errorf("expected initializer 10, got %#v", decl.Init)
	}
}

func TestParseVarDeclNoInit(t *testing.T) {
	prog := mustParse(t, "var x")
	decl := prog.Statements[0].(*VarDecl)
	if decl.Init != nil {
		t.Errorf("expected nil initializer, got %#v", decl.Init)
	}
}

func TestParsePrecedence(t *testing.T) {
	// 10 + 5 * 2 must parse as 10 + (5 * 2)
	prog := mustParse(t, "var x = 10 + 5 * 2")
	decl := prog.Statements[0].(*VarDecl)
	add, ok := decl.Init.(*BinaryExpr)
	if !ok || add.Op != "+" {
		t.Fatalf("expected + at root, got %#v", decl.Init)
	}
	mul, ok := add.Right.(*BinaryExpr)
	if !ok || mul.Op != "*" {
		t.Fatalf("expected * on the right, got %#v", add.Right)
	}
}

func TestParseRelationalBindsTighterThanEquality(t *testing.T) {
	prog := mustParse(t, "a < b == c < d")
	stmt := prog.Statements[0].(*ExprStmt)
	eq, ok := stmt.Expr.(*BinaryExpr)
	if !ok || eq.Op != "==" {
		t.Fatalf("expected == at root, got %#v", stmt.Expr)
	}
	if lt, ok := eq.Left.(*BinaryExpr); !ok || lt.Op != "<" {
		t.Errorf("expected < on the left, got %#v", eq.Left)
	}
}

func TestParseLogicalPrecedence(t *testing.T) {
	// a or b and c must parse as a or (b and c)
	prog := mustParse(t, "a or b and c")
	stmt := prog.Statements[0].(*ExprStmt)
	or, ok := stmt.Expr.(*BinaryExpr)
	if !ok || or.Op != "or" {
		t.Fatalf("expected or at root, got %#v", stmt.Expr)
	}
	if and, ok := or.Right.(*BinaryExpr); !ok || and.Op != "and" {
		t.Errorf("expected and on the right, got %#v", or.Right)
	}
}

func TestParseUnary(t *testing.T) {
	prog := mustParse(t, "not -x")
	stmt := prog.Statements[0].(*ExprStmt)
	outer, ok := stmt.Expr.(*UnaryExpr)
	if !ok || outer.Op != "not" {
		t.Fatalf("expected not, got %#v", stmt.Expr)
	}
	if inner, ok := outer.Operand.(*UnaryExpr); !ok || inner.Op != "-" {
		t.Errorf("expected nested negate, got %#v", outer.Operand)
	}
}

func TestParseGrouping(t *testing.T) {
	prog := mustParse(t, "(10 + 5) * 2")
	stmt := prog.Statements[0].(*ExprStmt)
	mul := stmt.Expr.(*BinaryExpr)
	if mul.Op != "*" {
		t.Fatalf("expected * at root, got %q", mul.Op)
	}
	if _, ok := mul.Left.(*GroupExpr); !ok {
		t.Errorf("expected group on the left, got %T", mul.Left)
	}
}

func TestParsePostfixChain(t *testing.T) {
	prog := mustParse(t, "a.b.c(x).d")
	stmt := prog.Statements[0].(*ExprStmt)

	// Outermost node is .d on a call on .c on .b on a.
	outer, ok := stmt.Expr.(*MemberExpr)
	if !ok || outer.Name != "d" {
		t.Fatalf("expected .d at root, got %#v", stmt.Expr)
	}
	call, ok := outer.Object.(*CallExpr)
	if !ok || len(call.Args) != 1 {
		t.Fatalf("expected call with 1 arg, got %#v", outer.Object)
	}
	c, ok := call.Callee.(*MemberExpr)
	if !ok || c.Name != "c" {
		t.Fatalf("expected .c callee, got %#v", call.Callee)
	}
	b, ok := c.Object.(*MemberExpr)
	if !ok || b.Name != "b" {
		t.Fatalf("expected .b, got %#v", c.Object)
	}
	if a, ok := b.Object.(*Identifier); !ok || a.Name != "a" {
		t.Errorf("expected identifier a, got %#v", b.Object)
	}
}

func TestParseCallArguments(t *testing.T) {
	prog := mustParse(t, "f(1, \"two\", x)")
	stmt := prog.Statements[0].(*ExprStmt)
	call := stmt.Expr.(*CallExpr)
	if len(call.Args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(call.Args))
	}
	if _, ok := call.Args[0].(*NumberLit); !ok {
		t.Errorf("arg 0: expected number, got %T", call.Args[0])
	}
	if _, ok := call.Args[1].(*StringLit); !ok {
		t.Errorf("arg 1: expected string, got %T", call.Args[1])
	}
}

func TestParseIfElseIfElse(t *testing.T) {
	prog := mustParse(t, `
		if a then
			var x = 1
		else if b then
			var x = 2
		else if c then
			var x = 3
		else
			var x = 4
		end if`)
	stmt := prog.Statements[0].(*IfStmt)
	if len(stmt.Then) != 1 {
		t.Errorf("expected 1 then statement, got %d", len(stmt.Then))
	}
	if len(stmt.ElseIfs) != 2 {
		t.Errorf("expected 2 else-if branches, got %d", len(stmt.ElseIfs))
	}
	if len(stmt.Else) != 1 {
		t.Errorf("expected 1 else statement, got %d", len(stmt.Else))
	}
}

func TestParseIfParensOptional(t *testing.T) {
	for _, src := range []string{
		"if x > 1 then var y = 1 end if",
		"if (x > 1) then var y = 1 end if",
	} {
		prog := mustParse(t, src)
		if _, ok := prog.Statements[0].(*IfStmt); !ok {
			t.Errorf("%q: expected *IfStmt, got %T", src, prog.Statements[0])
		}
	}
}

func TestParseWhile(t *testing.T) {
	prog := mustParse(t, "while i < 5 do i = i + 1 end while")
	stmt := prog.Statements[0].(*WhileStmt)
	if len(stmt.Body) != 1 {
		t.Fatalf("expected 1 body statement, got %d", len(stmt.Body))
	}
	if _, ok := stmt.Body[0].(*Assignment); !ok {
		t.Errorf("expected assignment body, got %T", stmt.Body[0])
	}
}

func TestParseReturn(t *testing.T) {
	prog := mustParse(t, "return x + 1")
	stmt := prog.Statements[0].(*ReturnStmt)
	if stmt.Value == nil {
		t.Fatal("expected a return value")
	}

	prog = mustParse(t, "return")
	stmt = prog.Statements[0].(*ReturnStmt)
	if stmt.Value != nil {
		t.Errorf("expected bare return, got %#v", stmt.Value)
	}
}

func TestParseAssignmentTargets(t *testing.T) {
	prog := mustParse(t, "x = 1 obj.prop = 2")
	if len(prog.Statements) != 2 {
		t.Fatalf("expected 2 statements, got %d", len(prog.Statements))
	}
	first := prog.Statements[0].(*Assignment)
	if _, ok := first.Target.(*Identifier); !ok {
		t.Errorf("expected identifier target, got %T", first.Target)
	}
	second := prog.Statements[1].(*Assignment)
	if _, ok := second.Target.(*MemberExpr); !ok {
		t.Errorf("expected member target, got %T", second.Target)
	}
}

func TestParseInvalidAssignmentTarget(t *testing.T) {
	_, errs := parseSource(t, "1 + 2 = 3")
	if len(errs) == 0 {
		t.Fatal("expected an error for invalid assignment target")
	}
	if !strings.Contains(errs[0].Msg, "assignment target") {
		t.Errorf("unexpected message: %q", errs[0].Msg)
	}
}

func TestParseSemicolonsOptional(t *testing.T) {
	withSemis := mustParse(t, "var x = 1; x = 2; return x;")
	without := mustParse(t, "var x = 1 x = 2 return x")
	if len(withSemis.Statements) != 3 || len(without.Statements) != 3 {
		t.Errorf("expected 3 statements either way, got %d and %d",
			len(withSemis.Statements), len(without.Statements))
	}
}

func TestParseRecoversAfterBadStatement(t *testing.T) {
	prog, errs := parseSource(t, "var = 5 var y = 2")
	if len(errs) == 0 {
		t.Fatal("expected a syntax error")
	}
	// The malformed statement is dropped, the next one survives.
	if len(prog.Statements) != 1 {
		t.Fatalf("expected 1 recovered statement, got %d", len(prog.Statements))
	}
	if decl, ok := prog.Statements[0].(*VarDecl); !ok || decl.Name != "y" {
		t.Errorf("expected var y to survive, got %#v", prog.Statements[0])
	}
}

func TestParseMissingEndIfIsHardFailure(t *testing.T) {
	_, errs := parseSource(t, "if x then var y = 1")
	if len(errs) == 0 {
		t.Fatal("expected an error for missing end if")
	}
}

func TestParseMissingThenIsHardFailure(t *testing.T) {
	_, errs := parseSource(t, "if x var y = 1 end if")
	if len(errs) == 0 {
		t.Fatal("expected an error for missing then")
	}
}

func TestParseErrorPositions(t *testing.T) {
	_, errs := parseSource(t, "var")
	if len(errs) == 0 {
		t.Fatal("expected an error")
	}
	if errs[0].Pos.Line == 0 {
		t.Errorf("expected a source position, got %+v", errs[0].Pos)
	}
}
