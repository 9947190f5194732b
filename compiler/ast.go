package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for ember script blocks
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes. Nodes are built fresh
// per compiled block and discarded after compilation.
type Node interface {
	Pos() Position
	node() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Program is an ordered sequence of statements for one block.
type Program struct {
	Statements []Stmt
}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// VarDecl represents `var name [= init]`.
type VarDecl struct {
	PosVal Position
	Name   string
	Init   Expr // nil when no initializer
}

func (n *VarDecl) Pos() Position { return n.PosVal }
func (n *VarDecl) node()         {}
func (n *VarDecl) stmt()         {}

// Assignment represents `target = value`. Target is an Identifier or a
// MemberExpr; the parser rejects anything else.
type Assignment struct {
	PosVal Position
	Target Expr
	Value  Expr
}

func (n *Assignment) Pos() Position { return n.PosVal }
func (n *Assignment) node()         {}
func (n *Assignment) stmt()         {}

// ExprStmt represents an expression evaluated for its side effects.
type ExprStmt struct {
	PosVal Position
	Expr   Expr
}

func (n *ExprStmt) Pos() Position { return n.PosVal }
func (n *ExprStmt) node()         {}
func (n *ExprStmt) stmt()         {}

// ElseIf is one `else if cond then body` branch.
type ElseIf struct {
	PosVal Position
	Cond   Expr
	Body   []Stmt
}

// IfStmt represents `if cond then ... [else if ...]* [else ...] end if`.
type IfStmt struct {
	PosVal  Position
	Cond    Expr
	Then    []Stmt
	ElseIfs []ElseIf
	Else    []Stmt // nil when no else branch
}

func (n *IfStmt) Pos() Position { return n.PosVal }
func (n *IfStmt) node()         {}
func (n *IfStmt) stmt()         {}

// WhileStmt represents `while cond do ... end while`.
type WhileStmt struct {
	PosVal Position
	Cond   Expr
	Body   []Stmt
}

func (n *WhileStmt) Pos() Position { return n.PosVal }
func (n *WhileStmt) node()         {}
func (n *WhileStmt) stmt()         {}

// ReturnStmt represents `return [value]`.
type ReturnStmt struct {
	PosVal Position
	Value  Expr // nil when bare return
}

func (n *ReturnStmt) Pos() Position { return n.PosVal }
func (n *ReturnStmt) node()         {}
func (n *ReturnStmt) stmt()         {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// NumberLit represents a numeric literal.
type NumberLit struct {
	PosVal Position
	Value  float64
}

func (n *NumberLit) Pos() Position { return n.PosVal }
func (n *NumberLit) node()         {}
func (n *NumberLit) expr()         {}

// StringLit represents a string literal (already escape-decoded).
type StringLit struct {
	PosVal Position
	Value  string
}

func (n *StringLit) Pos() Position { return n.PosVal }
func (n *StringLit) node()         {}
func (n *StringLit) expr()         {}

// BoolLit represents true or false.
type BoolLit struct {
	PosVal Position
	Value  bool
}

func (n *BoolLit) Pos() Position { return n.PosVal }
func (n *BoolLit) node()         {}
func (n *BoolLit) expr()         {}

// NullLit represents null.
type NullLit struct {
	PosVal Position
}

func (n *NullLit) Pos() Position { return n.PosVal }
func (n *NullLit) node()         {}
func (n *NullLit) expr()         {}

// Identifier represents a bare name.
type Identifier struct {
	PosVal Position
	Name   string
}

func (n *Identifier) Pos() Position { return n.PosVal }
func (n *Identifier) node()         {}
func (n *Identifier) expr()         {}

// BinaryExpr represents a binary operation, including `and`/`or`.
type BinaryExpr struct {
	PosVal Position
	Op     string // +, -, *, /, %, ==, !=, <, >, <=, >=, and, or
	Left   Expr
	Right  Expr
}

func (n *BinaryExpr) Pos() Position { return n.PosVal }
func (n *BinaryExpr) node()         {}
func (n *BinaryExpr) expr()         {}

// UnaryExpr represents `not x` or unary minus.
type UnaryExpr struct {
	PosVal  Position
	Op      string // not, -
	Operand Expr
}

func (n *UnaryExpr) Pos() Position { return n.PosVal }
func (n *UnaryExpr) node()         {}
func (n *UnaryExpr) expr()         {}

// MemberExpr represents `object.name`.
type MemberExpr struct {
	PosVal Position
	Object Expr
	Name   string
}

func (n *MemberExpr) Pos() Position { return n.PosVal }
func (n *MemberExpr) node()         {}
func (n *MemberExpr) expr()         {}

// CallExpr represents `callee(args...)`.
type CallExpr struct {
	PosVal Position
	Callee Expr
	Args   []Expr
}

func (n *CallExpr) Pos() Position { return n.PosVal }
func (n *CallExpr) node()         {}
func (n *CallExpr) expr()         {}

// GroupExpr represents a parenthesized expression.
type GroupExpr struct {
	PosVal Position
	Expr   Expr
}

func (n *GroupExpr) Pos() Position { return n.PosVal }
func (n *GroupExpr) node()         {}
func (n *GroupExpr) expr()         {}
