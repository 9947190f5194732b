package bytecode

import (
	"fmt"

	"github.com/emberscript/ember/compiler"
)

// Compiler converts a parsed program to bytecode.
type Compiler struct {
	chunk *Chunk

	// lastOp is the opcode of the most recent instruction. The raw last
	// code byte is no good for this: an operand byte can collide with a
	// return opcode.
	lastOp Opcode
}

// Compile compiles a program to a chunk. The emitted chunk always ends
// with a return-class instruction so the VM never runs off the end.
func Compile(prog *compiler.Program) (*Chunk, error) {
	c := &Compiler{
		chunk: &Chunk{
			Version:   BytecodeVersion,
			Code:      make([]byte, 0, 256),
			Constants: make([]Value, 0, 16),
		},
	}

	for _, stmt := range prog.Statements {
		if err := c.compileStatement(stmt); err != nil {
			return nil, err
		}
	}

	if !c.lastOp.IsReturn() {
		c.emit(OpHalt)
	}

	return c.chunk, nil
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func (c *Compiler) emit(op Opcode) {
	c.chunk.Emit(op)
	c.lastOp = op
}

func (c *Compiler) emitU16(op Opcode, operand uint16) {
	c.chunk.EmitU16(op, operand)
	c.lastOp = op
}

func (c *Compiler) emitWithOperand(op Opcode, operands ...byte) {
	c.chunk.EmitWithOperand(op, operands...)
	c.lastOp = op
}

func (c *Compiler) emitConstant(v Value) {
	c.chunk.EmitConstant(v)
	c.lastOp = OpConst
}

func (c *Compiler) emitJump(op Opcode) int {
	c.lastOp = op
	return c.chunk.EmitJump(op)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.chunk.EmitLoop(loopStart)
	c.lastOp = OpJump
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Compiler) compileStatement(stmt compiler.Stmt) error {
	c.chunk.MarkLine(stmt.Pos().Line)

	switch s := stmt.(type) {
	case *compiler.VarDecl:
		if s.Init != nil {
			if err := c.compileExpression(s.Init); err != nil {
				return err
			}
		} else {
			c.emit(OpNull)
		}
		c.emitU16(OpStoreName, c.chunk.AddName(s.Name))
		return nil

	case *compiler.Assignment:
		return c.compileAssignment(s)

	case *compiler.ExprStmt:
		if err := c.compileExpression(s.Expr); err != nil {
			return err
		}
		c.emit(OpPop)
		return nil

	case *compiler.IfStmt:
		return c.compileIf(s)

	case *compiler.WhileStmt:
		return c.compileWhile(s)

	case *compiler.ReturnStmt:
		if s.Value != nil {
			if err := c.compileExpression(s.Value); err != nil {
				return err
			}
			c.emit(OpReturn)
		} else {
			c.emit(OpReturnNil)
		}
		return nil

	default:
		return fmt.Errorf("line %d: cannot compile statement %T", stmt.Pos().Line, stmt)
	}
}

func (c *Compiler) compileAssignment(s *compiler.Assignment) error {
	switch target := s.Target.(type) {
	case *compiler.Identifier:
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emitU16(OpStoreName, c.chunk.AddName(target.Name))
		return nil

	case *compiler.MemberExpr:
		// Object first, then the value, matching OpSetMember's stack order.
		if err := c.compileExpression(target.Object); err != nil {
			return err
		}
		if err := c.compileExpression(s.Value); err != nil {
			return err
		}
		c.emitU16(OpSetMember, c.chunk.AddName(target.Name))
		return nil

	default:
		return fmt.Errorf("line %d: invalid assignment target %T", s.Pos().Line, s.Target)
	}
}

// compileIf lowers an if/elseif/else chain. Conditional jumps peek rather
// than pop, so each branch pops the condition explicitly on both sides.
func (c *Compiler) compileIf(s *compiler.IfStmt) error {
	var endJumps []int

	emitBranch := func(cond compiler.Expr, body []compiler.Stmt) error {
		if err := c.compileExpression(cond); err != nil {
			return err
		}
		skip := c.emitJump(OpJumpFalse)
		c.emit(OpPop)
		for _, stmt := range body {
			if err := c.compileStatement(stmt); err != nil {
				return err
			}
		}
		endJumps = append(endJumps, c.emitJump(OpJump))
		c.chunk.PatchJump(skip)
		c.emit(OpPop)
		return nil
	}

	if err := emitBranch(s.Cond, s.Then); err != nil {
		return err
	}
	for _, branch := range s.ElseIfs {
		if err := emitBranch(branch.Cond, branch.Body); err != nil {
			return err
		}
	}
	for _, stmt := range s.Else {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}

	for _, jump := range endJumps {
		c.chunk.PatchJump(jump)
	}
	return nil
}

func (c *Compiler) compileWhile(s *compiler.WhileStmt) error {
	loopStart := c.chunk.CurrentOffset()

	if err := c.compileExpression(s.Cond); err != nil {
		return err
	}
	exit := c.emitJump(OpJumpFalse)
	c.emit(OpPop)

	for _, stmt := range s.Body {
		if err := c.compileStatement(stmt); err != nil {
			return err
		}
	}

	c.emitLoop(loopStart)
	c.chunk.PatchJump(exit)
	c.emit(OpPop)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOpcodes = map[string]Opcode{
	"+":  OpAdd,
	"-":  OpSub,
	"*":  OpMul,
	"/":  OpDiv,
	"%":  OpMod,
	"==": OpEq,
	"!=": OpNe,
	"<":  OpLt,
	"<=": OpLe,
	">":  OpGt,
	">=": OpGe,
}

func (c *Compiler) compileExpression(expr compiler.Expr) error {
	switch e := expr.(type) {
	case *compiler.NumberLit:
		c.emitConstant(Number(e.Value))
		return nil

	case *compiler.StringLit:
		c.emitConstant(String(e.Value))
		return nil

	case *compiler.BoolLit:
		if e.Value {
			c.emit(OpTrue)
		} else {
			c.emit(OpFalse)
		}
		return nil

	case *compiler.NullLit:
		c.emit(OpNull)
		return nil

	case *compiler.Identifier:
		c.emitU16(OpLoadName, c.chunk.AddName(e.Name))
		return nil

	case *compiler.GroupExpr:
		return c.compileExpression(e.Expr)

	case *compiler.UnaryExpr:
		if err := c.compileExpression(e.Operand); err != nil {
			return err
		}
		switch e.Op {
		case "-":
			c.emit(OpNeg)
		case "not":
			c.emit(OpNot)
		default:
			return fmt.Errorf("line %d: unknown unary operator %q", e.Pos().Line, e.Op)
		}
		return nil

	case *compiler.BinaryExpr:
		return c.compileBinary(e)

	case *compiler.MemberExpr:
		if err := c.compileExpression(e.Object); err != nil {
			return err
		}
		c.emitU16(OpGetMember, c.chunk.AddName(e.Name))
		return nil

	case *compiler.CallExpr:
		return c.compileCall(e)

	default:
		return fmt.Errorf("line %d: cannot compile expression %T", expr.Pos().Line, expr)
	}
}

// compileBinary lowers a binary operator. and/or short-circuit over the
// left operand; the peek-jump leaves the left value on the stack as the
// expression result when the right side is skipped.
func (c *Compiler) compileBinary(e *compiler.BinaryExpr) error {
	switch e.Op {
	case "and", "or":
		if err := c.compileExpression(e.Left); err != nil {
			return err
		}
		jumpOp := OpJumpFalse
		if e.Op == "or" {
			jumpOp = OpJumpTrue
		}
		skip := c.emitJump(jumpOp)
		c.emit(OpPop)
		if err := c.compileExpression(e.Right); err != nil {
			return err
		}
		c.chunk.PatchJump(skip)
		return nil
	}

	op, ok := binaryOpcodes[e.Op]
	if !ok {
		return fmt.Errorf("line %d: unknown binary operator %q", e.Pos().Line, e.Op)
	}
	if err := c.compileExpression(e.Left); err != nil {
		return err
	}
	if err := c.compileExpression(e.Right); err != nil {
		return err
	}
	c.emit(op)
	return nil
}

// compileCall lowers a call. A member-access callee is a method call on
// the object the member belongs to. Anything else is a free-function call:
// the callee value is pushed below the arguments and resolved by the host
// at run time, which is what lets a bare name act as a function reference.
func (c *Compiler) compileCall(e *compiler.CallExpr) error {
	if len(e.Args) > 255 {
		return fmt.Errorf("line %d: too many call arguments (%d)", e.Pos().Line, len(e.Args))
	}
	argc := byte(len(e.Args))

	if callee, ok := e.Callee.(*compiler.MemberExpr); ok {
		if err := c.compileExpression(callee.Object); err != nil {
			return err
		}
		for _, arg := range e.Args {
			if err := c.compileExpression(arg); err != nil {
				return err
			}
		}
		idx := c.chunk.AddName(callee.Name)
		c.emitWithOperand(OpCallMethod, byte(idx>>8), byte(idx), argc)
		return nil
	}

	if err := c.compileExpression(e.Callee); err != nil {
		return err
	}
	for _, arg := range e.Args {
		if err := c.compileExpression(arg); err != nil {
			return err
		}
	}
	c.emitWithOperand(OpCall, argc)
	return nil
}
