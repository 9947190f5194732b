package bytecode

import (
	"fmt"
	"strings"
	"testing"

	"github.com/emberscript/ember/compiler"
)

// compileSource lexes, parses and compiles one script body.
func compileSource(t *testing.T, src string) *Chunk {
	t.Helper()
	l := compiler.NewLexer("@em{ " + src + " }")
	tokens, ok := l.NextBlock()
	if !ok {
		t.Fatalf("no block extracted from %q", src)
	}
	prog, errs := compiler.Parse(tokens)
	if len(errs) > 0 {
		t.Fatalf("parse %q: %v", src, errs)
	}
	chunk, err := Compile(prog)
	if err != nil {
		t.Fatalf("compile %q: %v", src, err)
	}
	return chunk
}

// opcodesOf decodes the chunk's code into its opcode sequence.
func opcodesOf(c *Chunk) []Opcode {
	var ops []Opcode
	for pos := 0; pos < len(c.Code); {
		op := Opcode(c.Code[pos])
		ops = append(ops, op)
		pos += op.InstructionLen()
	}
	return ops
}

func assertOpcodes(t *testing.T, c *Chunk, want []Opcode) {
	t.Helper()
	got := opcodesOf(c)
	if len(got) != len(want) {
		t.Fatalf("opcode sequence %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("opcode[%d] = %s, want %s (full sequence %v)", i, got[i], want[i], got)
		}
	}
}

func TestCompileVarDecl(t *testing.T) {
	chunk := compileSource(t, "var x = 10")
	assertOpcodes(t, chunk, []Opcode{OpConst, OpStoreName, OpHalt})
	if chunk.GetName(0) != "x" {
		t.Errorf("name pool[0] = %q, want x", chunk.GetName(0))
	}
	if got := chunk.GetConstant(0); got.AsNumber() != 10 {
		t.Errorf("constant pool[0] = %v, want 10", got)
	}
}

func TestCompileVarDeclNoInit(t *testing.T) {
	chunk := compileSource(t, "var x")
	assertOpcodes(t, chunk, []Opcode{OpNull, OpStoreName, OpHalt})
}

func TestCompileExprStmtPopsResult(t *testing.T) {
	chunk := compileSource(t, "1 + 2")
	assertOpcodes(t, chunk, []Opcode{OpConst, OpConst, OpAdd, OpPop, OpHalt})
}

func TestCompileReturnSuppressesHalt(t *testing.T) {
	chunk := compileSource(t, "return 1")
	assertOpcodes(t, chunk, []Opcode{OpConst, OpReturn})

	chunk = compileSource(t, "return")
	assertOpcodes(t, chunk, []Opcode{OpReturnNil})
}

func TestCompileMemberAssignmentOrder(t *testing.T) {
	// Object is pushed before the value so OpSetMember pops value then target.
	chunk := compileSource(t, "obj.prop = 5")
	assertOpcodes(t, chunk, []Opcode{OpLoadName, OpConst, OpSetMember, OpHalt})
}

func TestCompileFreeCall(t *testing.T) {
	// The callee is compiled as an expression below the arguments.
	chunk := compileSource(t, "floor(2.5)")
	assertOpcodes(t, chunk, []Opcode{OpLoadName, OpConst, OpCall, OpPop, OpHalt})
}

func TestCompileMethodCall(t *testing.T) {
	chunk := compileSource(t, "canvas.show(1, 2)")
	assertOpcodes(t, chunk, []Opcode{OpLoadName, OpConst, OpConst, OpCallMethod, OpPop, OpHalt})
	// Both names land in the pool.
	if chunk.GetName(0) != "canvas" || chunk.GetName(1) != "show" {
		t.Errorf("name pool = %v, want [canvas show]", chunk.Names)
	}
}

func TestCompileShortCircuitEmitsJump(t *testing.T) {
	chunk := compileSource(t, "a and b")
	assertOpcodes(t, chunk, []Opcode{OpLoadName, OpJumpFalse, OpPop, OpLoadName, OpPop, OpHalt})

	chunk = compileSource(t, "a or b")
	assertOpcodes(t, chunk, []Opcode{OpLoadName, OpJumpTrue, OpPop, OpLoadName, OpPop, OpHalt})
}

func TestCompileIfShape(t *testing.T) {
	chunk := compileSource(t, "if a then b = 1 end if")
	assertOpcodes(t, chunk, []Opcode{
		OpLoadName, OpJumpFalse, OpPop, OpConst, OpStoreName, OpJump, OpPop, OpHalt,
	})
	if err := chunk.Validate(); err != nil {
		t.Errorf("if chunk failed validation: %v", err)
	}
}

func TestCompileWhileShape(t *testing.T) {
	chunk := compileSource(t, "while a do b = 1 end while")
	assertOpcodes(t, chunk, []Opcode{
		OpLoadName, OpJumpFalse, OpPop, OpConst, OpStoreName, OpJump, OpPop, OpHalt,
	})
	if err := chunk.Validate(); err != nil {
		t.Errorf("while chunk failed validation: %v", err)
	}
	// The second jump is the backward loop edge.
	pos := 0
	for pos < len(chunk.Code) {
		op := Opcode(chunk.Code[pos])
		if op == OpJump {
			delta := int16(u16(chunk.Code[pos+1:]))
			if delta >= 0 {
				t.Errorf("loop jump delta = %d, want negative", delta)
			}
			break
		}
		pos += op.InstructionLen()
	}
}

func TestCompileConstantPoolShared(t *testing.T) {
	chunk := compileSource(t, "var a = 7 var b = 7 var c = 7")
	if chunk.ConstantCount() != 1 {
		t.Errorf("expected 1 shared constant, got %d", chunk.ConstantCount())
	}
}

func TestCompiledChunksValidate(t *testing.T) {
	sources := []string{
		"var x = 1",
		"if a then x = 1 else if b then x = 2 else x = 3 end if",
		"while i < 10 do i = i + 1 end while",
		"canvas.show() return canvas.visible",
		"f(g(1), h.m(2))",
		"not (a and b) or c",
	}
	for _, src := range sources {
		chunk := compileSource(t, src)
		if err := chunk.Validate(); err != nil {
			t.Errorf("%q: %v", src, err)
		}
	}
}

func TestCompileHaltAfterOperandByteCollision(t *testing.T) {
	// 256 distinct names put the final STORE_NAME operand at index 255, so
	// the last code byte is 0xFF. That is an operand byte, not a HALT; the
	// compiler must still append a real HALT.
	var sb strings.Builder
	for i := 0; i < 256; i++ {
		fmt.Fprintf(&sb, "var v%d = 1\n", i)
	}
	chunk := compileSource(t, sb.String())

	ops := opcodesOf(chunk)
	if last := ops[len(ops)-1]; last != OpHalt {
		t.Errorf("final opcode = %s, want %s", last, OpHalt)
	}
	if err := chunk.Validate(); err != nil {
		t.Errorf("chunk failed validation: %v", err)
	}
}

func TestCompileRecordsLines(t *testing.T) {
	chunk := compileSource(t, "var x = 1\nvar y = 2")
	if len(chunk.Lines) < 2 {
		t.Fatalf("expected line entries for both statements, got %d", len(chunk.Lines))
	}
	if chunk.LineAt(0) != 1 {
		t.Errorf("LineAt(0) = %d, want 1", chunk.LineAt(0))
	}
}
