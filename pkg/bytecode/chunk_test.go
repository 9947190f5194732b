package bytecode

import "testing"

func TestChunkConstantDedup(t *testing.T) {
	c := NewChunk()
	a := c.AddConstant(Number(1))
	b := c.AddConstant(Number(2))
	again := c.AddConstant(Number(1))

	if a != again {
		t.Errorf("duplicate constant got index %d, want %d", again, a)
	}
	if a == b {
		t.Errorf("distinct constants share index %d", a)
	}
	if c.ConstantCount() != 2 {
		t.Errorf("expected 2 constants, got %d", c.ConstantCount())
	}
}

func TestChunkConstantDedupRespectsKind(t *testing.T) {
	// Number(1) and Boolean(true) compare equal across kinds; they must
	// still get distinct pool slots.
	c := NewChunk()
	n := c.AddConstant(Number(1))
	b := c.AddConstant(Boolean(true))
	if n == b {
		t.Errorf("number and bool constants share index %d", n)
	}
}

func TestChunkNameDedup(t *testing.T) {
	c := NewChunk()
	a := c.AddName("x")
	b := c.AddName("y")
	again := c.AddName("x")

	if a != again {
		t.Errorf("duplicate name got index %d, want %d", again, a)
	}
	if a == b {
		t.Errorf("distinct names share index %d", a)
	}
}

func TestEmitJumpAndPatch(t *testing.T) {
	c := NewChunk()
	placeholder := c.EmitJump(OpJumpFalse)
	c.Emit(OpPop)
	c.Emit(OpNull)
	c.PatchJump(placeholder)

	// Jump is at offset 0; placeholder bytes at 1..2; delta measured from
	// offset 3 to the current end at offset 5.
	if placeholder != 1 {
		t.Fatalf("placeholder offset = %d, want 1", placeholder)
	}
	delta := int16(u16(c.Code[placeholder:]))
	if delta != 2 {
		t.Errorf("patched delta = %d, want 2", delta)
	}
}

func TestEmitLoopBackwardDelta(t *testing.T) {
	c := NewChunk()
	loopStart := c.CurrentOffset()
	c.Emit(OpTrue)
	c.Emit(OpPop)
	c.EmitLoop(loopStart)

	// The loop jump starts at offset 2; execution resumes at offset 5, so
	// the delta back to offset 0 is -5.
	delta := int16(u16(c.Code[3:]))
	if delta != -5 {
		t.Errorf("loop delta = %d, want -5", delta)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("loop chunk failed validation: %v", err)
	}
}

func TestMarkLineAndLineAt(t *testing.T) {
	c := NewChunk()
	c.MarkLine(1)
	c.Emit(OpNull)
	c.Emit(OpPop)
	c.MarkLine(3)
	c.Emit(OpTrue)
	c.MarkLine(3) // Same line collapses
	c.Emit(OpPop)

	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 line entries, got %d", len(c.Lines))
	}
	tests := []struct {
		offset, line int
	}{
		{0, 1},
		{1, 1},
		{2, 3},
		{3, 3},
	}
	for _, tt := range tests {
		if got := c.LineAt(tt.offset); got != tt.line {
			t.Errorf("LineAt(%d) = %d, want %d", tt.offset, got, tt.line)
		}
	}
}

func TestValidateAcceptsWellFormedChunk(t *testing.T) {
	c := NewChunk()
	c.EmitConstant(Number(10))
	c.EmitU16(OpStoreName, c.AddName("x"))
	c.Emit(OpHalt)

	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsUnknownOpcode(t *testing.T) {
	c := NewChunk()
	c.Code = append(c.Code, 0x42)
	if err := c.Validate(); err == nil {
		t.Error("expected error for unknown opcode")
	}
}

func TestValidateRejectsTruncatedOperand(t *testing.T) {
	c := NewChunk()
	c.AddConstant(Number(1))
	c.Code = append(c.Code, byte(OpConst), 0x00) // Missing second operand byte
	if err := c.Validate(); err == nil {
		t.Error("expected error for truncated instruction")
	}
}

func TestValidateRejectsBadConstantIndex(t *testing.T) {
	c := NewChunk()
	c.EmitU16(OpConst, 5) // Empty constant pool
	if err := c.Validate(); err == nil {
		t.Error("expected error for out-of-range constant index")
	}
}

func TestValidateRejectsBadNameIndex(t *testing.T) {
	c := NewChunk()
	c.EmitU16(OpLoadName, 0) // Empty name pool
	if err := c.Validate(); err == nil {
		t.Error("expected error for out-of-range name index")
	}
}

func TestValidateRejectsOutOfRangeJump(t *testing.T) {
	c := NewChunk()
	c.EmitU16(OpJump, 100)
	c.Emit(OpHalt)
	if err := c.Validate(); err == nil {
		t.Error("expected error for jump past end of code")
	}
}

func TestValidateRejectsMidInstructionJump(t *testing.T) {
	c := NewChunk()
	c.EmitConstant(Number(1)) // Offsets 0..2
	// Jump at offset 3; execution resumes at offset 6, so a delta of -5
	// lands at offset 1, inside the CONST operand.
	c.EmitU16(OpJump, uint16(0xFFFB))
	c.Emit(OpHalt)

	if err := c.Validate(); err == nil {
		t.Error("expected error for jump into the middle of an instruction")
	}
}

func TestValidateAcceptsJumpToEndOfCode(t *testing.T) {
	c := NewChunk()
	placeholder := c.EmitJump(OpJump)
	c.PatchJump(placeholder)

	if err := c.Validate(); err != nil {
		t.Errorf("jump to end of code rejected: %v", err)
	}
}
