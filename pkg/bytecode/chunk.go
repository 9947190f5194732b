package bytecode

import "fmt"

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// LineEntry maps a bytecode offset to the source line it came from.
// Entries are appended in offset order; LineAt scans backward for the
// nearest entry at or before an offset.
type LineEntry struct {
	Offset uint32
	Line   uint32
}

// Chunk represents a compiled script block. It is the unit of bytecode
// that can be validated, serialized and executed.
type Chunk struct {
	Version uint16

	// Bytecode instructions
	Code []byte

	// Constant pool referenced by OpConst
	Constants []Value

	// Name pool referenced by load/store, member and call instructions
	Names []string

	// Bytecode offset -> source line
	Lines []LineEntry
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk() *Chunk {
	return &Chunk{
		Version:   BytecodeVersion,
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// AddConstant adds a value to the constant pool and returns its index.
// If an equal constant of the same kind already exists, returns the
// existing index.
func (c *Chunk) AddConstant(value Value) uint16 {
	for i, v := range c.Constants {
		if v.Kind == value.Kind && v.Equals(value) {
			return uint16(i)
		}
	}
	idx := uint16(len(c.Constants))
	c.Constants = append(c.Constants, value)
	return idx
}

// AddName adds an identifier to the name pool and returns its index.
// Duplicate names share one entry.
func (c *Chunk) AddName(name string) uint16 {
	for i, n := range c.Names {
		if n == name {
			return uint16(i)
		}
	}
	idx := uint16(len(c.Names))
	c.Names = append(c.Names, name)
	return idx
}

// GetConstant returns the constant at the given index.
// Panics if the index is out of bounds; Validate catches bad indices first.
func (c *Chunk) GetConstant(index uint16) Value {
	return c.Constants[index]
}

// GetName returns the name at the given index.
func (c *Chunk) GetName(index uint16) string {
	return c.Names[index]
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitU16 appends an opcode with a single big-endian u16 operand.
func (c *Chunk) EmitU16(op Opcode, operand uint16) int {
	return c.EmitWithOperand(op, byte(operand>>8), byte(operand))
}

// EmitConstant emits an OpConst instruction for the given value.
// Adds the constant to the pool if not already present.
func (c *Chunk) EmitConstant(value Value) int {
	return c.EmitU16(OpConst, c.AddConstant(value))
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op), 0xFF, 0xFF) // Placeholder
	return offset + 1                             // Offset of the placeholder bytes
}

// PatchJump patches a jump instruction's offset to jump to the current position.
func (c *Chunk) PatchJump(placeholderOffset int) {
	// Relative jump measured from after the 2-byte offset
	jumpFrom := placeholderOffset + 2
	delta := len(c.Code) - jumpFrom

	c.Code[placeholderOffset] = byte(delta >> 8)
	c.Code[placeholderOffset+1] = byte(delta)
}

// EmitLoop emits a backward jump to the given loop start.
func (c *Chunk) EmitLoop(loopStart int) {
	// Jump goes backward, so delta is negative
	jumpFrom := len(c.Code) + 3 // After this instruction
	delta := loopStart - jumpFrom

	c.Code = append(c.Code, byte(OpJump))
	c.Code = append(c.Code, byte(delta>>8), byte(delta))
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// MarkLine records that code emitted from the current offset onward came
// from the given source line. Consecutive marks for the same line collapse
// into one entry.
func (c *Chunk) MarkLine(line int) {
	if n := len(c.Lines); n > 0 && c.Lines[n-1].Line == uint32(line) {
		return
	}
	c.Lines = append(c.Lines, LineEntry{Offset: uint32(len(c.Code)), Line: uint32(line)})
}

// LineAt returns the source line for a bytecode offset, or 0 if unknown.
func (c *Chunk) LineAt(offset int) int {
	for i := len(c.Lines) - 1; i >= 0; i-- {
		if int(c.Lines[i].Offset) <= offset {
			return int(c.Lines[i].Line)
		}
	}
	return 0
}

// Validate walks the code section and checks structural integrity: every
// opcode is known, operand bytes are present, pool indices are in range
// and jump targets land on instruction boundaries.
func (c *Chunk) Validate() error {
	type jumpSite struct {
		pos    int
		target int
	}
	var jumps []jumpSite
	starts := make(map[int]bool, len(c.Code)/2)

	pos := 0
	for pos < len(c.Code) {
		starts[pos] = true
		op := Opcode(c.Code[pos])
		info, ok := opcodeInfoTable[op]
		if !ok {
			return fmt.Errorf("unknown opcode 0x%02X at offset %d", byte(op), pos)
		}
		if pos+1+info.OperandLen > len(c.Code) {
			return fmt.Errorf("truncated %s instruction at offset %d", info.Name, pos)
		}

		switch {
		case op == OpConst:
			idx := u16(c.Code[pos+1:])
			if int(idx) >= len(c.Constants) {
				return fmt.Errorf("constant index %d out of range at offset %d", idx, pos)
			}

		case op.NamePoolIndex():
			idx := u16(c.Code[pos+1:])
			if int(idx) >= len(c.Names) {
				return fmt.Errorf("name index %d out of range at offset %d", idx, pos)
			}

		case op.IsJump():
			delta := int(int16(u16(c.Code[pos+1:])))
			jumps = append(jumps, jumpSite{pos: pos, target: pos + 1 + info.OperandLen + delta})
		}

		pos += 1 + info.OperandLen
	}

	// Jumping to exactly the end of the code section is a valid way to
	// finish (a patched exit jump in a chunk that ends with a return).
	starts[len(c.Code)] = true

	for _, j := range jumps {
		if j.target < 0 || j.target > len(c.Code) {
			return fmt.Errorf("jump target %d out of range at offset %d", j.target, j.pos)
		}
		if !starts[j.target] {
			return fmt.Errorf("jump target %d inside an instruction at offset %d", j.target, j.pos)
		}
	}
	return nil
}

func u16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
