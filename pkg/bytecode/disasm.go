package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble renders a chunk as human-readable assembly, one instruction
// per line with offsets, decoded operands and resolved pool entries.
func Disassemble(c *Chunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "== chunk v%d: %d bytes, %d constants, %d names ==\n",
		c.Version, len(c.Code), len(c.Constants), len(c.Names))

	pos := 0
	for pos < len(c.Code) {
		pos = disassembleInstruction(&sb, c, pos)
	}
	return sb.String()
}

func disassembleInstruction(sb *strings.Builder, c *Chunk, pos int) int {
	op := Opcode(c.Code[pos])
	info := GetOpcodeInfo(op)

	if pos+1+info.OperandLen > len(c.Code) {
		fmt.Fprintf(sb, "%04x %-12s <truncated>\n", pos, info.Name)
		return len(c.Code)
	}

	switch {
	case op == OpConst:
		idx := u16(c.Code[pos+1:])
		fmt.Fprintf(sb, "%04x %-12s %d", pos, info.Name, idx)
		if int(idx) < len(c.Constants) {
			fmt.Fprintf(sb, " ; %s", c.Constants[idx].AsString())
		}
		sb.WriteByte('\n')

	case op == OpCall:
		fmt.Fprintf(sb, "%04x %-12s argc=%d\n", pos, info.Name, c.Code[pos+1])

	case op == OpCallMethod:
		idx := u16(c.Code[pos+1:])
		fmt.Fprintf(sb, "%04x %-12s %d argc=%d", pos, info.Name, idx, c.Code[pos+3])
		if int(idx) < len(c.Names) {
			fmt.Fprintf(sb, " ; %s", c.Names[idx])
		}
		sb.WriteByte('\n')

	case op.NamePoolIndex():
		idx := u16(c.Code[pos+1:])
		fmt.Fprintf(sb, "%04x %-12s %d", pos, info.Name, idx)
		if int(idx) < len(c.Names) {
			fmt.Fprintf(sb, " ; %s", c.Names[idx])
		}
		sb.WriteByte('\n')

	case op.IsJump():
		delta := int(int16(u16(c.Code[pos+1:])))
		target := pos + 1 + info.OperandLen + delta
		fmt.Fprintf(sb, "%04x %-12s %+d ; -> %04x\n", pos, info.Name, delta, target)

	case info.OperandLen > 0:
		fmt.Fprintf(sb, "%04x %-12s % x\n", pos, info.Name, c.Code[pos+1:pos+1+info.OperandLen])

	default:
		fmt.Fprintf(sb, "%04x %s\n", pos, info.Name)
	}

	return pos + 1 + info.OperandLen
}
