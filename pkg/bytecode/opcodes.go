package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpPop Opcode = 0x01 // Pop top of stack
	OpDup Opcode = 0x02 // Duplicate top of stack

	// ========================================================================
	// Constants (0x10-0x1F)
	// ========================================================================

	OpConst Opcode = 0x10 // Push constant from pool: OpConst <index:u16>
	OpNull  Opcode = 0x11 // Push null
	OpTrue  Opcode = 0x12 // Push true
	OpFalse Opcode = 0x13 // Push false

	// ========================================================================
	// Named variables (0x20-0x2F)
	// ========================================================================

	OpLoadName  Opcode = 0x20 // Push variable: OpLoadName <name_index:u16>
	OpStoreName Opcode = 0x21 // Pop and store to variable: OpStoreName <name_index:u16>

	// ========================================================================
	// Member access (0x30-0x3F)
	// ========================================================================

	OpGetMember Opcode = 0x30 // Pop object, push member: OpGetMember <name_index:u16>
	OpSetMember Opcode = 0x31 // Pop value, pop object: OpSetMember <name_index:u16>

	// ========================================================================
	// Arithmetic (0x50-0x5F)
	// ========================================================================

	OpAdd Opcode = 0x50 // Pop two, push sum (string concat when either is a string)
	OpSub Opcode = 0x51 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x52 // Pop two, push product
	OpDiv Opcode = 0x53 // Pop two, push quotient
	OpMod Opcode = 0x54 // Pop two, push remainder
	OpNeg Opcode = 0x55 // Negate top of stack

	// ========================================================================
	// Comparison (0x60-0x67)
	// ========================================================================

	OpEq Opcode = 0x60 // Pop two, push true if equal
	OpNe Opcode = 0x61 // Pop two, push true if not equal
	OpLt Opcode = 0x62 // Pop two, push true if a < b
	OpLe Opcode = 0x63 // Pop two, push true if a <= b
	OpGt Opcode = 0x64 // Pop two, push true if a > b
	OpGe Opcode = 0x65 // Pop two, push true if a >= b

	// ========================================================================
	// Logical operations (0x68-0x6F)
	// ========================================================================

	OpNot Opcode = 0x68 // Push true if TOS is falsy

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpJump      Opcode = 0x80 // Unconditional jump: OpJump <offset:i16>
	OpJumpTrue  Opcode = 0x81 // Jump if top is truthy, top stays: OpJumpTrue <offset:i16>
	OpJumpFalse Opcode = 0x82 // Jump if top is falsy, top stays: OpJumpFalse <offset:i16>

	// ========================================================================
	// Calls (0x90-0x9F)
	// ========================================================================

	OpCall       Opcode = 0x90 // Call by arity, callee below args: OpCall <argc:u8>
	OpCallMethod Opcode = 0x91 // Call method on object: OpCallMethod <name:u16> <argc:u8>

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn    Opcode = 0xF0 // Return top of stack from script
	OpReturnNil Opcode = 0xF1 // Return null
	OpHalt      Opcode = 0xFF // End of block, no explicit return
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	StackPop   int    // How many values popped from stack (-1 = variable)
	StackPush  int    // How many values pushed to stack
	OperandLen int    // Number of operand bytes following the opcode
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop: {"NOP", 0, 0, 0},
	OpPop: {"POP", 1, 0, 0},
	OpDup: {"DUP", 1, 2, 0},

	// Constants
	OpConst: {"CONST", 0, 1, 2},
	OpNull:  {"NULL", 0, 1, 0},
	OpTrue:  {"TRUE", 0, 1, 0},
	OpFalse: {"FALSE", 0, 1, 0},

	// Named variables
	OpLoadName:  {"LOAD_NAME", 0, 1, 2},
	OpStoreName: {"STORE_NAME", 1, 0, 2},

	// Member access
	OpGetMember: {"GET_MEMBER", 1, 1, 2},
	OpSetMember: {"SET_MEMBER", 2, 0, 2},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, 0},
	OpSub: {"SUB", 2, 1, 0},
	OpMul: {"MUL", 2, 1, 0},
	OpDiv: {"DIV", 2, 1, 0},
	OpMod: {"MOD", 2, 1, 0},
	OpNeg: {"NEG", 1, 1, 0},

	// Comparison
	OpEq: {"EQ", 2, 1, 0},
	OpNe: {"NE", 2, 1, 0},
	OpLt: {"LT", 2, 1, 0},
	OpLe: {"LE", 2, 1, 0},
	OpGt: {"GT", 2, 1, 0},
	OpGe: {"GE", 2, 1, 0},

	// Logical
	OpNot: {"NOT", 1, 1, 0},

	// Control flow
	OpJump:      {"JUMP", 0, 0, 2},
	OpJumpTrue:  {"JUMP_TRUE", 0, 0, 2},
	OpJumpFalse: {"JUMP_FALSE", 0, 0, 2},

	// Calls
	OpCall:       {"CALL", -1, 1, 1},        // Pops argc args + callee
	OpCallMethod: {"CALL_METHOD", -1, 1, 3}, // Pops argc args + receiver

	// Return
	OpReturn:    {"RETURN", 1, 0, 0},
	OpReturnNil: {"RETURN_NIL", 0, 0, 0},
	OpHalt:      {"HALT", 0, 0, 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), StackPop: 0, StackPush: 0, OperandLen: 0}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op >= OpJump && op <= OpJumpFalse
}

// IsReturn returns true if this opcode terminates execution.
func (op Opcode) IsReturn() bool {
	return op == OpReturn || op == OpReturnNil || op == OpHalt
}

// IsCall returns true if this opcode dispatches into the host.
func (op Opcode) IsCall() bool {
	return op == OpCall || op == OpCallMethod
}

// NamePoolIndex returns true if the u16 operand of this opcode indexes the
// chunk's name pool rather than the constant pool.
func (op Opcode) NamePoolIndex() bool {
	switch op {
	case OpLoadName, OpStoreName, OpGetMember, OpSetMember, OpCallMethod:
		return true
	}
	return false
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
