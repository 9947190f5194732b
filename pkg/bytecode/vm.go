package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"
)

// HostCaller is the boundary through which the VM reaches functionality
// supplied by the embedding application: free functions, and methods,
// getters and setters on named host objects. The VM performs no signature
// validation; each registered function checks its own arguments.
type HostCaller interface {
	CallFunction(name string, args []Value, ctx *Context) (Value, error)
	CallMethod(target Value, name string, args []Value, ctx *Context) (Value, error)
	GetMember(target Value, name string, ctx *Context) (Value, error)
	SetMember(target Value, name string, value Value, ctx *Context) error
}

// Limits are the hard resource caps one Execute call runs under.
// Zero or negative fields mean unlimited.
type Limits struct {
	MaxVariables    int
	MaxStringLength int
	MaxIterations   int
	MaxMillis       int
	MaxStackDepth   int
}

// DefaultLimits returns the caps used when the host configures nothing.
func DefaultLimits() Limits {
	return Limits{
		MaxVariables:    64,
		MaxStringLength: 4096,
		MaxIterations:   100_000,
		MaxMillis:       500,
		MaxStackDepth:   128,
	}
}

// Wall-clock checks are amortized: comparing time.Now on every iteration
// would dominate tight loops.
const timeCheckInterval = 1000

// vmFault carries a runtime fault through the interpreter to the recover
// in Execute. Never escapes the package.
type vmFault struct {
	msg string
}

// VM executes bytecode chunks against a persistent context. The VM holds
// no state across Execute calls beyond its own bounded scratch stack; it
// is safe to reuse one VM for many sequential chunks. Stop may be called
// from another goroutine; everything else is single-threaded.
type VM struct {
	limits Limits
	host   HostCaller

	stopped int32 // atomic; set by Stop, polled every iteration

	// Scratch state for the in-flight Execute call
	chunk *Chunk
	ctx   *Context
	ip    int
	stack []Value
	sp    int

	// Trace prints each instruction as it executes.
	Trace bool
}

// NewVM creates a VM with the given limits and host dispatch. A nil host
// is allowed; any host-call instruction then faults.
func NewVM(limits Limits, host HostCaller) *VM {
	return &VM{
		limits: limits,
		host:   host,
		stack:  make([]Value, stackSize(limits)),
	}
}

func stackSize(limits Limits) int {
	if limits.MaxStackDepth > 0 {
		return limits.MaxStackDepth
	}
	return 1024
}

// Stop requests cooperative cancellation of the in-flight run. The loop
// polls the flag once per instruction, so an opcode already executing
// finishes first.
func (vm *VM) Stop() {
	atomic.StoreInt32(&vm.stopped, 1)
}

// Execute runs a chunk against the context. Any fault of any kind is
// converted into a failed Result; nothing escapes to the caller. Effects
// the script committed to the context before a fault remain committed.
func (vm *VM) Execute(chunk *Chunk, ctx *Context) (result Result) {
	if err := chunk.Validate(); err != nil {
		return Result{Error: fmt.Sprintf("invalid bytecode: %v", err)}
	}

	atomic.StoreInt32(&vm.stopped, 0)
	vm.chunk = chunk
	vm.ctx = ctx
	vm.ip = 0
	vm.sp = 0

	defer func() {
		if r := recover(); r != nil {
			if f, ok := r.(vmFault); ok {
				result = Result{Error: f.msg}
			} else {
				result = Result{Error: fmt.Sprintf("internal error: %v", r)}
			}
		}
		vm.chunk = nil
		vm.ctx = nil
	}()

	value, returned := vm.run()
	return Result{Success: true, ReturnValue: value, Returned: returned}
}

// run is the fetch-decode-execute loop. It returns the script's value and
// whether one was explicitly produced; faults leave via panic(vmFault).
func (vm *VM) run() (Value, bool) {
	iterations := 0
	start := time.Now()
	budget := time.Duration(vm.limits.MaxMillis) * time.Millisecond

	for vm.ip < len(vm.chunk.Code) {
		if atomic.LoadInt32(&vm.stopped) != 0 {
			vm.fault("execution stopped")
		}
		iterations++
		if vm.limits.MaxIterations > 0 && iterations > vm.limits.MaxIterations {
			vm.fault("iteration limit of %d exceeded, possible infinite loop", vm.limits.MaxIterations)
		}
		if vm.limits.MaxMillis > 0 && iterations%timeCheckInterval == 0 && time.Since(start) > budget {
			vm.fault("time limit of %dms exceeded", vm.limits.MaxMillis)
		}

		op := Opcode(vm.chunk.Code[vm.ip])
		vm.ip++

		if vm.Trace {
			fmt.Printf("[%04x] %-12s sp=%d\n", vm.ip-1, op.String(), vm.sp)
		}

		switch op {
		// ============ Stack Operations ============
		case OpNop:
			// Do nothing

		case OpPop:
			vm.pop()

		case OpDup:
			vm.push(vm.peek())

		// ============ Constants ============
		case OpConst:
			idx := vm.readUint16()
			vm.push(vm.chunk.Constants[idx])

		case OpNull:
			vm.push(Null())

		case OpTrue:
			vm.push(Boolean(true))

		case OpFalse:
			vm.push(Boolean(false))

		// ============ Named Variables ============
		case OpLoadName:
			name := vm.chunk.Names[vm.readUint16()]
			if v, ok := vm.ctx.Get(name); ok {
				vm.push(v)
			} else {
				// Unbound names resolve to their own spelling. A bare
				// identifier can then act as a function reference when
				// used as a call target.
				vm.push(String(name))
			}

		case OpStoreName:
			name := vm.chunk.Names[vm.readUint16()]
			if err := vm.ctx.Set(name, vm.pop()); err != nil {
				vm.fault("%v", err)
			}

		// ============ Member Access ============
		case OpGetMember:
			name := vm.chunk.Names[vm.readUint16()]
			target := vm.pop()
			value, err := vm.hostCaller().GetMember(target, name, vm.ctx)
			if err != nil {
				vm.fault("%v", err)
			}
			vm.push(value)

		case OpSetMember:
			name := vm.chunk.Names[vm.readUint16()]
			value := vm.pop()
			target := vm.pop()
			if err := vm.hostCaller().SetMember(target, name, value, vm.ctx); err != nil {
				vm.fault("%v", err)
			}

		// ============ Arithmetic ============
		case OpAdd:
			b := vm.pop()
			a := vm.pop()
			if a.Kind == KindString || b.Kind == KindString {
				s := a.AsString() + b.AsString()
				if vm.limits.MaxStringLength > 0 && len(s) > vm.limits.MaxStringLength {
					vm.fault("%v: concatenation produced %d bytes, limit %d",
						ErrStringTooLong, len(s), vm.limits.MaxStringLength)
				}
				vm.push(String(s))
			} else {
				vm.push(Number(a.AsNumber() + b.AsNumber()))
			}

		case OpSub:
			b := vm.pop()
			a := vm.pop()
			vm.push(Number(a.AsNumber() - b.AsNumber()))

		case OpMul:
			b := vm.pop()
			a := vm.pop()
			vm.push(Number(a.AsNumber() * b.AsNumber()))

		case OpDiv:
			b := vm.pop()
			a := vm.pop()
			if b.AsNumber() == 0 {
				vm.fault("division by zero")
			}
			vm.push(Number(a.AsNumber() / b.AsNumber()))

		case OpMod:
			b := vm.pop()
			a := vm.pop()
			if b.AsNumber() == 0 {
				vm.fault("modulo by zero")
			}
			vm.push(Number(math.Mod(a.AsNumber(), b.AsNumber())))

		case OpNeg:
			vm.push(Number(-vm.pop().AsNumber()))

		// ============ Comparison ============
		case OpEq:
			b := vm.pop()
			a := vm.pop()
			vm.push(Boolean(a.Equals(b)))

		case OpNe:
			b := vm.pop()
			a := vm.pop()
			vm.push(Boolean(!a.Equals(b)))

		case OpLt:
			b := vm.pop()
			a := vm.pop()
			vm.push(Boolean(a.AsNumber() < b.AsNumber()))

		case OpLe:
			b := vm.pop()
			a := vm.pop()
			vm.push(Boolean(a.AsNumber() <= b.AsNumber()))

		case OpGt:
			b := vm.pop()
			a := vm.pop()
			vm.push(Boolean(a.AsNumber() > b.AsNumber()))

		case OpGe:
			b := vm.pop()
			a := vm.pop()
			vm.push(Boolean(a.AsNumber() >= b.AsNumber()))

		// ============ Logical ============
		case OpNot:
			vm.push(Boolean(!vm.pop().Truthy()))

		// ============ Control Flow ============
		case OpJump:
			offset := vm.readInt16()
			vm.ip += int(offset)

		case OpJumpTrue:
			offset := vm.readInt16()
			if vm.peek().Truthy() {
				vm.ip += int(offset)
			}

		case OpJumpFalse:
			offset := vm.readInt16()
			if !vm.peek().Truthy() {
				vm.ip += int(offset)
			}

		// ============ Host Calls ============
		case OpCall:
			argc := int(vm.chunk.Code[vm.ip])
			vm.ip++
			args := vm.popArgs(argc)
			callee := vm.pop()

			result, err := vm.hostCaller().CallFunction(callee.AsString(), args, vm.ctx)
			if err != nil {
				vm.fault("%v", err)
			}
			vm.push(result)

		case OpCallMethod:
			nameIdx := vm.readUint16()
			argc := int(vm.chunk.Code[vm.ip])
			vm.ip++
			name := vm.chunk.Names[nameIdx]
			args := vm.popArgs(argc)
			target := vm.pop()

			result, err := vm.hostCaller().CallMethod(target, name, args, vm.ctx)
			if err != nil {
				vm.fault("%v", err)
			}
			vm.push(result)

		// ============ Return ============
		case OpReturn:
			return vm.pop(), true

		case OpReturnNil:
			return Null(), false

		case OpHalt:
			if vm.sp > 0 {
				return vm.stack[vm.sp-1], true
			}
			return Null(), false

		default:
			vm.fault("unknown opcode 0x%02x at offset %d", byte(op), vm.ip-1)
		}
	}

	// Ran off the end without a halt; Validate plus the compiler's
	// trailing halt make this unreachable for compiled chunks.
	if vm.sp > 0 {
		return vm.stack[vm.sp-1], true
	}
	return Null(), false
}

// Stack helpers

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		vm.fault("stack overflow, depth limit %d", len(vm.stack))
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp == 0 {
		vm.fault("stack underflow")
	}
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek() Value {
	if vm.sp == 0 {
		vm.fault("stack underflow")
	}
	return vm.stack[vm.sp-1]
}

// popArgs pops argc values, restoring source order.
func (vm *VM) popArgs(argc int) []Value {
	args := make([]Value, argc)
	for i := argc - 1; i >= 0; i-- {
		args[i] = vm.pop()
	}
	return args
}

func (vm *VM) hostCaller() HostCaller {
	if vm.host == nil {
		vm.fault("no host dispatch configured")
	}
	return vm.host
}

// Bytecode reading helpers

func (vm *VM) readUint16() uint16 {
	val := binary.BigEndian.Uint16(vm.chunk.Code[vm.ip:])
	vm.ip += 2
	return val
}

func (vm *VM) readInt16() int16 {
	return int16(vm.readUint16())
}

// fault aborts the run with a formatted message, tagged with the source
// line when the chunk carries one for the current offset.
func (vm *VM) fault(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if line := vm.chunk.LineAt(vm.ip - 1); line > 0 {
		msg = fmt.Sprintf("line %d: %s", line, msg)
	}
	panic(vmFault{msg: msg})
}
