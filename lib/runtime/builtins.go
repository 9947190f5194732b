package runtime

import (
	"fmt"
	"math"
	"strings"

	"github.com/emberscript/ember/pkg/bytecode"
)

// RegisterBuiltins installs the core math and string functions every
// embedding gets. Hosts layer their own functions and objects on top.
func RegisterBuiltins(d *Dispatcher) {
	d.RegisterFunction("floor", mathFunc("floor", math.Floor))
	d.RegisterFunction("ceil", mathFunc("ceil", math.Ceil))
	d.RegisterFunction("round", mathFunc("round", math.Round))
	d.RegisterFunction("abs", mathFunc("abs", math.Abs))
	d.RegisterFunction("sqrt", mathFunc("sqrt", math.Sqrt))

	d.RegisterFunction("min", biMin)
	d.RegisterFunction("max", biMax)
	d.RegisterFunction("pow", biPow)

	d.RegisterFunction("len", biLen)
	d.RegisterFunction("upper", stringFunc("upper", strings.ToUpper))
	d.RegisterFunction("lower", stringFunc("lower", strings.ToLower))
	d.RegisterFunction("trim", stringFunc("trim", strings.TrimSpace))
	d.RegisterFunction("substr", biSubstr)

	d.RegisterFunction("str", biStr)
	d.RegisterFunction("num", biNum)
	d.RegisterFunction("typeof", biTypeof)
}

func wantArgs(name string, args []bytecode.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func mathFunc(name string, f func(float64) float64) FuncImpl {
	return func(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
		if err := wantArgs(name, args, 1); err != nil {
			return bytecode.Null(), err
		}
		return bytecode.Number(f(args[0].AsNumber())), nil
	}
}

func stringFunc(name string, f func(string) string) FuncImpl {
	return func(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
		if err := wantArgs(name, args, 1); err != nil {
			return bytecode.Null(), err
		}
		return bytecode.String(f(args[0].AsString())), nil
	}
}

func biMin(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if len(args) == 0 {
		return bytecode.Null(), fmt.Errorf("min: expected at least 1 argument")
	}
	result := args[0].AsNumber()
	for _, a := range args[1:] {
		result = math.Min(result, a.AsNumber())
	}
	return bytecode.Number(result), nil
}

func biMax(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if len(args) == 0 {
		return bytecode.Null(), fmt.Errorf("max: expected at least 1 argument")
	}
	result := args[0].AsNumber()
	for _, a := range args[1:] {
		result = math.Max(result, a.AsNumber())
	}
	return bytecode.Number(result), nil
}

func biPow(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if err := wantArgs("pow", args, 2); err != nil {
		return bytecode.Null(), err
	}
	return bytecode.Number(math.Pow(args[0].AsNumber(), args[1].AsNumber())), nil
}

func biLen(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if err := wantArgs("len", args, 1); err != nil {
		return bytecode.Null(), err
	}
	return bytecode.Number(float64(len(args[0].AsString()))), nil
}

// biSubstr returns the byte range [start, start+length) of a string,
// clamped to the string's bounds. A negative or missing length means to
// the end.
func biSubstr(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return bytecode.Null(), fmt.Errorf("substr: expected 2 or 3 arguments, got %d", len(args))
	}
	s := args[0].AsString()
	start := int(args[1].AsNumber())
	if start < 0 {
		start = 0
	}
	if start > len(s) {
		start = len(s)
	}
	end := len(s)
	if len(args) == 3 {
		if length := int(args[2].AsNumber()); length >= 0 && start+length < end {
			end = start + length
		}
	}
	return bytecode.String(s[start:end]), nil
}

func biStr(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if err := wantArgs("str", args, 1); err != nil {
		return bytecode.Null(), err
	}
	return bytecode.String(args[0].AsString()), nil
}

func biNum(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if err := wantArgs("num", args, 1); err != nil {
		return bytecode.Null(), err
	}
	return bytecode.Number(args[0].AsNumber()), nil
}

func biTypeof(args []bytecode.Value, _ *bytecode.Context) (bytecode.Value, error) {
	if err := wantArgs("typeof", args, 1); err != nil {
		return bytecode.Null(), err
	}
	return bytecode.String(args[0].TypeName()), nil
}
