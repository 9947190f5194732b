package bytecode

import (
	"math"
	"strconv"
	"strings"
)

// Kind discriminates the runtime value variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindHandle
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindNumber: "number",
	KindString: "string",
	KindBool:   "bool",
	KindHandle: "handle",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is a tagged runtime value. Numbers are float64 throughout. Handles
// name host-side objects; the VM never looks inside them, it only passes
// them back to the host.
type Value struct {
	Kind Kind
	Num  float64
	Str  string
	Bool bool
}

func Null() Value              { return Value{Kind: KindNull} }
func Number(n float64) Value   { return Value{Kind: KindNumber, Num: n} }
func String(s string) Value    { return Value{Kind: KindString, Str: s} }
func Boolean(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Handle(name string) Value { return Value{Kind: KindHandle, Str: name} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Truthy reports the value's boolean interpretation. Null, false, zero and
// the empty string are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Num != 0
	case KindString:
		return v.Str != ""
	default:
		return true
	}
}

// AsNumber coerces the value to a number. Strings parse as floats and fall
// back to 0; true is 1 and false is 0; null and handles are 0.
func (v Value) AsNumber() float64 {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindBool:
		if v.Bool {
			return 1
		}
		return 0
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// AsString renders the value for display and concatenation. Whole numbers
// print without a decimal point.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.Num)
	case KindString, KindHandle:
		return v.Str
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	if math.IsNaN(n) {
		return "nan"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatFloat(n, 'f', 0, 64)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// Equals compares two values. Same-kind values compare directly; mixed
// kinds fall back to numeric comparison, except that null only equals null.
func (v Value) Equals(other Value) bool {
	if v.Kind == other.Kind {
		switch v.Kind {
		case KindNull:
			return true
		case KindNumber:
			return v.Num == other.Num
		case KindString, KindHandle:
			return v.Str == other.Str
		case KindBool:
			return v.Bool == other.Bool
		}
	}
	if v.Kind == KindNull || other.Kind == KindNull {
		return false
	}
	return v.AsNumber() == other.AsNumber()
}

// TypeName returns the value's kind name as shown to scripts.
func (v Value) TypeName() string {
	return v.Kind.String()
}
