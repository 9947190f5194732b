package bytecode

import "fmt"

// Result is the outcome of one Execute call. It is never partially
// filled: a successful run carries the return value (when the script
// produced one) and a failed run carries the fault message.
type Result struct {
	Success     bool
	ReturnValue Value
	Returned    bool // true when the script produced a return value
	Error       string
}

// String renders the result for logs.
func (r Result) String() string {
	if !r.Success {
		return fmt.Sprintf("error: %s", r.Error)
	}
	if r.Returned {
		return fmt.Sprintf("ok: %s", r.ReturnValue.AsString())
	}
	return "ok"
}
