package bytecode

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrTooManyVariables is returned when a store would exceed the
	// context's variable cap.
	ErrTooManyVariables = errors.New("too many variables")

	// ErrStringTooLong is returned when a stored string exceeds the
	// context's string length cap.
	ErrStringTooLong = errors.New("string too long")
)

// Context holds script state across executions. A context belongs to one
// session; consecutive blocks in that session see each other's variables.
// Lookups resolve script variables before host-injected globals. The
// internal namespace carries host metadata and is never reachable from a
// script identifier. Not safe for concurrent use.
type Context struct {
	vars     map[string]Value
	globals  map[string]Value
	internal map[string]Value

	maxVariables    int
	maxStringLength int
}

// NewContext creates an empty context enforcing the given limits. Zero or
// negative limits mean unlimited.
func NewContext(maxVariables, maxStringLength int) *Context {
	return &Context{
		vars:            make(map[string]Value),
		globals:         make(map[string]Value),
		internal:        make(map[string]Value),
		maxVariables:    maxVariables,
		maxStringLength: maxStringLength,
	}
}

// Get resolves a name, checking script variables before globals.
func (c *Context) Get(name string) (Value, bool) {
	if v, ok := c.vars[name]; ok {
		return v, true
	}
	if v, ok := c.globals[name]; ok {
		return v, true
	}
	return Null(), false
}

// Has reports whether a name resolves to a variable or a global.
func (c *Context) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Set stores a script variable, enforcing the variable-count and
// string-length caps. Updating an existing variable never trips the
// count cap.
func (c *Context) Set(name string, value Value) error {
	if value.Kind == KindString && c.maxStringLength > 0 && len(value.Str) > c.maxStringLength {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrStringTooLong, name, len(value.Str), c.maxStringLength)
	}
	if _, exists := c.vars[name]; !exists {
		if c.maxVariables > 0 && len(c.vars) >= c.maxVariables {
			return fmt.Errorf("%w: limit %d", ErrTooManyVariables, c.maxVariables)
		}
	}
	c.vars[name] = value
	return nil
}

// SetGlobal injects a host binding visible to scripts but exempt from the
// variable cap. Scripts that assign to the name shadow it with a script
// variable.
func (c *Context) SetGlobal(name string, value Value) {
	c.globals[name] = value
}

// GetInternal reads host metadata invisible to scripts.
func (c *Context) GetInternal(name string) (Value, bool) {
	v, ok := c.internal[name]
	return v, ok
}

// SetInternal stores host metadata invisible to scripts.
func (c *Context) SetInternal(name string, value Value) {
	c.internal[name] = value
}

// Delete removes a script variable if present.
func (c *Context) Delete(name string) {
	delete(c.vars, name)
}

// Len returns the number of script variables.
func (c *Context) Len() int {
	return len(c.vars)
}

// Names returns the script variable names in sorted order.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.vars))
	for name := range c.vars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the script variables, for persistence.
// Globals and internal entries are the host's to re-seed.
func (c *Context) Snapshot() map[string]Value {
	out := make(map[string]Value, len(c.vars))
	for name, v := range c.vars {
		out[name] = v
	}
	return out
}

// Restore replaces the script variables with the given set, bypassing
// caps. Used when loading a persisted session.
func (c *Context) Restore(vars map[string]Value) {
	c.vars = make(map[string]Value, len(vars))
	for name, v := range vars {
		c.vars[name] = v
	}
}

// Clear removes all script variables. Globals and internal entries stay.
func (c *Context) Clear() {
	c.vars = make(map[string]Value)
}
