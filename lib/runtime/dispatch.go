package runtime

import (
	"fmt"
	"strings"

	"github.com/emberscript/ember/pkg/bytecode"
)

// FuncImpl is a registered free function. Argument count and type
// checking is the function's own responsibility.
type FuncImpl func(args []bytecode.Value, ctx *bytecode.Context) (bytecode.Value, error)

// MethodImpl is a method on a registered host object.
type MethodImpl func(target bytecode.Value, args []bytecode.Value, ctx *bytecode.Context) (bytecode.Value, error)

// GetterImpl reads a property of a registered host object.
type GetterImpl func(target bytecode.Value, ctx *bytecode.Context) (bytecode.Value, error)

// SetterImpl writes a property of a registered host object.
type SetterImpl func(target bytecode.Value, value bytecode.Value, ctx *bytecode.Context) error

// Object is a named host object: a bundle of methods, getters and setters
// addressed by an opaque handle. Scripts reach it by name; the VM never
// holds a reference to the object itself.
type Object struct {
	name    string
	methods map[string]MethodImpl
	getters map[string]GetterImpl
	setters map[string]SetterImpl
}

// NewObject creates an empty host object with the given script-visible name.
func NewObject(name string) *Object {
	return &Object{
		name:    name,
		methods: make(map[string]MethodImpl),
		getters: make(map[string]GetterImpl),
		setters: make(map[string]SetterImpl),
	}
}

// Name returns the object's registered name.
func (o *Object) Name() string {
	return o.name
}

// Method registers a method. Returns the object for chaining.
func (o *Object) Method(name string, impl MethodImpl) *Object {
	o.methods[strings.ToLower(name)] = impl
	return o
}

// Getter registers a readable property. Returns the object for chaining.
func (o *Object) Getter(name string, impl GetterImpl) *Object {
	o.getters[strings.ToLower(name)] = impl
	return o
}

// Setter registers a writable property. Returns the object for chaining.
func (o *Object) Setter(name string, impl SetterImpl) *Object {
	o.setters[strings.ToLower(name)] = impl
	return o
}

// Dispatcher is the host-call registry the VM executes against. All
// lookups are case-insensitive. Populated once at startup and read-only
// during execution.
type Dispatcher struct {
	funcs   map[string]FuncImpl
	objects map[string]*Object
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		funcs:   make(map[string]FuncImpl),
		objects: make(map[string]*Object),
	}
}

// RegisterFunction adds a free function under a case-insensitive name.
func (d *Dispatcher) RegisterFunction(name string, impl FuncImpl) {
	d.funcs[strings.ToLower(name)] = impl
}

// RegisterObject adds a host object under its case-insensitive name.
func (d *Dispatcher) RegisterObject(obj *Object) {
	d.objects[strings.ToLower(obj.name)] = obj
}

// SeedGlobals binds each registered object's name to a handle value in
// the context, so scripts see host objects as first-class handles and
// typeof reports them as such.
func (d *Dispatcher) SeedGlobals(ctx *bytecode.Context) {
	for _, obj := range d.objects {
		ctx.SetGlobal(obj.name, bytecode.Handle(obj.name))
	}
}

// HasFunction reports whether a free function is registered.
func (d *Dispatcher) HasFunction(name string) bool {
	_, ok := d.funcs[strings.ToLower(name)]
	return ok
}

// Object returns a registered object, or nil.
func (d *Dispatcher) Object(name string) *Object {
	return d.objects[strings.ToLower(name)]
}

// CallFunction invokes a registered free function. An unknown name is an
// error, never a silent no-op.
func (d *Dispatcher) CallFunction(name string, args []bytecode.Value, ctx *bytecode.Context) (bytecode.Value, error) {
	impl, ok := d.funcs[strings.ToLower(name)]
	if !ok {
		return bytecode.Null(), fmt.Errorf("unknown function: %s", name)
	}
	return impl(args, ctx)
}

// CallMethod invokes a method on the object the target handle names.
func (d *Dispatcher) CallMethod(target bytecode.Value, name string, args []bytecode.Value, ctx *bytecode.Context) (bytecode.Value, error) {
	obj, err := d.resolve(target)
	if err != nil {
		return bytecode.Null(), err
	}
	impl, ok := obj.methods[strings.ToLower(name)]
	if !ok {
		return bytecode.Null(), fmt.Errorf("unknown method: %s.%s", obj.name, name)
	}
	return impl(target, args, ctx)
}

// GetMember reads a property of the object the target handle names.
func (d *Dispatcher) GetMember(target bytecode.Value, name string, ctx *bytecode.Context) (bytecode.Value, error) {
	obj, err := d.resolve(target)
	if err != nil {
		return bytecode.Null(), err
	}
	impl, ok := obj.getters[strings.ToLower(name)]
	if !ok {
		return bytecode.Null(), fmt.Errorf("unknown member: %s.%s", obj.name, name)
	}
	return impl(target, ctx)
}

// SetMember writes a property of the object the target handle names.
func (d *Dispatcher) SetMember(target bytecode.Value, name string, value bytecode.Value, ctx *bytecode.Context) error {
	obj, err := d.resolve(target)
	if err != nil {
		return err
	}
	impl, ok := obj.setters[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("unknown member: %s.%s", obj.name, name)
	}
	return impl(target, value, ctx)
}

func (d *Dispatcher) resolve(target bytecode.Value) (*Object, error) {
	name := target.AsString()
	if obj, ok := d.objects[strings.ToLower(name)]; ok {
		return obj, nil
	}
	return nil, fmt.Errorf("unknown object: %s", name)
}
