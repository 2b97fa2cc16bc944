package machine

import (
	"github.com/avevad/funscript-go/internal/heap"
	"github.com/avevad/funscript-go/lang/compiler"
)

// Function is implemented by every callable value: a closure over
// compiled bytecode, or a host-provided native function. Call is invoked
// with the argument pack on top of st, above the SEP that brackets it
// (see dispatchCall and callWithArgs), and replaces that pack with its
// results: a BytecodeFunction's parameter prologue consumes the pack
// together with its SEP, so its results take the SEP's place, while a
// native that finishes with ReplacePack leaves its results behind a
// fresh SEP.
type Function interface {
	Value
	heap.Object
	Call(st *Stack) error
	// Name returns the function's assigned name, or "" if none was ever
	// assigned (anonymous lambdas until bound by `.f = params -> body`).
	Name() string
	// AssignName binds a display name the first time a function value is
	// bound to an identifier, mirroring the original's assign_name, which
	// only takes effect once (a function keeps the name of its first
	// binding).
	AssignName(name string)
}

// BytecodeFunction is a closure over a compiled function body: the scope
// captured at the point the lambda was evaluated, the image it belongs
// to, and the entry offset of its chunk.
type BytecodeFunction struct {
	heap.Header
	Scope  *Scope
	Image  *compiler.Image
	Offset uint32
	name   string
}

func NewBytecodeFunction(scope *Scope, img *compiler.Image, offset uint32) *BytecodeFunction {
	return &BytecodeFunction{Scope: scope, Image: img, Offset: offset}
}

func (*BytecodeFunction) Type() string   { return "function" }
func (f *BytecodeFunction) String() string {
	if f.name != "" {
		return "<function " + f.name + ">"
	}
	return "<function>"
}
func (*BytecodeFunction) Truth() bool { return true }

func (f *BytecodeFunction) HeapHeader() *heap.Header { return &f.Header }

func (f *BytecodeFunction) Refs(cb func(heap.Object)) {
	if f.Scope != nil {
		cb(f.Scope)
	}
}

func (f *BytecodeFunction) Name() string { return f.name }
func (f *BytecodeFunction) AssignName(name string) {
	if f.name == "" {
		f.name = name
	}
}

func (f *BytecodeFunction) Call(st *Stack) error {
	return st.execFrame(f, f.Scope)
}

// NativeFunction wraps a host-provided Go function so it can be called
// exactly like a bytecode closure: Fn receives the stack with the
// argument pack already in place and must leave a result pack before
// returning, same contract as Function.Call.
type NativeFunction struct {
	heap.Header
	Fn   func(st *Stack) error
	name string
}

// NewNativeFunction wraps fn, displaying as name.
func NewNativeFunction(name string, fn func(st *Stack) error) *NativeFunction {
	return &NativeFunction{Fn: fn, name: name}
}

func (*NativeFunction) Type() string     { return "function" }
func (f *NativeFunction) String() string { return "<native function " + f.name + ">" }
func (*NativeFunction) Truth() bool      { return true }

func (f *NativeFunction) HeapHeader() *heap.Header { return &f.Header }
func (*NativeFunction) Refs(func(heap.Object))     {}

func (f *NativeFunction) Name() string { return f.name }
func (f *NativeFunction) AssignName(name string) {
	if f.name == "" {
		f.name = name
	}
}

func (f *NativeFunction) Call(st *Stack) error { return f.Fn(st) }
