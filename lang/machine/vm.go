package machine

import (
	"sync/atomic"

	"github.com/avevad/funscript-go/internal/heap"
	"github.com/avevad/funscript-go/lang/compiler"
)

// VM owns the allocator-backed heap every running Stack allocates
// through. A single VM may run several independent Stacks; none of its
// state needs locking, since execution is single-threaded and
// cooperative at the granularity of individual opcodes (see the
// concurrency model) — the only cross-goroutine interaction is the
// Interrupt flag, a relaxed write the dispatch loop polls between
// instructions.
type VM struct {
	Heap      *heap.Manager
	Interrupt atomic.Bool

	// MaxStackValues and MaxStackFrames bound the value stack and frame
	// stack of every Stack this VM runs, mirroring the original's
	// VM::Config stack_values_max/stack_frames_max caps; 0 means
	// unbounded. Exceeding either is a runtime panic with a dedicated
	// message (spec.md §7), not a Go-level crash.
	MaxStackValues int
	MaxStackFrames int

	// MaxSteps caps the number of dispatch-loop iterations a single Stack
	// may execute across every frame it runs, 0 meaning unbounded. This is
	// an ambient safety knob (surfaced via FUNSCRIPT_MAX_STEPS), not part
	// of spec.md's own fault taxonomy — runaway scripts fail with a
	// dedicated panic message instead of hanging the host process.
	MaxSteps int64

	// Globals are declared into the root scope at the start of Run, the
	// native-call bridge a host (internal/maincmd) uses to expose its own
	// functions to the script; nil or empty runs with no host bindings at
	// all. spec.md treats the native standard library itself as an
	// external collaborator out of scope, so the VM only provides the
	// bridge, never a built-in library of its own.
	Globals map[string]Value
}

// NewVM returns a VM whose heap is bounded by limit bytes (0 for
// unbounded), matching the allocator the memory manager delegates to.
func NewVM(limit uintptr) *VM {
	return &VM{Heap: heap.NewManager(heap.NewBoundedAllocator(limit))}
}

// Rough per-kind byte costs charged to the allocator for budget
// accounting; Go's own GC does the real memory management (see
// internal/heap's package doc), these only need to be in the right
// ballpark so the configured budget behaves sensibly.
const (
	sizeofObject = 64
	sizeofScope  = 48
	sizeofFrame  = 32
	sizeofStack  = 64
	sizeofFunc   = 48
)

func (vm *VM) track(o heap.Object, size uintptr) error {
	return vm.Heap.Track(o, size)
}

// NewObject allocates and tracks an empty object.
func (vm *VM) NewObject() (*Object, error) {
	o := NewObject()
	if err := vm.track(o, sizeofObject); err != nil {
		return nil, err
	}
	return o, nil
}

// NewArray allocates and tracks an array wrapping elems.
func (vm *VM) NewArray(elems []Value) (*Array, error) {
	a := NewArray(elems)
	if err := vm.track(a, uintptr(16*len(elems)+16)); err != nil {
		return nil, err
	}
	return a, nil
}

// NewString allocates and tracks a string copy of s.
func (vm *VM) NewString(s string) (*String, error) {
	str := NewString(s)
	if err := vm.track(str, uintptr(len(s))+16); err != nil {
		return nil, err
	}
	return str, nil
}

// NewScope allocates and tracks a child scope of parent. s.Vars is never
// referenced from anywhere but s itself (Scope.Refs walks it), so its own
// creation pin is dropped immediately; s stays pinned until whichever
// opcode handler unwinds this scope (SCP's pop case) releases it, which is
// also what keeps s.Vars alive in the meantime.
func (vm *VM) NewScope(parent *Scope) (*Scope, error) {
	s := NewScope(parent)
	if err := vm.track(s, sizeofScope); err != nil {
		return nil, err
	}
	if err := vm.track(s.Vars, sizeofObject); err != nil {
		return nil, err
	}
	vm.Heap.Unpin(s.Vars)
	return s, nil
}

// NewBytecodeFunction allocates and tracks a closure over img starting at
// offset, capturing scope.
func (vm *VM) NewBytecodeFunction(scope *Scope, img *compiler.Image, offset uint32) (*BytecodeFunction, error) {
	f := NewBytecodeFunction(scope, img, offset)
	if err := vm.track(f, sizeofFunc); err != nil {
		return nil, err
	}
	return f, nil
}

// NewNativeFunction allocates and tracks fn, displaying as name, for a
// host binding the caller is about to install somewhere reachable (see
// Globals).
func (vm *VM) NewNativeFunction(name string, fn func(st *Stack) error) (*NativeFunction, error) {
	f := NewNativeFunction(name, fn)
	if err := vm.track(f, sizeofFunc); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFrame allocates and tracks an activation record for fn.
func (vm *VM) NewFrame(fn Function) (*Frame, error) {
	fr := &Frame{Fn: fn}
	if err := vm.track(fr, sizeofFrame); err != nil {
		return nil, err
	}
	return fr, nil
}

// NewStack allocates and tracks a fresh, empty stack.
func (vm *VM) NewStack() (*Stack, error) {
	st := NewStack(vm)
	if err := vm.track(st, sizeofStack); err != nil {
		return nil, err
	}
	return st, nil
}

// NewErrorValue allocates and tracks a freshly-raised error. e.Payload is
// only ever reached through e (ErrorValue.Refs), so its creation pin is
// dropped right away, same reasoning as NewScope's s.Vars.
func (vm *VM) NewErrorValue(msg string, trace []StackTraceElement) (*ErrorValue, error) {
	e := NewErrorValue(msg, trace)
	if err := vm.track(e, sizeofObject); err != nil {
		return nil, err
	}
	if err := vm.track(e.Payload, sizeofObject); err != nil {
		return nil, err
	}
	vm.Heap.Unpin(e.Payload)
	return e, nil
}

// Run executes img from its entry point on a fresh top-level stack and
// returns the resulting value pack, or the raised error if execution
// panicked.
func (vm *VM) Run(img *compiler.Image) ([]Value, error) {
	st, err := vm.NewStack()
	if err != nil {
		return nil, err
	}
	pin := vm.Heap.NewPin(st)
	defer pin.Release()

	root, err := vm.NewScope(nil)
	if err != nil {
		return nil, err
	}
	// root is pinned for the whole Run, so once a global is declared into
	// root.Vars it is reachable the same way any other installed field is;
	// its own creation pin (from NewNativeFunction/whatever built it) is
	// now redundant, same discipline as NewScope's s.Vars above.
	for name, v := range vm.Globals {
		root.Declare(name, v)
		if ho, ok := v.(heap.Object); ok {
			vm.Heap.Unpin(ho)
		}
	}
	top, err := vm.NewBytecodeFunction(root, img, img.Entry)
	if err != nil {
		return nil, err
	}

	// The top-level chunk has no parameter prologue (Compile never emits
	// one for the main chunk) and never touches this separator itself, so
	// it brackets the script's result pack, which Pack returns below.
	st.PushSep()
	if err := top.Call(st); err != nil {
		return nil, err
	}
	if st.Panicked {
		v := st.Get(-1)
		return nil, &RuntimeError{Value: v}
	}
	return append([]Value(nil), st.Pack()...), nil
}

// RuntimeError wraps a value-stack-level panic (an *ErrorValue or a
// plain error-flagged *Object) surfaced out of Run, for a host that wants
// to report it without reaching back into the stack itself.
type RuntimeError struct {
	Value Value
}

func (e *RuntimeError) Error() string {
	return e.Value.String()
}
