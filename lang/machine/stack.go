package machine

import (
	"fmt"

	"github.com/avevad/funscript-go/internal/heap"
)

// Stack is one routine's execution context: a value stack segmented by
// SEP markers and a frame stack recording the nested calls in progress.
// It is itself a heap allocation (so one stack may hold a reference to
// another, per the data model), and it owns a Pin on the VM's memory
// manager for every heap object it currently holds a live reference to
// via the value stack.
type Stack struct {
	heap.Header
	vm       *VM
	values   []Value
	frames   []*Frame
	Panicked bool
	steps    int64
}

// NewStack returns an empty stack bound to vm.
func NewStack(vm *VM) *Stack {
	return &Stack{vm: vm}
}

func (*Stack) Type() string   { return "stack" }
func (*Stack) String() string { return "<stack>" }
func (*Stack) Truth() bool    { return true }

func (st *Stack) HeapHeader() *heap.Header { return &st.Header }

func (st *Stack) Refs(cb func(heap.Object)) {
	for _, v := range st.values {
		if ho, ok := v.(heap.Object); ok {
			cb(ho)
		}
	}
	for _, fr := range st.frames {
		cb(fr)
	}
}

// Size reports the number of values currently on the stack.
func (st *Stack) Size() int { return len(st.values) }

// abs resolves a possibly-negative stack position (as used throughout
// the opcode contracts, -1 meaning the top) to an absolute index.
func (st *Stack) abs(pos int) int {
	if pos < 0 {
		pos += len(st.values)
	}
	return pos
}

// Get returns the value at pos (negative counts from the top).
func (st *Stack) Get(pos int) Value { return st.values[st.abs(pos)] }

// set assigns the value at pos (negative counts from the top).
func (st *Stack) set(pos int, v Value) { st.values[st.abs(pos)] = v }

func (st *Stack) push(v Value) { st.values = append(st.values, v) }

// PushSep pushes the separator marker. Only the dispatch loop (and this
// package's own call-convention helpers) may call it.
func (st *Stack) PushSep() { st.push(sepValue) }

// PushNul pushes the nul value.
func (st *Stack) PushNul() { st.push(Nul) }

// PushInt pushes an integer value.
func (st *Stack) PushInt(n int64) { st.push(Int(n)) }

// PushFloat pushes a float value.
func (st *Stack) PushFloat(f float64) { st.push(Float(f)) }

// PushBool pushes a boolean value.
func (st *Stack) PushBool(b bool) { st.push(Bool(b)) }

// PushString pushes a string value.
func (st *Stack) PushString(s *String) { st.push(s) }

// PushArray pushes an array value.
func (st *Stack) PushArray(a *Array) { st.push(a) }

// PushObject pushes an object value.
func (st *Stack) PushObject(o *Object) { st.push(o) }

// PushFunction pushes a function value.
func (st *Stack) PushFunction(f Function) { st.push(f) }

// PushError pushes an error value.
func (st *Stack) PushError(e *ErrorValue) { st.push(e) }

// Pop removes and returns the top value.
func (st *Stack) Pop() Value {
	v := st.values[len(st.values)-1]
	st.values = st.values[:len(st.values)-1]
	return v
}

// PopTo truncates the stack to pos (negative counts from the top), per
// the opcode contracts' `pop(pos)` primitive.
func (st *Stack) PopTo(pos int) {
	st.values = st.values[:st.abs(pos)]
}

// FindSep returns the absolute index of the nearest SEP below index
// `before` (negative counts from the top, default 0 meaning the current
// top), matching the original's find_sep(before). It panics if the
// separator discipline has been violated (a compiler or machine bug,
// never a user-facing fault).
func (st *Stack) FindSep(before int) int {
	pos := len(st.values) - 1
	if before != 0 {
		pos = st.abs(before) - 1
	}
	for pos >= 0 {
		if _, ok := st.values[pos].(sep); ok {
			return pos
		}
		pos--
	}
	panic("machine: value stack separator discipline violated")
}

// Discard pops values down to and including the topmost SEP. It reports
// whether any non-SEP value was actually discarded, the information
// DIS(strict) needs to enforce arity.
func (st *Stack) Discard() bool {
	sepPos := st.FindSep(0)
	discardedAny := sepPos != len(st.values)-1
	st.PopTo(sepPos)
	return discardedAny
}

// Reverse reverses the top pack (the values above the nearest SEP) in
// place.
func (st *Stack) Reverse() {
	sepPos := st.FindSep(0)
	i, j := sepPos+1, len(st.values)-1
	for i < j {
		st.values[i], st.values[j] = st.values[j], st.values[i]
		i++
		j--
	}
}

// Duplicate duplicates the top pack, inserting a fresh SEP between the
// two copies (so the stack reads `... SEP pack SEP pack` afterwards).
func (st *Stack) Duplicate() {
	sepPos := st.FindSep(0)
	pack := append([]Value(nil), st.values[sepPos+1:]...)
	st.push(sepValue)
	for _, v := range pack {
		st.push(v)
	}
}

// Remove removes the topmost SEP without discarding any values, merging
// the top pack into the one below it.
func (st *Stack) Remove() {
	sepPos := st.FindSep(0)
	st.values = append(st.values[:sepPos], st.values[sepPos+1:]...)
}

// AsBoolean pops the single-value pack at the top of the stack (bounded
// by the nearest SEP) and returns its boolean value; it is a fault if
// the pack does not hold exactly one Bool.
func (st *Stack) AsBoolean() (bool, error) {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		return false, fmt.Errorf("machine: condition must be a single value, got %d", len(pack))
	}
	b, ok := pack[0].(Bool)
	if !ok {
		return false, fmt.Errorf("machine: condition must be a boolean, got %s", pack[0].Type())
	}
	st.PopTo(sepPos)
	return bool(b), nil
}

// Pack returns the values of the top pack (above the nearest SEP),
// without popping them. Callers must not retain the returned slice past
// the next stack mutation.
func (st *Stack) Pack() []Value {
	sepPos := st.FindSep(0)
	return st.values[sepPos+1:]
}

// ReplacePack drops the top pack and pushes vs as the new one, bounded by
// a fresh SEP. A NativeFunction.Fn reads its argument pack through Pack
// and calls this once with its results.
func (st *Stack) ReplacePack(vs ...Value) {
	sepPos := st.FindSep(0)
	st.PopTo(sepPos)
	st.push(sepValue)
	for _, v := range vs {
		st.push(v)
	}
}

// sepValue is the package-level separator instance pushed by PushSep.
var sepValue = sep{}

// raise records a language-level fault: it builds an ErrorValue carrying
// msg and the current call stack, pushes it, and marks the stack
// panicked. The dispatch loop is responsible for collapsing back to the
// enclosing frame's own separator once it observes Panicked; raise itself
// only needs to leave the error value as the very last value pushed.
func (st *Stack) raise(msg string) {
	var e *ErrorValue
	tracked := false
	if st.vm != nil {
		if allocated, err := st.vm.NewErrorValue(msg, st.StackTrace()); err == nil {
			e = allocated
			tracked = true
		}
	}
	if e == nil {
		e = NewErrorValue(msg, st.StackTrace())
	}
	st.push(e)
	if tracked {
		// e is now reachable through st.values (Stack.Refs), so the
		// creation pin NewErrorValue left on it can be released.
		st.vm.Heap.Unpin(e)
	}
	st.Panicked = true
}

func (st *Stack) pushFrame(fr *Frame) { st.frames = append(st.frames, fr) }

func (st *Stack) topFrame() *Frame {
	if len(st.frames) == 0 {
		return nil
	}
	return st.frames[len(st.frames)-1]
}

func (st *Stack) popFrame() {
	st.frames = st.frames[:len(st.frames)-1]
}

// StackTrace captures the current frame stack as a trace, innermost
// frame first, for embedding into a freshly-raised ErrorValue. Locations
// are function-granularity: the compiler records a data-chunk base per
// function (installed by MET) but does not yet stamp a location record
// on every individual instruction, so a precise per-instruction source
// position isn't available to reconstruct here (see DESIGN.md).
func (st *Stack) StackTrace() []StackTraceElement {
	trace := make([]StackTraceElement, 0, len(st.frames))
	for i := len(st.frames) - 1; i >= 0; i-- {
		fr := st.frames[i]
		trace = append(trace, StackTraceElement{FuncName: fr.displayName(), Loc: "-"})
	}
	return trace
}
