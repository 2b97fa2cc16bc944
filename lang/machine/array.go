package machine

import (
	"strings"

	"github.com/avevad/funscript-go/internal/heap"
)

// Array is a dynamically-sized, contiguous sequence of values, built by
// the ARR opcode and indexable at runtime via the IND opcode.
type Array struct {
	heap.Header
	elems []Value
}

// NewArray returns an array wrapping elems directly; callers should not
// subsequently retain elems.
func NewArray(elems []Value) *Array {
	return &Array{elems: elems}
}

func (*Array) Type() string { return "array" }
func (a *Array) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range a.elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(']')
	return b.String()
}
func (a *Array) Truth() bool { return len(a.elems) > 0 }

func (a *Array) HeapHeader() *heap.Header { return &a.Header }

func (a *Array) Refs(cb func(heap.Object)) {
	for _, v := range a.elems {
		if ho, ok := v.(heap.Object); ok {
			cb(ho)
		}
	}
}

// Len reports the array's element count.
func (a *Array) Len() int { return len(a.elems) }

// Index returns the i'th element. The caller (the IND opcode's handler)
// is responsible for bounds-checking i and raising the language-level
// fault; Index itself trusts its precondition, same as a raw slice index.
func (a *Array) Index(i int) Value {
	return a.elems[i]
}

// Elems returns the array's backing slice. Callers must not modify it.
func (a *Array) Elems() []Value { return a.elems }

// Concat returns a new array holding a's elements followed by other's,
// implementing the `+` operator over arrays.
func (a *Array) Concat(other *Array) *Array {
	out := make([]Value, 0, len(a.elems)+len(other.elems))
	out = append(out, a.elems...)
	out = append(out, other.elems...)
	return NewArray(out)
}

// Repeat returns a new array holding a's elements repeated n times,
// implementing the `*` operator between an array and an integer.
func (a *Array) Repeat(n int) *Array {
	if n <= 0 {
		return NewArray(nil)
	}
	out := make([]Value, 0, len(a.elems)*n)
	for i := 0; i < n; i++ {
		out = append(out, a.elems...)
	}
	return NewArray(out)
}
