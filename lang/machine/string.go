package machine

import "github.com/avevad/funscript-go/internal/heap"

// String is an immutable byte sequence, the runtime representation of the
// language's single-quoted string literals and of STR-opcode allocations.
type String struct {
	heap.Header
	bytes []byte
}

// NewString returns a String owning a copy of s.
func NewString(s string) *String {
	return &String{bytes: []byte(s)}
}

func (*String) Type() string     { return "string" }
func (s *String) String() string { return string(s.bytes) }
func (s *String) Truth() bool    { return len(s.bytes) > 0 }

func (s *String) HeapHeader() *heap.Header { return &s.Header }
func (*String) Refs(func(heap.Object))     {}

// Len reports the string's length in bytes, the `sizeof` operator's
// result for strings.
func (s *String) Len() int { return len(s.bytes) }

// Bytes returns the string's raw bytes. Callers must not modify them.
func (s *String) Bytes() []byte { return s.bytes }

// Concat returns a new String holding s followed by other, implementing
// the `+` operator over strings.
func (s *String) Concat(other *String) *String {
	out := make([]byte, 0, len(s.bytes)+len(other.bytes))
	out = append(out, s.bytes...)
	out = append(out, other.bytes...)
	return &String{bytes: out}
}

// Compare returns a negative, zero, or positive value as s is less than,
// equal to, or greater than other, the comparison operators' behavior
// over strings.
func (s *String) Compare(other *String) int {
	switch {
	case string(s.bytes) < string(other.bytes):
		return -1
	case string(s.bytes) > string(other.bytes):
		return 1
	default:
		return 0
	}
}
