package machine

import (
	"fmt"

	"github.com/avevad/funscript-go/internal/heap"
)

// Scope is a lexical scope: a variables object paired with an optional
// parent, forming the singly-linked chain variable lookup walks. It is
// itself a heap allocation so a closure that captures one keeps its whole
// ancestor chain alive.
type Scope struct {
	heap.Header
	Vars   *Object
	Parent *Scope
}

// NewScope returns a scope whose parent is parent (nil for the root
// scope) with a fresh, empty variables object.
func NewScope(parent *Scope) *Scope {
	return &Scope{Vars: NewObject(), Parent: parent}
}

func (*Scope) Type() string     { return "scope" }
func (*Scope) String() string   { return "<scope>" }
func (*Scope) Truth() bool      { return true }

func (s *Scope) HeapHeader() *heap.Header { return &s.Header }

func (s *Scope) Refs(cb func(heap.Object)) {
	cb(s.Vars)
	if s.Parent != nil {
		cb(s.Parent)
	}
}

// Declare binds name in this scope's own variables object (the `.x`
// declaration form), shadowing any same-named binding in an ancestor.
func (s *Scope) Declare(name string, v Value) {
	s.Vars.SetField(name, v)
}

// Resolve looks up name starting at this scope and walking outward,
// returning the value and true if found.
func (s *Scope) Resolve(name string) (Value, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if v, ok := cur.Vars.GetField(name); ok {
			return v, true
		}
	}
	return nil, false
}

// Assign sets name to v in the innermost scope of the chain that already
// declares it, per VST's "plain identifier" rule. It returns an error if
// no scope in the chain declares name.
func (s *Scope) Assign(name string, v Value) error {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Vars.ContainsField(name) {
			cur.Vars.SetField(name, v)
			return nil
		}
	}
	return fmt.Errorf("machine: undeclared variable %q", name)
}
