package machine

import (
	"strconv"
	"strings"

	"github.com/avevad/funscript-go/internal/heap"
	"github.com/dolthub/swiss"
)

// Object is an ordered mapping from field name to Value: the language's
// only compound record type, also doing double duty as a closure's
// variables table (see Scope) and as the payload of an error value. The
// field table itself is a swiss.Map for O(1) lookup; insertion order is
// tracked separately since the data model calls for an *ordered* mapping
// (stack traces, WRP/EXT's positional fields, and object iteration all
// depend on it).
type Object struct {
	heap.Header
	fields *swiss.Map[string, Value]
	order  []string
}

// NewObject returns an empty object ready to be tracked by a Manager.
func NewObject() *Object {
	return &Object{fields: swiss.NewMap[string, Value](8)}
}

func (*Object) Type() string   { return "object" }
func (o *Object) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range o.order {
		if i > 0 {
			b.WriteString(", ")
		}
		v, _ := o.fields.Get(k)
		b.WriteString(k)
		b.WriteString(" = ")
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}
func (*Object) Truth() bool { return true }

func (o *Object) HeapHeader() *heap.Header { return &o.Header }

func (o *Object) Refs(cb func(heap.Object)) {
	o.fields.Iter(func(_ string, v Value) bool {
		if ho, ok := v.(heap.Object); ok {
			cb(ho)
		}
		return false
	})
}

// ContainsField reports whether name is set on o, the `has` operator's
// underlying check (HAS opcode, OpHas operator).
func (o *Object) ContainsField(name string) bool {
	return o.fields.Has(name)
}

// GetField returns the value of field name, and whether it was present.
func (o *Object) GetField(name string) (Value, bool) {
	return o.fields.Get(name)
}

// SetField assigns name to v, appending name to the insertion order the
// first time it is set.
func (o *Object) SetField(name string, v Value) {
	if !o.fields.Has(name) {
		o.order = append(o.order, name)
	}
	o.fields.Put(name, v)
}

// FieldOrder returns the field names in insertion order. Callers must not
// modify the returned slice.
func (o *Object) FieldOrder() []string { return o.order }

// IsError reports whether o carries the conventional `error` flag set to
// a truthy boolean, the protocol the extract operator inspects.
func (o *Object) IsError() bool {
	v, ok := o.GetField("error")
	if !ok {
		return false
	}
	b, ok := v.(Bool)
	return ok && bool(b)
}

// positionalName returns the conventional field name WRP/EXT use for the
// i'th positional slot of a wrapped pack.
func positionalName(i int) string { return strconv.Itoa(i) }
