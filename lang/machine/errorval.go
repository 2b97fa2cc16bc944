package machine

import (
	"fmt"
	"strings"

	"github.com/avevad/funscript-go/internal/heap"
)

// errFlagName is the conventional object field the extract protocol
// inspects, per the runtime's ERR_FLAG_NAME convention.
const errFlagName = "error"

// StackTraceElement names one frame of a captured stack trace: the
// function active in that frame and the source location of the faulting
// instruction within it.
type StackTraceElement struct {
	FuncName string
	Loc      string
}

// ErrorValue is the heap allocation backing a TagERR value: an object
// payload (by convention carrying the `error` boolean flag plus whatever
// descriptive fields the raiser set, such as `msg`) together with the
// call stack captured at the moment it was raised.
type ErrorValue struct {
	heap.Header
	Payload    *Object
	StackTrace []StackTraceElement
}

// NewErrorValue builds an ErrorValue whose payload carries error=true and
// msg=msg, the shape every VM-raised panic produces.
func NewErrorValue(msg string, trace []StackTraceElement) *ErrorValue {
	payload := NewObject()
	payload.SetField(errFlagName, Bool(true))
	payload.SetField("msg", NewString(msg))
	return &ErrorValue{Payload: payload, StackTrace: trace}
}

func (*ErrorValue) Type() string { return "error" }

func (e *ErrorValue) String() string {
	var b strings.Builder
	b.WriteString(e.Payload.String())
	for _, fr := range e.StackTrace {
		fmt.Fprintf(&b, "\n  at %s (%s)", fr.FuncName, fr.Loc)
	}
	return b.String()
}

func (*ErrorValue) Truth() bool { return true }

func (e *ErrorValue) HeapHeader() *heap.Header { return &e.Header }

func (e *ErrorValue) Refs(cb func(heap.Object)) {
	cb(e.Payload)
}

// IsError reports whether o carries the conventional error flag, the
// predicate the extract operator (and ordinary objects raised without
// going through NewErrorValue) are tested with.
func IsError(v Value) bool {
	switch o := v.(type) {
	case *ErrorValue:
		return o.Payload.IsError()
	case *Object:
		return o.IsError()
	default:
		return false
	}
}

// AsErrorObject returns the *Object payload of v if it is error-flagged,
// and whether v was error-flagged at all.
func AsErrorObject(v Value) (*Object, bool) {
	switch o := v.(type) {
	case *ErrorValue:
		return o.Payload, true
	case *Object:
		if o.IsError() {
			return o, true
		}
	}
	return nil, false
}
