package machine

import (
	"math"
	"strconv"

	"github.com/avevad/funscript-go/lang/compiler"
)

// Value is the interface implemented by every value that a running script
// can observe: the primitives (Int, Float, Bool, Nul) and the heap-backed
// reference types (*String, *Array, *Object, Function, *ErrorValue). A
// handful of VM-internal sentinels (the separator marker) also satisfy it
// but are never observable from user code.
type Value interface {
	String() string
	// Type names the runtime type, as reported by the sizeof/type-error
	// messages and by a value's own Type() field convention.
	Type() string
	// Truth reports the value's boolean conversion. Only Bool itself is
	// accepted where the language requires a strict boolean (see
	// Stack.asBoolean); Truth exists for completeness and for host-side
	// inspection rather than for JNO/JYS, which reject non-Bool outright.
	Truth() bool
}

// Tag reports the runtime type tag corresponding to v, matching the VAL
// instruction's encoding and the set enumerated in the data model.
func TagOf(v Value) compiler.Tag {
	switch v.(type) {
	case Int:
		return compiler.TagINT
	case Float:
		return compiler.TagFLP
	case Bool:
		return compiler.TagBLN
	case nul:
		return compiler.TagNUL
	case *String:
		return compiler.TagSTR
	case *Array:
		return compiler.TagARR
	case *Object:
		return compiler.TagOBJ
	case *ErrorValue:
		return compiler.TagERR
	case sep:
		return compiler.TagSEP
	default:
		if _, ok := v.(Function); ok {
			return compiler.TagFUN
		}
		return compiler.TagPTR
	}
}

// Int is a signed 64-bit integer value.
type Int int64

func (Int) Type() string        { return "int" }
func (i Int) String() string    { return strconv.FormatInt(int64(i), 10) }
func (i Int) Truth() bool       { return i != 0 }

// Float is a 64-bit IEEE-754 floating-point value. The reserved words nan
// and inf parse directly to it.
type Float float64

func (Float) Type() string { return "float" }
func (f Float) String() string {
	switch {
	case math.IsNaN(float64(f)):
		return "nan"
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	default:
		return strconv.FormatFloat(float64(f), 'g', -1, 64)
	}
}
func (f Float) Truth() bool { return f != 0 }

// Bool is the boolean value, spelled yes/no at the source level.
type Bool bool

func (Bool) Type() string { return "bool" }
func (b Bool) String() string {
	if b {
		return "yes"
	}
	return "no"
}
func (b Bool) Truth() bool { return bool(b) }

// nul is the sole value of the reserved nul literal.
type nul struct{}

func (nul) Type() string   { return "nul" }
func (nul) String() string { return "nul" }
func (nul) Truth() bool    { return false }

// Nul is the singleton nul value.
var Nul Value = nul{}

// sep is the separator sentinel. Only the Stack itself may construct one;
// it must never leak into a user-visible value pack.
type sep struct{}

func (sep) Type() string   { return "sep" }
func (sep) String() string { return "<sep>" }
func (sep) Truth() bool    { panic("machine: SEP has no truth value") }

// Sep is the separator sentinel value, exported only so other packages in
// this module (e.g. tests) can recognize it on the stack; it is never
// pushed by anything but Stack.PushSep.
var Sep Value = sep{}
