package machine

import (
	"fmt"

	"github.com/avevad/funscript-go/internal/heap"
	"github.com/avevad/funscript-go/lang/compiler"
)

// dispatchOperator implements OPR: it pops the two operand packs the
// generic binary/unary emission template leaves (right evaluated first,
// so it sits in the lower/outer pack; left evaluated second, so it sits
// in the upper/nearest pack — matching the original assembler's pos_a /
// pos_b convention) and leaves a single bare result value in their place,
// for whichever enclosing SEP the caller already established.
//
// CALL is handled separately (dispatchCall): unlike every other operator
// it must preserve its argument pack, rather than collapse it, so the
// callee's own parameter prologue can consume it.
func (st *Stack) dispatchOperator(op compiler.Operator) error {
	if op == compiler.OpCall {
		return st.dispatchCall()
	}

	bSepPos := st.FindSep(0)
	bPack := append([]Value(nil), st.values[bSepPos+1:]...)
	aSepPos := st.FindSep(bSepPos)
	aPack := append([]Value(nil), st.values[aSepPos+1:bSepPos]...)

	// The left AST operand is the overload receiver; for a unary operator
	// (synthesized with a Void left operand) the left pack is empty, so
	// the lone right-hand operand stands in as the receiver instead, with
	// no argument pack of its own.
	var receiver Value
	var args []Value
	switch {
	case len(bPack) == 1:
		receiver, args = bPack[0], aPack
	case len(aPack) == 1:
		receiver, args = aPack[0], nil
	}

	if receiver != nil {
		if obj, ok := receiver.(*Object); ok {
			if name, ok := compiler.OverloadName(op); ok {
				if fv, ok := obj.GetField(name); ok {
					if fn, ok := fv.(Function); ok {
						st.PopTo(aSepPos)
						if err := st.callWithArgs(fn, args); err != nil {
							return err
						}
						if !st.Panicked {
							st.Remove()
						}
						return nil
					}
				}
			}
		}
	}

	result, err := evalBuiltinOperator(st.vm, op, aPack, bPack)
	if err != nil {
		st.PopTo(aSepPos)
		st.raise(err.Error())
		return nil
	}
	st.PopTo(aSepPos)
	st.push(result)
	if ho, ok := result.(heap.Object); ok {
		st.vm.Heap.Unpin(ho)
	}
	return nil
}

// dispatchCall implements OPR(CALL): left must be a single callable
// (directly a Function, or an object exposing a `call` overload), right
// is the argument pack of any size. The callable's own parameter
// prologue is responsible for consuming the argument pack (and its
// bracketing SEP) itself, so dispatchCall hands it over untouched; the
// results the call leaves behind stay in the enclosing pack, the same
// shape every other OPR leaves.
func (st *Stack) dispatchCall() error {
	bSepPos := st.FindSep(0)
	bPack := st.values[bSepPos+1:]
	if len(bPack) != 1 {
		aSepPos := st.FindSep(bSepPos)
		st.PopTo(aSepPos)
		st.raise(fmt.Sprintf("call target must be a single value, got %d", len(bPack)))
		return nil
	}
	target := bPack[0]

	fn, ok := target.(Function)
	if !ok {
		if obj, isObj := target.(*Object); isObj {
			if fv, has := obj.GetField("call"); has {
				fn, ok = fv.(Function)
			}
		}
	}
	if !ok {
		aSepPos := st.FindSep(bSepPos)
		st.PopTo(aSepPos)
		st.raise(fmt.Sprintf("value of type %s is not callable", target.Type()))
		return nil
	}

	st.PopTo(bSepPos) // drop the callable and its SEP; args+SEP remain for the callee

	return fn.Call(st)
}

// callWithArgs invokes fn with args pushed as a fresh SEP-bounded pack,
// the convention every overload dispatch (binary operators, MOV) shares,
// and leaves a single re-bracketed result pack in their place.
func (st *Stack) callWithArgs(fn Function, args []Value) error {
	base := len(st.values)
	st.push(sepValue)
	for _, v := range args {
		st.push(v)
	}
	if err := fn.Call(st); err != nil {
		return err
	}
	if st.Panicked {
		return nil
	}
	result := append([]Value(nil), st.values[base:]...)
	st.values = append(st.values[:base], sepValue)
	st.values = append(st.values, result...)
	return nil
}

// evalBuiltinOperator computes the built-in (non-overloaded) semantics of
// op over its operand packs. aPack is the right-hand operand (possibly
// empty for a unary op), bPack the left-hand one (empty for a unary op).
func evalBuiltinOperator(vm *VM, op compiler.Operator, aPack, bPack []Value) (Value, error) {
	if len(bPack) == 0 && len(aPack) == 1 {
		return evalUnaryOperator(op, aPack[0])
	}
	if len(aPack) != 1 || len(bPack) != 1 {
		return nil, fmt.Errorf("machine: operator %d expects one operand on each side", op)
	}
	return evalBinaryOperator(vm, op, bPack[0], aPack[0])
}

func evalUnaryOperator(op compiler.Operator, v Value) (Value, error) {
	switch op {
	case compiler.OpNot:
		b, ok := v.(Bool)
		if !ok {
			return nil, fmt.Errorf("machine: not expects a boolean, got %s", v.Type())
		}
		return Bool(!b), nil
	case compiler.OpBitNot:
		i, ok := v.(Int)
		if !ok {
			return nil, fmt.Errorf("machine: ~ expects an integer, got %s", v.Type())
		}
		return Int(^i), nil
	case compiler.OpSizeof:
		switch vv := v.(type) {
		case *String:
			return Int(vv.Len()), nil
		case *Array:
			return Int(vv.Len()), nil
		case *Object:
			return Int(len(vv.FieldOrder())), nil
		default:
			return nil, fmt.Errorf("machine: sizeof is not defined for %s", v.Type())
		}
	default:
		return nil, fmt.Errorf("machine: operator %d has no unary form", op)
	}
}

func evalBinaryOperator(vm *VM, op compiler.Operator, l, r Value) (Value, error) {
	switch op {
	case compiler.OpPlus:
		return arithAdd(vm, l, r)
	case compiler.OpMinus:
		return arithNumeric(l, r, "-", func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	case compiler.OpTimes:
		return arithTimes(vm, l, r)
	case compiler.OpDivide:
		return arithDivide(l, r)
	case compiler.OpModulo:
		li, lok := l.(Int)
		ri, rok := r.(Int)
		if !lok || !rok {
			return nil, fmt.Errorf("machine: %% expects two integers, got %s and %s", l.Type(), r.Type())
		}
		if ri == 0 {
			return nil, fmt.Errorf("machine: modulo by zero")
		}
		return li % ri, nil
	case compiler.OpEquals:
		return Bool(valuesEqual(l, r)), nil
	case compiler.OpDiffers:
		return Bool(!valuesEqual(l, r)), nil
	case compiler.OpLess, compiler.OpGreater, compiler.OpLessEqual, compiler.OpGreaterEqual:
		return compareValues(op, l, r)
	case compiler.OpIs:
		// is never consults an `equals` overload (unlike ==, dispatched
		// above in dispatchOperator before evalBuiltinOperator is ever
		// reached) — it always compares by the same structural value
		// equality == falls back to when no overload applies, see
		// DESIGN.md's "is vs ==" decision.
		return Bool(valuesEqual(l, r)), nil
	case compiler.OpHas:
		obj, ok := l.(*Object)
		if !ok {
			return nil, fmt.Errorf("machine: has expects an object on the left, got %s", l.Type())
		}
		name, ok := r.(*String)
		if !ok {
			return nil, fmt.Errorf("machine: has expects a string field name, got %s", r.Type())
		}
		return Bool(obj.ContainsField(string(name.Bytes()))), nil
	case compiler.OpBitAnd, compiler.OpBitOr, compiler.OpBitXor, compiler.OpBitShl, compiler.OpBitShr:
		return bitwise(op, l, r)
	default:
		return nil, fmt.Errorf("machine: operator %d has no binary form", op)
	}
}

// arithAdd computes `+`. The String and Array cases allocate a brand new
// heap value (Concat never mutates either operand), so unlike every other
// case here they must be registered with vm's Manager before anything else
// can observe them, the same way the opcode handlers that build strings and
// arrays do (see dispatchOperator, which drops the matching creation pin
// once the result is back on the stack).
func arithAdd(vm *VM, l, r Value) (Value, error) {
	switch lv := l.(type) {
	case Int:
		if rv, ok := r.(Int); ok {
			return lv + rv, nil
		}
	case Float:
		if rv, ok := r.(Float); ok {
			return lv + rv, nil
		}
	case *String:
		if rv, ok := r.(*String); ok {
			s := lv.Concat(rv)
			if err := vm.track(s, uintptr(len(s.Bytes()))+16); err != nil {
				return nil, err
			}
			return s, nil
		}
	case *Array:
		if rv, ok := r.(*Array); ok {
			a := lv.Concat(rv)
			if err := vm.track(a, uintptr(16*a.Len()+16)); err != nil {
				return nil, err
			}
			return a, nil
		}
	}
	return nil, fmt.Errorf("machine: + is not defined between %s and %s", l.Type(), r.Type())
}

// arithTimes computes `*`, including the array-repeat form, whose result
// is (like arithAdd's Concat cases) a fresh heap allocation that needs
// tracking before it can be returned.
func arithTimes(vm *VM, l, r Value) (Value, error) {
	if a, ok := l.(*Array); ok {
		if n, ok := r.(Int); ok {
			out := a.Repeat(int(n))
			if err := vm.track(out, uintptr(16*out.Len()+16)); err != nil {
				return nil, err
			}
			return out, nil
		}
	}
	return arithNumeric(l, r, "*", func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
}

func arithDivide(l, r Value) (Value, error) {
	if li, ok := l.(Int); ok {
		ri, ok := r.(Int)
		if !ok {
			return nil, fmt.Errorf("machine: / is not defined between %s and %s", l.Type(), r.Type())
		}
		if ri == 0 {
			return nil, fmt.Errorf("machine: division by zero")
		}
		return li / ri, nil
	}
	if lf, ok := l.(Float); ok {
		rf, ok := r.(Float)
		if !ok {
			return nil, fmt.Errorf("machine: / is not defined between %s and %s", l.Type(), r.Type())
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("machine: / is not defined for %s", l.Type())
}

// arithNumeric applies a numeric operator that is only ever defined
// between two operands of the same numeric kind — per spec, mixing an
// Int and a Float is a panic rather than an implicit promotion.
func arithNumeric(l, r Value, name string, iop func(int64, int64) int64, fop func(float64, float64) float64) (Value, error) {
	if li, ok := l.(Int); ok {
		if ri, ok := r.(Int); ok {
			return Int(iop(int64(li), int64(ri))), nil
		}
		return nil, fmt.Errorf("machine: %s is not defined between %s and %s", name, l.Type(), r.Type())
	}
	if lf, ok := l.(Float); ok {
		if rf, ok := r.(Float); ok {
			return Float(fop(float64(lf), float64(rf))), nil
		}
		return nil, fmt.Errorf("machine: %s is not defined between %s and %s", name, l.Type(), r.Type())
	}
	return nil, fmt.Errorf("machine: %s is not defined between %s and %s", name, l.Type(), r.Type())
}

func asFloat(v Value) (float64, bool) {
	switch vv := v.(type) {
	case Int:
		return float64(vv), true
	case Float:
		return float64(vv), true
	default:
		return 0, false
	}
}

func bitwise(op compiler.Operator, l, r Value) (Value, error) {
	li, lok := l.(Int)
	ri, rok := r.(Int)
	if !lok || !rok {
		return nil, fmt.Errorf("machine: bitwise operator expects two integers, got %s and %s", l.Type(), r.Type())
	}
	switch op {
	case compiler.OpBitAnd:
		return li & ri, nil
	case compiler.OpBitOr:
		return li | ri, nil
	case compiler.OpBitXor:
		return li ^ ri, nil
	case compiler.OpBitShl:
		return li << uint64(ri), nil
	case compiler.OpBitShr:
		return li >> uint64(ri), nil
	default:
		return nil, fmt.Errorf("machine: unknown bitwise operator %d", op)
	}
}

func compareValues(op compiler.Operator, l, r Value) (Value, error) {
	var cmp int
	switch lv := l.(type) {
	case Int:
		rv, ok := r.(Int)
		if !ok {
			return nil, fmt.Errorf("machine: comparison is not defined between %s and %s", l.Type(), r.Type())
		}
		cmp = cmpFloat(float64(lv), float64(rv))
	case Float:
		rv, ok := r.(Float)
		if !ok {
			return nil, fmt.Errorf("machine: comparison is not defined between %s and %s", l.Type(), r.Type())
		}
		cmp = cmpFloat(float64(lv), float64(rv))
	case *String:
		rv, ok := r.(*String)
		if !ok {
			return nil, fmt.Errorf("machine: comparison is not defined between %s and %s", l.Type(), r.Type())
		}
		cmp = lv.Compare(rv)
	default:
		return nil, fmt.Errorf("machine: comparison is not defined for %s", l.Type())
	}
	switch op {
	case compiler.OpLess:
		return Bool(cmp < 0), nil
	case compiler.OpGreater:
		return Bool(cmp > 0), nil
	case compiler.OpLessEqual:
		return Bool(cmp <= 0), nil
	case compiler.OpGreaterEqual:
		return Bool(cmp >= 0), nil
	default:
		return nil, fmt.Errorf("machine: unknown comparison operator %d", op)
	}
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func typeNameOf(v Value) string {
	if s, ok := v.(*String); ok {
		return string(s.Bytes())
	}
	return v.Type()
}

func valuesEqual(l, r Value) bool {
	switch lv := l.(type) {
	case Int:
		if rv, ok := r.(Int); ok {
			return lv == rv
		}
		if rv, ok := r.(Float); ok {
			return float64(lv) == float64(rv)
		}
	case Float:
		if rv, ok := asFloat(r); ok {
			return float64(lv) == rv
		}
	case Bool:
		rv, ok := r.(Bool)
		return ok && lv == rv
	case nul:
		_, ok := r.(nul)
		return ok
	case *String:
		if rv, ok := r.(*String); ok {
			return string(lv.Bytes()) == string(rv.Bytes())
		}
	case *Array:
		if rv, ok := r.(*Array); ok {
			return arraysEqual(lv, rv)
		}
	default:
		return l == r
	}
	return false
}

func arraysEqual(a, b *Array) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if !valuesEqual(a.Index(i), b.Index(i)) {
			return false
		}
	}
	return true
}
