package machine

import (
	"fmt"
	"math"
	"strings"

	"github.com/avevad/funscript-go/internal/heap"
	"github.com/avevad/funscript-go/lang/compiler"
)

// instructionSize mirrors the assembler's fixed instruction width; kept
// local rather than imported so the dispatch loop doesn't need to reach
// into compiler internals for a single constant.
const instructionSize = 16

// execFrame is the fetch-decode-execute loop for one activation of a
// bytecode function: it runs from fn.Offset until END, propagating
// either a host-level Go error (a malformed image or a resource fault)
// or a funscript-level panic (surfaced through Stack.Panicked and the
// value left on top of the stack, never as a Go error).
//
// Every nested call recurses through this same method (BytecodeFunction
// Call delegates straight back here), mirroring how the interpreter this
// was ported from drives one native call frame per funscript call rather
// than threading an explicit frame stack through a single flat loop. The
// Stack's own frames slice exists purely for StackTrace bookkeeping.
func (st *Stack) execFrame(fn *BytecodeFunction, scope *Scope) error {
	frameSepPos := st.FindSep(0)

	if st.vm.MaxStackFrames > 0 && len(st.frames) >= st.vm.MaxStackFrames {
		st.raise("machine: frame stack overflow")
		errVal := st.Get(-1)
		st.PopTo(frameSepPos + 1)
		st.push(errVal)
		return nil
	}

	frame, err := st.vm.NewFrame(fn)
	if err != nil {
		return err
	}
	st.pushFrame(frame)
	// frame is now reachable through st.frames (Stack.Refs), so its
	// creation pin can be released; popFrame below is what ends its
	// reachability, not an Unpin.
	st.vm.Heap.Unpin(frame)
	defer st.popFrame()

	img := fn.Image
	ip := fn.Offset

	for {
		if st.vm.Interrupt.Load() {
			st.raise("machine: execution interrupted")
		}
		if !st.Panicked && st.vm.MaxSteps > 0 {
			st.steps++
			if st.steps > st.vm.MaxSteps {
				st.raise("machine: step limit exceeded")
			}
		}
		if !st.Panicked && st.vm.MaxStackValues > 0 && len(st.values) > st.vm.MaxStackValues {
			st.raise("machine: value stack overflow")
		}
		if st.Panicked {
			errVal := st.Get(-1)
			st.PopTo(frameSepPos + 1)
			st.push(errVal)
			return nil
		}

		instr, err := img.Instruction(ip)
		if err != nil {
			return err
		}
		frame.IP = ip
		next := ip + instructionSize

		switch instr.Op {
		case compiler.NOP:

		case compiler.VAL:
			v, err := decodeVAL(st.vm, fn, scope, instr)
			if err != nil {
				return err
			}
			st.push(v)
			// the only heap.Object VAL ever produces is a freshly closed-over
			// BytecodeFunction (TagFUN); now that it's on the value stack its
			// creation pin is redundant.
			if ho, ok := v.(heap.Object); ok {
				st.vm.Heap.Unpin(ho)
			}

		case compiler.SEP:
			st.PushSep()

		case compiler.IND:
			st.dispatchIndex(int(instr.U64))

		case compiler.HAS:
			name, err := img.CString(uint32(instr.U64))
			if err != nil {
				return err
			}
			st.dispatchHas(name)

		case compiler.GET:
			name, err := img.CString(uint32(instr.U64))
			if err != nil {
				return err
			}
			st.dispatchGet(name)

		case compiler.SET:
			name, err := img.CString(uint32(instr.U64))
			if err != nil {
				return err
			}
			st.dispatchSet(name)

		case compiler.VGT:
			name, err := img.CString(uint32(instr.U64))
			if err != nil {
				return err
			}
			if v, ok := scope.Resolve(name); ok {
				st.push(v)
			} else {
				st.raise(fmt.Sprintf("undefined variable %q", name))
			}

		case compiler.VST:
			name, err := img.CString(uint32(instr.U64))
			if err != nil {
				return err
			}
			v, ok := st.popAssignable()
			if !ok {
				st.raise("missing value for declaration or assignment")
				break
			}
			if strings.HasPrefix(name, ".") {
				bareName := name[1:]
				if fn, isFn := v.(Function); isFn {
					fn.AssignName(bareName)
				}
				scope.Declare(bareName, v)
			} else {
				if fn, isFn := v.(Function); isFn {
					fn.AssignName(name)
				}
				if aerr := scope.Assign(name, v); aerr != nil {
					st.raise(aerr.Error())
				}
			}

		case compiler.SCP:
			if instr.U16 != 0 {
				child, err := st.vm.NewScope(scope)
				if err != nil {
					return err
				}
				scope = child
			} else {
				if scope.Parent == nil {
					return fmt.Errorf("machine: scope underflow")
				}
				// scope is about to stop being reachable through the local
				// variable that is its only root (Frame carries no scope
				// field; see DESIGN.md); its creation pin was what kept it
				// alive until now. Any closure that captured it already
				// holds its own reference via BytecodeFunction.Scope, so
				// dropping this pin here does not endanger it.
				st.vm.Heap.Unpin(scope)
				scope = scope.Parent
			}

		case compiler.DIS:
			discarded := st.Discard()
			if instr.U16 != 0 && discarded {
				st.raise("unexpected extra value in assignment")
			}

		case compiler.REV:
			st.Reverse()

		case compiler.OPR:
			if err := st.dispatchOperator(compiler.Operator(instr.U16)); err != nil {
				return err
			}

		case compiler.END:
			return nil

		case compiler.JNO, compiler.JYS:
			b, berr := st.AsBoolean()
			if berr != nil {
				st.raise(berr.Error())
			} else if (instr.Op == compiler.JNO) == !b {
				next = uint32(instr.U64)
			}

		case compiler.JMP:
			next = uint32(instr.U64)

		case compiler.STR:
			off := uint32(instr.U64)
			n := uint32(instr.U16)
			if off+n > uint32(len(img.Bytes)) {
				return fmt.Errorf("compiler: string literal offset %d out of range", off)
			}
			s, err := st.vm.NewString(string(img.Bytes[off : off+n]))
			if err != nil {
				return err
			}
			st.push(s)
			st.vm.Heap.Unpin(s)

		case compiler.ARR:
			if err := st.dispatchArray(); err != nil {
				return err
			}

		case compiler.OBJ:
			if err := st.dispatchBuildObject(scope); err != nil {
				return err
			}

		case compiler.MOV:
			if err := st.dispatchMove(); err != nil {
				return err
			}

		case compiler.DUP:
			st.Duplicate()

		case compiler.REM:
			st.Remove()

		case compiler.MET:
			frame.MetaBase = uint32(instr.U64)

		case compiler.EXT:
			jump, err := st.dispatchExtract(uint32(instr.U64))
			if err != nil {
				return err
			}
			if jump {
				next = uint32(instr.U64)
			}

		case compiler.CHK:
			if err := st.dispatchCheck(instr.U16 != 0); err != nil {
				return err
			}

		case compiler.OSC:
			if err := st.dispatchOpenScope(&scope); err != nil {
				return err
			}

		case compiler.WRP:
			if err := st.dispatchWrap(); err != nil {
				return err
			}

		default:
			return fmt.Errorf("machine: unimplemented opcode %s", instr.Op)
		}

		ip = next
	}
}

// decodeVAL builds the Value a VAL instruction pushes. TagFUN is the only
// case needing more than the raw bits: it closes over scope, the live
// scope of the frame currently executing VAL — not fn.Scope, the scope fn
// itself was defined in — so a lambda can see bindings (like its own
// enclosing `.name = ...`) that SCP/OSC have pushed since fn started
// running, matching the original's closure over its running scope
// (`_examples/original_source/src/vm.cpp`'s NEW_FUN case).
func decodeVAL(vm *VM, fn *BytecodeFunction, scope *Scope, instr compiler.Instruction) (Value, error) {
	switch compiler.Tag(instr.U16) {
	case compiler.TagINT:
		return Int(int64(instr.U64)), nil
	case compiler.TagFLP:
		return Float(math.Float64frombits(instr.U64)), nil
	case compiler.TagBLN:
		return Bool(instr.U64 != 0), nil
	case compiler.TagNUL:
		return Nul, nil
	case compiler.TagFUN:
		closure, err := vm.NewBytecodeFunction(scope, fn.Image, uint32(instr.U64))
		if err != nil {
			return nil, err
		}
		return closure, nil
	default:
		return nil, fmt.Errorf("machine: VAL cannot push a %s", compiler.Tag(instr.U16))
	}
}

// popAssignable pops the absolute top value, for VST's single-value
// consumption; it refuses to consume a separator (too few values supplied
// to a multi-target assignment or parameter list), restoring it instead.
func (st *Stack) popAssignable() (Value, bool) {
	if st.Size() == 0 {
		return nil, false
	}
	v := st.Pop()
	if _, isSep := v.(sep); isSep {
		st.push(v)
		return nil, false
	}
	return v, true
}

func (st *Stack) dispatchIndex(idx int) {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		st.raise(fmt.Sprintf("index expects a single value, got %d", len(pack)))
		return
	}
	arr, ok := pack[0].(*Array)
	if !ok {
		st.raise(fmt.Sprintf("cannot index a %s", pack[0].Type()))
		return
	}
	if idx < 0 || idx >= arr.Len() {
		st.raise(fmt.Sprintf("array index %d out of range (length %d)", idx, arr.Len()))
		return
	}
	v := arr.Index(idx)
	st.PopTo(sepPos)
	st.push(v)
}

func (st *Stack) dispatchHas(name string) {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		st.raise(fmt.Sprintf("has expects a single value, got %d", len(pack)))
		return
	}
	obj, ok := pack[0].(*Object)
	if !ok {
		st.raise(fmt.Sprintf("cannot check field %q of a %s", name, pack[0].Type()))
		return
	}
	has := obj.ContainsField(name)
	st.PopTo(sepPos)
	st.push(Bool(has))
}

func (st *Stack) dispatchGet(name string) {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		st.raise(fmt.Sprintf("field access expects a single receiver, got %d", len(pack)))
		return
	}
	obj, ok := pack[0].(*Object)
	if !ok {
		st.raise(fmt.Sprintf("cannot get field %q of a %s", name, pack[0].Type()))
		return
	}
	v, has := obj.GetField(name)
	if !has {
		st.raise(fmt.Sprintf("object has no field %q", name))
		return
	}
	st.PopTo(sepPos)
	st.push(v)
}

func (st *Stack) dispatchSet(name string) {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		st.raise(fmt.Sprintf("field assignment expects a single receiver, got %d", len(pack)))
		return
	}
	recv, ok := pack[0].(*Object)
	if !ok {
		st.raise(fmt.Sprintf("cannot set field %q of a %s", name, pack[0].Type()))
		return
	}
	if sepPos < 1 {
		st.raise("missing value for field assignment")
		return
	}
	value := st.values[sepPos-1]
	recv.SetField(name, value)
	st.PopTo(sepPos - 1)
}

// dispatchMove implements MOV: `f(a) = v` dispatches to f's `assign`
// overload with the call arguments followed by v, discarding whatever it
// returns — a move target never leaves a residual pack for its enclosing
// DIS(strict) to trip over, same as SET.
func (st *Stack) dispatchMove() error {
	bSepPos := st.FindSep(0)
	bPack := st.values[bSepPos+1:]
	if len(bPack) != 1 {
		st.raise(fmt.Sprintf("assignment call target must be a single value, got %d", len(bPack)))
		return nil
	}
	target := bPack[0]
	aSepPos := st.FindSep(bSepPos)
	args := append([]Value(nil), st.values[aSepPos+1:bSepPos]...)
	if aSepPos < 1 {
		st.raise("missing value for assignment call")
		return nil
	}
	value := st.values[aSepPos-1]

	var fn Function
	if obj, ok := target.(*Object); ok {
		if fv, has := obj.GetField("assign"); has {
			fn, _ = fv.(Function)
		}
	}
	if fn == nil {
		st.raise(fmt.Sprintf("value of type %s has no assignment call", target.Type()))
		return nil
	}

	st.PopTo(aSepPos - 1)
	if err := st.callWithArgs(fn, append(args, value)); err != nil {
		return err
	}
	if st.Panicked {
		return nil
	}
	st.Discard()
	return nil
}

func (st *Stack) dispatchArray() error {
	sepPos := st.FindSep(0)
	elems := append([]Value(nil), st.values[sepPos+1:]...)
	a, err := st.vm.NewArray(elems)
	if err != nil {
		return err
	}
	st.PopTo(sepPos)
	st.push(a)
	st.vm.Heap.Unpin(a)
	return nil
}

// dispatchBuildObject implements OBJ: the innermost scope's declared
// variables become the object's named fields (the `{.k = v, ...}` form),
// and any bare values left in the top pack become positional fields (the
// `{1, 2}` form), same numbering WRP uses.
func (st *Stack) dispatchBuildObject(scope *Scope) error {
	sepPos := st.FindSep(0)
	pack := append([]Value(nil), st.values[sepPos+1:]...)
	obj, err := st.vm.NewObject()
	if err != nil {
		return err
	}
	for _, name := range scope.Vars.FieldOrder() {
		if v, ok := scope.Vars.GetField(name); ok {
			obj.SetField(name, v)
		}
	}
	for i, v := range pack {
		obj.SetField(positionalName(i), v)
	}
	st.PopTo(sepPos)
	st.push(obj)
	st.vm.Heap.Unpin(obj)
	return nil
}

func (st *Stack) dispatchOpenScope(scope **Scope) error {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		st.raise(fmt.Sprintf("scope-from-object expects a single value, got %d", len(pack)))
		return nil
	}
	obj, ok := pack[0].(*Object)
	if !ok {
		st.raise(fmt.Sprintf("cannot open a scope from a %s", pack[0].Type()))
		return nil
	}
	next := &Scope{Vars: obj, Parent: *scope}
	if err := st.vm.track(next, sizeofScope); err != nil {
		return err
	}
	st.PopTo(sepPos)
	*scope = next
	return nil
}

// dispatchWrap implements WRP: the top pack's values become the
// positional fields ("0", "1", ...) of a fresh object, the packaging half
// of the extract/wrap pair a multi-value function return uses to survive
// being carried as a single value.
func (st *Stack) dispatchWrap() error {
	sepPos := st.FindSep(0)
	pack := append([]Value(nil), st.values[sepPos+1:]...)
	obj, err := st.vm.NewObject()
	if err != nil {
		return err
	}
	for i, v := range pack {
		obj.SetField(positionalName(i), v)
	}
	st.PopTo(sepPos)
	st.push(obj)
	st.vm.Heap.Unpin(obj)
	return nil
}

// dispatchExtract implements EXT. target is the patched jump offset (0
// for the no-fallback form). On an error-flagged value: with a fallback,
// the error is discarded and execution falls through into the fallback
// expression that immediately follows; with none, the error propagates.
// On any other value, it is unwrapped (the inverse of WRP) and, if a
// fallback exists, execution jumps past it (the extracted value is
// already good).
func (st *Stack) dispatchExtract(target uint32) (bool, error) {
	sepPos := st.FindSep(0)
	pack := st.values[sepPos+1:]
	if len(pack) != 1 {
		st.raise(fmt.Sprintf("extract expects a single value, got %d", len(pack)))
		return false, nil
	}
	v := pack[0]

	if IsError(v) {
		st.PopTo(sepPos)
		if target == 0 {
			st.push(v)
			st.Panicked = true
			return false, nil
		}
		return false, nil
	}

	var unwrapped []Value
	if obj, ok := v.(*Object); ok {
		unwrapped = unwrapPositional(obj)
	} else {
		unwrapped = []Value{v}
	}
	st.PopTo(sepPos)
	for _, uv := range unwrapped {
		st.push(uv)
	}
	return target != 0, nil
}

// unwrapPositional returns obj's positional fields in order, or obj
// itself (as a single-element result) if it carries none.
func unwrapPositional(obj *Object) []Value {
	var out []Value
	for i := 0; ; i++ {
		v, ok := obj.GetField(positionalName(i))
		if !ok {
			break
		}
		out = append(out, v)
	}
	if out == nil {
		return []Value{obj}
	}
	return out
}

// dispatchCheck implements CHK. lenient doubles as the mode flag: false
// from check's eval-mode emission template, true from its move-mode one,
// and the two modes lay out the stack differently:
//
//   - eval mode (T : v, lenient=false): evalCheck gives both T and v their
//     own dedicated SEP (SEP;eval(v);SEP;eval(T)), so the type is the
//     single-value pack nearest the top and v the single-value pack below
//     it. The check leaves the surviving value where v's pack was; REM
//     (emitted right after CHK) then drops the leftover SEP, so the caller
//     sees the same one-value shape it would without any check at all.
//
//   - move mode (.x : T = v, lenient=true): moveBinOp's COLON case only
//     wraps T in a SEP (SEP;eval(T)); v is whatever bare value the
//     enclosing bind already left sitting directly below that SEP, with no
//     separator of its own — it may have sibling values (other not-yet
//     -consumed params) further down the same pack with nothing between
//     them. So v can't be found by scanning for another SEP: it is always
//     exactly the element one slot below T's SEP. Once T is validated, the
//     SEP and T are dropped and v is left exactly where it already sat, for
//     moveNode to consume next.
//
// The REV emitted just before CHK in both templates is a no-op here (every
// pack involved is single-valued); it survives only because the emission
// table (and the dead CHECK case in the C++ this was ported from — never
// reachable from that project's own parser) lists it.
func (st *Stack) dispatchCheck(lenient bool) error {
	sepNear := st.FindSep(0)
	nearPack := st.values[sepNear+1:]
	if len(nearPack) != 1 {
		st.raise(fmt.Sprintf("check expects a single type descriptor, got %d", len(nearPack)))
		return nil
	}
	typeDesc := nearPack[0]

	if lenient {
		if sepNear == 0 {
			st.raise("check has no value to validate")
			return nil
		}
		value := st.values[sepNear-1]
		ok, err := st.matchesType(value, typeDesc)
		if err != nil {
			return err
		}
		if !ok {
			st.raise(fmt.Sprintf("value of type %s does not match %s", value.Type(), typeNameOf(typeDesc)))
			return nil
		}
		st.PopTo(sepNear)
		return nil
	}

	sepFar := st.FindSep(sepNear)
	farPack := st.values[sepFar+1 : sepNear]
	if len(farPack) != 1 {
		st.raise(fmt.Sprintf("check expects a single value, got %d", len(farPack)))
		return nil
	}
	value := farPack[0]

	ok, err := st.matchesType(value, typeDesc)
	if err != nil {
		return err
	}
	if !ok {
		st.raise(fmt.Sprintf("value of type %s does not match %s", value.Type(), typeNameOf(typeDesc)))
		return nil
	}
	st.PopTo(sepFar + 1)
	st.push(value)
	return nil
}

// matchesType implements the type-check protocol: an object exposing a
// check_value field is invoked with value as its sole argument — any
// successful return (the return value itself is discarded) accepts the
// value, any runtime panic rejects it without propagating past CHK.
// Anything else is an identity type, matched by name against value.Type()
// (the bare string "any" and the nul literal both accept everything).
func (st *Stack) matchesType(value, typeDesc Value) (bool, error) {
	if _, isNul := typeDesc.(nul); isNul {
		return true, nil
	}
	if obj, ok := typeDesc.(*Object); ok {
		if fv, has := obj.GetField("check_value"); has {
			if fn, ok := fv.(Function); ok {
				return st.invokeCheckValue(fn, value)
			}
		}
	}
	name := typeNameOf(typeDesc)
	return name == "any" || value.Type() == name, nil
}

// invokeCheckValue calls fn(value) for the check_value protocol and
// reports acceptance. A panic raised inside fn is caught here rather than
// left to propagate: CHK's contract is that a rejecting check_value is an
// ordinary "no", not a fault the enclosing expression needs to extract.
func (st *Stack) invokeCheckValue(fn Function, value Value) (bool, error) {
	base := len(st.values)
	if err := st.callWithArgs(fn, []Value{value}); err != nil {
		return false, err
	}
	if st.Panicked {
		st.values = st.values[:base]
		st.Panicked = false
		return false, nil
	}
	st.Discard()
	return true, nil
}
