package compiler

import (
	"fmt"
	"math"

	"github.com/avevad/funscript-go/lang/ast"
	"github.com/avevad/funscript-go/lang/token"
)

// CompilationError reports a node that the assembler cannot lower, either
// because a move-mode target isn't syntactically assignable or because an
// operator's operand has the wrong shape (e.g. a.b whose b isn't a plain
// identifier).
type CompilationError struct {
	Filename string
	Loc      token.Loc
	Msg      string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Filename, e.Loc, e.Msg)
}

// Compile lowers a single parsed expression tree into a finalized bytecode
// image. The tree is compiled as the body of an implicit top-level
// function: it gets its own chunk, its own scope, and returns whatever
// pack its root expression evaluates to.
func Compile(filename string, root ast.Node) (*Image, error) {
	asm := NewAssembler(filename)
	main := asm.NewChunk()
	fc := &funcCompiler{asm: asm, chunk: main, filename: filename}

	fc.emitPatched(MET, 0, 0, 0)
	fc.emit(SCP, 1, 0)
	if err := fc.evalNode(root); err != nil {
		return nil, err
	}
	fc.emit(SCP, 0, 0)
	fc.emit(END, 0, 0)

	return asm.Finalize(), nil
}

// funcCompiler emits one function body (the top-level script or one
// lambda) into a single chunk, sharing the enclosing Assembler's data
// chunk and patch list with every other funcCompiler in the same
// compilation.
type funcCompiler struct {
	asm      *Assembler
	chunk    *Chunk
	filename string
}

func (fc *funcCompiler) errf(loc token.Loc, format string, args ...any) error {
	return &CompilationError{Filename: fc.filename, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// emit appends a plain instruction with no cross-chunk reference.
func (fc *funcCompiler) emit(op Opcode, u16 uint16, u64 uint64) uint32 {
	return fc.chunk.PutInstruction(Instruction{Op: op, U16: u16, U64: u64})
}

// emitPatched appends an instruction whose u64 slot is an offset into
// another (or the same) chunk, resolved once Finalize knows every
// chunk's absolute base.
func (fc *funcCompiler) emitPatched(op Opcode, u16 uint16, toChunk int, toOffset uint32) uint32 {
	off := fc.chunk.PutInstruction(Instruction{Op: op, U16: u16})
	fc.asm.AddPointer(fc.chunk.ID(), off+8, toChunk, toOffset)
	return off
}

// emitJumpTo appends a jump-family instruction to an already-known target
// offset within this chunk (a backward jump closing a loop).
func (fc *funcCompiler) emitJumpTo(op Opcode, target uint32) uint32 {
	return fc.emitPatched(op, 0, fc.chunk.ID(), target)
}

// reserveJump appends a placeholder jump-family instruction whose target
// isn't known yet (a forward jump), to be resolved by patchJumpHere once
// the jump-to point has been emitted.
func (fc *funcCompiler) reserveJump() uint32 {
	return fc.chunk.Reserve()
}

// patchJumpHere finalizes a placeholder previously returned by
// reserveJump, targeting the current end of the chunk.
func (fc *funcCompiler) patchJumpHere(at uint32, op Opcode) {
	fc.chunk.SetInstruction(at, Instruction{Op: op})
	fc.asm.AddPointer(fc.chunk.ID(), at+8, fc.chunk.ID(), fc.chunk.Size())
}

// dataString interns name in the data chunk and returns an absolute
// data-chunk offset reference to be resolved at Finalize.
func (fc *funcCompiler) dataString(name string) (toChunk int, toOffset uint32) {
	return 0, fc.asm.Data().PutString(name)
}

func (fc *funcCompiler) dataLoc(loc token.Loc) (toChunk int, toOffset uint32) {
	return 0, fc.asm.Data().PutLoc(loc.Begin)
}

// emitStringRef emits an instruction whose u64 is an absolute reference to
// name's offset in the data chunk (GET/SET/VGT/VST/HAS).
func (fc *funcCompiler) emitStringRef(op Opcode, u16 uint16, name string) uint32 {
	toChunk, toOffset := fc.dataString(name)
	return fc.emitPatched(op, u16, toChunk, toOffset)
}

// evalNode emits instructions that leave n's value pack on the operand
// stack. It never pushes the pack's enclosing SEP itself — that belongs
// to whichever construct is consuming n as one operand.
func (fc *funcCompiler) evalNode(n ast.Node) error {
	switch v := n.(type) {
	case *ast.IntLit:
		fc.emit(VAL, uint16(TagINT), uint64(v.Val))
		return nil
	case *ast.FloatLit:
		fc.emit(VAL, uint16(TagFLP), floatBits(v.Val))
		return nil
	case *ast.BoolLit:
		fc.emit(VAL, uint16(TagBLN), boolBits(v.Val))
		return nil
	case *ast.NulLit:
		fc.emit(VAL, uint16(TagNUL), 0)
		return nil
	case *ast.StringLit:
		toChunk, toOffset := fc.dataString(v.Val)
		fc.emitPatched(STR, uint16(len(v.Val)), toChunk, toOffset)
		return nil
	case *ast.Ident:
		fc.emitStringRef(VGT, 0, v.Name)
		return nil
	case *ast.Void:
		return nil // the empty pack: no instructions at all
	case *ast.Bracketed:
		return fc.evalBracketed(v)
	case *ast.BinOp:
		return fc.evalBinOp(v)
	default:
		return fc.errf(n.Span(), "cannot compile node of type %T", n)
	}
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (fc *funcCompiler) evalBracketed(n *ast.Bracketed) error {
	switch n.Bracket {
	case token.LPAREN:
		fc.emit(SCP, 1, 0)
		if err := fc.evalNode(n.Child); err != nil {
			return err
		}
		fc.emit(SCP, 0, 0)
		return nil
	case token.LBRACK:
		fc.emit(SCP, 1, 0)
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Child); err != nil {
			return err
		}
		fc.emit(ARR, 0, 0)
		fc.emit(SCP, 0, 0)
		return nil
	case token.LBRACE:
		fc.emit(SCP, 1, 0)
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Child); err != nil {
			return err
		}
		fc.emit(OBJ, 0, 0)
		fc.emit(SCP, 0, 0)
		return nil
	default:
		return fc.errf(n.Span(), "unknown bracket kind %v", n.Bracket)
	}
}

// evalBinOp dispatches every BinOp operator to its emission template.
// Generic binary/unary operators (arithmetic, comparison, bitwise, is,
// has, and CALL's eval form) share one shape: push the right pack, push
// the left pack, invoke OPR. Control-flow and move-adjacent operators
// (then/else/until/repeats/and/or/extract/check/lambda/assign/discard/
// append/index) each have their own template, ported from the assembler
// emission table.
func (fc *funcCompiler) evalBinOp(n *ast.BinOp) error {
	switch n.Op {
	case token.COMMA:
		if err := fc.evalNode(n.Left); err != nil {
			return err
		}
		return fc.evalNode(n.Right)

	case token.SEMI:
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Left); err != nil {
			return err
		}
		fc.emit(DIS, 0, 0)
		return fc.evalNode(n.Right)

	case token.ASSIGN:
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Right); err != nil {
			return err
		}
		fc.emit(REV, 0, 0)
		if err := fc.moveNode(n.Left); err != nil {
			return err
		}
		fc.emit(DIS, 1, 0)
		return nil

	case token.DOT:
		return fc.evalIndex(n)

	case token.THEN:
		return fc.evalThen(n.Left, n.Right, nil)

	case token.ELSE:
		thenOp, ok := n.Left.(*ast.BinOp)
		if !ok || thenOp.Op != token.THEN {
			return fc.errf(n.Loc, "else without a matching then")
		}
		return fc.evalThen(thenOp.Left, thenOp.Right, n.Right)

	case token.UNTIL:
		return fc.evalUntil(n.Left, n.Right)

	case token.REPEATS:
		return fc.evalRepeats(n.Left, n.Right)

	case token.AND:
		return fc.evalAndOr(n.Left, n.Right, JNO)

	case token.OR:
		return fc.evalAndOr(n.Left, n.Right, JYS)

	case token.QUESTION:
		return fc.evalExtract(n)

	case token.COLON:
		return fc.evalCheck(n)

	case token.ARROW:
		return fc.evalLambda(n)

	default:
		op, ok := TokenOperator(n.Op)
		if !ok {
			return fc.errf(n.Loc, "operator %v has no runtime lowering", n.Op)
		}
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Right); err != nil {
			return err
		}
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Left); err != nil {
			return err
		}
		fc.emit(OPR, uint16(op), 0)
		return nil
	}
}

// evalIndex lowers a.b. A Void left (surface syntax ".b") is the
// scope-declaration sugar, not a field access: it reads the plain scope
// variable b, with no receiver involved at all.
func (fc *funcCompiler) evalIndex(n *ast.BinOp) error {
	right, ok := n.Right.(*ast.Ident)
	if !ok {
		return fc.errf(n.Right.Span(), "index field must be a plain identifier")
	}
	if _, isVoid := n.Left.(*ast.Void); isVoid {
		fc.emitStringRef(VGT, 0, right.Name)
		return nil
	}
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(n.Left); err != nil {
		return err
	}
	fc.emitStringRef(GET, 0, right.Name)
	return nil
}

func (fc *funcCompiler) evalThen(cond, then, els ast.Node) error {
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(cond); err != nil {
		return err
	}
	toElse := fc.reserveJump()
	if err := fc.evalNode(then); err != nil {
		return err
	}
	if els == nil {
		fc.patchJumpHere(toElse, JNO)
		return nil
	}
	toEnd := fc.reserveJump()
	fc.patchJumpHere(toElse, JNO)
	if err := fc.evalNode(els); err != nil {
		return err
	}
	fc.patchJumpHere(toEnd, JMP)
	return nil
}

func (fc *funcCompiler) evalUntil(body, cond ast.Node) error {
	loop := fc.chunk.Size()
	if err := fc.evalNode(body); err != nil {
		return err
	}
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(cond); err != nil {
		return err
	}
	fc.emitJumpTo(JNO, loop)
	return nil
}

func (fc *funcCompiler) evalRepeats(cond, body ast.Node) error {
	loop := fc.chunk.Size()
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(cond); err != nil {
		return err
	}
	toEnd := fc.reserveJump()
	if err := fc.evalNode(body); err != nil {
		return err
	}
	fc.emitJumpTo(JMP, loop)
	fc.patchJumpHere(toEnd, JNO)
	return nil
}

func (fc *funcCompiler) evalAndOr(left, right ast.Node, shortCircuit Opcode) error {
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(left); err != nil {
		return err
	}
	fc.emit(DUP, 0, 0)
	toEnd := fc.reserveJump()
	fc.emit(DIS, 0, 0)
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(right); err != nil {
		return err
	}
	fc.patchJumpHere(toEnd, shortCircuit)
	fc.emit(REM, 0, 0)
	return nil
}

func (fc *funcCompiler) evalExtract(n *ast.BinOp) error {
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(n.Left); err != nil {
		return err
	}
	if _, isVoid := n.Right.(*ast.Void); isVoid {
		fc.emit(EXT, 0, 0)
		return nil
	}
	toEnd := fc.reserveJump()
	if err := fc.evalNode(n.Right); err != nil {
		return err
	}
	fc.patchJumpHere(toEnd, EXT)
	return nil
}

func (fc *funcCompiler) evalCheck(n *ast.BinOp) error {
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(n.Right); err != nil { // the value
		return err
	}
	fc.emit(SEP, 0, 0)
	if err := fc.evalNode(n.Left); err != nil { // the type
		return err
	}
	fc.emit(CHK, 0, 0) // lenient = false
	fc.emit(REM, 0, 0)
	return nil
}

// evalLambda compiles `params -> body` into a new chunk and pushes a FUN
// value referencing it in the current one.
func (fc *funcCompiler) evalLambda(n *ast.BinOp) error {
	child := fc.asm.NewChunk()
	inner := &funcCompiler{asm: fc.asm, chunk: child, filename: fc.filename}

	inner.emitPatched(MET, 0, 0, 0)
	inner.emit(SCP, 1, 0)
	// No leading SEP here, unlike the assign template this otherwise
	// mirrors: the caller's own call convention already leaves the
	// argument pack on the stack bracketed by its SEP (see OPR(CALL) in
	// the machine package), so REV operates directly on that.
	inner.emit(REV, 0, 0)
	if err := inner.moveNode(n.Left); err != nil {
		return err
	}
	inner.emit(DIS, 1, 0)
	if err := inner.evalNode(n.Right); err != nil {
		return err
	}
	inner.emit(SCP, 0, 0)
	inner.emit(END, 0, 0)

	fc.emitPatched(VAL, uint16(TagFUN), child.ID(), 0)
	return nil
}

// moveNode emits instructions that consume a value pack already on the
// stack and bind it into the target n describes.
func (fc *funcCompiler) moveNode(n ast.Node) error {
	if !n.Movable() {
		return fc.errf(n.Span(), "%v is not a valid assignment target", n)
	}
	switch v := n.(type) {
	case *ast.Ident:
		fc.emitStringRef(VST, 0, v.Name)
		return nil
	case *ast.Bracketed:
		return fc.moveNode(v.Child)
	case *ast.BinOp:
		return fc.moveBinOp(v)
	default:
		return fc.errf(n.Span(), "cannot compile move for node of type %T", n)
	}
}

func (fc *funcCompiler) moveBinOp(n *ast.BinOp) error {
	switch n.Op {
	case token.COMMA:
		if err := fc.moveNode(n.Left); err != nil {
			return err
		}
		return fc.moveNode(n.Right)

	case token.DOT:
		right, ok := n.Right.(*ast.Ident)
		if !ok {
			return fc.errf(n.Right.Span(), "index field must be a plain identifier")
		}
		if _, isVoid := n.Left.(*ast.Void); isVoid {
			// ".name" — a declaration: bind in the innermost scope. The
			// leading dot is carried into the stored name itself; the
			// machine package's VST reads that leading byte to choose
			// declare-vs-assign at runtime.
			fc.emitStringRef(VST, 0, "."+right.Name)
			return nil
		}
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Left); err != nil {
			return err
		}
		fc.emitStringRef(SET, 0, right.Name)
		return nil

	case token.CALL:
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Right); err != nil {
			return err
		}
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Left); err != nil {
			return err
		}
		fc.emit(MOV, 0, 0)
		return nil

	case token.COLON:
		fc.emit(SEP, 0, 0)
		if err := fc.evalNode(n.Right); err != nil { // the type
			return err
		}
		fc.emit(REV, 0, 0)
		fc.emit(CHK, 1, 0) // lenient = true
		return fc.moveNode(n.Left)

	default:
		return fc.errf(n.Loc, "operator %v is not assignable", n.Op)
	}
}
