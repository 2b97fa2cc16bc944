package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avevad/funscript-go/lang/ast"
	"github.com/avevad/funscript-go/lang/token"
)

// decodeFrom decodes n instructions starting at offset, for asserting on
// the emitted opcode sequence without hard-coding absolute byte math in
// every test.
func decodeFrom(t *testing.T, img *Image, offset uint32, n int) []Instruction {
	t.Helper()
	out := make([]Instruction, 0, n)
	for i := 0; i < n; i++ {
		instr, err := img.Instruction(offset)
		require.NoError(t, err)
		out = append(out, instr)
		offset += instructionSize
	}
	return out
}

func opcodes(instrs []Instruction) []Opcode {
	out := make([]Opcode, len(instrs))
	for i, in := range instrs {
		out[i] = in.Op
	}
	return out
}

func TestCompileIntLiteral(t *testing.T) {
	img, err := Compile("t.fs", &ast.IntLit{Val: 42})
	require.NoError(t, err)

	instrs := decodeFrom(t, img, img.Entry, 5)
	require.Equal(t, []Opcode{MET, SCP, VAL, SCP, END}, opcodes(instrs))
	require.Equal(t, uint16(1), instrs[1].U16) // SCP push
	require.Equal(t, uint16(TagINT), instrs[2].U16)
	require.Equal(t, uint64(42), instrs[2].U64)
	require.Equal(t, uint16(0), instrs[3].U16) // SCP pop
}

func TestCompileFloatLiteral(t *testing.T) {
	img, err := Compile("t.fs", &ast.FloatLit{Val: 3.5})
	require.NoError(t, err)
	instrs := decodeFrom(t, img, img.Entry, 5)
	require.Equal(t, VAL, instrs[2].Op)
	require.Equal(t, uint16(TagFLP), instrs[2].U16)
}

func TestCompileStringLiteral(t *testing.T) {
	img, err := Compile("t.fs", &ast.StringLit{Val: "hello"})
	require.NoError(t, err)
	instrs := decodeFrom(t, img, img.Entry, 5)
	require.Equal(t, STR, instrs[2].Op)
	require.Equal(t, uint16(5), instrs[2].U16)
	got := string(img.Bytes[instrs[2].U64 : instrs[2].U64+5])
	require.Equal(t, "hello", got)
}

func TestCompileAssignToExistingVariable(t *testing.T) {
	n := &ast.BinOp{
		Op:    token.ASSIGN,
		Left:  &ast.Ident{Name: "x"},
		Right: &ast.IntLit{Val: 5},
	}
	img, err := Compile("t.fs", n)
	require.NoError(t, err)

	// MET, SCP(push), SEP, VAL(5), REV, VST(x), DIS(strict), SCP(pop), END
	instrs := decodeFrom(t, img, img.Entry, 9)
	require.Equal(t, []Opcode{MET, SCP, SEP, VAL, REV, VST, DIS, SCP, END}, opcodes(instrs))
	require.Equal(t, uint16(1), instrs[6].U16) // DIS strict
	name, err := img.CString(uint32(instrs[5].U64))
	require.NoError(t, err)
	require.Equal(t, "x", name)
}

func TestCompileDeclarationDotAssign(t *testing.T) {
	// ".x = 1", surface sugar for a scope declaration: parses to
	// ASSIGN(DOT(Void, Ident(x)), 1).
	n := &ast.BinOp{
		Op: token.ASSIGN,
		Left: &ast.BinOp{
			Op:    token.DOT,
			Left:  &ast.Void{},
			Right: &ast.Ident{Name: "x"},
		},
		Right: &ast.IntLit{Val: 1},
	}
	img, err := Compile("t.fs", n)
	require.NoError(t, err)

	instrs := decodeFrom(t, img, img.Entry, 9)
	require.Equal(t, []Opcode{MET, SCP, SEP, VAL, REV, VST, DIS, SCP, END}, opcodes(instrs))
	name, err := img.CString(uint32(instrs[5].U64))
	require.NoError(t, err)
	require.Equal(t, ".x", name)
}

func TestCompileFieldAccess(t *testing.T) {
	// "a.b"
	n := &ast.BinOp{
		Op:    token.DOT,
		Left:  &ast.Ident{Name: "a"},
		Right: &ast.Ident{Name: "b"},
	}
	img, err := Compile("t.fs", n)
	require.NoError(t, err)

	// MET, SCP(push), SEP, VGT(a), GET(b), SCP(pop), END
	instrs := decodeFrom(t, img, img.Entry, 7)
	require.Equal(t, []Opcode{MET, SCP, SEP, VGT, GET, SCP, END}, opcodes(instrs))
	name, err := img.CString(uint32(instrs[3].U64))
	require.NoError(t, err)
	require.Equal(t, "a", name)
	name, err = img.CString(uint32(instrs[4].U64))
	require.NoError(t, err)
	require.Equal(t, "b", name)
}

func TestCompileLambdaEmitsSeparateChunk(t *testing.T) {
	// "x -> x"
	n := &ast.BinOp{
		Op:    token.ARROW,
		Left:  &ast.Ident{Name: "x"},
		Right: &ast.Ident{Name: "x"},
	}
	img, err := Compile("t.fs", n)
	require.NoError(t, err)

	outer := decodeFrom(t, img, img.Entry, 4)
	require.Equal(t, []Opcode{MET, SCP, VAL, SCP}, opcodes(outer[:4]))
	require.Equal(t, VAL, outer[2].Op)
	require.Equal(t, uint16(TagFUN), outer[2].U16)

	lambdaStart := outer[2].U64
	require.NotEqual(t, uint64(img.Entry), lambdaStart, "lambda body must live in its own chunk")

	inner := decodeFrom(t, img, uint32(lambdaStart), 7)
	require.Equal(t, []Opcode{MET, SCP, REV, VST, DIS, VGT, SCP}, opcodes(inner))
	last, err := img.Instruction(uint32(lambdaStart) + 7*instructionSize)
	require.NoError(t, err)
	require.Equal(t, END, last.Op)
}

func TestCompileThenElse(t *testing.T) {
	// "1 then 2 else 3"
	n := &ast.BinOp{
		Op: token.ELSE,
		Left: &ast.BinOp{
			Op:    token.THEN,
			Left:  &ast.IntLit{Val: 1},
			Right: &ast.IntLit{Val: 2},
		},
		Right: &ast.IntLit{Val: 3},
	}
	img, err := Compile("t.fs", n)
	require.NoError(t, err)

	// MET, SCP(push), SEP, VAL(1), JNO, VAL(2), JMP, VAL(3), SCP(pop), END
	instrs := decodeFrom(t, img, img.Entry, 10)
	require.Equal(t, []Opcode{MET, SCP, SEP, VAL, JNO, VAL, JMP, VAL, SCP, END}, opcodes(instrs))

	jnoTarget := instrs[4].U64
	elseInstrOffset := img.Entry + 7*instructionSize
	require.Equal(t, uint64(elseInstrOffset), jnoTarget)

	jmpTarget := instrs[6].U64
	endInstrOffset := img.Entry + 8*instructionSize
	require.Equal(t, uint64(endInstrOffset), jmpTarget)
}

func TestCompileElseWithoutThenIsAnError(t *testing.T) {
	n := &ast.BinOp{
		Op:    token.ELSE,
		Left:  &ast.IntLit{Val: 1},
		Right: &ast.IntLit{Val: 2},
	}
	_, err := Compile("t.fs", n)
	require.Error(t, err)
	var cerr *CompilationError
	require.ErrorAs(t, err, &cerr)
}

func TestCompileNonMovableAssignTargetIsAnError(t *testing.T) {
	n := &ast.BinOp{
		Op:    token.ASSIGN,
		Left:  &ast.IntLit{Val: 1},
		Right: &ast.IntLit{Val: 2},
	}
	_, err := Compile("t.fs", n)
	require.Error(t, err)
	var cerr *CompilationError
	require.ErrorAs(t, err, &cerr)
}

func TestCompileUnaryMinusSynthesizesEmptyVoidPack(t *testing.T) {
	// "-5" parses as BinOp(MINUS, Void, 5).
	n := &ast.BinOp{
		Op:    token.MINUS,
		Left:  &ast.Void{},
		Right: &ast.IntLit{Val: 5},
	}
	img, err := Compile("t.fs", n)
	require.NoError(t, err)

	// MET, SCP(push), SEP, VAL(5), SEP, OPR(MINUS), SCP(pop), END
	instrs := decodeFrom(t, img, img.Entry, 8)
	require.Equal(t, []Opcode{MET, SCP, SEP, VAL, SEP, OPR, SCP, END}, opcodes(instrs))
	op, ok := TokenOperator(token.MINUS)
	require.True(t, ok)
	require.Equal(t, uint16(op), instrs[5].U16)
}
