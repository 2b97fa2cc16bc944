package parser

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avevad/funscript-go/lang/ast"
	"github.com/avevad/funscript-go/lang/scanner"
	"github.com/avevad/funscript-go/lang/token"
)

func parseSrc(t *testing.T, src string) ast.Node {
	t.Helper()
	toks, err := scanner.ScanAll("test.fs", []byte(src))
	require.NoError(t, err)
	n, err := Parse("test.fs", scanner.Filter(toks))
	require.NoError(t, err)
	return n
}

func TestParseEmpty(t *testing.T) {
	n := parseSrc(t, "")
	_, ok := n.(*ast.Void)
	require.True(t, ok)
}

func TestParseLiteral(t *testing.T) {
	n := parseSrc(t, "42")
	lit, ok := n.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(42), lit.Val)
}

func TestParseBinaryPrecedence(t *testing.T) {
	// 1 + 2 * 3 should parse with * binding tighter than +.
	n := parseSrc(t, "1 + 2 * 3")
	top, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.PLUS, top.Op)
	_, ok = top.Left.(*ast.IntLit)
	require.True(t, ok)
	right, ok := top.Right.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.STAR, right.Op)
}

func TestParseUnaryMinusSynthesizesVoid(t *testing.T) {
	n := parseSrc(t, "-5")
	bin, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.MINUS, bin.Op)
	_, ok = bin.Left.(*ast.Void)
	require.True(t, ok)
	lit, ok := bin.Right.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(5), lit.Val)
}

func TestParseImplicitCall(t *testing.T) {
	// fib 5 -> CALL(fib, 5)
	n := parseSrc(t, "fib 5")
	call, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.CALL, call.Op)
	fn, ok := call.Left.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "fib", fn.Name)
	arg, ok := call.Right.(*ast.IntLit)
	require.True(t, ok)
	require.Equal(t, int64(5), arg.Val)
}

func TestParseChainedIndexCall(t *testing.T) {
	// arr[2][3] -> CALL(CALL(arr, [2]), [3]) left-associatively.
	n := parseSrc(t, "arr[2][3]")
	outer, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.CALL, outer.Op)
	inner, ok := outer.Left.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.CALL, inner.Op)
	ident, ok := inner.Left.(*ast.Ident)
	require.True(t, ok)
	require.Equal(t, "arr", ident.Name)
}

func TestParseAssignTrailingVoid(t *testing.T) {
	// k = 50% -> ASSIGN(k, BinOp(PERCENT, 50, void))
	n := parseSrc(t, "k = 50%")
	assign, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.ASSIGN, assign.Op)
	pct, ok := assign.Right.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.PERCENT, pct.Op)
	_, ok = pct.Right.(*ast.Void)
	require.True(t, ok)
}

func TestParseBracketedGroup(t *testing.T) {
	n := parseSrc(t, "(1 + 2)")
	br, ok := n.(*ast.Bracketed)
	require.True(t, ok)
	require.Equal(t, token.LPAREN, br.Bracket)
	_, ok = br.Child.(*ast.BinOp)
	require.True(t, ok)
}

func TestParseMismatchedBrackets(t *testing.T) {
	toks, err := scanner.ScanAll("test.fs", []byte("(1 + 2]"))
	require.NoError(t, err)
	_, err = Parse("test.fs", scanner.Filter(toks))
	require.Error(t, err)
	var cerr *CompilationError
	require.ErrorAs(t, err, &cerr)
}

func TestParseUnmatchedLeftBracket(t *testing.T) {
	toks, err := scanner.ScanAll("test.fs", []byte("(1 + 2"))
	require.NoError(t, err)
	_, err = Parse("test.fs", scanner.Filter(toks))
	require.Error(t, err)
}

func TestParseUnmatchedRightBracket(t *testing.T) {
	toks, err := scanner.ScanAll("test.fs", []byte("1 + 2)"))
	require.NoError(t, err)
	_, err = Parse("test.fs", scanner.Filter(toks))
	require.Error(t, err)
}

func TestParseCheckOperator(t *testing.T) {
	n := parseSrc(t, "x : T")
	bin, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.COLON, bin.Op)
	require.True(t, bin.Movable())
}

func TestParseLambdaArrow(t *testing.T) {
	n := parseSrc(t, "x -> x + 1")
	bin, ok := n.(*ast.BinOp)
	require.True(t, ok)
	require.Equal(t, token.ARROW, bin.Op)
}

func TestCompilationErrorFormatting(t *testing.T) {
	err := &CompilationError{Filename: "f.fs", Loc: token.Loc{Begin: token.Pos{Row: 1, Col: 1}}, Msg: "bad"}
	require.Equal(t, fmt.Sprintf("f.fs:%s: bad", err.Loc), err.Error())
}
