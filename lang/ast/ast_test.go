package ast

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avevad/funscript-go/lang/token"
)

func TestMovable(t *testing.T) {
	ident := &Ident{Name: "x"}
	require.True(t, ident.Movable())

	require.False(t, (&IntLit{Val: 1}).Movable())
	require.False(t, (&Void{}).Movable())

	dot := &BinOp{Op: token.DOT, Left: ident, Right: &Ident{Name: "y"}}
	require.True(t, dot.Movable())

	plus := &BinOp{Op: token.PLUS, Left: ident, Right: &IntLit{Val: 1}}
	require.False(t, plus.Movable())

	check := &BinOp{Op: token.COLON, Left: ident, Right: &Ident{Name: "T"}}
	require.True(t, check.Movable())

	badCheck := &BinOp{Op: token.COLON, Left: &IntLit{Val: 1}, Right: &Ident{Name: "T"}}
	require.False(t, badCheck.Movable())

	paren := &Bracketed{Bracket: token.LPAREN, Child: ident}
	require.True(t, paren.Movable())

	brace := &Bracketed{Bracket: token.LBRACE, Child: ident}
	require.False(t, brace.Movable())
}

func TestWalkVisitsChildren(t *testing.T) {
	tree := &BinOp{
		Op:    token.PLUS,
		Left:  &IntLit{Val: 1},
		Right: &BinOp{Op: token.STAR, Left: &IntLit{Val: 2}, Right: &IntLit{Val: 3}},
	}

	var visited []Node
	Walk(VisitorFunc(func(n Node, dir VisitDirection) Visitor {
		if dir == VisitEnter {
			visited = append(visited, n)
			return VisitorFunc(func(n Node, dir VisitDirection) Visitor {
				if dir == VisitEnter {
					visited = append(visited, n)
				}
				return nil
			})
		}
		return nil
	}), tree)

	require.Len(t, visited, 3)
}

func TestPrinter(t *testing.T) {
	tree := &BinOp{
		Op:    token.PLUS,
		Left:  &IntLit{Val: 1},
		Right: &IntLit{Val: 2},
	}
	var buf bytes.Buffer
	p := Printer{Output: &buf}
	require.NoError(t, p.Print(tree))
	require.Contains(t, buf.String(), "binop +")
	require.Contains(t, buf.String(), "1")
	require.Contains(t, buf.String(), "2")
}

func TestFormatWidthAndFlags(t *testing.T) {
	n := &Ident{Name: "abc"}
	require.Equal(t, "abc", fmt.Sprintf("%v", n))
	require.Equal(t, "  abc", fmt.Sprintf("%5v", n))
	require.Equal(t, "abc  ", fmt.Sprintf("%-5v", n))
}
