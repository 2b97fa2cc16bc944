package ast

import (
	"fmt"
	"strconv"

	"github.com/avevad/funscript-go/lang/token"
)

type (
	// IntLit represents an integer literal, e.g. 42.
	IntLit struct {
		Val int64
		Loc token.Loc
	}

	// FloatLit represents a floating-point literal, e.g. 3.14.
	FloatLit struct {
		Val float64
		Loc token.Loc
	}

	// BoolLit represents a boolean literal, yes or no.
	BoolLit struct {
		Val bool
		Loc token.Loc
	}

	// StringLit represents a single-quoted string literal, already decoded
	// (escapes resolved).
	StringLit struct {
		Val string
		Loc token.Loc
	}

	// NulLit represents the nul literal.
	NulLit struct {
		Loc token.Loc
	}

	// Ident represents an identifier reference.
	Ident struct {
		Name string
		Loc  token.Loc
	}

	// Void represents an implicit void operand, synthesized by the parser
	// wherever a unary or leading operator needs a left operand, or wherever
	// an operator chain leaves a gap (e.g. a leading ';' or ',').
	Void struct {
		Loc token.Loc
	}

	// Bracketed represents a single child wrapped in a bracket pair: ( ),
	// { } or [ ]. Brace and bracket forms additionally request ARR/OBJ
	// construction from the assembler; paren is a pure grouping passthrough.
	Bracketed struct {
		Bracket token.Token // LPAREN, LBRACE or LBRACK
		Child   Node
		Loc     token.Loc
	}

	// BinOp represents every operator application the parser produces,
	// including unary prefix forms (synthesized with a Void left operand)
	// and the implicit CALL operator the parser inserts between a callee and
	// its argument pack.
	BinOp struct {
		Op    token.Token
		Left  Node
		Right Node
		Loc   token.Loc
	}
)

func (n *IntLit) Span() token.Loc    { return n.Loc }
func (n *FloatLit) Span() token.Loc  { return n.Loc }
func (n *BoolLit) Span() token.Loc   { return n.Loc }
func (n *StringLit) Span() token.Loc { return n.Loc }
func (n *NulLit) Span() token.Loc    { return n.Loc }
func (n *Ident) Span() token.Loc     { return n.Loc }
func (n *Void) Span() token.Loc      { return n.Loc }
func (n *Bracketed) Span() token.Loc { return n.Loc }
func (n *BinOp) Span() token.Loc     { return n.Loc }

func (n *IntLit) Walk(Visitor)    {}
func (n *FloatLit) Walk(Visitor)  {}
func (n *BoolLit) Walk(Visitor)   {}
func (n *StringLit) Walk(Visitor) {}
func (n *NulLit) Walk(Visitor)    {}
func (n *Ident) Walk(Visitor)     {}
func (n *Void) Walk(Visitor)      {}
func (n *Bracketed) Walk(v Visitor) {
	Walk(v, n.Child)
}
func (n *BinOp) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

// Movable reports whether a node is a valid assignment target. The movable
// subset is fixed: identifiers, a passthrough paren group over a movable
// child, DOT (field assignment), COMMA (append), CALL (assignment call /
// "MOV") and COLON (check, recursing into its left operand).
func (n *IntLit) Movable() bool    { return false }
func (n *FloatLit) Movable() bool  { return false }
func (n *BoolLit) Movable() bool   { return false }
func (n *StringLit) Movable() bool { return false }
func (n *NulLit) Movable() bool    { return false }
func (n *Ident) Movable() bool     { return true }
func (n *Void) Movable() bool      { return false }
func (n *Bracketed) Movable() bool {
	if n.Bracket != token.LPAREN {
		return false
	}
	return n.Child != nil && n.Child.Movable()
}
func (n *BinOp) Movable() bool {
	switch n.Op {
	case token.DOT, token.COMMA, token.CALL:
		return true
	case token.COLON:
		return n.Left != nil && n.Left.Movable()
	default:
		return false
	}
}

func (n *IntLit) Format(f fmt.State, verb rune) {
	format(f, verb, n, strconv.FormatInt(n.Val, 10), nil)
}
func (n *FloatLit) Format(f fmt.State, verb rune) {
	format(f, verb, n, strconv.FormatFloat(n.Val, 'g', -1, 64), nil)
}
func (n *BoolLit) Format(f fmt.State, verb rune) {
	lbl := "no"
	if n.Val {
		lbl = "yes"
	}
	format(f, verb, n, lbl, nil)
}
func (n *StringLit) Format(f fmt.State, verb rune) { format(f, verb, n, strconv.Quote(n.Val), nil) }
func (n *NulLit) Format(f fmt.State, verb rune)    { format(f, verb, n, "nul", nil) }
func (n *Ident) Format(f fmt.State, verb rune)     { format(f, verb, n, n.Name, nil) }
func (n *Void) Format(f fmt.State, verb rune)      { format(f, verb, n, "void", nil) }
func (n *Bracketed) Format(f fmt.State, verb rune) {
	format(f, verb, n, "bracketed "+n.Bracket.String(), nil)
}
func (n *BinOp) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binop "+n.Op.String(), nil)
}
