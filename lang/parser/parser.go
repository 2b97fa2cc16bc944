// Package parser converts a filtered token stream into an AST using the
// shunting-yard algorithm: tokens are rewritten to a reverse-Polish
// ordering (inserting implicit void operands and implicit call operators
// along the way), then the AST is built from that ordering with a
// worklist stack.
package parser

import (
	"fmt"

	"github.com/avevad/funscript-go/lang/ast"
	"github.com/avevad/funscript-go/lang/scanner"
	"github.com/avevad/funscript-go/lang/token"
)

// CompilationError reports a structural parse failure (mismatched
// brackets, missing operands, a malformed RPN stream) at a source
// location.
type CompilationError struct {
	Filename string
	Loc      token.Loc
	Msg      string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.Filename, e.Loc, e.Msg)
}

// isOperand reports whether tok is one of the literal-like token classes
// that directly become an AST leaf (integer, float, string, bool, nul,
// identifier).
func isOperand(tok token.Token) bool {
	switch tok {
	case token.INT, token.FLOAT, token.STRING, token.BOOL, token.NUL, token.IDENT:
		return true
	}
	return false
}

// insertVoidAfter reports whether an implicit void operand must be
// inserted before a token that follows one classified as prev: true when
// prev was itself an operator or a left bracket (so two operators, or an
// operator right after an opening bracket, don't end up adjacent without
// an operand between them).
func insertVoidAfter(prev token.Token) bool {
	if token.IsLeftBracket(prev) {
		return true
	}
	_, isOp := token.Precedence(prev)
	return isOp
}

// insertCallAfter reports whether an implicit call operator must be
// inserted before a token that follows one classified as prev: the
// complement of insertVoidAfter — prev ended a complete value (an operand
// or a right bracket).
func insertCallAfter(prev token.Token) bool {
	return !insertVoidAfter(prev)
}

// rpnItem is one entry of the reverse-Polish output queue.
type rpnItem struct {
	tok token.Token // ILLEGAL for literal-like items: loc/val identify it
	val scanner.Value
}

// Parse builds the AST for a single filtered token stream (EOF included,
// comments already removed). It returns the single AST root or a
// *CompilationError.
func Parse(filename string, toks []scanner.TokenAndValue) (ast.Node, error) {
	// Drop the trailing EOF sentinel; it carries no grammar role here but
	// its location is used for the empty-input and trailing-void cases.
	var eofLoc token.Loc
	if len(toks) > 0 && toks[len(toks)-1].Tok == token.EOF {
		eofLoc = toks[len(toks)-1].Val.Loc
		toks = toks[:len(toks)-1]
	}

	if len(toks) == 0 {
		return &ast.Void{Loc: eofLoc}, nil
	}

	type stackEntry struct {
		tok token.Token // operator token, or a left-bracket token
		loc token.Loc
	}

	var opStack []stackEntry
	var queue []rpnItem

	for pos, tv := range toks {
		tok := tv.Tok
		switch {
		case isOperand(tok):
			if pos != 0 && insertCallAfter(toks[pos-1].Tok) {
				opStack = append(opStack, stackEntry{tok: token.CALL, loc: tv.Val.Loc})
			}
			queue = append(queue, rpnItem{tok: tok, val: tv.Val})

		case token.IsLeftBracket(tok):
			if pos != 0 && insertCallAfter(toks[pos-1].Tok) {
				// Flush any stacked index/call-precedence operators first so
				// chained indexing/calls stay left-associative: arr[2][3].
				for len(opStack) > 0 {
					top := opStack[len(opStack)-1]
					if token.IsLeftBracket(top.tok) {
						break
					}
					prec, _ := token.Precedence(top.tok)
					if prec != 0 {
						break
					}
					opStack = opStack[:len(opStack)-1]
					queue = append(queue, rpnItem{tok: top.tok, val: scanner.Value{Loc: top.loc}})
				}
				opStack = append(opStack, stackEntry{tok: token.CALL, loc: tv.Val.Loc})
			}
			opStack = append(opStack, stackEntry{tok: tok, loc: tv.Val.Loc})

		case token.IsRightBracket(tok):
			if pos == 0 || insertVoidAfter(toks[pos-1].Tok) {
				queue = append(queue, rpnItem{tok: token.VOID, val: scanner.Value{Loc: tv.Val.Loc}})
			}
			for len(opStack) > 0 && !token.IsLeftBracket(opStack[len(opStack)-1].tok) {
				top := opStack[len(opStack)-1]
				opStack = opStack[:len(opStack)-1]
				queue = append(queue, rpnItem{tok: top.tok, val: scanner.Value{Loc: top.loc}})
			}
			if len(opStack) == 0 {
				return nil, &CompilationError{Filename: filename, Loc: tv.Val.Loc, Msg: "unmatched right bracket"}
			}
			left := opStack[len(opStack)-1]
			if token.MatchingRight(left.tok) != tok {
				return nil, &CompilationError{Filename: filename, Loc: tv.Val.Loc, Msg: "brackets do not match"}
			}
			opStack = opStack[:len(opStack)-1]
			queue = append(queue, rpnItem{tok: tok, val: scanner.Value{Loc: token.Merge(left.loc, tv.Val.Loc)}})

		default:
			prec1, isOp := token.Precedence(tok)
			if !isOp {
				return nil, &CompilationError{Filename: filename, Loc: tv.Val.Loc, Msg: fmt.Sprintf("unexpected token %#v", tok)}
			}
			if pos == 0 || insertVoidAfter(toks[pos-1].Tok) {
				queue = append(queue, rpnItem{tok: token.VOID, val: scanner.Value{Loc: tv.Val.Loc}})
			}
			for len(opStack) > 0 {
				top := opStack[len(opStack)-1]
				if token.IsLeftBracket(top.tok) {
					break
				}
				prec2, _ := token.Precedence(top.tok)
				if prec2 < prec1 || (prec2 == prec1 && !token.IsRightAssoc(tok)) {
					opStack = opStack[:len(opStack)-1]
					queue = append(queue, rpnItem{tok: top.tok, val: scanner.Value{Loc: top.loc}})
					continue
				}
				break
			}
			opStack = append(opStack, stackEntry{tok: tok, loc: tv.Val.Loc})
		}
	}

	if insertVoidAfter(toks[len(toks)-1].Tok) {
		queue = append(queue, rpnItem{tok: token.VOID, val: scanner.Value{Loc: eofLoc}})
	}

	for len(opStack) > 0 {
		top := opStack[len(opStack)-1]
		opStack = opStack[:len(opStack)-1]
		if token.IsLeftBracket(top.tok) {
			return nil, &CompilationError{Filename: filename, Loc: top.loc, Msg: "unmatched left bracket"}
		}
		queue = append(queue, rpnItem{tok: top.tok, val: scanner.Value{Loc: top.loc}})
	}

	return build(filename, queue)
}

// build consumes the RPN item stream and constructs the AST using a
// worklist stack: operand items push a leaf, operator items pop two
// operands, bracket items wrap one child.
func build(filename string, queue []rpnItem) (ast.Node, error) {
	var stack []ast.Node

	pop := func(loc token.Loc) (ast.Node, error) {
		if len(stack) == 0 {
			return nil, &CompilationError{Filename: filename, Loc: loc, Msg: "missing operand"}
		}
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return n, nil
	}

	for _, item := range queue {
		switch item.tok {
		case token.INT:
			stack = append(stack, &ast.IntLit{Val: item.val.Int, Loc: item.val.Loc})
		case token.FLOAT:
			stack = append(stack, &ast.FloatLit{Val: item.val.Float, Loc: item.val.Loc})
		case token.STRING:
			stack = append(stack, &ast.StringLit{Val: item.val.Str, Loc: item.val.Loc})
		case token.BOOL:
			stack = append(stack, &ast.BoolLit{Val: item.val.Raw == "yes", Loc: item.val.Loc})
		case token.NUL:
			stack = append(stack, &ast.NulLit{Loc: item.val.Loc})
		case token.IDENT:
			stack = append(stack, &ast.Ident{Name: item.val.Raw, Loc: item.val.Loc})
		case token.VOID:
			stack = append(stack, &ast.Void{Loc: item.val.Loc})
		case token.LPAREN, token.LBRACE, token.LBRACK:
			return nil, &CompilationError{Filename: filename, Loc: item.val.Loc, Msg: "left bracket in output queue"}
		case token.RPAREN, token.RBRACE, token.RBRACK:
			child, err := pop(item.val.Loc)
			if err != nil {
				return nil, err
			}
			bracket := token.LPAREN
			if item.tok == token.RBRACE {
				bracket = token.LBRACE
			} else if item.tok == token.RBRACK {
				bracket = token.LBRACK
			}
			stack = append(stack, &ast.Bracketed{Bracket: bracket, Child: child, Loc: token.Merge(child.Span(), item.val.Loc)})
		default:
			// Every remaining RPN item is a binary operator application.
			right, err := pop(item.val.Loc)
			if err != nil {
				return nil, err
			}
			left, err := pop(item.val.Loc)
			if err != nil {
				return nil, err
			}
			stack = append(stack, &ast.BinOp{Op: item.tok, Left: left, Right: right, Loc: token.Merge(left.Span(), right.Span())})
		}
	}

	if len(stack) != 1 {
		return nil, &CompilationError{Filename: filename, Msg: "missing operator"}
	}
	return stack[0], nil
}
