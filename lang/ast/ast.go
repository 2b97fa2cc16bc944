// Package ast defines the abstract syntax tree produced by the parser.
//
// The tree is a tagged variant rather than a polymorphic class hierarchy:
// every node kind is a plain struct, and the two compilation capabilities a
// node may support (evaluate for its value, or serve as an assignment
// target) are resolved by the assembler via a type switch instead of
// virtual dispatch. Movable reports, per node, whether the second
// capability applies syntactically.
package ast

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avevad/funscript-go/lang/token"
)

// Node is any node participating in the tree. Every Node can report its
// source span, accept a Visitor, and format itself for debug printing.
type Node interface {
	fmt.Formatter

	// Span reports the node's source location.
	Span() token.Loc

	// Walk visits this node's children with v.
	Walk(v Visitor)

	// Movable reports whether this node is syntactically valid as an
	// assignment target (move-mode compilation). Compiling a non-movable
	// node in move mode is a compilation error at the node's location.
	Movable() bool
}

// format is the shared fmt.Formatter implementation for all node kinds,
// mirroring the width/flag handling of a conventional AST pretty-printer: a
// width pads or truncates the label, '-' right-pads instead of left-pads,
// '+' disables padding, and '#' appends a {k=v, ...} summary of counts.
func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}

	label = strings.ReplaceAll(label, "\r\n", "⏎")
	label = strings.ReplaceAll(label, "\n", "⏎")
	label = strings.ReplaceAll(label, "\t", "⭾")

	if w, ok := f.Width(); ok {
		minus, plus := f.Flag('-'), f.Flag('+')
		runes := []rune(label)
		if len(runes) >= w {
			runes = runes[:w]
		} else if minus {
			runes = append(runes, []rune(strings.Repeat(" ", w-len(runes)))...)
		} else if !plus {
			runes = append([]rune(strings.Repeat(" ", w-len(runes))), runes...)
		}
		label = string(runes)
	}

	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprint(f, " {")
		for i, k := range keys {
			if i > 0 {
				fmt.Fprint(f, ", ")
			}
			fmt.Fprintf(f, "%s=%d", k, counts[k])
		}
		fmt.Fprint(f, "}")
	}
}
