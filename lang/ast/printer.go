package ast

import (
	"fmt"
	"io"
	"strings"
)

// Printer pretty-prints a Node tree with one line per node and indentation
// reflecting nesting depth, useful for the tokenize/parse debug CLI commands.
type Printer struct {
	// Output is the writer receiving the printed tree.
	Output io.Writer

	// NodeFmt is the format string used for each node's label. Defaults to
	// "%v". See the package-level format helper for supported verbs/flags.
	NodeFmt string

	// WithLoc additionally prints each node's source span.
	WithLoc bool
}

// Print walks n and writes its indented representation to p.Output.
func (p *Printer) Print(n Node) error {
	nodeFmt := p.NodeFmt
	if nodeFmt == "" {
		nodeFmt = "%v"
	}
	pp := &printer{w: p.Output, nodeFmt: nodeFmt, withLoc: p.WithLoc}
	Walk(pp, n)
	return pp.err
}

type printer struct {
	w       io.Writer
	nodeFmt string
	withLoc bool
	depth   int
	err     error
}

func (p *printer) Visit(n Node, dir VisitDirection) Visitor {
	if dir == VisitExit {
		p.depth--
		return nil
	}
	if p.err != nil {
		return nil
	}
	indent := strings.Repeat("  ", p.depth)
	label := fmt.Sprintf(p.nodeFmt, n)
	if p.withLoc {
		_, p.err = fmt.Fprintf(p.w, "%s%s  %s\n", indent, label, n.Span())
	} else {
		_, p.err = fmt.Fprintf(p.w, "%s%s\n", indent, label)
	}
	p.depth++
	return p
}
