package maincmd

import (
	"context"
	"os"

	"github.com/mna/mainer"

	"github.com/avevad/funscript-go/lang/ast"
	"github.com/avevad/funscript-go/lang/parser"
	"github.com/avevad/funscript-go/lang/scanner"
)

func (c *Cmd) Parse(_ context.Context, stdio mainer.Stdio, args []string) error {
	return ParseFile(stdio, args[0])
}

// ParseFile scans and parses path and prints the resulting AST as an
// indented tree, one node per line.
func ParseFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}
	toks, err := scanner.ScanAll(path, src)
	if err != nil {
		return printError(stdio, err)
	}
	root, err := parser.Parse(path, scanner.Filter(toks))
	if err != nil {
		return printError(stdio, err)
	}
	printer := ast.Printer{Output: stdio.Stdout, WithLoc: true}
	return printer.Print(root)
}
