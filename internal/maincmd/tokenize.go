package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/avevad/funscript-go/lang/scanner"
)

func (c *Cmd) Tokenize(_ context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFile(stdio, args[0])
}

// TokenizeFile scans path and prints every token (comments included) in
// "<loc>: <token> [<literal>]" form, one per line.
func TokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}
	toks, err := scanner.ScanAll(path, src)
	for _, tv := range toks {
		fmt.Fprintf(stdio.Stdout, "%s:%s: %s", path, tv.Val.Loc, tv.Tok)
		if tv.Val.Raw != "" {
			fmt.Fprintf(stdio.Stdout, " %q", tv.Val.Raw)
		}
		fmt.Fprintln(stdio.Stdout)
	}
	if err != nil {
		return printError(stdio, err)
	}
	return nil
}
