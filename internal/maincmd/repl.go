package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"

	"github.com/avevad/funscript-go/lang/compiler"
	"github.com/avevad/funscript-go/lang/machine"
	"github.com/avevad/funscript-go/lang/parser"
	"github.com/avevad/funscript-go/lang/scanner"
)

// exitSentinel is the line the original's repl.cpp treats as EOF, carried
// over verbatim per SPEC_FULL.md.
const exitSentinel = "# exit"

func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, _ []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return printError(stdio, err)
	}
	return Repl(ctx, stdio, cfg)
}

// Repl reads one Funscript expression per line from stdio.Stdin, compiling
// and running each on its own fresh VM (the REPL keeps no bindings live
// between lines — see DESIGN.md), until EOF or a line that is exactly
// exitSentinel.
func Repl(ctx context.Context, stdio mainer.Stdio, cfg Config) error {
	scan := bufio.NewScanner(stdio.Stdin)
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scan.Scan() {
			break
		}
		line := scan.Text()
		if line == exitSentinel {
			break
		}
		if line == "" {
			continue
		}
		evalLine(ctx, stdio, cfg, line)
	}
	return scan.Err()
}

func evalLine(ctx context.Context, stdio mainer.Stdio, cfg Config, line string) {
	toks, err := scanner.ScanAll("<repl>", []byte(line))
	if err != nil {
		printError(stdio, err)
		return
	}
	root, err := parser.Parse("<repl>", scanner.Filter(toks))
	if err != nil {
		printError(stdio, err)
		return
	}
	img, err := compiler.Compile("<repl>", root)
	if err != nil {
		printError(stdio, err)
		return
	}

	vm := machine.NewVM(uintptr(cfg.HeapBytes))
	vm.MaxSteps = cfg.MaxSteps
	watchInterrupt(ctx, vm)
	if err := installNatives(vm, stdio.Stdout); err != nil {
		printError(stdio, err)
		return
	}

	pack, err := vm.Run(img)
	if err != nil {
		printError(stdio, err)
		return
	}
	for _, v := range pack {
		fmt.Fprintln(stdio.Stdout, v.String())
	}
}
