package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/avevad/funscript-go/lang/compiler"
	"github.com/avevad/funscript-go/lang/machine"
	"github.com/avevad/funscript-go/lang/parser"
	"github.com/avevad/funscript-go/lang/scanner"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return printError(stdio, err)
	}
	return RunFile(ctx, stdio, cfg, args[0])
}

// compileFile reads, scans, parses and assembles path into a finalized
// bytecode image.
func compileFile(path string) (*compiler.Image, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	toks, err := scanner.ScanAll(path, src)
	if err != nil {
		return nil, err
	}
	root, err := parser.Parse(path, scanner.Filter(toks))
	if err != nil {
		return nil, err
	}
	return compiler.Compile(path, root)
}

// RunFile compiles path and executes it to completion on a fresh VM
// configured from cfg, printing the resulting value pack to stdio.Stdout
// (one value per line) or the panic's error value to stdio.Stderr.
func RunFile(ctx context.Context, stdio mainer.Stdio, cfg Config, path string) error {
	img, err := compileFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	vm := machine.NewVM(uintptr(cfg.HeapBytes))
	vm.MaxSteps = cfg.MaxSteps
	watchInterrupt(ctx, vm)
	if err := installNatives(vm, stdio.Stdout); err != nil {
		return printError(stdio, err)
	}

	pack, err := vm.Run(img)
	if err != nil {
		return printError(stdio, err)
	}
	for _, v := range pack {
		fmt.Fprintln(stdio.Stdout, v.String())
	}
	return nil
}

// watchInterrupt flips vm.Interrupt once ctx is canceled (by
// mainer.CancelOnSignal's signal handling), giving the dispatch loop's
// per-instruction poll a way to observe Ctrl-C.
func watchInterrupt(ctx context.Context, vm *machine.VM) {
	go func() {
		<-ctx.Done()
		vm.Interrupt.Store(true)
	}()
}
