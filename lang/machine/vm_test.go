package machine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avevad/funscript-go/lang/compiler"
	"github.com/avevad/funscript-go/lang/machine"
	"github.com/avevad/funscript-go/lang/parser"
	"github.com/avevad/funscript-go/lang/scanner"
)

// run compiles and executes a whole source string end to end (scan, parse,
// assemble, run) on a fresh unbounded VM, the same path internal/maincmd's
// run/repl commands drive.
func run(t *testing.T, src string) ([]machine.Value, error) {
	t.Helper()
	toks, err := scanner.ScanAll("t.fs", []byte(src))
	require.NoError(t, err)
	root, err := parser.Parse("t.fs", scanner.Filter(toks))
	require.NoError(t, err)
	img, err := compiler.Compile("t.fs", root)
	require.NoError(t, err)
	vm := machine.NewVM(0)
	return vm.Run(img)
}

func TestEndToEndArithmeticPrecedence(t *testing.T) {
	// (2 + 3) * 2 -> 10
	pack, err := run(t, "(2 + 3) * 2")
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Int(10)}, pack)
}

func TestEndToEndDivModPack(t *testing.T) {
	// 234 / 100, 234 % 100 -> pack (2, 34)
	pack, err := run(t, "234 / 100, 234 % 100")
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Int(2), machine.Int(34)}, pack)
}

func TestEndToEndLambdaSum(t *testing.T) {
	pack, err := run(t, ".sum = (.a, .b) -> a + b; sum(13, 27)")
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Int(40)}, pack)
}

func TestEndToEndRecursiveFactorial(t *testing.T) {
	src := ".factorial = .n -> (n == 0 then 1 else factorial(n - 1) * n); factorial 10"
	pack, err := run(t, src)
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Int(3628800)}, pack)
}

func TestEndToEndRepeatsLoop(t *testing.T) {
	// .i = 0; i != 5 repeats (i, (i = i + 1)) -> pack (0, 1, 2, 3, 4)
	src := ".i = 0; i != 5 repeats (i, (i = i + 1))"
	pack, err := run(t, src)
	require.NoError(t, err)
	require.Equal(t, []machine.Value{
		machine.Int(0), machine.Int(1), machine.Int(2), machine.Int(3), machine.Int(4),
	}, pack)
}

func TestEndToEndStringConcat(t *testing.T) {
	pack, err := run(t, "'impostor' + ' ' + 'is sus'")
	require.NoError(t, err)
	require.Len(t, pack, 1)
	s, ok := pack[0].(*machine.String)
	require.True(t, ok)
	require.Equal(t, "impostor is sus", s.String())
}

func TestEndToEndTypeCheckAcceptsAndRejects(t *testing.T) {
	src := `.int = {.check_value = .x -> x % 1}; .f = (.x: int, .y: int) -> int: x + y; f(12, 34)`
	pack, err := run(t, src)
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Int(46)}, pack)

	_, err = run(t, `.int = {.check_value = .x -> x % 1}; .f = (.x: int, .y: int) -> int: x + y; f('a', 'b')`)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestEndToEndDivisionByZeroPanics(t *testing.T) {
	_, err := run(t, "1 / 0")
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestEndToEndExtractFallbackOnError(t *testing.T) {
	pack, err := run(t, "{.error = yes; 'boom'} ? 'ok'")
	require.NoError(t, err)
	require.Len(t, pack, 1)
	s, ok := pack[0].(*machine.String)
	require.True(t, ok)
	require.Equal(t, "ok", s.String())
}

func TestEndToEndArrayConcatLength(t *testing.T) {
	pack, err := run(t, "[1, 2] + [3, 4, 5]")
	require.NoError(t, err)
	require.Len(t, pack, 1)
	arr, ok := pack[0].(*machine.Array)
	require.True(t, ok)
	require.Equal(t, 5, arr.Len())
	for i, want := range []int64{1, 2, 3, 4, 5} {
		require.Equal(t, machine.Int(want), arr.Index(i))
	}
}

func TestEndToEndHasField(t *testing.T) {
	pack, err := run(t, "{.x = 1} has 'x'")
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Bool(true)}, pack)

	pack, err = run(t, "{.x = 1} has 'y'")
	require.NoError(t, err)
	require.Equal(t, []machine.Value{machine.Bool(false)}, pack)
}

func TestEndToEndReproducibility(t *testing.T) {
	const src = "(2 + 3) * 2"
	p1, err1 := run(t, src)
	p2, err2 := run(t, src)
	require.NoError(t, err1)
	require.NoError(t, err2)
	require.Equal(t, p1, p2)
}

func TestVMStackOverflowPanicsWithDedicatedMessage(t *testing.T) {
	toks, err := scanner.ScanAll("t.fs", []byte(".f = .n -> f(n + 1); f(0)"))
	require.NoError(t, err)
	root, err := parser.Parse("t.fs", scanner.Filter(toks))
	require.NoError(t, err)
	img, err := compiler.Compile("t.fs", root)
	require.NoError(t, err)

	vm := machine.NewVM(0)
	vm.MaxStackFrames = 8
	_, err = vm.Run(img)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Contains(t, rerr.Error(), "frame stack overflow")
}

func TestVMStepLimitPanics(t *testing.T) {
	toks, err := scanner.ScanAll("t.fs", []byte(".i = 0; i != 1000000 repeats (i = i + 1)"))
	require.NoError(t, err)
	root, err := parser.Parse("t.fs", scanner.Filter(toks))
	require.NoError(t, err)
	img, err := compiler.Compile("t.fs", root)
	require.NoError(t, err)

	vm := machine.NewVM(0)
	vm.MaxSteps = 100
	_, err = vm.Run(img)
	var rerr *machine.RuntimeError
	require.ErrorAs(t, err, &rerr)
	require.Contains(t, rerr.Error(), "step limit exceeded")
}
