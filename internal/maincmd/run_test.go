package maincmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

// TestRunFilePrintNative exercises the print native-call bridge installed
// into every script's root scope: it should write its argument pack to
// stdout and return without disturbing the script's own result pack.
func TestRunFilePrintNative(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.fs")
	require.NoError(t, os.WriteFile(path, []byte("print('hello', 'world'); 1 + 1"), 0o644))

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := RunFile(context.Background(), stdio, Config{}, path)
	require.NoError(t, err)
	require.Contains(t, out.String(), "hello world")
	require.Contains(t, out.String(), "2")
}

// TestRunFileRecursiveClosureSeesItsOwnBinding guards the fix where a
// top-level lambda must close over the live scope its VAL executes in, not
// the function's own definition scope, so a recursive top-level binding can
// resolve its own name.
func TestRunFileRecursiveClosureSeesItsOwnBinding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "factorial.fs")
	src := ".factorial = .n -> (n == 0 then 1 else factorial(n - 1) * n); print(factorial(10))"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{Stdout: &out, Stderr: &errOut}

	err := RunFile(context.Background(), stdio, Config{}, path)
	require.NoError(t, err)
	require.Contains(t, out.String(), "3628800")
}
