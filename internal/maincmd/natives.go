package maincmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/avevad/funscript-go/lang/machine"
)

// installNatives registers the host-provided functions every Run/Repl
// invocation runs with — the native-call bridge spec.md's runtime library
// glue describes. It stays deliberately small: the native standard library
// itself (file I/O, numeric helpers) is an external collaborator spec.md
// scopes out of this project, so `print` exists here only to exercise the
// bridge (NativeFunction's Call contract, vm.Globals), not to grow into one.
func installNatives(vm *machine.VM, out io.Writer) error {
	print, err := vm.NewNativeFunction("print", func(st *machine.Stack) error {
		parts := make([]string, 0, len(st.Pack()))
		for _, v := range st.Pack() {
			parts = append(parts, v.String())
		}
		fmt.Fprintln(out, strings.Join(parts, " "))
		st.ReplacePack(machine.Nul)
		return nil
	})
	if err != nil {
		return err
	}
	vm.Globals = map[string]machine.Value{"print": print}
	return nil
}
