package machine

import "github.com/avevad/funscript-go/internal/heap"

// Frame is a runtime activation record: the function executing, its
// current instruction pointer, and the data-chunk base MET installed for
// resolving metadata (source-location) offsets into stack-trace text.
type Frame struct {
	heap.Header
	Fn       Function
	IP       uint32
	MetaBase uint32
}

func (*Frame) Type() string   { return "frame" }
func (*Frame) String() string { return "<frame>" }
func (*Frame) Truth() bool    { return true }

func (fr *Frame) HeapHeader() *heap.Header { return &fr.Header }

func (fr *Frame) Refs(cb func(heap.Object)) {
	if fr.Fn != nil {
		cb(fr.Fn)
	}
}

// displayName returns the function name for stack-trace reporting,
// falling back to an anonymous marker.
func (fr *Frame) displayName() string {
	if fr.Fn == nil {
		return "<toplevel>"
	}
	if n := fr.Fn.Name(); n != "" {
		return n
	}
	return "<anonymous>"
}
