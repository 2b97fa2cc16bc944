package compiler

import "encoding/binary"

// patch is a deferred pointer: at Finalize, the absolute offset of
// (toChunk, toOffset) in the concatenated image is written, as a
// little-endian u64, at the absolute offset of (fromChunk, fromOffset).
type patch struct {
	fromChunk  int
	fromOffset uint32
	toChunk    int
	toOffset   uint32
}

// Assembler owns the chunk set of a bytecode image under construction: a
// fixed data chunk (id 0) and a growing list of code chunks (ids 1..N),
// created one per compiled function, the first of which is the program's
// entry point. Cross-chunk references (a VAL pushing a function address,
// a jump target, a string or location reference into the data chunk) are
// registered as patches and resolved only once every chunk's final size
// is known, since chunks are written in creation order but concatenated
// in a different order ([1..N-1, 0]).
type Assembler struct {
	filename string
	data     *Chunk
	funcs    []*Chunk
	patches  []patch
}

// NewAssembler starts an assembly session for a single source file. The
// file name itself is the first string recorded in the data chunk, at a
// well-known offset (0), so stack traces can report it without a
// separate out-of-band field.
func NewAssembler(filename string) *Assembler {
	a := &Assembler{filename: filename, data: &Chunk{id: 0}}
	a.data.PutString(filename)
	return a
}

// Data returns the data chunk (id 0), the shared destination for string
// constants and location records emitted while compiling any function.
func (a *Assembler) Data() *Chunk { return a.data }

// NewChunk creates a new code chunk for one function body and returns it.
// The first chunk created by a given Assembler is conventionally the
// program's top-level body and becomes the image's entry point.
func (a *Assembler) NewChunk() *Chunk {
	ch := &Chunk{id: len(a.funcs) + 1}
	a.funcs = append(a.funcs, ch)
	return ch
}

// AddPointer registers a deferred patch: once Finalize computes every
// chunk's absolute base offset, the absolute offset of (toChunk,
// toOffset) is written as a little-endian u64 at the absolute offset of
// (fromChunk, fromOffset). Used for values whose target offset isn't
// known until after the target chunk finishes emitting (a lambda's VAL
// pushing its own not-yet-closed chunk's address, a forward jump into
// code emitted later in the same chunk, a GET/SET/VGT/VST string
// reference into the data chunk).
func (a *Assembler) AddPointer(fromChunk int, fromOffset uint32, toChunk int, toOffset uint32) {
	a.patches = append(a.patches, patch{fromChunk, fromOffset, toChunk, toOffset})
}

// Finalize concatenates every chunk into a single Image in the order
// [1..N-1, 0] (every code chunk, in creation order, then the data chunk
// last) and resolves every registered patch against the final layout.
func (a *Assembler) Finalize() *Image {
	order := make([]int, 0, len(a.funcs)+1)
	byID := map[int]*Chunk{0: a.data}
	for _, ch := range a.funcs {
		order = append(order, ch.id)
		byID[ch.id] = ch
	}
	order = append(order, 0)

	base := make(map[int]uint32, len(order))
	var total uint32
	for _, id := range order {
		base[id] = total
		total += byID[id].Size()
	}

	buf := make([]byte, 0, total)
	for _, id := range order {
		buf = append(buf, byID[id].buf...)
	}

	for _, p := range a.patches {
		fromAbs := base[p.fromChunk] + p.fromOffset
		toAbs := base[p.toChunk] + p.toOffset
		binary.LittleEndian.PutUint64(buf[fromAbs:fromAbs+8], uint64(toAbs))
	}

	entry := uint32(0)
	if len(a.funcs) > 0 {
		entry = base[a.funcs[0].id]
	}

	return &Image{
		Bytes:      buf,
		Entry:      entry,
		DataOffset: base[0],
		Filename:   a.filename,
	}
}
