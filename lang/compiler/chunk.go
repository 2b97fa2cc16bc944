package compiler

import (
	"encoding/binary"

	"github.com/avevad/funscript-go/lang/token"
)

// Chunk is one numbered segment of a bytecode image under construction: a
// growable byte buffer that either holds instructions (a code chunk) or
// null-terminated strings and packed location records (the data chunk, id
// 0). Chunks are concatenated into a single Image at Assembler.Finalize,
// in the order [1..N-1, 0] — every code chunk first, the data chunk last.
type Chunk struct {
	id  int
	buf []byte
}

// ID returns the chunk's identity within its owning Assembler. 0 is
// reserved for the data chunk; code chunks are numbered from 1 in
// creation order.
func (c *Chunk) ID() int { return c.id }

// Size reports the chunk's current length in bytes, i.e. the offset the
// next Put* call will return.
func (c *Chunk) Size() uint32 { return uint32(len(c.buf)) }

// PutInstruction appends instr and returns its offset within this chunk.
func (c *Chunk) PutInstruction(instr Instruction) uint32 {
	off := c.Size()
	enc := encodeInstruction(instr)
	c.buf = append(c.buf, enc[:]...)
	return off
}

// Reserve appends a zeroed NOP instruction slot, returning its offset, for
// forward references (e.g. a JNO whose target isn't known until later
// emission) that SetInstruction will patch once the target is known.
func (c *Chunk) Reserve() uint32 {
	return c.PutInstruction(Instruction{Op: NOP})
}

// SetInstruction overwrites the instruction at offset, previously returned
// by PutInstruction or Reserve, with instr.
func (c *Chunk) SetInstruction(offset uint32, instr Instruction) {
	enc := encodeInstruction(instr)
	copy(c.buf[offset:offset+instructionSize], enc[:])
}

// PutString appends a null-terminated string to the chunk (data-chunk use:
// identifiers, field names, string literal contents) and returns its
// offset.
func (c *Chunk) PutString(s string) uint32 {
	off := c.Size()
	c.buf = append(c.buf, s...)
	c.buf = append(c.buf, 0)
	return off
}

// PutLoc appends a packed (row, col) location record (data-chunk use, for
// stack-trace reporting) and returns its offset.
func (c *Chunk) PutLoc(pos token.Pos) uint32 {
	off := c.Size()
	var tmp [8]byte
	binary.LittleEndian.PutUint32(tmp[0:4], uint32(pos.Row))
	binary.LittleEndian.PutUint32(tmp[4:8], uint32(pos.Col))
	c.buf = append(c.buf, tmp[:]...)
	return off
}

// PutUint64 appends a raw little-endian u64 (data-chunk use: array/object
// literal field counts or other small auxiliary tables) and returns its
// offset.
func (c *Chunk) PutUint64(v uint64) uint32 {
	off := c.Size()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	c.buf = append(c.buf, tmp[:]...)
	return off
}
