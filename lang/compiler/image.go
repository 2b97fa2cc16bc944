package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/avevad/funscript-go/lang/token"
)

// Image is a finalized, self-contained bytecode program: a flat byte
// buffer holding every code chunk back to back followed by the data
// chunk, with all cross-chunk pointers already resolved to absolute
// offsets into Bytes. Entry is the offset of the instruction stream the
// machine should start executing (the main chunk, chunk 1, always
// finalizes to offset 0).
type Image struct {
	Bytes      []byte
	Entry      uint32
	DataOffset uint32
	Filename   string
}

// Instruction decodes the instruction at the given absolute offset.
func (img *Image) Instruction(offset uint32) (Instruction, error) {
	if offset+instructionSize > uint32(len(img.Bytes)) {
		return Instruction{}, fmt.Errorf("compiler: instruction offset %d out of range", offset)
	}
	return DecodeInstruction(img.Bytes[offset : offset+instructionSize]), nil
}

// CString reads a null-terminated string starting at the given absolute
// offset into the data chunk region.
func (img *Image) CString(offset uint32) (string, error) {
	end := offset
	for {
		if int(end) >= len(img.Bytes) {
			return "", fmt.Errorf("compiler: unterminated string at offset %d", offset)
		}
		if img.Bytes[end] == 0 {
			break
		}
		end++
	}
	return string(img.Bytes[offset:end]), nil
}

// Loc decodes a packed (row, col) location record at the given absolute
// offset.
func (img *Image) Loc(offset uint32) (token.Pos, error) {
	if offset+8 > uint32(len(img.Bytes)) {
		return token.Pos{}, fmt.Errorf("compiler: location offset %d out of range", offset)
	}
	row := binary.LittleEndian.Uint32(img.Bytes[offset : offset+4])
	col := binary.LittleEndian.Uint32(img.Bytes[offset+4 : offset+8])
	return token.Pos{Row: int(row), Col: int(col)}, nil
}

// Uint64 reads a raw little-endian u64 at the given absolute offset.
func (img *Image) Uint64(offset uint32) (uint64, error) {
	if offset+8 > uint32(len(img.Bytes)) {
		return 0, fmt.Errorf("compiler: uint64 offset %d out of range", offset)
	}
	return binary.LittleEndian.Uint64(img.Bytes[offset : offset+8]), nil
}
