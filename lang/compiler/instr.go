package compiler

import "encoding/binary"

// instructionSize is the fixed width of every instruction in the final
// image: {u16 op, u16 arg_short, u32 meta_off, u64 arg_long}.
const instructionSize = 16

// Instruction is the decoded form of one fixed-width bytecode instruction.
// U16 carries a short argument (a Tag, an Operator, a boolean flag); Meta
// is an offset into the data chunk used only for stack-trace reporting;
// U64 is either a numeric immediate, a float bit pattern, or an absolute
// byte offset into the final image.
type Instruction struct {
	Op   Opcode
	U16  uint16
	Meta uint32
	U64  uint64
}

// encodeInstruction writes i in little-endian form, pinned down explicitly
// rather than left at host-endian, so the produced image is portable.
func encodeInstruction(i Instruction) [instructionSize]byte {
	var buf [instructionSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], uint16(i.Op))
	binary.LittleEndian.PutUint16(buf[2:4], i.U16)
	binary.LittleEndian.PutUint32(buf[4:8], i.Meta)
	binary.LittleEndian.PutUint64(buf[8:16], i.U64)
	return buf
}

// DecodeInstruction reads one instruction from the front of b, which must
// hold at least instructionSize bytes.
func DecodeInstruction(b []byte) Instruction {
	return Instruction{
		Op:   Opcode(binary.LittleEndian.Uint16(b[0:2])),
		U16:  binary.LittleEndian.Uint16(b[2:4]),
		Meta: binary.LittleEndian.Uint32(b[4:8]),
		U64:  binary.LittleEndian.Uint64(b[8:16]),
	}
}
