package bytecode

import (
	"encoding/binary"
	"fmt"
)

// Instr is one decoded instruction: an opcode and its immediate, if any.
// Imm is always stored as the raw bit pattern; callers reinterpret it as
// signed (branch offsets), as a count, or as an id depending on op.
type Instr struct {
	Op  Op
	Imm uint64
}

// Int32 reinterprets Imm as a signed 32-bit value, for branch offsets and
// other 4-byte immediates.
func (in Instr) Int32() int32 { return int32(uint32(in.Imm)) }

// Uint32 reinterprets Imm as an unsigned 32-bit value, for ids and counts.
func (in Instr) Uint32() uint32 { return uint32(in.Imm) }

func (in Instr) String() string {
	switch in.Op.ParamSize() {
	case 0:
		return in.Op.String()
	case 4:
		if in.Op.IsBranch() {
			return fmt.Sprintf("%s %d", in.Op, in.Int32())
		}
		return fmt.Sprintf("%s %d", in.Op, in.Uint32())
	default:
		return fmt.Sprintf("%s %d", in.Op, in.Imm)
	}
}

// Encode appends the binary encoding of in to buf: the 1-byte tag, then 0,
// 4 or 8 big-endian bytes of immediate as determined by in.Op.ParamSize.
func Encode(buf []byte, in Instr) []byte {
	buf = append(buf, byte(in.Op))
	switch in.Op.ParamSize() {
	case 4:
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(in.Imm))
		buf = append(buf, tmp[:]...)
	case 8:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], in.Imm)
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// DecodeOne decodes a single instruction starting at buf[0], returning the
// instruction and the number of bytes consumed. It fails if buf names an
// unknown opcode or is too short to hold the required immediate.
func DecodeOne(buf []byte) (Instr, int, error) {
	if len(buf) < 1 {
		return Instr{}, 0, fmt.Errorf("bytecode: empty instruction stream")
	}
	op := Op(buf[0])
	if !Valid(buf[0]) {
		return Instr{}, 0, fmt.Errorf("bytecode: unknown opcode 0x%02x", buf[0])
	}
	n := op.ParamSize()
	if len(buf) < 1+n {
		return Instr{}, 0, fmt.Errorf("bytecode: truncated immediate for %s", op)
	}
	var imm uint64
	switch n {
	case 4:
		imm = uint64(binary.BigEndian.Uint32(buf[1:5]))
	case 8:
		imm = binary.BigEndian.Uint64(buf[1:9])
	}
	return Instr{Op: op, Imm: imm}, 1 + n, nil
}

// DecodeAll decodes buf into a sequence of instructions. It is an error for
// any trailing bytes to remain after the last full instruction.
func DecodeAll(buf []byte) ([]Instr, error) {
	var out []Instr
	for len(buf) > 0 {
		in, n, err := DecodeOne(buf)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		buf = buf[n:]
	}
	return out, nil
}

// EncodeAll is the inverse of DecodeAll.
func EncodeAll(ins []Instr) []byte {
	var buf []byte
	for _, in := range ins {
		buf = Encode(buf, in)
	}
	return buf
}

// Constructors for the immediate-carrying opcodes, so callers (the code
// generator, the assembler, tests) don't hand-assemble Instr literals.

func MakePush(v uint64) Instr       { return Instr{Op: Push, Imm: v} }
func MakePopN(n uint32) Instr       { return Instr{Op: PopN, Imm: uint64(n)} }
func MakeLocA(off uint32) Instr     { return Instr{Op: LocA, Imm: uint64(off)} }
func MakeArgA(off uint32) Instr     { return Instr{Op: ArgA, Imm: uint64(off)} }
func MakeGlobA(id uint32) Instr     { return Instr{Op: GlobA, Imm: uint64(id)} }
func MakeStackAlloc(n uint32) Instr { return Instr{Op: StackAlloc, Imm: uint64(n)} }
func MakeBr(off int32) Instr        { return Instr{Op: Br, Imm: uint64(uint32(off))} }
func MakeBrFalse(off int32) Instr   { return Instr{Op: BrFalse, Imm: uint64(uint32(off))} }
func MakeBrTrue(off int32) Instr    { return Instr{Op: BrTrue, Imm: uint64(uint32(off))} }
func MakeCall(id uint32) Instr      { return Instr{Op: Call, Imm: uint64(id)} }
func MakeCallName(globID uint32) Instr {
	return Instr{Op: CallName, Imm: uint64(globID)}
}
