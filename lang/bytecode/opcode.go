// Package bytecode implements the s0 object model: the opcode set, the
// module/function-definition layout, the binary codec between them, and a
// human-readable assembler/disassembler form used to build or inspect
// modules without a code generator. It has no knowledge of the AST or of
// code generation — lang/compiler depends on this package, not the other
// way around, since the VM loader (lang/machine) must be able to load a
// module without pulling in codegen.
package bytecode

import "fmt"

// Op is the one-byte tag of an instruction. Every Op carries an immediate
// of a fixed width (0, 4, or 8 bytes) determined purely by the tag; see
// ParamSize.
type Op uint8

const (
	Nop Op = 0x00

	Push Op = 0x01 // 8-byte immediate
	Pop  Op = 0x02
	PopN Op = 0x03 // 4-byte immediate
	Dup  Op = 0x04

	LocA  Op = 0x08 // 4-byte immediate: local slot offset
	ArgA  Op = 0x09 // 4-byte immediate: arg/return slot offset
	GlobA Op = 0x0a // 4-byte immediate: global id

	Load8  Op = 0x10
	Load16 Op = 0x11
	Load32 Op = 0x12
	Load64 Op = 0x13

	Store8  Op = 0x14
	Store16 Op = 0x15
	Store32 Op = 0x16
	Store64 Op = 0x17

	Alloc      Op = 0x18
	Free       Op = 0x19
	StackAlloc Op = 0x1a // 4-byte immediate: slot count

	AddI Op = 0x20
	SubI Op = 0x21
	MulI Op = 0x22
	DivI Op = 0x23
	AddF Op = 0x24
	SubF Op = 0x25
	MulF Op = 0x26
	DivF Op = 0x27
	DivU Op = 0x28

	Shl  Op = 0x29
	Shr  Op = 0x2a // arithmetic (sign-extending) right shift
	And  Op = 0x2b
	Or   Op = 0x2c
	Xor  Op = 0x2d
	Not  Op = 0x2e
	ShrL Op = 0x2f // logical (zero-filling) right shift

	CmpI  Op = 0x30
	CmpU  Op = 0x31
	CmpF  Op = 0x32
	SetLt Op = 0x33
	SetGt Op = 0x34

	NegI Op = 0x35
	NegF Op = 0x36
	IToF Op = 0x37
	FToI Op = 0x38

	BrA      Op = 0x40 // 8-byte immediate, absolute; reserved, never emitted
	Br       Op = 0x41 // 4-byte signed immediate, relative
	BrFalse  Op = 0x42 // 4-byte signed immediate, relative
	BrTrue   Op = 0x43 // 4-byte signed immediate, relative
	Call     Op = 0x48 // 4-byte immediate: function id
	CallName Op = 0x49 // 4-byte immediate: global id holding the callee name
	Ret      Op = 0x4a

	ScanI Op = 0x50
	ScanC Op = 0x51
	ScanF Op = 0x52

	PrintI  Op = 0x54
	PrintC  Op = 0x55
	PrintF  Op = 0x56
	PrintS  Op = 0x57
	PrintLn Op = 0x58

	Panic Op = 0xfe
)

var opNames = map[Op]string{
	Nop: "nop", Push: "push", Pop: "pop", PopN: "popn", Dup: "dup",
	LocA: "loca", ArgA: "arga", GlobA: "globa",
	Load8: "load8", Load16: "load16", Load32: "load32", Load64: "load64",
	Store8: "store8", Store16: "store16", Store32: "store32", Store64: "store64",
	Alloc: "alloc", Free: "free", StackAlloc: "stackalloc",
	AddI: "addi", SubI: "subi", MulI: "muli", DivI: "divi",
	AddF: "addf", SubF: "subf", MulF: "mulf", DivF: "divf", DivU: "divu",
	Shl: "shl", Shr: "shr", And: "and", Or: "or", Xor: "xor", Not: "not", ShrL: "shrl",
	CmpI: "cmpi", CmpU: "cmpu", CmpF: "cmpf", SetLt: "setlt", SetGt: "setgt",
	NegI: "negi", NegF: "negf", IToF: "itof", FToI: "ftoi",
	BrA: "bra", Br: "br", BrFalse: "brfalse", BrTrue: "brtrue",
	Call: "call", CallName: "callname", Ret: "ret",
	ScanI: "scani", ScanC: "scanc", ScanF: "scanf",
	PrintI: "printi", PrintC: "printc", PrintF: "printf", PrintS: "prints", PrintLn: "println",
	Panic: "panic",
}

var mnemonicToOp map[string]Op

func init() {
	mnemonicToOp = make(map[string]Op, len(opNames))
	for op, name := range opNames {
		mnemonicToOp[name] = op
	}
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(0x%02x)", uint8(op))
}

// OpFromMnemonic looks up an Op by its assembler mnemonic (case-sensitive,
// lower-case, as produced by String).
func OpFromMnemonic(s string) (Op, bool) {
	op, ok := mnemonicToOp[s]
	return op, ok
}

// ParamSize returns the width in bytes of op's immediate: 0, 4, or 8. It is
// a pure function of the tag, as required by spec.md's codec invariant.
func (op Op) ParamSize() int {
	switch op {
	case Push, BrA:
		return 8
	case PopN, LocA, ArgA, GlobA, StackAlloc, Br, BrFalse, BrTrue, Call, CallName:
		return 4
	default:
		return 0
	}
}

// IsBranch reports whether op's immediate is a signed, relative instruction
// offset rather than an unsigned count/id. Used by the instruction codec,
// and by the assembler and disassembler to parse and print offsets as
// signed decimals.
func (op Op) IsBranch() bool {
	switch op {
	case Br, BrFalse, BrTrue:
		return true
	default:
		return false
	}
}

// Valid reports whether code names a known opcode.
func Valid(code uint8) bool {
	_, ok := opNames[Op(code)]
	return ok
}
