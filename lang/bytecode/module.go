package bytecode

import (
	"encoding/binary"
	"fmt"
)

const (
	// Magic identifies an s0 binary module.
	Magic uint32 = 0x72303b3e
	// Version is the only module format version this package reads/writes.
	Version uint32 = 1
)

// Global is one entry in a module's global table: a constant or mutable
// byte buffer, addressed by its index. String literals and global
// variables alike are globals; the only distinction is IsConst.
type Global struct {
	IsConst bool
	Bytes   []byte
}

// FuncDef is one compiled function. Ins is the function's linear,
// already-arranged instruction stream (see lang/compiler's block arranger);
// this package does not know how to produce one, only how to store it.
type FuncDef struct {
	NameIdx    uint32 // index into Module.Globals of a UTF-8 name blob
	RetSlots   uint32
	ParamSlots uint32
	LocSlots   uint32
	Ins        []Instr
}

// Module is a whole compiled s0 program: an ordered global table and an
// ordered function table. Function 0 is the entry point ("_start").
type Module struct {
	Globals   []Global
	Functions []FuncDef
}

// Validate checks the cross-reference invariants spec.md requires of a
// well-formed module: every Call target and every GlobA/CallName/name_idx
// reference is in range.
func (m *Module) Validate() error {
	for fi, fn := range m.Functions {
		if int(fn.NameIdx) >= len(m.Globals) {
			return fmt.Errorf("bytecode: function %d: name_idx %d out of range (%d globals)", fi, fn.NameIdx, len(m.Globals))
		}
		for ii, in := range fn.Ins {
			switch in.Op {
			case Call:
				if int(in.Uint32()) >= len(m.Functions) {
					return fmt.Errorf("bytecode: function %d ins %d: call target %d out of range", fi, ii, in.Uint32())
				}
			case GlobA, CallName:
				if int(in.Uint32()) >= len(m.Globals) {
					return fmt.Errorf("bytecode: function %d ins %d: global %d out of range", fi, ii, in.Uint32())
				}
			}
		}
	}
	return nil
}

// EncodeModule serializes m to the s0 binary format: big-endian magic,
// version, then the globals vector and the functions vector, each
// length-prefixed.
func EncodeModule(m *Module) []byte {
	var buf []byte
	buf = appendUint32(buf, Magic)
	buf = appendUint32(buf, Version)

	buf = appendUint32(buf, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		buf = appendBool(buf, g.IsConst)
		buf = appendUint32(buf, uint32(len(g.Bytes)))
		buf = append(buf, g.Bytes...)
	}

	buf = appendUint32(buf, uint32(len(m.Functions)))
	for _, fn := range m.Functions {
		buf = appendUint32(buf, fn.NameIdx)
		buf = appendUint32(buf, fn.RetSlots)
		buf = appendUint32(buf, fn.ParamSlots)
		buf = appendUint32(buf, fn.LocSlots)
		ins := EncodeAll(fn.Ins)
		buf = appendUint32(buf, uint32(len(ins)))
		buf = append(buf, ins...)
	}
	return buf
}

// DecodeModule is the inverse of EncodeModule: read(write(m)) == m for
// every module EncodeModule can produce.
func DecodeModule(buf []byte) (*Module, error) {
	r := &reader{buf: buf}

	magic, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("bytecode: bad magic 0x%08x, want 0x%08x", magic, Magic)
	}
	version, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, fmt.Errorf("bytecode: unsupported version %d, want %d", version, Version)
	}

	nglobals, err := r.uint32()
	if err != nil {
		return nil, err
	}
	globals := make([]Global, nglobals)
	for i := range globals {
		isConst, err := r.bool()
		if err != nil {
			return nil, err
		}
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		bs, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		globals[i] = Global{IsConst: isConst, Bytes: bs}
	}

	nfuncs, err := r.uint32()
	if err != nil {
		return nil, err
	}
	funcs := make([]FuncDef, nfuncs)
	for i := range funcs {
		nameIdx, err := r.uint32()
		if err != nil {
			return nil, err
		}
		retSlots, err := r.uint32()
		if err != nil {
			return nil, err
		}
		paramSlots, err := r.uint32()
		if err != nil {
			return nil, err
		}
		locSlots, err := r.uint32()
		if err != nil {
			return nil, err
		}
		n, err := r.uint32()
		if err != nil {
			return nil, err
		}
		insBytes, err := r.bytes(int(n))
		if err != nil {
			return nil, err
		}
		ins, err := DecodeAll(insBytes)
		if err != nil {
			return nil, fmt.Errorf("bytecode: function %d: %w", i, err)
		}
		funcs[i] = FuncDef{
			NameIdx:    nameIdx,
			RetSlots:   retSlots,
			ParamSlots: paramSlots,
			LocSlots:   locSlots,
			Ins:        ins,
		}
	}

	if !r.atEnd() {
		return nil, fmt.Errorf("bytecode: %d trailing bytes after module", r.remaining())
	}
	return &Module{Globals: globals, Functions: funcs}, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) atEnd() bool    { return r.pos >= len(r.buf) }
func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) uint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("bytecode: truncated u32 at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) bool() (bool, error) {
	if r.pos+1 > len(r.buf) {
		return false, fmt.Errorf("bytecode: truncated u8 at offset %d", r.pos)
	}
	v := r.buf[r.pos] != 0
	r.pos++
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("bytecode: truncated %d-byte field at offset %d", n, r.pos)
	}
	b := make([]byte, n)
	copy(b, r.buf[r.pos:r.pos+n])
	r.pos += n
	return b, nil
}
