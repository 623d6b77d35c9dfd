package bytecode

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// This file implements a human-readable assembler/disassembler form of a
// Module. Its only purpose is to let tests and tools build or inspect
// modules without going through a code generator — the same role the
// teacher's own textual Asm/Dasm form plays for its VM tests.
//
// The format:
//
//	module:
//	globals:
//		const "name"
//		var 8
//	functions:
//		function: name_idx ret_slots param_slots loc_slots
//			push 1
//			push 2
//			addi
//			ret
//
// A const global is quoted UTF-8 bytes with is_const = true; a var global
// is N zeroed bytes with is_const = false. Blank lines and lines starting
// with '#' are ignored; a '#' after other text on a line is not a comment.
// Section keywords
// ("module:", "globals:", "functions:", "function:") always end in ':' and
// are otherwise unambiguous with instruction mnemonics.

// Asm parses src into a Module.
func Asm(src string) (*Module, error) {
	p := &asmParser{s: bufio.NewScanner(strings.NewReader(src))}
	return p.parse()
}

type asmParser struct {
	s    *bufio.Scanner
	line int
}

func (p *asmParser) parse() (*Module, error) {
	m := &Module{}
	section := ""
	var cur *FuncDef

	for {
		fields, ok, err := p.nextLine()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		head := fields[0]
		switch {
		case head == "module:":
			continue
		case head == "globals:":
			section = "globals"
			continue
		case head == "functions:":
			section = "functions"
			continue
		case head == "function:":
			if cur != nil {
				m.Functions = append(m.Functions, *cur)
			}
			fn, err := p.parseFunctionHeader(fields)
			if err != nil {
				return nil, err
			}
			cur = fn
			continue
		}

		switch section {
		case "globals":
			g, err := p.parseGlobal(fields)
			if err != nil {
				return nil, err
			}
			m.Globals = append(m.Globals, g)
		case "functions":
			if cur == nil {
				return nil, fmt.Errorf("bytecode: asm line %d: instruction outside any function", p.line)
			}
			in, err := p.parseInstr(fields)
			if err != nil {
				return nil, err
			}
			cur.Ins = append(cur.Ins, in)
		default:
			return nil, fmt.Errorf("bytecode: asm line %d: %q before any section header", p.line, head)
		}
	}
	if cur != nil {
		m.Functions = append(m.Functions, *cur)
	}
	return m, nil
}

func (p *asmParser) nextLine() ([]string, bool, error) {
	for p.s.Scan() {
		p.line++
		line := strings.TrimSpace(p.s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return strings.Fields(line), true, nil
	}
	return nil, false, p.s.Err()
}

func (p *asmParser) parseFunctionHeader(fields []string) (*FuncDef, error) {
	if len(fields) != 5 {
		return nil, fmt.Errorf("bytecode: asm line %d: want 'function: name_idx ret param loc', got %q", p.line, strings.Join(fields, " "))
	}
	nums := make([]uint32, 4)
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bytecode: asm line %d: bad integer %q: %w", p.line, f, err)
		}
		nums[i] = uint32(v)
	}
	return &FuncDef{NameIdx: nums[0], RetSlots: nums[1], ParamSlots: nums[2], LocSlots: nums[3]}, nil
}

func (p *asmParser) parseGlobal(fields []string) (Global, error) {
	if len(fields) < 2 {
		return Global{}, fmt.Errorf("bytecode: asm line %d: bad global entry %q", p.line, strings.Join(fields, " "))
	}
	switch fields[0] {
	case "const":
		s, err := strconv.Unquote(strings.Join(fields[1:], " "))
		if err != nil {
			return Global{}, fmt.Errorf("bytecode: asm line %d: bad quoted string: %w", p.line, err)
		}
		return Global{IsConst: true, Bytes: []byte(s)}, nil
	case "var":
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return Global{}, fmt.Errorf("bytecode: asm line %d: bad size %q: %w", p.line, fields[1], err)
		}
		return Global{IsConst: false, Bytes: make([]byte, n)}, nil
	default:
		return Global{}, fmt.Errorf("bytecode: asm line %d: unknown global kind %q", p.line, fields[0])
	}
}

func (p *asmParser) parseInstr(fields []string) (Instr, error) {
	op, ok := OpFromMnemonic(fields[0])
	if !ok {
		return Instr{}, fmt.Errorf("bytecode: asm line %d: unknown mnemonic %q", p.line, fields[0])
	}
	want := op.ParamSize()
	if want == 0 {
		if len(fields) != 1 {
			return Instr{}, fmt.Errorf("bytecode: asm line %d: %s takes no operand", p.line, fields[0])
		}
		return Instr{Op: op}, nil
	}
	if len(fields) != 2 {
		return Instr{}, fmt.Errorf("bytecode: asm line %d: %s wants one operand", p.line, fields[0])
	}
	if op.IsBranch() {
		v, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return Instr{}, fmt.Errorf("bytecode: asm line %d: bad signed operand %q: %w", p.line, fields[1], err)
		}
		return Instr{Op: op, Imm: uint64(uint32(int32(v)))}, nil
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Instr{}, fmt.Errorf("bytecode: asm line %d: bad operand %q: %w", p.line, fields[1], err)
	}
	return Instr{Op: op, Imm: v}, nil
}

// Dasm renders m back into the textual form Asm accepts. Round-tripping
// through Dasm/Asm is lossless for Module (string globals round-trip
// exactly; zeroed "var" globals lose only the fact that their bytes were
// already zero, which is their only legal value on entry anyway).
func Dasm(m *Module) string {
	var b strings.Builder
	b.WriteString("module:\n")

	b.WriteString("globals:\n")
	for _, g := range m.Globals {
		if g.IsConst {
			fmt.Fprintf(&b, "\tconst %s\n", strconv.Quote(string(g.Bytes)))
		} else {
			fmt.Fprintf(&b, "\tvar %d\n", len(g.Bytes))
		}
	}

	b.WriteString("functions:\n")
	for _, fn := range m.Functions {
		fmt.Fprintf(&b, "\tfunction: %d %d %d %d\n", fn.NameIdx, fn.RetSlots, fn.ParamSlots, fn.LocSlots)
		for _, in := range fn.Ins {
			if in.Op.ParamSize() == 0 {
				fmt.Fprintf(&b, "\t\t%s\n", in.Op)
			} else if in.Op.IsBranch() {
				fmt.Fprintf(&b, "\t\t%s %d\n", in.Op, in.Int32())
			} else {
				fmt.Fprintf(&b, "\t\t%s %d\n", in.Op, in.Imm)
			}
		}
	}
	return b.String()
}
