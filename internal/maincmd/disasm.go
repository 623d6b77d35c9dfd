package maincmd

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

// Disasm decodes a binary s0 module and prints its disassembly. Unlike
// Asm, it refuses text-form input: disassembly is meant to inspect the
// artifact a compile step actually produced.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return DisasmFile(stdio, args[0], c.Out)
}

func DisasmFile(stdio mainer.Stdio, path, out string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return printError(stdio, err)
	}
	if len(buf) < 4 || binary.BigEndian.Uint32(buf[:4]) != bytecode.Magic {
		return printError(stdio, fmt.Errorf("%s: not a binary s0 module (use asm for text modules)", path))
	}
	mod, err := bytecode.DecodeModule(buf)
	if err != nil {
		return printError(stdio, err)
	}
	return printError(stdio, writeOutput(stdio.Stdout, out, []byte(bytecode.Dasm(mod))))
}
