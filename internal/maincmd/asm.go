package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

// Asm assembles a text module and prints its canonical disassembly, a
// round-trip formatter for the assembler form.
func (c *Cmd) Asm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return AsmFile(stdio, args[0], c.Out)
}

func AsmFile(stdio mainer.Stdio, path, out string) error {
	mod, err := loadModuleFile(path)
	if err != nil {
		return printError(stdio, err)
	}
	if err := mod.Validate(); err != nil {
		return printError(stdio, err)
	}
	return printError(stdio, writeOutput(stdio.Stdout, out, []byte(bytecode.Dasm(mod))))
}
