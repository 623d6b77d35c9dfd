package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

// Compile assembles a text module and writes its binary s0 encoding.
func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return CompileFile(stdio, args[0], c.Out)
}

func CompileFile(stdio mainer.Stdio, path, out string) error {
	mod, err := loadModuleFile(path)
	if err != nil {
		return printError(stdio, err)
	}
	if err := mod.Validate(); err != nil {
		return printError(stdio, err)
	}
	return printError(stdio, writeOutput(stdio.Stdout, out, bytecode.EncodeModule(mod)))
}
