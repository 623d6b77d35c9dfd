package maincmd

import (
	"context"

	"github.com/mna/mainer"

	"github.com/BUAA-SE-Compiling/natrium/lang/machine"
)

// Run loads a module and runs it to completion, wiring the VM's stdin and
// stdout to the host's. Exit code 0 on normal termination, 1 on a VM
// runtime error, per spec.md's debug/CLI surface.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return RunFile(ctx, stdio, args[0])
}

func RunFile(ctx context.Context, stdio mainer.Stdio, path string) error {
	mod, err := loadModuleFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	th := &machine.Thread{Stdout: stdio.Stdout, Stderr: stdio.Stderr, Stdin: stdio.Stdin}
	m, err := machine.Load(mod, th)
	if err != nil {
		return printError(stdio, err)
	}

	return printError(stdio, m.Run(ctx))
}
