package maincmd

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

// loadModuleFile reads path and decodes it as an s0 module: the binary
// form if it opens with bytecode.Magic, the text assembler form
// (bytecode.Asm) otherwise. This is the only "compile" input format this
// tool accepts, in lieu of a lexer/parser for r0 source.
func loadModuleFile(path string) (*bytecode.Module, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) >= 4 && binary.BigEndian.Uint32(buf[:4]) == bytecode.Magic {
		return bytecode.DecodeModule(buf)
	}
	return bytecode.Asm(string(buf))
}

// writeOutput writes data to out if set, otherwise to w.
func writeOutput(w io.Writer, out string, data []byte) error {
	if out == "" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	return nil
}
