package bytecode_test

import (
	"testing"

	"github.com/kylelemons/godebug/diff"
	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

const asmSrc = `module:
globals:
	const "_start"
	const "main"
	var 8
functions:
	function: 0 0 0 0
		call 1
		ret
	function: 1 1 0 1
		push 42
		arga 0
		store64
		ret
`

func TestAsmParsesModule(t *testing.T) {
	m, err := bytecode.Asm(asmSrc)
	require.NoError(t, err)
	require.Len(t, m.Globals, 3)
	require.Len(t, m.Functions, 2)
	require.Equal(t, []byte("_start"), m.Globals[0].Bytes)
	require.True(t, m.Globals[0].IsConst)
	require.False(t, m.Globals[2].IsConst)
	require.Len(t, m.Globals[2].Bytes, 8)

	require.Equal(t, bytecode.MakeCall(1), m.Functions[0].Ins[0])
	require.Equal(t, bytecode.Instr{Op: bytecode.Ret}, m.Functions[0].Ins[1])
}

func TestDasmAsmRoundTrip(t *testing.T) {
	m, err := bytecode.Asm(asmSrc)
	require.NoError(t, err)

	text := bytecode.Dasm(m)
	m2, err := bytecode.Asm(text)
	require.NoError(t, err)

	if !require.ObjectsAreEqual(m, m2) {
		t.Fatalf("round trip mismatch:\n%s", diff.Diff(asmSrc, text))
	}
}

func TestAsmRejectsUnknownMnemonic(t *testing.T) {
	_, err := bytecode.Asm("module:\nfunctions:\n\tfunction: 0 0 0 0\n\t\tbogus\n")
	require.Error(t, err)
}

func TestAsmRejectsInstructionOutsideFunction(t *testing.T) {
	_, err := bytecode.Asm("module:\nfunctions:\n\tret\n")
	require.Error(t, err)
}
