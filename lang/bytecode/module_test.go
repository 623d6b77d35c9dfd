package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

func sampleModule() *bytecode.Module {
	return &bytecode.Module{
		Globals: []bytecode.Global{
			{IsConst: true, Bytes: []byte("_start")},
			{IsConst: true, Bytes: []byte("main")},
			{IsConst: false, Bytes: make([]byte, 8)},
		},
		Functions: []bytecode.FuncDef{
			{
				NameIdx: 0, RetSlots: 0, ParamSlots: 0, LocSlots: 0,
				Ins: []bytecode.Instr{
					bytecode.MakeCall(1),
					{Op: bytecode.Ret},
				},
			},
			{
				NameIdx: 1, RetSlots: 1, ParamSlots: 0, LocSlots: 1,
				Ins: []bytecode.Instr{
					bytecode.MakePush(42),
					bytecode.MakeArgA(0),
					{Op: bytecode.Store64},
					{Op: bytecode.Ret},
				},
			},
		},
	}
}

func TestModuleRoundTrip(t *testing.T) {
	m := sampleModule()
	buf := bytecode.EncodeModule(m)
	got, err := bytecode.DecodeModule(buf)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestModuleMagicAndVersion(t *testing.T) {
	m := sampleModule()
	buf := bytecode.EncodeModule(m)
	require.Equal(t, byte(0x72), buf[0])
	require.Equal(t, byte(0x3e), buf[3])

	bad := append([]byte(nil), buf...)
	bad[0] ^= 0xff
	_, err := bytecode.DecodeModule(bad)
	require.Error(t, err)
}

func TestModuleValidateCatchesOutOfRangeCall(t *testing.T) {
	m := sampleModule()
	m.Functions[0].Ins[0] = bytecode.MakeCall(99)
	require.Error(t, m.Validate())
}

func TestModuleValidateCatchesOutOfRangeGlobal(t *testing.T) {
	m := sampleModule()
	m.Functions[1].NameIdx = 77
	require.Error(t, m.Validate())
}

func TestDecodeModuleTruncated(t *testing.T) {
	_, err := bytecode.DecodeModule([]byte{0x72, 0x30, 0x3b})
	require.Error(t, err)
}

func TestDecodeModuleTrailingBytes(t *testing.T) {
	m := sampleModule()
	buf := append(bytecode.EncodeModule(m), 0xff)
	_, err := bytecode.DecodeModule(buf)
	require.Error(t, err)
}
