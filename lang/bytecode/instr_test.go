package bytecode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []bytecode.Instr{
		{Op: bytecode.Nop},
		bytecode.MakePush(0xdeadbeefcafef00d),
		{Op: bytecode.Pop},
		bytecode.MakePopN(7),
		{Op: bytecode.Dup},
		bytecode.MakeLocA(3),
		bytecode.MakeArgA(1),
		bytecode.MakeGlobA(42),
		{Op: bytecode.Load64},
		{Op: bytecode.Store64},
		{Op: bytecode.Alloc},
		{Op: bytecode.Free},
		bytecode.MakeStackAlloc(12),
		{Op: bytecode.AddI},
		{Op: bytecode.DivF},
		{Op: bytecode.ShrL},
		{Op: bytecode.CmpI},
		{Op: bytecode.SetLt},
		bytecode.MakeBr(-12),
		bytecode.MakeBrFalse(100),
		bytecode.MakeBrTrue(-1),
		bytecode.MakeCall(5),
		bytecode.MakeCallName(9),
		{Op: bytecode.Ret},
		{Op: bytecode.PrintLn},
		{Op: bytecode.Panic},
	}

	for _, in := range cases {
		buf := bytecode.Encode(nil, in)
		got, n, err := bytecode.DecodeOne(buf)
		require.NoError(t, err)
		require.Equal(t, len(buf), n)
		require.Equal(t, in, got, "round trip of %s", in)
	}
}

func TestDecodeAllEncodeAll(t *testing.T) {
	ins := []bytecode.Instr{
		bytecode.MakePush(1),
		bytecode.MakePush(2),
		{Op: bytecode.AddI},
		{Op: bytecode.Ret},
	}
	buf := bytecode.EncodeAll(ins)
	got, err := bytecode.DecodeAll(buf)
	require.NoError(t, err)
	require.Equal(t, ins, got)
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, _, err := bytecode.DecodeOne([]byte{0xff})
	require.Error(t, err)
}

func TestDecodeTruncatedImmediate(t *testing.T) {
	_, _, err := bytecode.DecodeOne([]byte{byte(bytecode.Push), 0x01, 0x02})
	require.Error(t, err)
}

func TestParamSizeIsPureFunctionOfTag(t *testing.T) {
	require.Equal(t, 8, bytecode.Push.ParamSize())
	require.Equal(t, 4, bytecode.Call.ParamSize())
	require.Equal(t, 0, bytecode.Ret.ParamSize())
}
