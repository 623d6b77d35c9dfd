package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/lang/types"
)

func TestSizeofAndSlots(t *testing.T) {
	cases := []struct {
		k        types.Kind
		sizeof   int
		slotsOf  int
	}{
		{types.Int, 8, 1},
		{types.Double, 8, 1},
		{types.Addr, 8, 1},
		{types.Bool, 1, 1},
		{types.Void, 0, 0},
		{types.Func, 0, 0},
	}
	for _, c := range cases {
		require.Equal(t, c.sizeof, c.k.Sizeof(), "sizeof %s", c.k)
		require.Equal(t, c.slotsOf, c.k.SlotsOf(), "slots %s", c.k)
	}
}

func TestTypeEqual(t *testing.T) {
	i, d := types.Scalar(types.Int), types.Scalar(types.Double)
	require.True(t, i.Equal(i))
	require.False(t, i.Equal(d))

	f1 := types.FuncType([]types.Type{i, d}, i)
	f2 := types.FuncType([]types.Type{i, d}, i)
	f3 := types.FuncType([]types.Type{i}, i)
	require.True(t, f1.Equal(f2))
	require.False(t, f1.Equal(f3))
	require.False(t, f1.Equal(i))
}

func TestConversionFor(t *testing.T) {
	i, d, b, a := types.Scalar(types.Int), types.Scalar(types.Double), types.Scalar(types.Bool), types.Scalar(types.Addr)

	require.Equal(t, types.ToDouble, types.ConversionFor(i, d))
	require.Equal(t, types.ToDouble, types.ConversionFor(a, d))
	require.Equal(t, types.ToInt, types.ConversionFor(d, i))
	require.Equal(t, types.NoConversion, types.ConversionFor(i, a))
	require.Equal(t, types.NoConversion, types.ConversionFor(a, i))
	require.Equal(t, types.NoConversion, types.ConversionFor(i, b))
	require.Equal(t, types.NoConversion, types.ConversionFor(i, i))
	require.Equal(t, types.InvalidConversion, types.ConversionFor(b, i))
	require.Equal(t, types.InvalidConversion, types.ConversionFor(d, a))
}

func TestIsNumeric(t *testing.T) {
	require.True(t, types.Int.IsNumeric())
	require.True(t, types.Addr.IsNumeric())
	require.True(t, types.Double.IsNumeric())
	require.False(t, types.Bool.IsNumeric())
	require.False(t, types.Void.IsNumeric())
}
