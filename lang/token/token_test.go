package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenString(t *testing.T) {
	for tok := LT; tok <= UMINUS; tok++ {
		require.NotEqual(t, "illegal token", tok.String())
	}
	require.Equal(t, "illegal token", ILLEGAL.String())
	require.Equal(t, "illegal token", maxToken.String())
}

func TestIsComparison(t *testing.T) {
	for tok := LT; tok <= NEQ; tok++ {
		require.True(t, tok.IsComparison())
	}
	require.False(t, PLUS.IsComparison())
	require.False(t, ILLEGAL.IsComparison())
}

func TestIsArithmetic(t *testing.T) {
	for tok := PLUS; tok <= SLASH; tok++ {
		require.True(t, tok.IsArithmetic())
	}
	require.False(t, LT.IsArithmetic())
	require.False(t, UMINUS.IsArithmetic())
}
