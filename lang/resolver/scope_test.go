package resolver_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/lang/resolver"
	"github.com/BUAA-SE-Compiling/natrium/lang/types"
)

func TestInsertAndFind(t *testing.T) {
	gen := resolver.NewIDGen()
	root := resolver.NewRoot(gen)

	sym, ok := root.Insert("x", types.Scalar(types.Int), false)
	require.True(t, ok)
	require.Equal(t, 0, sym.ID)
	require.True(t, sym.IsGlobal)

	_, ok = root.Insert("x", types.Scalar(types.Double), false)
	require.False(t, ok, "redefinition in the same scope must fail")

	found, ok := root.Find("x")
	require.True(t, ok)
	require.Same(t, sym, found)

	_, ok = root.Find("y")
	require.False(t, ok)
}

func TestShadowingAcrossScopes(t *testing.T) {
	gen := resolver.NewIDGen()
	root := resolver.NewRoot(gen)
	outer, _ := root.Insert("x", types.Scalar(types.Int), false)

	child := root.NewChild()
	inner, ok := child.Insert("x", types.Scalar(types.Double), true)
	require.True(t, ok, "shadowing in a nested scope is permitted")
	require.NotEqual(t, outer.ID, inner.ID)

	found, ok := child.Find("x")
	require.True(t, ok)
	require.Same(t, inner, found, "nested lookup finds the shadowing binding")

	found, ok = root.Find("x")
	require.True(t, ok)
	require.Same(t, outer, found, "the outer scope is unaffected by the child's shadow")
}

func TestFindWithGlobalFlag(t *testing.T) {
	gen := resolver.NewIDGen()
	root := resolver.NewRoot(gen)
	root.Insert("g", types.Scalar(types.Int), false)
	child := root.NewChild()
	child.Insert("l", types.Scalar(types.Int), false)

	_, isGlobal, ok := child.FindWithGlobalFlag("g")
	require.True(t, ok)
	require.True(t, isGlobal)

	_, isGlobal, ok = child.FindWithGlobalFlag("l")
	require.True(t, ok)
	require.False(t, isGlobal)
}

func TestMonotonicIDsAcrossScopes(t *testing.T) {
	gen := resolver.NewIDGen()
	root := resolver.NewRoot(gen)
	a, _ := root.Insert("a", types.Scalar(types.Int), false)
	child := root.NewChild()
	b, _ := child.Insert("b", types.Scalar(types.Int), false)
	grandchild := child.NewChild()
	c, _ := grandchild.Insert("c", types.Scalar(types.Int), false)

	require.Less(t, a.ID, b.ID)
	require.Less(t, b.ID, c.ID)
}
