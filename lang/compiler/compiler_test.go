package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BUAA-SE-Compiling/natrium/lang/ast"
	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
	"github.com/BUAA-SE-Compiling/natrium/lang/compiler"
	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

func intType() *ast.TypeExpr    { return &ast.TypeExpr{Name: "int"} }
func doubleType() *ast.TypeExpr { return &ast.TypeExpr{Name: "double"} }
func voidType() *ast.TypeExpr   { return &ast.TypeExpr{Name: "void"} }

func ident(name string) *ast.IdentExpr { return &ast.IdentExpr{Name: name} }

func block(stmts ...ast.Stmt) *ast.Block { return &ast.Block{Stmts: stmts} }

func emptyMain() *ast.FuncStmt {
	return &ast.FuncStmt{
		Name: "main",
		Body: block(&ast.ReturnStmt{}),
	}
}

func TestGenerateSynthesizesStartAndCallsMain(t *testing.T) {
	prog := &ast.Program{Funcs: []*ast.FuncStmt{emptyMain()}}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)
	require.Len(t, m.Functions, 2)

	want := "module:\n" +
		"globals:\n" +
		"\tconst \"main\"\n" +
		"\tconst \"_start\"\n" +
		"functions:\n" +
		"\tfunction: 1 0 0 0\n" +
		"\t\tcall 1\n" +
		"\t\tret\n" +
		"\tfunction: 0 0 0 0\n" +
		"\t\tret\n"
	assert.Equal(t, want, bytecode.Dasm(m))
}

func TestGenerateArithmeticFunction(t *testing.T) {
	add := &ast.FuncStmt{
		Name: "add",
		Params: []*ast.Param{
			{Name: "a", Type: intType()},
			{Name: "b", Type: intType()},
		},
		Ret: intType(),
		Body: block(&ast.ReturnStmt{
			X: &ast.BinaryExpr{Left: ident("a"), OpToken: token.PLUS, Right: ident("b")},
		}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{add, emptyMain()}}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)
	require.Len(t, m.Functions, 3)

	// m.Functions[0] is the synthesized _start, [1] is add, [2] is main.
	addDef := m.Functions[1]
	assert.Equal(t, uint32(1), addDef.RetSlots)
	assert.Equal(t, uint32(2), addDef.ParamSlots)
	assert.Equal(t, uint32(0), addDef.LocSlots)

	wantIns := []bytecode.Instr{
		bytecode.MakeArgA(1),
		{Op: bytecode.Load64},
		bytecode.MakeArgA(2),
		{Op: bytecode.Load64},
		{Op: bytecode.AddI},
		bytecode.MakeArgA(0),
		{Op: bytecode.Store64},
		{Op: bytecode.Ret},
	}
	assert.Equal(t, wantIns, addDef.Ins)
}

func TestGenerateGlobalDeclWithInitializer(t *testing.T) {
	prog := &ast.Program{
		Decls: []*ast.DeclStmt{
			{Name: "counter", Type: intType(), Init: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(7)}},
		},
		Funcs: []*ast.FuncStmt{emptyMain()},
	}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)
	require.Len(t, m.Globals, 3) // counter's storage, "main", "_start"

	start := m.Functions[0]
	wantIns := []bytecode.Instr{
		bytecode.MakeGlobA(0),
		bytecode.MakePush(7),
		{Op: bytecode.Store64},
		bytecode.MakeCall(1),
		{Op: bytecode.Ret},
	}
	assert.Equal(t, wantIns, start.Ins)
}

func TestGenerateIfElseChain(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "classify",
		Params: []*ast.Param{
			{Name: "x", Type: intType()},
		},
		Ret: intType(),
		Body: block(&ast.IfStmt{
			Clauses: []*ast.IfClause{
				{
					Cond: &ast.BinaryExpr{Left: ident("x"), OpToken: token.LT, Right: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(0)}},
					Body: block(&ast.ReturnStmt{X: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(-1)}}),
				},
			},
			Else: block(&ast.ReturnStmt{X: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(1)}}),
		}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn, emptyMain()}}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)

	def := m.Functions[1]
	// Every route through the if/else returns, so the function has no
	// trailing fallthrough return appended.
	last := def.Ins[len(def.Ins)-1]
	assert.Equal(t, bytecode.Ret, last.Op)
	assert.Contains(t, opList(def.Ins), bytecode.SetLt)
	assert.Contains(t, opList(def.Ins), bytecode.BrTrue)
}

func opList(ins []bytecode.Instr) []bytecode.Op {
	out := make([]bytecode.Op, len(ins))
	for i, in := range ins {
		out[i] = in.Op
	}
	return out
}

func TestGenerateWhileLoopWithBreakAndContinue(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "loop",
		Ret:  voidType(),
		Body: block(&ast.WhileStmt{
			Cond: &ast.BinaryExpr{Left: ident("i"), OpToken: token.LT, Right: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(10)}},
			Body: block(
				&ast.IfStmt{
					Clauses: []*ast.IfClause{{
						Cond: &ast.BinaryExpr{Left: ident("i"), OpToken: token.EQL, Right: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(5)}},
						Body: block(&ast.ContinueStmt{}),
					}},
				},
				&ast.BreakStmt{},
			),
		}),
	}
	prog := &ast.Program{
		Decls: []*ast.DeclStmt{{Name: "i", Type: intType()}},
		Funcs: []*ast.FuncStmt{fn, emptyMain()},
	}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)
	def := m.Functions[1]
	assert.Contains(t, opList(def.Ins), bytecode.Br)
	assert.Contains(t, opList(def.Ins), bytecode.BrTrue)
}

func TestGenerateCallsLibraryIntrinsicViaCallName(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "main",
		Body: block(&ast.ExprStmt{
			X: &ast.CallExpr{Fn: ident("putint"), Args: []ast.Expr{&ast.LiteralExpr{Kind: ast.IntLit, Value: int64(42)}}},
		}, &ast.ReturnStmt{}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn}}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)
	def := m.Functions[1]
	assert.Contains(t, opList(def.Ins), bytecode.CallName)
	assert.NotContains(t, opList(def.Ins), bytecode.Call)
}

func TestGenerateCallReservesReturnSlot(t *testing.T) {
	add := &ast.FuncStmt{
		Name: "add",
		Params: []*ast.Param{
			{Name: "a", Type: intType()},
			{Name: "b", Type: intType()},
		},
		Ret:  intType(),
		Body: block(&ast.ReturnStmt{X: &ast.BinaryExpr{Left: ident("a"), OpToken: token.PLUS, Right: ident("b")}}),
	}
	main := &ast.FuncStmt{
		Name: "main",
		Ret:  intType(),
		Body: block(&ast.ReturnStmt{
			X: &ast.CallExpr{Fn: ident("add"), Args: []ast.Expr{
				&ast.LiteralExpr{Kind: ast.IntLit, Value: int64(1)},
				&ast.LiteralExpr{Kind: ast.IntLit, Value: int64(2)},
			}},
		}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{add, main}}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)

	mainDef := m.Functions[2]
	wantIns := []bytecode.Instr{
		bytecode.MakePush(0), // reserved $ret slot for add's result
		bytecode.MakePush(1),
		bytecode.MakePush(2),
		bytecode.MakeCall(1),
		bytecode.MakeArgA(0),
		{Op: bytecode.Store64},
		{Op: bytecode.Ret},
	}
	assert.Equal(t, wantIns, mainDef.Ins)
}

func TestGenerateTypeMismatchError(t *testing.T) {
	// let x:int = 1.0; equivalent: a double initializer for an int-typed
	// return, per spec.md's seed scenario 6.
	lit := &ast.LiteralExpr{Kind: ast.FloatLit, Value: 1.5, Start: token.MakePos(3, 10), Raw: "1.5"}
	fn := &ast.FuncStmt{
		Name: "bad",
		Ret:  intType(),
		Body: block(&ast.ReturnStmt{X: lit}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn, emptyMain()}}

	_, err := compiler.Generate(prog)
	require.Error(t, err)
	var genErr *compiler.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, compiler.TypeMismatch, genErr.Kind)
	wantStart, wantEnd := lit.Span()
	assert.Equal(t, token.Span{Start: wantStart, End: wantEnd}, genErr.Span)
	assert.Equal(t, "int", genErr.Expected)
	assert.Equal(t, "double", genErr.Got)
}

func TestGenerateMissingMainError(t *testing.T) {
	prog := &ast.Program{}
	_, err := compiler.Generate(prog)
	require.Error(t, err)
	var genErr *compiler.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, compiler.UndefinedName, genErr.Kind)
}

func TestGenerateRedefinitionError(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "dup",
		Body: block(
			&ast.DeclStmt{Name: "x", Type: intType()},
			&ast.DeclStmt{Name: "x", Type: intType()},
			&ast.ReturnStmt{},
		),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn, emptyMain()}}

	_, err := compiler.Generate(prog)
	require.Error(t, err)
	var genErr *compiler.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, compiler.Redefinition, genErr.Kind)
}

func TestGenerateNotAllRoutesReturnError(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "leaky",
		Ret:  intType(),
		Body: block(&ast.IfStmt{
			Clauses: []*ast.IfClause{{
				Cond: &ast.BinaryExpr{
					Left:    &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(1)},
					OpToken: token.EQL,
					Right:   &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(1)},
				},
				Body: block(&ast.ReturnStmt{X: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(1)}}),
			}},
			// no else: the false route falls off the end of the function
		}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn, emptyMain()}}

	_, err := compiler.Generate(prog)
	require.Error(t, err)
	var genErr *compiler.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, compiler.NotAllRoutesReturn, genErr.Kind)
}

func TestGenerateBreakOutsideLoopError(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "oops",
		Body: block(&ast.BreakStmt{}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn, emptyMain()}}

	_, err := compiler.Generate(prog)
	require.Error(t, err)
	var genErr *compiler.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, compiler.InvalidBreakContinue, genErr.Kind)
}

func TestGenerateAsConversion(t *testing.T) {
	fn := &ast.FuncStmt{
		Name: "toD",
		Ret:  doubleType(),
		Body: block(&ast.ReturnStmt{
			X: &ast.AsExpr{X: &ast.LiteralExpr{Kind: ast.IntLit, Value: int64(3)}, Type: doubleType()},
		}),
	}
	prog := &ast.Program{Funcs: []*ast.FuncStmt{fn, emptyMain()}}

	m, err := compiler.Generate(prog)
	require.NoError(t, err)
	def := m.Functions[1]
	assert.Contains(t, opList(def.Ins), bytecode.IToF)
}
