package ast_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BUAA-SE-Compiling/natrium/lang/ast"
	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

func TestFormatRendersNodeSummaries(t *testing.T) {
	cases := []struct {
		name string
		node ast.Node
		want string
	}{
		{"ident", &ast.IdentExpr{Name: "x"}, "ident x"},
		{"literal", &ast.LiteralExpr{Kind: ast.IntLit, Raw: "42"}, "literal 42"},
		{"unary", &ast.UnaryExpr{OpToken: token.UMINUS, X: &ast.IdentExpr{Name: "x"}}, "unary -"},
		{"binary", &ast.BinaryExpr{OpToken: token.PLUS, Left: &ast.IdentExpr{Name: "a"}, Right: &ast.IdentExpr{Name: "b"}}, "binary +"},
		{"call", &ast.CallExpr{Fn: &ast.IdentExpr{Name: "f"}, Args: []ast.Expr{&ast.IdentExpr{Name: "a"}}}, "call f"},
		{"decl", &ast.DeclStmt{Name: "x"}, "decl x"},
		{"return", &ast.ReturnStmt{}, "return"},
		{"break", &ast.BreakStmt{}, "break"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, fmt.Sprintf("%v", c.node))
		})
	}
}

func TestFormatCountsWithHashFlag(t *testing.T) {
	n := &ast.CallExpr{Fn: &ast.IdentExpr{Name: "f"}, Args: []ast.Expr{&ast.IdentExpr{Name: "a"}, &ast.IdentExpr{Name: "b"}}}
	assert.Equal(t, "call f {args=2}", fmt.Sprintf("%#v", n))
}

func TestFormatRejectsNonVVerb(t *testing.T) {
	n := &ast.IdentExpr{Name: "x"}
	assert.Contains(t, fmt.Sprintf("%d", n), "%!d")
}

func TestWalkVisitsEveryChild(t *testing.T) {
	prog := &ast.Program{
		Decls: []*ast.DeclStmt{{Name: "g", Type: &ast.TypeExpr{Name: "int"}}},
		Funcs: []*ast.FuncStmt{{
			Name:   "main",
			Params: []*ast.Param{{Name: "a", Type: &ast.TypeExpr{Name: "int"}}},
			Ret:    &ast.TypeExpr{Name: "int"},
			Body: &ast.Block{Stmts: []ast.Stmt{
				&ast.IfStmt{
					Clauses: []*ast.IfClause{{
						Cond: &ast.BinaryExpr{OpToken: token.LT, Left: &ast.IdentExpr{Name: "a"}, Right: &ast.LiteralExpr{Kind: ast.IntLit, Raw: "0"}},
						Body: &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{X: &ast.IdentExpr{Name: "a"}}}},
					}},
				},
				&ast.ReturnStmt{X: &ast.IdentExpr{Name: "a"}},
			}},
		}},
	}

	var labels []string
	var visit ast.VisitorFunc
	visit = func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if dir == ast.VisitEnter {
			labels = append(labels, fmt.Sprintf("%v", n))
		}
		return visit
	}
	ast.Walk(visit, prog)

	assert.Contains(t, labels, "program")
	assert.Contains(t, labels, "decl g")
	assert.Contains(t, labels, "func main")
	assert.Contains(t, labels, "if")
	assert.Contains(t, labels, "binary <")
	assert.Contains(t, labels, "return")
}

func TestWalkSkipsSubtreeWhenVisitorReturnsNil(t *testing.T) {
	prog := &ast.Program{
		Funcs: []*ast.FuncStmt{{
			Name: "main",
			Body: &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{X: &ast.IdentExpr{Name: "a"}}}},
		}},
	}

	var labels []string
	var rec ast.VisitorFunc
	rec = func(n ast.Node, dir ast.VisitDirection) ast.Visitor {
		if dir != ast.VisitEnter {
			return nil
		}
		labels = append(labels, fmt.Sprintf("%v", n))
		if _, ok := n.(*ast.FuncStmt); ok {
			return nil // skip descending into main's body
		}
		return rec
	}
	ast.Walk(rec, prog)

	assert.Contains(t, labels, "func main")
	assert.NotContains(t, labels, "return")
}

func TestDumpIndentsNestedNodes(t *testing.T) {
	prog := &ast.Program{
		Funcs: []*ast.FuncStmt{{
			Name: "main",
			Body: &ast.Block{Stmts: []ast.Stmt{&ast.ReturnStmt{X: &ast.IdentExpr{Name: "a"}}}},
		}},
	}

	out := ast.Dump(prog)
	assert.Contains(t, out, "program\n")
	assert.Contains(t, out, "  func main\n")
	assert.Contains(t, out, "    block\n")
	assert.Contains(t, out, "      return\n")
	assert.Contains(t, out, "        ident a\n")
}
