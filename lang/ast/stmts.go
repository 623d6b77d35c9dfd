package ast

import (
	"fmt"

	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

type (
	// DeclStmt represents a "let"/"const" local or top-level declaration,
	// optionally with an initializer expression.
	DeclStmt struct {
		Start   token.Pos
		IsConst bool
		Name    string
		Type    *TypeExpr
		Init    Expr // nil if no initializer
		End     token.Pos
	}

	// FuncStmt represents a function declaration.
	FuncStmt struct {
		Start  token.Pos
		Name   string
		Params []*Param
		Ret    *TypeExpr // nil means void
		Body   *Block
	}

	// Param is a single function parameter. It is not itself an ast.Node (it
	// never appears standalone in a walk, only as part of a FuncStmt's
	// Params), but it carries its own Span for diagnostics such as a
	// redefined parameter name.
	Param struct {
		Start token.Pos
		Name  string
		Type  *TypeExpr
	}

	// BlockStmt wraps a Block so it can appear where a Stmt is expected.
	BlockStmt struct {
		Block *Block
	}

	// IfClause is one "if"/"else if" condition-and-body pair of an If chain.
	IfClause struct {
		Cond Expr
		Body *Block
	}

	// IfStmt represents an if/else-if/else chain.
	IfStmt struct {
		Start   token.Pos
		Clauses []*IfClause
		Else    *Block // nil if no else
		End     token.Pos
	}

	// WhileStmt represents a while loop.
	WhileStmt struct {
		Start token.Pos
		Cond  Expr
		Body  *Block
	}

	// ExprStmt represents an expression used as a statement (assignment or
	// call, per spec.md section 4.5 statement kinds).
	ExprStmt struct {
		X Expr
	}

	// ReturnStmt represents a return statement, with an optional value.
	ReturnStmt struct {
		Start token.Pos
		X     Expr // nil for "return;" in a void function
		End   token.Pos
	}

	// BreakStmt represents a break statement inside a loop.
	BreakStmt struct {
		Start, End token.Pos
	}

	// ContinueStmt represents a continue statement inside a loop.
	ContinueStmt struct {
		Start, End token.Pos
	}

	// EmptyStmt represents a bare statement terminator with no effect.
	EmptyStmt struct {
		Start, End token.Pos
	}
)

func (n *Param) Span() (start, end token.Pos) {
	if n.Type != nil {
		_, te := n.Type.Span()
		return n.Start, te
	}
	return n.Start, n.Start + token.Pos(len(n.Name))
}

func (n *DeclStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "decl "+n.Name, nil) }
func (n *DeclStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *DeclStmt) Walk(v Visitor) {
	if n.Type != nil {
		Walk(v, n.Type)
	}
	if n.Init != nil {
		Walk(v, n.Init)
	}
}
func (n *DeclStmt) BlockEnding() bool { return false }

func (n *FuncStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "func "+n.Name, map[string]int{"params": len(n.Params)})
}
func (n *FuncStmt) Span() (start, end token.Pos) {
	_, be := n.Body.Span()
	return n.Start, be
}
func (n *FuncStmt) Walk(v Visitor) {
	for _, p := range n.Params {
		if p.Type != nil {
			Walk(v, p.Type)
		}
	}
	if n.Ret != nil {
		Walk(v, n.Ret)
	}
	Walk(v, n.Body)
}
func (n *FuncStmt) BlockEnding() bool { return false }

func (n *BlockStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "block-stmt", nil) }
func (n *BlockStmt) Span() (start, end token.Pos)  { return n.Block.Span() }
func (n *BlockStmt) Walk(v Visitor)                { Walk(v, n.Block) }
func (n *BlockStmt) BlockEnding() bool             { return false }

func (n *IfStmt) Format(f fmt.State, verb rune) {
	format(f, verb, n, "if", map[string]int{"conds": len(n.Clauses)})
}
func (n *IfStmt) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *IfStmt) Walk(v Visitor) {
	for _, c := range n.Clauses {
		Walk(v, c.Cond)
		Walk(v, c.Body)
	}
	if n.Else != nil {
		Walk(v, n.Else)
	}
}
func (n *IfStmt) BlockEnding() bool { return false }

func (n *WhileStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "while", nil) }
func (n *WhileStmt) Span() (start, end token.Pos) {
	_, be := n.Body.Span()
	return n.Start, be
}
func (n *WhileStmt) Walk(v Visitor) {
	Walk(v, n.Cond)
	Walk(v, n.Body)
}
func (n *WhileStmt) BlockEnding() bool { return false }

func (n *ExprStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "expr-stmt", nil) }
func (n *ExprStmt) Span() (start, end token.Pos)  { return n.X.Span() }
func (n *ExprStmt) Walk(v Visitor)                { Walk(v, n.X) }
func (n *ExprStmt) BlockEnding() bool             { return false }

func (n *ReturnStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "return", nil) }
func (n *ReturnStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *ReturnStmt) Walk(v Visitor) {
	if n.X != nil {
		Walk(v, n.X)
	}
}
func (n *ReturnStmt) BlockEnding() bool { return true }

func (n *BreakStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "break", nil) }
func (n *BreakStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *BreakStmt) Walk(_ Visitor)                {}
func (n *BreakStmt) BlockEnding() bool             { return true }

func (n *ContinueStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "continue", nil) }
func (n *ContinueStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *ContinueStmt) Walk(_ Visitor)                {}
func (n *ContinueStmt) BlockEnding() bool             { return true }

func (n *EmptyStmt) Format(f fmt.State, verb rune) { format(f, verb, n, "empty", nil) }
func (n *EmptyStmt) Span() (start, end token.Pos)  { return n.Start, n.End }
func (n *EmptyStmt) Walk(_ Visitor)                {}
func (n *EmptyStmt) BlockEnding() bool             { return false }
