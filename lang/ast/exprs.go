package ast

import (
	"fmt"

	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

// LiteralKind distinguishes the four literal forms r0 allows, per spec.md
// section 3 ("Literal"): Integer, Char, Float and String.
type LiteralKind uint8

const (
	IntLit LiteralKind = iota
	CharLit
	FloatLit
	StringLit
)

type (
	// IdentExpr represents an identifier used as an rvalue or lvalue.
	IdentExpr struct {
		Start token.Pos
		Name  string
	}

	// LiteralExpr represents an integer, character, float or string literal.
	LiteralExpr struct {
		Start token.Pos
		Kind  LiteralKind
		Raw   string      // uninterpreted source text, for diagnostics
		Value interface{} // int64 | rune | float64 | string, per Kind
	}

	// UnaryExpr represents a unary '+' or '-' applied to an operand.
	UnaryExpr struct {
		Op      token.Pos
		OpToken token.Token // token.UPLUS or token.UMINUS
		X       Expr
	}

	// BinaryExpr represents a binary arithmetic or comparison expression.
	BinaryExpr struct {
		Left    Expr
		Op      token.Pos
		OpToken token.Token
		Right   Expr
	}

	// AsExpr represents an explicit type conversion, e.g. "x as double".
	AsExpr struct {
		X    Expr
		As   token.Pos
		Type *TypeExpr
	}

	// AssignExpr represents an assignment expression; Left must be an
	// IdentExpr (spec.md section 4.5: "Lvalues are only plain identifiers").
	AssignExpr struct {
		Left   Expr
		Assign token.Pos
		Right  Expr
	}

	// CallExpr represents a function call, e.g. f(x, y).
	CallExpr struct {
		Fn     *IdentExpr
		Lparen token.Pos
		Args   []Expr
		Rparen token.Pos
	}
)

func (*IdentExpr) expr()  {}
func (*LiteralExpr) expr() {}
func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*AsExpr) expr()     {}
func (*AssignExpr) expr() {}
func (*CallExpr) expr()   {}

func (n *IdentExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "ident "+n.Name, nil) }
func (n *IdentExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Name))
}
func (n *IdentExpr) Walk(_ Visitor) {}

func (n *LiteralExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "literal "+n.Raw, nil) }
func (n *LiteralExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Raw))
}
func (n *LiteralExpr) Walk(_ Visitor) {}

func (n *UnaryExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "unary "+n.OpToken.String(), nil) }
func (n *UnaryExpr) Span() (start, end token.Pos) {
	_, xe := n.X.Span()
	return n.Op, xe
}
func (n *UnaryExpr) Walk(v Visitor) { Walk(v, n.X) }

func (n *BinaryExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "binary "+n.OpToken.String(), nil)
}
func (n *BinaryExpr) Span() (start, end token.Pos) {
	ls, _ := n.Left.Span()
	_, re := n.Right.Span()
	return ls, re
}
func (n *BinaryExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *AsExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "as "+n.Type.Name, nil) }
func (n *AsExpr) Span() (start, end token.Pos) {
	xs, _ := n.X.Span()
	_, te := n.Type.Span()
	return xs, te
}
func (n *AsExpr) Walk(v Visitor) {
	Walk(v, n.X)
	Walk(v, n.Type)
}

func (n *AssignExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "assign", nil) }
func (n *AssignExpr) Span() (start, end token.Pos) {
	ls, _ := n.Left.Span()
	_, re := n.Right.Span()
	return ls, re
}
func (n *AssignExpr) Walk(v Visitor) {
	Walk(v, n.Left)
	Walk(v, n.Right)
}

func (n *CallExpr) Format(f fmt.State, verb rune) {
	format(f, verb, n, "call "+n.Fn.Name, map[string]int{"args": len(n.Args)})
}
func (n *CallExpr) Span() (start, end token.Pos) {
	fs, _ := n.Fn.Span()
	return fs, n.Rparen
}
func (n *CallExpr) Walk(v Visitor) {
	Walk(v, n.Fn)
	for _, a := range n.Args {
		Walk(v, a)
	}
}
