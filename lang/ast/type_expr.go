package ast

import (
	"fmt"

	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

// TypeExpr names a type in source form, e.g. "int" or "double". Resolution
// against the fixed set {int, double, void} (spec.md section 6) happens in
// the code generator, not here: an unrecognised name is simply carried as
// text and rejected later as UnknownType.
type TypeExpr struct {
	Start token.Pos
	Name  string
}

func (n *TypeExpr) Format(f fmt.State, verb rune) { format(f, verb, n, "type "+n.Name, nil) }
func (n *TypeExpr) Span() (start, end token.Pos) {
	return n.Start, n.Start + token.Pos(len(n.Name))
}
func (n *TypeExpr) Walk(_ Visitor) {}
