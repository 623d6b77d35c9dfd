// Package ast defines the r0 abstract syntax tree consumed by the code
// generator (lang/compiler). This package is the producer interface
// described by spec.md section 6: building these values from source text is
// the job of an external lexer/parser, out of scope for this module. Tests
// and embedders construct ast.Program values directly, the same way the
// teacher's own lang/compiler tests build a *compiler.Program directly via
// its textual assembler rather than through a parser.
package ast

import (
	"fmt"

	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

// Node is any node in the AST.
type Node interface {
	fmt.Formatter

	// Span reports the start and end position of the node.
	Span() (start, end token.Pos)

	// Walk enters each node inside itself to implement the Visitor pattern.
	Walk(v Visitor)
}

// Expr is an expression node.
type Expr interface {
	Node
	expr()
}

// Stmt is a statement node.
type Stmt interface {
	Node

	// BlockEnding reports whether the statement may only appear as the last
	// statement of a block (return, break, continue).
	BlockEnding() bool
}

// Program is the root of the AST, the unit the code generator compiles: an
// ordered list of top-level variable declarations and an ordered list of
// function declarations, per spec.md section 6.
type Program struct {
	Decls []*DeclStmt
	Funcs []*FuncStmt
}

func (n *Program) Format(f fmt.State, verb rune) {
	format(f, verb, n, "program", map[string]int{"decls": len(n.Decls), "funcs": len(n.Funcs)})
}

func (n *Program) Span() (start, end token.Pos) {
	switch {
	case len(n.Decls) > 0 && len(n.Funcs) > 0:
		s, _ := n.Decls[0].Span()
		_, e := n.Funcs[len(n.Funcs)-1].Span()
		return s, e
	case len(n.Decls) > 0:
		return n.Decls[0].Span()
	case len(n.Funcs) > 0:
		return n.Funcs[0].Span()
	default:
		return 0, 0
	}
}

func (n *Program) Walk(v Visitor) {
	for _, d := range n.Decls {
		Walk(v, d)
	}
	for _, fn := range n.Funcs {
		Walk(v, fn)
	}
}

// Block is a brace-delimited sequence of statements.
type Block struct {
	Start, End token.Pos
	Stmts      []Stmt
}

func (n *Block) Format(f fmt.State, verb rune) {
	format(f, verb, n, "block", map[string]int{"stmts": len(n.Stmts)})
}
func (n *Block) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *Block) Walk(v Visitor) {
	for _, s := range n.Stmts {
		Walk(v, s)
	}
}

func format(f fmt.State, verb rune, n Node, label string, counts map[string]int) {
	if verb != 'v' && verb != 's' {
		fmt.Fprintf(f, "%%!%c(%T)", verb, n)
		return
	}
	fmt.Fprint(f, label)
	if f.Flag('#') && len(counts) > 0 {
		fmt.Fprint(f, " {")
		first := true
		for _, k := range []string{"decls", "funcs", "stmts", "params", "args", "conds"} {
			if c, ok := counts[k]; ok {
				if !first {
					fmt.Fprint(f, ", ")
				}
				fmt.Fprintf(f, "%s=%d", k, c)
				first = false
			}
		}
		fmt.Fprint(f, "}")
	}
}
