package ast

import (
	"fmt"
	"strings"
)

// Dump renders node and its descendants as an indented tree, one line per
// node, using each node's own Format verb ("%v"). It walks with Walk, so it
// also serves as a smoke test that a tree's Walk implementations reach every
// child: a node Walk forgets to descend into is simply missing from the
// output. Intended for test failure diagnostics and debugging, not stable
// output parsed by anything.
func Dump(node Node) string {
	var b strings.Builder
	depth := 0

	var visit VisitorFunc
	visit = func(n Node, dir VisitDirection) Visitor {
		switch dir {
		case VisitEnter:
			b.WriteString(strings.Repeat("  ", depth))
			fmt.Fprintf(&b, "%v\n", n)
			depth++
		case VisitExit:
			depth--
		}
		return visit
	}

	Walk(visit, node)
	return b.String()
}
