package compiler

import (
	"github.com/BUAA-SE-Compiling/natrium/lang/ast"
	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
	"github.com/BUAA-SE-Compiling/natrium/lang/resolver"
	"github.com/BUAA-SE-Compiling/natrium/lang/types"
)

// loopCtx records the jump targets break/continue redirect to within the
// loop currently being generated.
type loopCtx struct {
	breakTarget, continueTarget int
}

// funcGen holds the per-function state of the code generator: the current
// basic block being appended to, the scope chain, the local-slot
// allocator, and the active loop stack for break/continue.
type funcGen struct {
	gen     *gen
	ir      *FuncIR
	scope   *resolver.Scope
	block   int
	locTop  int
	retType types.Type
	loops   []loopCtx
}

func (fc *funcGen) emit(in bytecode.Instr) { fc.ir.Emit(fc.block, in) }

// lowerBlock lowers a brace-delimited statement sequence, opening a nested
// scope per spec.md's Block statement rule.
func (fc *funcGen) lowerBlock(b *ast.Block) error {
	outer := fc.scope
	fc.scope = fc.scope.NewChild()
	defer func() { fc.scope = outer }()

	for _, s := range b.Stmts {
		if err := fc.stmt(s); err != nil {
			return err
		}
		// A block-ending statement (return/break/continue) closes off the
		// current block; anything that follows in source is unreachable.
		if s.BlockEnding() {
			dead := fc.ir.NewBlock()
			fc.ir.SetUnreachable(dead)
			fc.block = dead
		}
	}
	return nil
}

func (fc *funcGen) stmt(s ast.Stmt) error {
	switch n := s.(type) {
	case *ast.DeclStmt:
		return fc.declStmt(n)
	case *ast.IfStmt:
		return fc.ifStmt(n)
	case *ast.WhileStmt:
		return fc.whileStmt(n)
	case *ast.ReturnStmt:
		return fc.returnStmt(n)
	case *ast.BreakStmt:
		return fc.breakStmt(n)
	case *ast.ContinueStmt:
		return fc.continueStmt(n)
	case *ast.ExprStmt:
		_, err := fc.expr(n.X)
		return err
	case *ast.BlockStmt:
		return fc.lowerBlock(n.Block)
	case *ast.EmptyStmt:
		return nil
	default:
		return newError(TypeMismatch, spanOf(s), "unsupported statement %T", s)
	}
}

func (fc *funcGen) declStmt(d *ast.DeclStmt) error {
	ty, err := resolveTypeExpr(d.Type)
	if err != nil {
		return err
	}
	off := fc.locTop
	fc.locTop += ty.Kind.SlotsOf()
	sym, ok := fc.scope.Insert(d.Name, ty, d.IsConst)
	if !ok {
		return newError(Redefinition, spanOf(d), "local %q", d.Name)
	}
	fc.gen.places[sym.ID] = Place{Kind: PlaceLoc, Index: uint32(off)}
	if d.Init != nil {
		return fc.assignTo(d.Name, d.Init)
	}
	return nil
}

// globalInit lowers a top-level decl's initializer as an assignment to the
// global already registered for it. Spec.md describes Decl's initializer
// as "an assignment expression to a synthesized Ident lvalue" regardless of
// whether the target is a local or a global; this is the global case.
func (fc *funcGen) globalInit(d *ast.DeclStmt) error {
	return fc.assignTo(d.Name, d.Init)
}

func (fc *funcGen) assignTo(name string, value ast.Expr) error {
	assign := &ast.AssignExpr{Left: &ast.IdentExpr{Name: name}, Right: value}
	_, err := fc.expr(assign)
	return err
}

func (fc *funcGen) ifStmt(n *ast.IfStmt) error {
	endBB := fc.ir.NewBlock()

	condBBs := make([]int, len(n.Clauses))
	bodyBBs := make([]int, len(n.Clauses))
	for i := range n.Clauses {
		condBBs[i] = fc.ir.NewBlock()
		bodyBBs[i] = fc.ir.NewBlock()
	}

	elseTarget := endBB
	if n.Else != nil {
		elseTarget = fc.ir.NewBlock()
	}

	// endBB is reachable either through the implicit "no clause matched, no
	// else" edge (elseTarget == endBB) or through a body/else block that
	// falls through without returning/breaking/continuing. If neither
	// happens, every route terminates inside the chain and endBB is dead.
	endReachable := n.Else == nil

	fc.ir.SetJump(fc.block, condBBs[0])

	for i, clause := range n.Clauses {
		fc.block = condBBs[i]
		ty, err := fc.expr(clause.Cond)
		if err != nil {
			return err
		}
		if ty.Kind != types.Bool {
			return newTypeMismatch(spanOf(clause.Cond), "bool", ty.String())
		}
		falseTarget := elseTarget
		if i+1 < len(n.Clauses) {
			falseTarget = condBBs[i+1]
		}
		fc.ir.SetJumpIf(fc.block, bodyBBs[i], falseTarget)

		fc.block = bodyBBs[i]
		if err := fc.lowerBlock(clause.Body); err != nil {
			return err
		}
		if fc.ir.Blocks[fc.block].Term.Kind == Undefined {
			fc.ir.SetJump(fc.block, endBB)
			endReachable = true
		}
	}

	if n.Else != nil {
		fc.block = elseTarget
		if err := fc.lowerBlock(n.Else); err != nil {
			return err
		}
		if fc.ir.Blocks[fc.block].Term.Kind == Undefined {
			fc.ir.SetJump(fc.block, endBB)
			endReachable = true
		}
	}

	if !endReachable {
		fc.ir.SetUnreachable(endBB)
	}
	fc.block = endBB
	return nil
}

func (fc *funcGen) whileStmt(n *ast.WhileStmt) error {
	condBB := fc.ir.NewBlock()
	bodyBB := fc.ir.NewBlock()
	nextBB := fc.ir.NewBlock()

	fc.ir.SetJump(fc.block, condBB)

	fc.block = condBB
	ty, err := fc.expr(n.Cond)
	if err != nil {
		return err
	}
	if ty.Kind != types.Bool {
		return newTypeMismatch(spanOf(n.Cond), "bool", ty.String())
	}
	fc.ir.SetJumpIf(fc.block, bodyBB, nextBB)

	fc.loops = append(fc.loops, loopCtx{breakTarget: nextBB, continueTarget: condBB})
	fc.block = bodyBB
	if err := fc.lowerBlock(n.Body); err != nil {
		fc.loops = fc.loops[:len(fc.loops)-1]
		return err
	}
	fc.loops = fc.loops[:len(fc.loops)-1]
	if fc.ir.Blocks[fc.block].Term.Kind == Undefined {
		fc.ir.SetJump(fc.block, condBB)
	}

	fc.block = nextBB
	return nil
}

func (fc *funcGen) returnStmt(n *ast.ReturnStmt) error {
	if n.X == nil {
		if fc.retType.Kind != types.Void {
			return newTypeMismatch(spanOf(n), fc.retType.String(), "void")
		}
		fc.ir.SetReturn(fc.block)
		return nil
	}
	if fc.retType.Kind == types.Void {
		return newError(TypeMismatch, spanOf(n.X), "void function must not return a value")
	}
	ty, err := fc.expr(n.X)
	if err != nil {
		return err
	}
	if !ty.Equal(fc.retType) {
		return newTypeMismatch(spanOf(n.X), fc.retType.String(), ty.String())
	}
	fc.emit(bytecode.MakeArgA(0))
	fc.emit(bytecode.Instr{Op: bytecode.Store64})
	fc.ir.SetReturn(fc.block)
	return nil
}

func (fc *funcGen) breakStmt(n *ast.BreakStmt) error {
	if len(fc.loops) == 0 {
		return newError(InvalidBreakContinue, spanOf(n), "break outside a loop")
	}
	fc.ir.SetJump(fc.block, fc.loops[len(fc.loops)-1].breakTarget)
	return nil
}

func (fc *funcGen) continueStmt(n *ast.ContinueStmt) error {
	if len(fc.loops) == 0 {
		return newError(InvalidBreakContinue, spanOf(n), "continue outside a loop")
	}
	fc.ir.SetJump(fc.block, fc.loops[len(fc.loops)-1].continueTarget)
	return nil
}
