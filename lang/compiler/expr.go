package compiler

import (
	"math"

	"github.com/BUAA-SE-Compiling/natrium/lang/ast"
	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
	"github.com/BUAA-SE-Compiling/natrium/lang/resolver"
	"github.com/BUAA-SE-Compiling/natrium/lang/token"
	"github.com/BUAA-SE-Compiling/natrium/lang/types"
)

// expr lowers an expression, leaving its value (or, there is none besides
// the side effect, nothing) on the operand stack, and returns its type.
func (fc *funcGen) expr(e ast.Expr) (types.Type, error) {
	switch n := e.(type) {
	case *ast.IdentExpr:
		return fc.identRvalue(n)
	case *ast.LiteralExpr:
		return fc.literal(n)
	case *ast.UnaryExpr:
		return fc.unary(n)
	case *ast.BinaryExpr:
		return fc.binary(n)
	case *ast.AsExpr:
		return fc.asExpr(n)
	case *ast.AssignExpr:
		return fc.assign(n)
	case *ast.CallExpr:
		return fc.call(n)
	default:
		return types.Type{}, newError(TypeMismatch, spanOf(e), "unsupported expression %T", e)
	}
}

func (fc *funcGen) resolveIdent(ident *ast.IdentExpr) (*resolver.Symbol, Place, error) {
	sym, ok := fc.scope.Find(ident.Name)
	if !ok {
		return nil, Place{}, newError(UndefinedName, spanOf(ident), "undefined name %q", ident.Name)
	}
	place, ok := fc.gen.places[sym.ID]
	if !ok {
		return nil, Place{}, newError(UndefinedName, spanOf(ident), "name %q has no storage", ident.Name)
	}
	return sym, place, nil
}

func (fc *funcGen) emitAddr(place Place) {
	switch place.Kind {
	case PlaceLoc:
		fc.emit(bytecode.MakeLocA(place.Index))
	case PlaceArg:
		fc.emit(bytecode.MakeArgA(place.Index))
	case PlaceGlob:
		fc.emit(bytecode.MakeGlobA(place.Index))
	}
}

func (fc *funcGen) identRvalue(n *ast.IdentExpr) (types.Type, error) {
	sym, place, err := fc.resolveIdent(n)
	if err != nil {
		return types.Type{}, err
	}
	fc.emitAddr(place)
	if sym.Type.Kind == types.Void {
		fc.emit(bytecode.Instr{Op: bytecode.Pop})
	} else {
		fc.emit(bytecode.Instr{Op: bytecode.Load64})
	}
	return sym.Type, nil
}

func (fc *funcGen) literal(n *ast.LiteralExpr) (types.Type, error) {
	switch n.Kind {
	case ast.IntLit:
		v, ok := n.Value.(int64)
		if !ok {
			return types.Type{}, newError(TypeMismatch, spanOf(n), "malformed int literal %q", n.Raw)
		}
		fc.emit(bytecode.MakePush(uint64(v)))
		return types.Scalar(types.Int), nil
	case ast.CharLit:
		r, ok := n.Value.(rune)
		if !ok {
			return types.Type{}, newError(TypeMismatch, spanOf(n), "malformed char literal %q", n.Raw)
		}
		fc.emit(bytecode.MakePush(uint64(r)))
		return types.Scalar(types.Int), nil
	case ast.FloatLit:
		f, ok := n.Value.(float64)
		if !ok {
			return types.Type{}, newError(TypeMismatch, spanOf(n), "malformed float literal %q", n.Raw)
		}
		fc.emit(bytecode.MakePush(math.Float64bits(f)))
		return types.Scalar(types.Double), nil
	case ast.StringLit:
		s, ok := n.Value.(string)
		if !ok {
			return types.Type{}, newError(TypeMismatch, spanOf(n), "malformed string literal %q", n.Raw)
		}
		gi := fc.gen.addGlobal(bytecode.Global{IsConst: true, Bytes: []byte(s)})
		fc.emit(bytecode.MakeGlobA(gi))
		return types.Scalar(types.Addr), nil
	default:
		return types.Type{}, newError(TypeMismatch, spanOf(n), "unknown literal kind %d", n.Kind)
	}
}

func (fc *funcGen) unary(n *ast.UnaryExpr) (types.Type, error) {
	ty, err := fc.expr(n.X)
	if err != nil {
		return types.Type{}, err
	}
	switch n.OpToken {
	case token.UPLUS:
		if ty.Kind != types.Int && ty.Kind != types.Double {
			return types.Type{}, newError(InvalidCalculation, spanOf(n), "unary + requires int or double, got %s", ty)
		}
		return ty, nil
	case token.UMINUS:
		switch ty.Kind {
		case types.Int:
			fc.emit(bytecode.Instr{Op: bytecode.NegI})
		case types.Double:
			fc.emit(bytecode.Instr{Op: bytecode.NegF})
		default:
			return types.Type{}, newError(InvalidCalculation, spanOf(n), "unary - requires int or double, got %s", ty)
		}
		return ty, nil
	default:
		return types.Type{}, newError(TypeMismatch, spanOf(n), "unsupported unary operator %s", n.OpToken)
	}
}

func (fc *funcGen) binary(n *ast.BinaryExpr) (types.Type, error) {
	lt, err := fc.expr(n.Left)
	if err != nil {
		return types.Type{}, err
	}
	rt, err := fc.expr(n.Right)
	if err != nil {
		return types.Type{}, err
	}
	if !lt.Equal(rt) {
		return types.Type{}, newTypeMismatch(spanOf(n), lt.String(), rt.String())
	}

	switch {
	case n.OpToken.IsArithmetic():
		if !lt.Kind.IsNumeric() {
			return types.Type{}, newError(InvalidCalculation, spanOf(n), "arithmetic requires int, addr or double, got %s", lt)
		}
		fc.emit(arithInstr(n.OpToken, lt.Kind))
		return lt, nil
	case n.OpToken.IsComparison():
		if !lt.Kind.IsNumeric() {
			return types.Type{}, newError(InvalidCalculation, spanOf(n), "comparison requires int, addr or double, got %s", lt)
		}
		fc.emitComparison(n.OpToken, lt.Kind)
		return types.Scalar(types.Bool), nil
	default:
		return types.Type{}, newError(TypeMismatch, spanOf(n), "unsupported binary operator %s", n.OpToken)
	}
}

func arithInstr(op token.Token, kind types.Kind) bytecode.Instr {
	isFloat := kind == types.Double
	switch op {
	case token.PLUS:
		if isFloat {
			return bytecode.Instr{Op: bytecode.AddF}
		}
		return bytecode.Instr{Op: bytecode.AddI}
	case token.MINUS:
		if isFloat {
			return bytecode.Instr{Op: bytecode.SubF}
		}
		return bytecode.Instr{Op: bytecode.SubI}
	case token.STAR:
		if isFloat {
			return bytecode.Instr{Op: bytecode.MulF}
		}
		return bytecode.Instr{Op: bytecode.MulI}
	default: // token.SLASH
		if isFloat {
			return bytecode.Instr{Op: bytecode.DivF}
		}
		return bytecode.Instr{Op: bytecode.DivI}
	}
}

// emitComparison lowers a.<op>.b given both operands already pushed: a
// Cmp opcode (-1/0/+1) followed by the predicate-set/negate sequence that
// reduces it to the zero-test boolean convention lang/machine's branches
// use. The specific post-Cmp sequence per token is this package's own
// resolution of the comparison table (see DESIGN.md).
func (fc *funcGen) emitComparison(op token.Token, kind types.Kind) {
	cmpOp := bytecode.CmpI
	if kind == types.Double {
		cmpOp = bytecode.CmpF
	}
	fc.emit(bytecode.Instr{Op: cmpOp})
	switch op {
	case token.LT:
		fc.emit(bytecode.Instr{Op: bytecode.SetLt})
	case token.GT:
		fc.emit(bytecode.Instr{Op: bytecode.SetGt})
	case token.LE:
		fc.emit(bytecode.Instr{Op: bytecode.SetGt})
		fc.emit(bytecode.Instr{Op: bytecode.Not})
	case token.GE:
		fc.emit(bytecode.Instr{Op: bytecode.SetLt})
		fc.emit(bytecode.Instr{Op: bytecode.Not})
	case token.EQL:
		fc.emit(bytecode.Instr{Op: bytecode.Not})
	case token.NEQ:
		// The raw -1/0/+1 Cmp result is already the boolean r0's zero-test
		// convention wants: non-zero means "differs".
	}
}

func (fc *funcGen) asExpr(n *ast.AsExpr) (types.Type, error) {
	fromTy, err := fc.expr(n.X)
	if err != nil {
		return types.Type{}, err
	}
	toTy, err := resolveTypeExpr(n.Type)
	if err != nil {
		return types.Type{}, err
	}
	switch types.ConversionFor(fromTy, toTy) {
	case types.ToDouble:
		fc.emit(bytecode.Instr{Op: bytecode.IToF})
	case types.ToInt:
		fc.emit(bytecode.Instr{Op: bytecode.FToI})
	case types.NoConversion:
		// nothing to emit
	default:
		return types.Type{}, newError(InvalidCalculation, spanOf(n), "cannot convert %s to %s", fromTy, toTy)
	}
	return toTy, nil
}

func (fc *funcGen) assign(n *ast.AssignExpr) (types.Type, error) {
	ident, ok := n.Left.(*ast.IdentExpr)
	if !ok {
		return types.Type{}, newError(NotLValue, spanOf(n.Left), "assignment target must be a plain identifier")
	}
	sym, place, err := fc.resolveIdent(ident)
	if err != nil {
		return types.Type{}, err
	}
	if sym.IsConst {
		return types.Type{}, newError(TypeMismatch, spanOf(ident), "cannot assign to const %q", ident.Name)
	}
	fc.emitAddr(place)
	rt, err := fc.expr(n.Right)
	if err != nil {
		return types.Type{}, err
	}
	if !rt.Equal(sym.Type) {
		return types.Type{}, newTypeMismatch(spanOf(n.Right), sym.Type.String(), rt.String())
	}
	if sym.Type.Kind == types.Void {
		fc.emit(bytecode.Instr{Op: bytecode.Pop})
	} else {
		fc.emit(bytecode.Instr{Op: bytecode.Store64})
	}
	return types.Scalar(types.Void), nil
}

func (fc *funcGen) call(n *ast.CallExpr) (types.Type, error) {
	sym, ok := fc.scope.Find(n.Fn.Name)
	if !ok {
		return types.Type{}, newError(UndefinedName, spanOf(n.Fn), "undefined function %q", n.Fn.Name)
	}
	if sym.Type.Kind != types.Func {
		return types.Type{}, newError(NotAFunction, spanOf(n.Fn), "%q is not a function", n.Fn.Name)
	}
	if len(n.Args) != len(sym.Type.Params) {
		return types.Type{}, newError(ArityMismatch, spanOf(n), "%q expects %d arguments, got %d", n.Fn.Name, len(sym.Type.Params), len(n.Args))
	}
	// Reserve the callee's return-slot space below its arguments before
	// evaluating them: the VM's call protocol expects $ret's storage to
	// already be on the stack at the address ArgA(0) computes, since a
	// return statement only stores through that address, and Ret discards
	// the arguments, the saved triple and the locals, leaving the reserved
	// ret slots as the call expression's result.
	retSlots := sym.Type.Ret.Kind.SlotsOf()
	for i := 0; i < retSlots; i++ {
		fc.emit(bytecode.MakePush(0))
	}
	for i, arg := range n.Args {
		at, err := fc.expr(arg)
		if err != nil {
			return types.Type{}, err
		}
		if !at.Equal(sym.Type.Params[i]) {
			return types.Type{}, newTypeMismatch(spanOf(arg), sym.Type.Params[i].String(), at.String())
		}
	}
	if id, ok := fc.gen.funcIDs.Get(n.Fn.Name); ok {
		fc.emit(bytecode.MakeCall(id))
	} else {
		fc.emit(bytecode.MakeCallName(fc.gen.addStringGlobal(n.Fn.Name)))
	}
	ret := types.Scalar(types.Void)
	if sym.Type.Ret != nil {
		ret = *sym.Type.Ret
	}
	return ret, nil
}
