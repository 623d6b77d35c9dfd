package compiler

import (
	"github.com/dolthub/swiss"

	"github.com/BUAA-SE-Compiling/natrium/lang/ast"
	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
	"github.com/BUAA-SE-Compiling/natrium/lang/resolver"
	"github.com/BUAA-SE-Compiling/natrium/lang/token"
	"github.com/BUAA-SE-Compiling/natrium/lang/types"
)

// libraryFunc describes one of the built-in I/O intrinsics seeded into the
// global scope before a program's own declarations are processed.
type libraryFunc struct {
	name   string
	params []types.Type
	ret    types.Type
}

var libraryFuncs = []libraryFunc{
	{"putint", []types.Type{types.Scalar(types.Int)}, types.Scalar(types.Void)},
	{"putdouble", []types.Type{types.Scalar(types.Double)}, types.Scalar(types.Void)},
	{"putfloat", []types.Type{types.Scalar(types.Double)}, types.Scalar(types.Void)},
	{"putchar", []types.Type{types.Scalar(types.Int)}, types.Scalar(types.Void)},
	{"putstr", []types.Type{types.Scalar(types.Addr)}, types.Scalar(types.Void)},
	{"putln", nil, types.Scalar(types.Void)},
	{"getchar", nil, types.Scalar(types.Int)},
	{"getint", nil, types.Scalar(types.Int)},
	{"getdouble", nil, types.Scalar(types.Double)},
}

// PlaceKind distinguishes where a symbol's storage lives.
type PlaceKind uint8

const (
	PlaceArg PlaceKind = iota
	PlaceLoc
	PlaceGlob
)

// Place records where a declared symbol lives: a slot offset within the
// current frame's argument/return area, a slot offset within its locals
// area, or an index into the module's global table.
type Place struct {
	Kind  PlaceKind
	Index uint32
}

// Generate compiles prog into a bytecode.Module. It performs full type
// checking as it walks the tree and reports the first error found.
func Generate(prog *ast.Program) (*bytecode.Module, error) {
	g := &gen{
		root:         resolver.NewRoot(resolver.NewIDGen()),
		places:       make(map[int]Place),
		funcIDs:      swiss.NewMap[string, uint32](8),
		stringConsts: swiss.NewMap[string, uint32](8),
	}
	return g.program(prog)
}

type gen struct {
	root    *resolver.Scope
	places  map[int]Place
	globals []bytecode.Global
	// funcIDs maps a declared function's name to its function id, so calls
	// to statically-known functions can emit Call directly instead of going
	// through CallName's runtime name lookup. A swiss.Map, like the teacher
	// reaches for whenever it needs a hash-keyed lookup table, rather than a
	// built-in map.
	funcIDs *swiss.Map[string, uint32]
	// stringConsts de-duplicates name globals keyed by their exact content:
	// a library-intrinsic name referenced by several call sites does not grow
	// the globals table once per call. String literals do not go through it;
	// each one gets its own global.
	stringConsts *swiss.Map[string, uint32]
	defs         []bytecode.FuncDef // index 0 reserved for _start until filled in
}

func (g *gen) addGlobal(gl bytecode.Global) uint32 {
	g.globals = append(g.globals, gl)
	return uint32(len(g.globals) - 1)
}

// addStringGlobal interns s as a const byte-blob global, reusing an
// existing entry if s was already added (as a function name or a prior
// call-by-name reference).
func (g *gen) addStringGlobal(s string) uint32 {
	if id, ok := g.stringConsts.Get(s); ok {
		return id
	}
	id := g.addGlobal(bytecode.Global{IsConst: true, Bytes: []byte(s)})
	g.stringConsts.Put(s, id)
	return id
}

func (g *gen) program(prog *ast.Program) (*bytecode.Module, error) {
	for _, lf := range libraryFuncs {
		ty := types.FuncType(lf.params, lf.ret)
		if _, ok := g.root.Insert(lf.name, ty, true); !ok {
			return nil, newError(Redefinition, token.Span{}, "library function %q", lf.name)
		}
	}

	// Reserve function id 0 for _start; user functions are numbered from 1
	// in declaration order.
	g.defs = make([]bytecode.FuncDef, 1)
	for i, fn := range prog.Funcs {
		id := uint32(i + 1)
		params := make([]types.Type, len(fn.Params))
		for pi, p := range fn.Params {
			ty, err := resolveTypeExpr(p.Type)
			if err != nil {
				return nil, err
			}
			params[pi] = ty
		}
		ret := types.Scalar(types.Void)
		if fn.Ret != nil {
			var err error
			ret, err = resolveTypeExpr(fn.Ret)
			if err != nil {
				return nil, err
			}
		}
		if _, ok := g.root.Insert(fn.Name, types.FuncType(params, ret), true); !ok {
			return nil, newError(Redefinition, spanOf(fn), "function %q", fn.Name)
		}
		g.funcIDs.Put(fn.Name, id)
	}

	// Top-level declarations: each becomes a zero-initialized global.
	var startInit []*ast.DeclStmt
	for _, d := range prog.Decls {
		ty, err := resolveTypeExpr(d.Type)
		if err != nil {
			return nil, err
		}
		gi := g.addGlobal(bytecode.Global{IsConst: d.IsConst, Bytes: make([]byte, ty.Kind.Sizeof())})
		sym, ok := g.root.Insert(d.Name, ty, d.IsConst)
		if !ok {
			return nil, newError(Redefinition, spanOf(d), "global %q", d.Name)
		}
		g.places[sym.ID] = Place{Kind: PlaceGlob, Index: gi}
		if d.Init != nil {
			startInit = append(startInit, d)
		}
	}

	for i, fn := range prog.Funcs {
		def, err := g.function(fn)
		if err != nil {
			return nil, err
		}
		g.defs[i+1] = *def
	}

	startDef, err := g.synthesizeStart(startInit)
	if err != nil {
		return nil, err
	}
	g.defs[0] = *startDef

	m := &bytecode.Module{Globals: g.globals, Functions: g.defs}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// synthesizeStart builds function 0's body: each top-level decl with an
// initializer, evaluated in declaration order, then a call to main().
func (g *gen) synthesizeStart(decls []*ast.DeclStmt) (*bytecode.FuncDef, error) {
	nameIdx := g.addStringGlobal("_start")
	fc := &funcGen{gen: g, ir: NewFuncIR(token.Span{}), scope: g.root, retType: types.Scalar(types.Void)}
	fc.block = 0
	for _, d := range decls {
		if err := fc.globalInit(d); err != nil {
			return nil, err
		}
	}

	mainSym, ok := g.root.Find("main")
	if !ok {
		return nil, newError(UndefinedName, token.Span{}, "program has no main function")
	}
	if mainSym.Type.Kind != types.Func {
		return nil, newError(NotAFunction, token.Span{}, "main is not a function")
	}
	if len(mainSym.Type.Params) != 0 {
		return nil, newError(ArityMismatch, token.Span{}, "main must take no parameters")
	}
	if id, ok := g.funcIDs.Get("main"); ok {
		fc.ir.Emit(fc.block, bytecode.MakeCall(id))
	} else {
		fc.ir.Emit(fc.block, bytecode.MakeCallName(g.addStringGlobal("main")))
	}
	fc.ir.SetReturn(fc.block)

	ins, err := Arrange(fc.ir)
	if err != nil {
		return nil, err
	}
	return &bytecode.FuncDef{NameIdx: nameIdx, RetSlots: 0, ParamSlots: 0, LocSlots: uint32(fc.locTop), Ins: ins}, nil
}

// function compiles a single top-level function declaration.
func (g *gen) function(fn *ast.FuncStmt) (*bytecode.FuncDef, error) {
	nameIdx := g.addStringGlobal(fn.Name)
	scope := g.root.NewChild()

	ret := types.Scalar(types.Void)
	if fn.Ret != nil {
		var err error
		ret, err = resolveTypeExpr(fn.Ret)
		if err != nil {
			return nil, err
		}
	}

	// $ret and parameters are Arg(...) in declaration order, offsets in
	// slot units; $ret occupies the low slots when non-void.
	retSlots := ret.Kind.SlotsOf()
	argOff := uint32(retSlots)
	for _, p := range fn.Params {
		ty, err := resolveTypeExpr(p.Type)
		if err != nil {
			return nil, err
		}
		sym, ok := scope.Insert(p.Name, ty, false)
		if !ok {
			return nil, newError(Redefinition, spanOf(p), "parameter %q", p.Name)
		}
		g.places[sym.ID] = Place{Kind: PlaceArg, Index: argOff}
		argOff += uint32(ty.Kind.SlotsOf())
	}

	fc := &funcGen{gen: g, ir: NewFuncIR(spanOf(fn)), retType: ret}
	fc.block = 0
	fc.scope = scope
	if err := fc.lowerBlock(fn.Body); err != nil {
		return nil, err
	}
	if fc.ir.Blocks[fc.block].Term.Kind == Undefined {
		if ret.Kind != types.Void {
			return nil, newNotAllRoutesReturn(spanOf(fn))
		}
		fc.ir.SetReturn(fc.block)
	}

	ins, err := Arrange(fc.ir)
	if err != nil {
		return nil, err
	}
	return &bytecode.FuncDef{
		NameIdx:    nameIdx,
		RetSlots:   uint32(retSlots),
		ParamSlots: argOff - uint32(retSlots),
		LocSlots:   uint32(fc.locTop),
		Ins:        ins,
	}, nil
}

func resolveTypeExpr(te *ast.TypeExpr) (types.Type, error) {
	switch te.Name {
	case "int":
		return types.Scalar(types.Int), nil
	case "double":
		return types.Scalar(types.Double), nil
	case "void":
		return types.Scalar(types.Void), nil
	default:
		return types.Type{}, newError(UnknownType, spanOf(te), "unknown type %q", te.Name)
	}
}
