// Package resolver implements r0's scope and symbol manager: nested lexical
// scopes with monotonically-allocated symbol ids, as described by spec.md
// section 4.4. It has none of the closure/free-variable machinery a
// dynamic-language resolver needs, since r0 functions do not nest and have
// no cells: just a parent chain and name lookup.
package resolver

import (
	"github.com/dolthub/swiss"

	"github.com/BUAA-SE-Compiling/natrium/lang/types"
)

// Symbol is the information recorded for a declared name: its compile-time
// identity (Id, allocated monotonically across the whole compilation unit),
// its type, and whether it was declared const.
type Symbol struct {
	ID       int
	Name     string
	Type     types.Type
	IsConst  bool
	IsGlobal bool
}

// IDGen allocates symbol ids. A single generator is shared by every Scope
// descended from the same root, so ids stay monotonic across the whole
// compilation unit even though scopes themselves nest and close.
type IDGen struct {
	next int
}

// NewIDGen returns a generator starting at 0.
func NewIDGen() *IDGen { return &IDGen{} }

// Next allocates and returns the next id.
func (g *IDGen) Next() int {
	id := g.next
	g.next++
	return id
}

// Scope is one lexical scope: the global scope, a function body, or a
// nested block. Symbols declared in deeper scopes shadow (but do not
// remove) symbols of the same name in an ancestor scope.
type Scope struct {
	parent   *Scope
	gen      *IDGen
	isGlobal bool
	symbols  *swiss.Map[string, *Symbol]
}

// NewRoot creates the outermost scope of a compilation unit, backed by gen.
// The root scope is the global scope: symbols inserted into it are marked
// IsGlobal.
func NewRoot(gen *IDGen) *Scope {
	return &Scope{gen: gen, isGlobal: true, symbols: swiss.NewMap[string, *Symbol](8)}
}

// NewChild opens a nested scope under s, e.g. for a function body or a
// block. The child shares s's id generator.
func (s *Scope) NewChild() *Scope {
	return &Scope{parent: s, gen: s.gen, symbols: swiss.NewMap[string, *Symbol](8)}
}

// Find looks up name starting at s and walking up through ancestor scopes,
// returning the nearest (most deeply nested) binding.
func (s *Scope) Find(name string) (*Symbol, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols.Get(name); ok {
			return sym, true
		}
	}
	return nil, false
}

// FindWithGlobalFlag is Find, additionally reporting whether the binding
// found lives in the root (global) scope.
func (s *Scope) FindWithGlobalFlag(name string) (sym *Symbol, isGlobal, ok bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols.Get(name); ok {
			return sym, sc.isGlobal, true
		}
	}
	return nil, false, false
}

// Insert declares name in s with the given type and constness, allocating a
// fresh id from the shared generator. It returns (nil, false) if name is
// already declared in this exact scope — redefinition within a single
// scope is an error — but succeeds if name merely shadows a binding in an
// ancestor scope.
func (s *Scope) Insert(name string, ty types.Type, isConst bool) (*Symbol, bool) {
	if _, exists := s.symbols.Get(name); exists {
		return nil, false
	}
	sym := &Symbol{ID: s.gen.Next(), Name: name, Type: ty, IsConst: isConst, IsGlobal: s.isGlobal}
	s.symbols.Put(name, sym)
	return sym, true
}

// IsGlobal reports whether s is the root scope.
func (s *Scope) IsGlobal() bool { return s.isGlobal }

// Parent returns the enclosing scope, or nil for the root.
func (s *Scope) Parent() *Scope { return s.parent }
