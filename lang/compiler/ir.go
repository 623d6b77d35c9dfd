// Package compiler implements the r0 code generator: it lowers an
// ast.Program, using lang/resolver for scope management and lang/types for
// type checking, into a bytecode.Module — through an intermediate
// basic-block IR with symbolic jump targets that the block arranger
// (arrange.go) linearizes into concrete branch offsets.
package compiler

import (
	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

// TermKind is the kind of a basic block's terminator.
type TermKind uint8

const (
	// Undefined is the terminator of a freshly allocated block that has not
	// been closed off yet. A block reaching block-arrangement with this
	// terminator still set is a code generator bug (NotAllRoutesReturn).
	Undefined TermKind = iota
	// Unreachable marks a block the generator knows can never be entered.
	// It must never appear in the arranger's visitation order.
	Unreachable
	// Return ends the function: the value (if any) has already been stored
	// through the $ret place.
	Return
	// Jump transfers unconditionally to Target.
	Jump
	// JumpIf transfers to True if the top-of-stack comparison result is
	// non-zero (per the "equal-to-zero = false" convention, see
	// lang/machine), otherwise to False.
	JumpIf
)

// Terminator closes a basic block.
type Terminator struct {
	Kind        TermKind
	Target      int // block index, for Jump
	True, False int // block indices, for JumpIf
}

// Block is one basic block: a straight-line sequence of instructions ended
// by a Terminator naming its successor block(s) by index.
type Block struct {
	Ins  []bytecode.Instr
	Term Terminator
}

// FuncIR is a function body during code generation: a list of basic
// blocks, block 0 being the entry. Span is the source span of the function
// declaration this IR lowers, attached to any NotAllRoutesReturn error the
// block arranger reports against it; it is the zero Span for synthetic
// functions (e.g. _start) that have no source location of their own.
type FuncIR struct {
	Blocks []*Block
	Span   token.Span
}

// NewFuncIR returns a FuncIR with a single, empty entry block.
func NewFuncIR(sp token.Span) *FuncIR {
	return &FuncIR{Blocks: []*Block{{}}, Span: sp}
}

// NewBlock allocates a fresh block with an Undefined terminator and
// returns its index.
func (f *FuncIR) NewBlock() int {
	f.Blocks = append(f.Blocks, &Block{})
	return len(f.Blocks) - 1
}

// Emit appends an instruction to block b.
func (f *FuncIR) Emit(b int, in bytecode.Instr) {
	f.Blocks[b].Ins = append(f.Blocks[b].Ins, in)
}

// SetJump closes block b with an unconditional Jump to target.
func (f *FuncIR) SetJump(b, target int) {
	f.Blocks[b].Term = Terminator{Kind: Jump, Target: target}
}

// SetJumpIf closes block b with a JumpIf to trueB/falseB.
func (f *FuncIR) SetJumpIf(b, trueB, falseB int) {
	f.Blocks[b].Term = Terminator{Kind: JumpIf, True: trueB, False: falseB}
}

// SetReturn closes block b with Return.
func (f *FuncIR) SetReturn(b int) {
	f.Blocks[b].Term = Terminator{Kind: Return}
}

// SetUnreachable marks b as a block the generator guarantees is never
// entered (e.g. the block following a return, break or continue, or an
// if's end block when every branch terminates).
func (f *FuncIR) SetUnreachable(b int) {
	f.Blocks[b].Term = Terminator{Kind: Unreachable}
}
