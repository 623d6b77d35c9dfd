package compiler

import (
	"fmt"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

// Arrange linearizes a function's basic-block graph into a single
// instruction stream with concrete branch offsets. It implements the
// topological block-ordering pass: a first DFS computes each block's
// in-degree while ignoring back-edges (so loops don't inflate the count),
// then a second DFS emits a block as soon as its in-degree reaches zero,
// decrementing-but-not-forcing emission on back-edges.
func Arrange(f *FuncIR) ([]bytecode.Instr, error) {
	n := len(f.Blocks)
	if n == 0 {
		return nil, nil
	}

	indeg := make([]int, n)
	onPath := make([]bool, n)
	seen1 := make([]bool, n)

	var dfs1 func(i int) error
	dfs1 = func(i int) error {
		if seen1[i] {
			return nil
		}
		seen1[i] = true
		onPath[i] = true
		for _, s := range successors(f.Blocks[i]) {
			if onPath[s] {
				continue // back-edge: does not count toward in-degree
			}
			indeg[s]++
			if err := dfs1(s); err != nil {
				return err
			}
		}
		onPath[i] = false
		return nil
	}
	if err := dfs1(0); err != nil {
		return nil, err
	}

	order := make([]int, 0, n)
	emitted := make([]bool, n)
	var dfs2 func(i int) error
	dfs2 = func(i int) error {
		if emitted[i] {
			return nil
		}
		if f.Blocks[i].Term.Kind == Unreachable {
			return fmt.Errorf("compiler: internal error: visited an Unreachable block")
		}
		if f.Blocks[i].Term.Kind == Undefined {
			return newNotAllRoutesReturn(f.Span)
		}
		emitted[i] = true
		order = append(order, i)
		for _, s := range successors(f.Blocks[i]) {
			indeg[s]--
			if indeg[s] <= 0 && !emitted[s] {
				if err := dfs2(s); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := dfs2(0); err != nil {
		return nil, err
	}

	// Any block unreachable from the entry (dead code the front end never
	// produces, but guard anyway) is simply dropped: nothing jumps to it.

	// Pass 1: compute the instruction-index each ordered block starts at.
	start := make([]int, n)
	pos := 0
	for _, b := range order {
		start[b] = pos
		pos += len(f.Blocks[b].Ins) + termWidth(f.Blocks[b].Term)
	}

	// Pass 2: emit instructions, translating terminators to concrete
	// offsets relative to the instruction following the branch.
	out := make([]bytecode.Instr, 0, pos)
	for _, b := range order {
		blk := f.Blocks[b]
		out = append(out, blk.Ins...)
		switch blk.Term.Kind {
		case Return:
			out = append(out, bytecode.Instr{Op: bytecode.Ret})
		case Jump:
			off := int32(start[blk.Term.Target] - (len(out) + 1))
			out = append(out, bytecode.MakeBr(off))
		case JumpIf:
			// BrTrue falls through to a Br for the false branch: relative
			// offsets are computed from the position following each branch
			// instruction individually.
			trueOff := int32(start[blk.Term.True] - (len(out) + 1))
			out = append(out, bytecode.MakeBrTrue(trueOff))
			falseOff := int32(start[blk.Term.False] - (len(out) + 1))
			out = append(out, bytecode.MakeBr(falseOff))
		}
	}
	return out, nil
}

func successors(b *Block) []int {
	switch b.Term.Kind {
	case Jump:
		return []int{b.Term.Target}
	case JumpIf:
		return []int{b.Term.True, b.Term.False}
	default:
		return nil
	}
}

func termWidth(t Terminator) int {
	switch t.Kind {
	case Return, Jump:
		return 1
	case JumpIf:
		return 2
	default:
		return 0
	}
}
