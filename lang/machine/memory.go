package machine

import (
	"sort"

	"golang.org/x/exp/constraints"
)

// Address-space layout. A stack address and a heap address are both plain
// uint64 values, distinguished by the high bit: spec.md's bp/sp/ip are
// slot indices, but LocA/ArgA push a *stack address*, not a bare index, so
// Load/Store can dispatch on the same address space GlobA produces for
// globals. stackTag is never a valid heap address since heapBase leaves
// the top half of the address space untouched.
const (
	stackTag = uint64(1) << 63
	heapBase = uint64(0x1000) // low guard page: address 0 is never a valid global

	defaultMaxStackSlots = 131072 // spec.md's default stack capacity, in 8-byte slots
	defaultMaxHeapBytes  = 64 << 20
)

func stackAddr(slot int) uint64 { return stackTag | uint64(slot)*8 }

func isStackAddr(addr uint64) bool { return addr&stackTag != 0 }

func stackSlotOf(addr uint64) (slot, byteOff int) {
	off := addr &^ stackTag
	return int(off / 8), int(off % 8)
}

// heapEntry is one live allocation: a global's storage or the result of a
// dynamic Alloc. entries is kept sorted by addr so Load/Store/Free can find
// the entry owning an arbitrary address with a binary search for "the last
// entry starting at or before addr" — there is no ordered-map type
// anywhere in the example corpus, so a sorted slice plus sort.Search is
// the direct idiomatic substitute (see DESIGN.md).
type heapEntry struct {
	addr uint64
	buf  []byte
}

type heap struct {
	entries []heapEntry
	next    uint64
	limit   uint64
}

func newHeap(maxBytes uint64) *heap {
	if maxBytes == 0 {
		maxBytes = defaultMaxHeapBytes
	}
	return &heap{next: heapBase, limit: heapBase + maxBytes}
}

// place lays out buf as a new heap entry, preserving its initial content,
// and advances the bump allocator to the next 8-byte-aligned address. Used
// at load time to lay out the module's globals in declaration order.
func (h *heap) place(buf []byte) (uint64, error) {
	addr := h.next
	size := roundUp8(uint64(len(buf)))
	if addr+size > h.limit {
		return 0, errOutOfMemory
	}
	h.entries = append(h.entries, heapEntry{addr: addr, buf: buf})
	h.next = addr + size
	return addr, nil
}

// alloc services the Alloc opcode: a fresh zeroed buffer of n bytes.
func (h *heap) alloc(n uint32) (uint64, error) {
	return h.place(make([]byte, n))
}

var errOutOfMemory = &Error{Kind: OutOfMemory}

func roundUp8(n uint64) uint64 { return (n + 7) &^ 7 }

// free removes the entry starting exactly at addr. Partial or unmapped
// addresses are rejected: s0 has no notion of freeing "into the middle" of
// an allocation.
func (h *heap) free(addr uint64) bool {
	i := h.find(addr)
	if i < 0 || h.entries[i].addr != addr {
		return false
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	return true
}

// find returns the index of the last entry whose addr is <= target, or -1
// if every entry starts after target (or there are none).
func (h *heap) find(target uint64) int {
	i := sort.Search(len(h.entries), func(i int) bool { return h.entries[i].addr > target })
	i--
	return i
}

// lookup resolves addr to its owning entry and the in-buffer byte offset,
// or reports ok=false if addr is unmapped or past the entry's end.
func (h *heap) lookup(addr uint64) (e *heapEntry, off int, ok bool) {
	i := h.find(addr)
	if i < 0 {
		return nil, 0, false
	}
	ent := &h.entries[i]
	o := addr - ent.addr
	if o > uint64(len(ent.buf)) {
		return nil, 0, false
	}
	return ent, int(o), true
}

// uintWidth constrains readWidth/writeWidth to the unsigned integer types
// whose size spans exactly the load/store widths s0 supports (1/2/4/8
// bytes); x/exp/constraints.Unsigned backs the single generic helper pair
// in place of four hand-duplicated 8/16/32/64-bit functions.
type uintWidth interface {
	constraints.Unsigned
}

// readWidth reads a little-endian T out of buf at off and zero-extends it
// to uint64. Heap buffers are plain []byte, so unlike the stack's in-slot
// accessor this is a real byte-buffer decode.
func readWidth[T uintWidth](buf []byte, off int) (uint64, bool) {
	var zero T
	size := widthOf(zero)
	if off < 0 || off+size > len(buf) {
		return 0, false
	}
	var v uint64
	for i := size - 1; i >= 0; i-- {
		v = v<<8 | uint64(buf[off+i])
	}
	return v, true
}

// writeWidth stores the low sizeof(T) bytes of v into buf at off, little
// endian.
func writeWidth[T uintWidth](buf []byte, off int, v uint64) bool {
	var zero T
	size := widthOf(zero)
	if off < 0 || off+size > len(buf) {
		return false
	}
	for i := 0; i < size; i++ {
		buf[off+i] = byte(v >> (8 * i))
	}
	return true
}

// readWidthN and writeWidthN dispatch readWidth/writeWidth's generic
// parameter on a runtime byte count (1, 2, 4 or 8), for call sites that
// only know the width as a dynamic Load{N}/Store{N} operand.
func readWidthN(buf []byte, off, n int) (uint64, bool) {
	switch n {
	case 1:
		return readWidth[uint8](buf, off)
	case 2:
		return readWidth[uint16](buf, off)
	case 4:
		return readWidth[uint32](buf, off)
	default:
		return readWidth[uint64](buf, off)
	}
}

func writeWidthN(buf []byte, off, n int, v uint64) bool {
	switch n {
	case 1:
		return writeWidth[uint8](buf, off, v)
	case 2:
		return writeWidth[uint16](buf, off, v)
	case 4:
		return writeWidth[uint32](buf, off, v)
	default:
		return writeWidth[uint64](buf, off, v)
	}
}

func widthOf[T uintWidth](zero T) int {
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}

// stackExtract reads an nbytes-wide field out of an 8-byte stack slot at
// in-slot byte offset byteOff. The stack is a []uint64, not a byte buffer,
// so this shifts and masks rather than decoding bytes.
func stackExtract(slotVal uint64, byteOff, nbytes int) uint64 {
	return (slotVal >> uint(byteOff*8)) & widthMask(nbytes)
}

// stackInsert returns slotVal with its nbytes-wide field at byteOff
// replaced by the low nbytes of v.
func stackInsert(slotVal uint64, byteOff, nbytes int, v uint64) uint64 {
	shift := uint(byteOff * 8)
	mask := widthMask(nbytes)
	return (slotVal &^ (mask << shift)) | ((v & mask) << shift)
}

func widthMask(nbytes int) uint64 {
	if nbytes >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(8*nbytes)) - 1
}
