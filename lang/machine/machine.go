// Package machine implements the s0 virtual machine: the memory subsystem
// (stack + heap), the call/return frame protocol, the fetch-decode-execute
// dispatch loop, and the debug surfaces (stack trace, single-step,
// breakpoints) built on top of it. It depends only on lang/bytecode's
// object model, not on lang/compiler, so a module can be loaded and run
// without pulling in code generation.
package machine

import (
	"context"
	"math"
	"strconv"

	"github.com/dolthub/swiss"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
)

// sentinelFnID marks the saved-triple slot planted under function 0's
// frame at load time: a Ret that reads it back has unwound past the root
// frame, i.e. the program finished normally, rather than returned to a
// real caller.
const sentinelFnID = ^uint64(0)

// Machine is one loaded, runnable instance of a module. It owns its
// operand/frame stack and heap exclusively for its lifetime; nothing about
// it is safe for concurrent use, matching spec.md's single-threaded
// execution model.
type Machine struct {
	mod *bytecode.Module
	th  *Thread

	heap  *heap
	stack []uint64

	// globalAddr maps a global id to the heap address Load lays it out at.
	globalAddr []uint64
	// funcByName mirrors lang/compiler's own name-dedup tables: a
	// hash-keyed lookup from a declared function's name to its id, built
	// once at load time and consulted by CallName.
	funcByName *swiss.Map[string, uint32]

	fn     uint32
	ip     int
	bp, sp int

	breakpoints map[Breakpoint]struct{}
}

// Load builds a runnable Machine from mod, laying out its globals in a
// fresh heap and wiring up the entry frame for function 0 ("_start"), per
// spec.md's "Loading" procedure. th supplies I/O streams and execution
// limits; a nil th uses the defaults (os.Stdin/Stdout/Stderr, no step
// limit, default stack and heap sizes).
func Load(mod *bytecode.Module, th *Thread) (*Machine, error) {
	if err := mod.Validate(); err != nil {
		return nil, err
	}
	if len(mod.Functions) == 0 {
		return nil, newError(InvalidFuncID, 0, 0, "module has no functions")
	}
	if th == nil {
		th = &Thread{}
	}
	th.initIO()

	maxHeap := th.MaxHeapBytes
	if maxHeap < 0 {
		maxHeap = 0
	}
	h := newHeap(uint64(maxHeap))
	globalAddr := make([]uint64, len(mod.Globals))
	for i, g := range mod.Globals {
		addr, err := h.place(append([]byte(nil), g.Bytes...))
		if err != nil {
			return nil, err
		}
		globalAddr[i] = addr
	}

	funcByName := swiss.NewMap[string, uint32](uint32(len(mod.Functions)))
	for i, fn := range mod.Functions {
		if int(fn.NameIdx) >= len(mod.Globals) {
			return nil, newError(InvalidGlobalIndex, uint32(i), 0, "name_idx %d out of range", fn.NameIdx)
		}
		funcByName.Put(string(mod.Globals[fn.NameIdx].Bytes), uint32(i))
	}

	maxSlots := th.MaxStackSlots
	if maxSlots <= 0 {
		maxSlots = defaultMaxStackSlots
	}
	stack := make([]uint64, maxSlots)

	fn0 := mod.Functions[0]
	sp := int(fn0.LocSlots) + 3
	if sp > len(stack) {
		return nil, newError(StackOverflow, 0, 0, "entry function's locals exceed stack capacity")
	}
	stack[0], stack[1], stack[2] = sentinelFnID, sentinelFnID, sentinelFnID

	return &Machine{
		mod:        mod,
		th:         th,
		heap:       h,
		stack:      stack,
		globalAddr: globalAddr,
		funcByName: funcByName,
		fn:         0,
		ip:         0,
		bp:         0,
		sp:         sp,
	}, nil
}

// Fn, IP, BP and SP expose the current frame coordinates, for debug
// surfaces built on top of a Machine (see debug.go).
func (m *Machine) Fn() uint32 { return m.fn }
func (m *Machine) IP() int    { return m.ip }
func (m *Machine) BP() int    { return m.bp }
func (m *Machine) SP() int    { return m.sp }

// Run drives the dispatch loop to completion: it steps until the root
// frame returns (success, nil error) or a fault or cancellation occurs.
func (m *Machine) Run(ctx context.Context) error {
	return m.RunToEndInspect(ctx, func(*Machine) bool { return true })
}

// RunToEndInspect steps while pred(m) holds, stopping early (with a nil
// error) the first time pred returns false — the primitive the interactive
// debugger's breakpoint polling and its finish command are built on.
func (m *Machine) RunToEndInspect(ctx context.Context, pred func(*Machine) bool) error {
	m.th.init(ctx)
	defer m.th.stop()

	for pred(m) {
		if m.th.cancelled.Load() {
			return newError(Halt, m.fn, m.ip, "execution cancelled")
		}
		if m.th.steps >= m.th.maxSteps {
			return newError(Halt, m.fn, m.ip, "step limit exceeded")
		}
		m.th.steps++
		_, err := m.Step()
		if err != nil {
			if err == errHalt {
				return nil
			}
			return err
		}
	}
	return nil
}

// Step fetches and executes exactly one instruction, returning the opcode
// it ran. A *haltSignal (unexported, compared via errHalt) means the root
// frame returned: callers that want to keep stepping past it on purpose
// (a debugger standing at the last instruction) can detect it via errors.Is.
func (m *Machine) Step() (bytecode.Op, error) {
	fn := &m.mod.Functions[m.fn]
	if m.ip < 0 || m.ip >= len(fn.Ins) {
		return 0, newError(ControlReachesEnd, m.fn, m.ip, "ip %d past end of %d instructions", m.ip, len(fn.Ins))
	}
	in := fn.Ins[m.ip]
	m.ip++
	if err := m.exec(in, fn); err != nil {
		return in.Op, err
	}
	return in.Op, nil
}

func (m *Machine) push(v uint64) error {
	if m.sp >= len(m.stack) {
		return newError(StackOverflow, m.fn, m.ip, "stack exhausted at depth %d", len(m.stack))
	}
	m.stack[m.sp] = v
	m.sp++
	return nil
}

func (m *Machine) pop() (uint64, error) {
	if m.sp <= 0 {
		return 0, newError(StackUnderflow, m.fn, m.ip, "pop on empty stack")
	}
	m.sp--
	return m.stack[m.sp], nil
}

// pop2 pops the right operand (pushed last, on top) then the left operand
// (pushed first), so callers can write non-commutative ops as left OP
// right, matching evaluation order in lang/compiler's binary().
func (m *Machine) pop2() (left, right uint64, err error) {
	right, err = m.pop()
	if err != nil {
		return
	}
	left, err = m.pop()
	return
}

func (m *Machine) exec(in bytecode.Instr, fn *bytecode.FuncDef) error {
	switch in.Op {
	case bytecode.Nop:
		return nil

	case bytecode.Push:
		return m.push(in.Imm)
	case bytecode.Pop:
		_, err := m.pop()
		return err
	case bytecode.PopN:
		n := int(in.Uint32())
		if m.sp < n {
			return newError(StackUnderflow, m.fn, m.ip, "popn %d on stack of depth %d", n, m.sp)
		}
		m.sp -= n
		return nil
	case bytecode.Dup:
		if m.sp <= 0 {
			return newError(StackUnderflow, m.fn, m.ip, "dup on empty stack")
		}
		return m.push(m.stack[m.sp-1])

	case bytecode.LocA:
		return m.addrLocal(fn, in.Uint32())
	case bytecode.ArgA:
		return m.addrArg(fn, in.Uint32())
	case bytecode.GlobA:
		return m.addrGlobal(in.Uint32())

	case bytecode.Load8, bytecode.Load16, bytecode.Load32, bytecode.Load64:
		return m.doLoad(loadWidthOf(in.Op))
	case bytecode.Store8, bytecode.Store16, bytecode.Store32, bytecode.Store64:
		return m.doStore(loadWidthOf(in.Op))

	case bytecode.Alloc:
		return m.doAlloc()
	case bytecode.Free:
		return m.doFree()
	case bytecode.StackAlloc:
		return m.doStackAlloc(int(in.Uint32()))

	case bytecode.AddI:
		return m.binI(func(l, r int64) int64 { return l + r })
	case bytecode.SubI:
		return m.binI(func(l, r int64) int64 { return l - r })
	case bytecode.MulI:
		return m.binI(func(l, r int64) int64 { return l * r })
	case bytecode.DivI:
		return m.divI()
	case bytecode.DivU:
		return m.divU()
	case bytecode.AddF:
		return m.binF(func(l, r float64) float64 { return l + r })
	case bytecode.SubF:
		return m.binF(func(l, r float64) float64 { return l - r })
	case bytecode.MulF:
		return m.binF(func(l, r float64) float64 { return l * r })
	case bytecode.DivF:
		return m.binF(func(l, r float64) float64 { return l / r })

	case bytecode.Shl:
		return m.binU(func(l, r uint64) uint64 { return l << (r & 0x3f) })
	case bytecode.Shr:
		return m.binU(func(l, r uint64) uint64 { return uint64(int64(l) >> (r & 0x3f)) })
	case bytecode.ShrL:
		return m.binU(func(l, r uint64) uint64 { return l >> (r & 0x3f) })
	case bytecode.And:
		return m.binU(func(l, r uint64) uint64 { return l & r })
	case bytecode.Or:
		return m.binU(func(l, r uint64) uint64 { return l | r })
	case bytecode.Xor:
		return m.binU(func(l, r uint64) uint64 { return l ^ r })
	case bytecode.Not:
		v, err := m.pop()
		if err != nil {
			return err
		}
		if v == 0 {
			return m.push(1)
		}
		return m.push(0)

	case bytecode.CmpI:
		return m.binI(func(l, r int64) int64 { return int64(cmp(l, r)) })
	case bytecode.CmpU:
		return m.binU(func(l, r uint64) uint64 { return uint64(int64(cmp(l, r))) })
	case bytecode.CmpF:
		return m.binF3(func(l, r float64) int64 { return int64(cmp(l, r)) })
	case bytecode.SetLt:
		return m.predicate(func(c int64) bool { return c < 0 })
	case bytecode.SetGt:
		return m.predicate(func(c int64) bool { return c > 0 })

	case bytecode.NegI:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(uint64(-int64(v)))
	case bytecode.NegF:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(math.Float64bits(-math.Float64frombits(v)))
	case bytecode.IToF:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(math.Float64bits(float64(int64(v))))
	case bytecode.FToI:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(uint64(int64(math.Float64frombits(v))))

	case bytecode.BrA:
		return newError(InvalidOpcode, m.fn, m.ip, "bra is reserved and never executable")
	case bytecode.Br:
		return m.branch(in.Int32(), func() (bool, error) { return true, nil })
	case bytecode.BrTrue:
		return m.branch(in.Int32(), func() (bool, error) {
			v, err := m.pop()
			return v != 0, err
		})
	case bytecode.BrFalse:
		return m.branch(in.Int32(), func() (bool, error) {
			v, err := m.pop()
			return v == 0, err
		})

	case bytecode.Call:
		return m.call(in.Uint32())
	case bytecode.CallName:
		return m.callName(in.Uint32())
	case bytecode.Ret:
		return m.ret(fn)

	case bytecode.ScanI:
		return m.doScanI()
	case bytecode.ScanC:
		return m.doScanC()
	case bytecode.ScanF:
		return m.doScanF()
	case bytecode.PrintI:
		return m.doPrintI()
	case bytecode.PrintC:
		return m.doPrintC()
	case bytecode.PrintF:
		return m.doPrintF()
	case bytecode.PrintS:
		return m.doPrintS()
	case bytecode.PrintLn:
		return m.doPrintLn()

	case bytecode.Panic:
		return newError(Halt, m.fn, m.ip, "panic")

	default:
		return newError(InvalidOpcode, m.fn, m.ip, "unknown opcode 0x%02x", uint8(in.Op))
	}
}

func cmp[T int64 | uint64 | float64](l, r T) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func loadWidthOf(op bytecode.Op) int {
	switch op {
	case bytecode.Load8, bytecode.Store8:
		return 1
	case bytecode.Load16, bytecode.Store16:
		return 2
	case bytecode.Load32, bytecode.Store32:
		return 4
	default:
		return 8
	}
}

func (m *Machine) binI(f func(l, r int64) int64) error {
	l, r, err := m.pop2()
	if err != nil {
		return err
	}
	return m.push(uint64(f(int64(l), int64(r))))
}

func (m *Machine) binU(f func(l, r uint64) uint64) error {
	l, r, err := m.pop2()
	if err != nil {
		return err
	}
	return m.push(f(l, r))
}

func (m *Machine) binF(f func(l, r float64) float64) error {
	l, r, err := m.pop2()
	if err != nil {
		return err
	}
	res := f(math.Float64frombits(l), math.Float64frombits(r))
	return m.push(math.Float64bits(res))
}

func (m *Machine) binF3(f func(l, r float64) int64) error {
	l, r, err := m.pop2()
	if err != nil {
		return err
	}
	return m.push(uint64(f(math.Float64frombits(l), math.Float64frombits(r))))
}

func (m *Machine) predicate(f func(c int64) bool) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	if f(int64(v)) {
		return m.push(1)
	}
	return m.push(0)
}

func (m *Machine) divI() error {
	l, r, err := m.pop2()
	if err != nil {
		return err
	}
	ri := int64(r)
	if ri == 0 {
		return newError(DivideByZero, m.fn, m.ip, "divi by zero")
	}
	// Go's division of the most negative int64 by -1 wraps to itself
	// rather than panicking, matching spec.md's explicit "not a trap".
	return m.push(uint64(int64(l) / ri))
}

func (m *Machine) divU() error {
	l, r, err := m.pop2()
	if err != nil {
		return err
	}
	if r == 0 {
		return newError(DivideByZero, m.fn, m.ip, "divu by zero")
	}
	return m.push(l / r)
}

func (m *Machine) addrLocal(fn *bytecode.FuncDef, a uint32) error {
	if a >= fn.LocSlots {
		return newError(InvalidLocalIndex, m.fn, m.ip, "local %d out of range (%d locals)", a, fn.LocSlots)
	}
	return m.push(stackAddr(m.bp + 3 + int(a)))
}

func (m *Machine) addrArg(fn *bytecode.FuncDef, a uint32) error {
	frame := fn.RetSlots + fn.ParamSlots
	if a >= frame {
		return newError(InvalidArgIndex, m.fn, m.ip, "arg %d out of range (%d ret+param slots)", a, frame)
	}
	return m.push(stackAddr(m.bp - int(frame) + int(a)))
}

func (m *Machine) addrGlobal(a uint32) error {
	if int(a) >= len(m.globalAddr) {
		return newError(InvalidGlobalIndex, m.fn, m.ip, "global %d out of range (%d globals)", a, len(m.globalAddr))
	}
	return m.push(m.globalAddr[a])
}

func (m *Machine) doLoad(n int) error {
	addr, err := m.pop()
	if err != nil {
		return err
	}
	v, err := m.readMem(addr, n)
	if err != nil {
		return err
	}
	return m.push(v)
}

func (m *Machine) doStore(n int) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	addr, err := m.pop()
	if err != nil {
		return err
	}
	return m.writeMem(addr, n, v)
}

func (m *Machine) readMem(addr uint64, n int) (uint64, error) {
	if addr%uint64(n) != 0 {
		return 0, newError(UnalignedAccess, m.fn, m.ip, "load%d at unaligned address 0x%x", n*8, addr)
	}
	if isStackAddr(addr) {
		slot, byteOff := stackSlotOf(addr)
		if slot < 0 || slot >= len(m.stack) {
			return 0, newError(InvalidAddress, m.fn, m.ip, "stack address 0x%x out of range", addr)
		}
		return stackExtract(m.stack[slot], byteOff, n), nil
	}
	ent, off, ok := m.heap.lookup(addr)
	if !ok {
		return 0, newError(InvalidAddress, m.fn, m.ip, "unmapped heap address 0x%x", addr)
	}
	v, ok := readWidthN(ent.buf, off, n)
	if !ok {
		return 0, newError(InvalidAddress, m.fn, m.ip, "load%d at 0x%x runs past its buffer", n*8, addr)
	}
	return v, nil
}

func (m *Machine) writeMem(addr uint64, n int, v uint64) error {
	if addr%uint64(n) != 0 {
		return newError(UnalignedAccess, m.fn, m.ip, "store%d at unaligned address 0x%x", n*8, addr)
	}
	if isStackAddr(addr) {
		slot, byteOff := stackSlotOf(addr)
		if slot < 0 || slot >= len(m.stack) {
			return newError(InvalidAddress, m.fn, m.ip, "stack address 0x%x out of range", addr)
		}
		m.stack[slot] = stackInsert(m.stack[slot], byteOff, n, v)
		return nil
	}
	ent, off, ok := m.heap.lookup(addr)
	if !ok {
		return newError(InvalidAddress, m.fn, m.ip, "unmapped heap address 0x%x", addr)
	}
	if !writeWidthN(ent.buf, off, n, v) {
		return newError(InvalidAddress, m.fn, m.ip, "store%d at 0x%x runs past its buffer", n*8, addr)
	}
	return nil
}

func (m *Machine) doAlloc() error {
	size, err := m.pop()
	if err != nil {
		return err
	}
	if size == 0 {
		return newError(AllocZero, m.fn, m.ip, "alloc of size 0")
	}
	if size > math.MaxUint32 {
		return newError(OutOfMemory, m.fn, m.ip, "alloc of size %d exceeds addressable range", size)
	}
	addr, err := m.heap.alloc(uint32(size))
	if err != nil {
		return err
	}
	return m.push(addr)
}

func (m *Machine) doFree() error {
	addr, err := m.pop()
	if err != nil {
		return err
	}
	if isStackAddr(addr) || !m.heap.free(addr) {
		return newError(InvalidFree, m.fn, m.ip, "free of non-allocation address 0x%x", addr)
	}
	return nil
}

func (m *Machine) doStackAlloc(n int) error {
	if n < 0 || m.sp+n > len(m.stack) {
		return newError(StackOverflow, m.fn, m.ip, "stackalloc %d exceeds stack capacity", n)
	}
	for i := 0; i < n; i++ {
		m.stack[m.sp+i] = 0
	}
	m.sp += n
	return nil
}

func (m *Machine) branch(off int32, cond func() (bool, error)) error {
	take, err := cond()
	if err != nil {
		return err
	}
	if !take {
		return nil
	}
	target := m.ip + int(off)
	fn := &m.mod.Functions[m.fn]
	if target < 0 || target > len(fn.Ins) {
		return newError(InvalidAddress, m.fn, m.ip, "branch target %d out of range (%d instructions)", target, len(fn.Ins))
	}
	m.ip = target
	return nil
}

// call implements spec.md's Call/return protocol: note bp'=sp, push the
// caller's (bp, ip, fn_id) triple, allocate the callee's locals, and
// switch frames.
func (m *Machine) call(id uint32) error {
	if int(id) >= len(m.mod.Functions) {
		return newError(InvalidFuncID, m.fn, m.ip, "call target %d out of range", id)
	}
	return m.enterFrame(id)
}

func (m *Machine) enterFrame(id uint32) error {
	callee := &m.mod.Functions[id]
	bp2 := m.sp
	if err := m.push(uint64(m.bp)); err != nil {
		return err
	}
	if err := m.push(uint64(m.ip)); err != nil {
		return err
	}
	if err := m.push(uint64(m.fn)); err != nil {
		return err
	}
	if err := m.doStackAlloc(int(callee.LocSlots)); err != nil {
		return err
	}
	m.fn = id
	m.ip = 0
	m.bp = bp2
	return nil
}

func (m *Machine) callName(globID uint32) error {
	if int(globID) >= len(m.mod.Globals) {
		return newError(InvalidGlobalIndex, m.fn, m.ip, "callname global %d out of range", globID)
	}
	name := string(m.mod.Globals[globID].Bytes)
	if lf, ok := libraryFuncs[name]; ok {
		return lf(m)
	}
	id, ok := m.funcByName.Get(name)
	if !ok {
		return newError(UnknownCallee, m.fn, m.ip, "no function named %q", name)
	}
	return m.enterFrame(id)
}

// ret implements the inverse of enterFrame, per spec.md's frame layout:
// the saved triple at [bp, bp+1, bp+2] restores the caller, and the
// truncation to bp-param_slots drops everything from the arguments
// upward, leaving the caller-reserved return slots as the call's result.
// Unwinding past the sentinel triple planted at load time means the root
// frame returned: normal termination, signalled by errHalt rather than a
// visible *Error.
func (m *Machine) ret(fn *bytecode.FuncDef) error {
	if m.bp+2 >= len(m.stack) {
		return newError(InvalidAddress, m.fn, m.ip, "frame's saved triple at bp=%d is out of range", m.bp)
	}
	savedBP := m.stack[m.bp]
	savedIP := m.stack[m.bp+1]
	savedFnID := m.stack[m.bp+2]

	m.sp = m.bp - int(fn.ParamSlots)
	if m.sp < 0 {
		return newError(InvalidAddress, m.fn, m.ip, "return truncation underflows the stack")
	}

	if savedFnID == sentinelFnID {
		return errHalt
	}
	m.bp = int(savedBP)
	m.ip = int(savedIP)
	m.fn = uint32(savedFnID)
	return nil
}

func (m *Machine) doScanI() error {
	tok, err := m.th.stdin.readToken()
	if err != nil {
		return newError(ScanFailed, m.fn, m.ip, "scani: %v", err)
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return newError(ScanFailed, m.fn, m.ip, "scani: %v", err)
	}
	return m.push(uint64(v))
}

func (m *Machine) doScanF() error {
	tok, err := m.th.stdin.readToken()
	if err != nil {
		return newError(ScanFailed, m.fn, m.ip, "scanf: %v", err)
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return newError(ScanFailed, m.fn, m.ip, "scanf: %v", err)
	}
	return m.push(math.Float64bits(v))
}

func (m *Machine) doScanC() error {
	b, err := m.th.stdin.readByte()
	if err != nil {
		return newError(ScanFailed, m.fn, m.ip, "scanc: %v", err)
	}
	return m.push(uint64(b))
}

func (m *Machine) doPrintI() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	_, err = m.th.stdout.Write([]byte(strconv.FormatInt(int64(v), 10)))
	return err
}

func (m *Machine) doPrintC() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	_, err = m.th.stdout.Write([]byte{byte(v)})
	return err
}

func (m *Machine) doPrintF() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	_, err = m.th.stdout.Write([]byte(strconv.FormatFloat(math.Float64frombits(v), 'f', 6, 64)))
	return err
}

func (m *Machine) doPrintS() error {
	addr, err := m.pop()
	if err != nil {
		return err
	}
	if isStackAddr(addr) {
		return newError(InvalidAddress, m.fn, m.ip, "prints of a stack address 0x%x", addr)
	}
	ent, off, ok := m.heap.lookup(addr)
	if !ok {
		return newError(InvalidAddress, m.fn, m.ip, "prints of unmapped address 0x%x", addr)
	}
	_, err = m.th.stdout.Write(ent.buf[off:])
	return err
}

func (m *Machine) doPrintLn() error {
	_, err := m.th.stdout.Write([]byte("\r\n"))
	return err
}
