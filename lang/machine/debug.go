package machine

import (
	"context"
	"fmt"
	"sort"
)

// Breakpoint identifies one instruction a debug session wants to stop
// before executing: a function id and an instruction index within it.
type Breakpoint struct {
	Fn uint32
	IP int
}

// Frame is one entry of a stack trace: the function a call was standing
// in, and the instruction index it was at.
type Frame struct {
	FnID   uint32
	FnName string
	IP     int
}

// StackTrace walks the saved-triple chain from the current frame down to
// the sentinel planted under function 0 at load time. Corruption (a bp
// that no longer points at a valid saved triple) truncates the trace
// rather than raising, per spec.md's "reported without raising".
func (m *Machine) StackTrace() []Frame {
	frames := []Frame{{FnID: m.fn, FnName: m.funcName(m.fn), IP: m.ip}}
	bp := m.bp
	for {
		if bp < 0 || bp+2 >= len(m.stack) {
			return frames
		}
		savedFnID := m.stack[bp+2]
		if savedFnID == sentinelFnID {
			return frames
		}
		savedBP := m.stack[bp]
		savedIP := m.stack[bp+1]
		fn := uint32(savedFnID)
		frames = append(frames, Frame{FnID: fn, FnName: m.funcName(fn), IP: int(savedIP)})
		bp = int(savedBP)
	}
}

func (m *Machine) funcName(id uint32) string {
	if int(id) >= len(m.mod.Functions) {
		return ""
	}
	nameIdx := m.mod.Functions[id].NameIdx
	if int(nameIdx) >= len(m.mod.Globals) {
		return ""
	}
	return string(m.mod.Globals[nameIdx].Bytes)
}

// DebugFrameInfo is the reconstructed state of one ancestor frame, as
// produced by DebugFrame.
type DebugFrameInfo struct {
	SP, BP int
	FnID   uint32
	FnName string
	IP     int
}

// DebugFrame reconstructs {sp, bp, fn_info} for the k-th caller (k=0 is
// the current frame) by walking the saved-triple chain k times. A
// caller's sp at the moment of its Call is exactly the callee frame's bp,
// so each step records the outgoing bp as the next frame's sp before
// following the saved triple.
func (m *Machine) DebugFrame(k int) (DebugFrameInfo, error) {
	if k < 0 {
		return DebugFrameInfo{}, fmt.Errorf("machine: negative frame index %d", k)
	}
	fn, ip, bp, sp := m.fn, m.ip, m.bp, m.sp
	for i := 0; i < k; i++ {
		if bp < 0 || bp+2 >= len(m.stack) {
			return DebugFrameInfo{}, fmt.Errorf("machine: frame %d: chain ends at depth %d", k, i)
		}
		savedFnID := m.stack[bp+2]
		if savedFnID == sentinelFnID {
			return DebugFrameInfo{}, fmt.Errorf("machine: frame %d: only %d frames on the stack", k, i+1)
		}
		sp = bp
		ip = int(m.stack[bp+1])
		bp = int(m.stack[bp])
		fn = uint32(savedFnID)
	}
	return DebugFrameInfo{SP: sp, BP: bp, FnID: fn, FnName: m.funcName(fn), IP: ip}, nil
}

// AddBreakpoint arms bp; RemoveBreakpoint disarms it. ListBreakpoints
// returns the armed set in a stable order, for the CLI's
// list-breakpoints command.
func (m *Machine) AddBreakpoint(bp Breakpoint) {
	if m.breakpoints == nil {
		m.breakpoints = make(map[Breakpoint]struct{})
	}
	m.breakpoints[bp] = struct{}{}
}

func (m *Machine) RemoveBreakpoint(bp Breakpoint) {
	delete(m.breakpoints, bp)
}

func (m *Machine) ListBreakpoints() []Breakpoint {
	out := make([]Breakpoint, 0, len(m.breakpoints))
	for bp := range m.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fn != out[j].Fn {
			return out[i].Fn < out[j].Fn
		}
		return out[i].IP < out[j].IP
	})
	return out
}

// AtBreakpoint reports whether the machine is standing at an armed
// breakpoint, about to execute it.
func (m *Machine) AtBreakpoint() bool {
	_, ok := m.breakpoints[Breakpoint{Fn: m.fn, IP: m.ip}]
	return ok
}

// Continue runs until the next breakpoint or normal termination: it steps
// once unconditionally (so a breakpoint the machine is already standing
// on doesn't re-trigger immediately), then runs while no breakpoint is
// armed at the current position.
func (m *Machine) Continue(ctx context.Context) error {
	if _, err := m.Step(); err != nil {
		if err == errHalt {
			return nil
		}
		return err
	}
	return m.RunToEndInspect(ctx, func(mm *Machine) bool { return !mm.AtBreakpoint() })
}
