package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mna/mainer"
	"gopkg.in/yaml.v3"

	"github.com/BUAA-SE-Compiling/natrium/lang/bytecode"
	"github.com/BUAA-SE-Compiling/natrium/lang/machine"
)

// Debug loads a module and drives it from an interactive debugger session
// reading commands from stdio.Stdin and writing to stdio.Stdout, per
// spec.md §6's debug/CLI surface: run, step, finish, backtrace, frame [k],
// breakpoint <fn>[:<off>], remove-breakpoint <id>, list-breakpoints,
// reset, exit.
func (c *Cmd) Debug(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return DebugFile(ctx, stdio, args[0], c.Session)
}

func DebugFile(ctx context.Context, stdio mainer.Stdio, path, sessionPath string) error {
	mod, err := loadModuleFile(path)
	if err != nil {
		return printError(stdio, err)
	}

	sess := &debugSession{}
	if sessionPath != "" {
		if err := sess.load(sessionPath); err != nil && !os.IsNotExist(err) {
			return printError(stdio, err)
		}
	}

	d := &debugger{mod: mod, stdio: stdio, sess: sess}
	if err := d.reset(); err != nil {
		return printError(stdio, err)
	}

	scanner := bufio.NewScanner(stdio.Stdin)
	fmt.Fprintf(stdio.Stdout, "(r0vm-debug) ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			if exit := d.dispatch(ctx, line); exit {
				break
			}
		}
		fmt.Fprintf(stdio.Stdout, "(r0vm-debug) ")
	}

	if sessionPath != "" {
		if err := sess.save(sessionPath); err != nil {
			return printError(stdio, err)
		}
	}
	return nil
}

// debugSession is the part of a debugger's state worth persisting across
// CLI invocations: its breakpoint set.
type debugSession struct {
	Breakpoints []machine.Breakpoint `yaml:"breakpoints"`
}

func (s *debugSession) load(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(buf, s)
}

func (s *debugSession) save(path string) error {
	buf, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

type debugger struct {
	mod   *bytecode.Module
	stdio mainer.Stdio
	sess  *debugSession
	m     *machine.Machine
}

// reset reloads a fresh Machine from the same module, re-arming every
// breakpoint in the session: the spec's "reset" command restarts
// execution without dropping the debugger's breakpoint set.
func (d *debugger) reset() error {
	th := &machine.Thread{Stdout: d.stdio.Stdout, Stderr: d.stdio.Stderr, Stdin: d.stdio.Stdin}
	m, err := machine.Load(d.mod, th)
	if err != nil {
		return err
	}
	d.m = m
	for _, bp := range d.sess.Breakpoints {
		d.m.AddBreakpoint(bp)
	}
	return nil
}

func (d *debugger) dispatch(ctx context.Context, line string) (exit bool) {
	fields := strings.Fields(line)
	cmd := fields[0]
	rest := fields[1:]

	switch cmd {
	case "run":
		d.report(d.m.Continue(ctx))
	case "step":
		_, err := d.m.Step()
		d.report(err)
		d.printLocation()
	case "finish":
		d.finish(ctx)
	case "backtrace":
		d.backtrace()
	case "frame":
		d.frame(rest)
	case "breakpoint":
		d.addBreakpoint(rest)
	case "remove-breakpoint":
		d.removeBreakpoint(rest)
	case "list-breakpoints":
		d.listBreakpoints()
	case "reset":
		d.report(d.reset())
	case "exit":
		return true
	default:
		fmt.Fprintf(d.stdio.Stdout, "unknown command: %s\n", cmd)
	}
	return false
}

func (d *debugger) report(err error) {
	if err != nil {
		fmt.Fprintf(d.stdio.Stdout, "error: %s\n", err)
	}
}

func (d *debugger) printLocation() {
	fmt.Fprintf(d.stdio.Stdout, "fn %d ip %d\n", d.m.Fn(), d.m.IP())
}

// finish runs until the current frame (or a shallower one) is standing
// again, i.e. until the function active at the time of the call returns.
func (d *debugger) finish(ctx context.Context) {
	startDepth := len(d.m.StackTrace())
	err := d.m.RunToEndInspect(ctx, func(mm *machine.Machine) bool {
		return len(mm.StackTrace()) >= startDepth
	})
	d.report(err)
	d.printLocation()
}

func (d *debugger) backtrace() {
	for i, f := range d.m.StackTrace() {
		fmt.Fprintf(d.stdio.Stdout, "#%d  %s+%d\n", i, f.FnName, f.IP)
	}
}

func (d *debugger) frame(args []string) {
	k := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(d.stdio.Stdout, "invalid frame index: %s\n", args[0])
			return
		}
		k = n
	}
	info, err := d.m.DebugFrame(k)
	if err != nil {
		d.report(err)
		return
	}
	fmt.Fprintf(d.stdio.Stdout, "#%d  %s+%d  sp=%d bp=%d\n", k, info.FnName, info.IP, info.SP, info.BP)
}

func (d *debugger) addBreakpoint(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.stdio.Stdout, "usage: breakpoint <fn>[:<off>]")
		return
	}
	fn, off, err := parseBreakpointSpec(args[0])
	if err != nil {
		fmt.Fprintln(d.stdio.Stdout, err)
		return
	}
	bp := machine.Breakpoint{Fn: fn, IP: off}
	d.m.AddBreakpoint(bp)
	d.sess.Breakpoints = d.m.ListBreakpoints()
}

func parseBreakpointSpec(spec string) (fn uint32, off int, err error) {
	parts := strings.SplitN(spec, ":", 2)
	n, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid function id %q", parts[0])
	}
	fn = uint32(n)
	if len(parts) == 2 {
		o, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid instruction offset %q", parts[1])
		}
		off = o
	}
	return fn, off, nil
}

// removeBreakpoint takes the 0-based index into list-breakpoints' sorted
// output, since s0 breakpoints have no identity beyond (fn, ip).
func (d *debugger) removeBreakpoint(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.stdio.Stdout, "usage: remove-breakpoint <id>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(d.stdio.Stdout, "invalid id: %s\n", args[0])
		return
	}
	list := d.m.ListBreakpoints()
	if id < 0 || id >= len(list) {
		fmt.Fprintf(d.stdio.Stdout, "no such breakpoint: %d\n", id)
		return
	}
	d.m.RemoveBreakpoint(list[id])
	d.sess.Breakpoints = d.m.ListBreakpoints()
}

func (d *debugger) listBreakpoints() {
	for i, bp := range d.m.ListBreakpoints() {
		fmt.Fprintf(d.stdio.Stdout, "%d: fn %d ip %d\n", i, bp.Fn, bp.IP)
	}
}
