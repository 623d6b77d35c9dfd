package machine

// libraryFuncs mirrors lang/compiler's libraryFuncs table: the built-in
// I/O primitives CallName resolves by name instead of a statically bound
// Call id. Each entry reuses the same opcode handler a hand-assembled
// direct PrintI/ScanI/etc instruction would run; non-void entries first
// discard the zero slot the caller reserved for $ret (see expr.go's call())
// before pushing the real result, since a library call never opens a real
// frame to truncate that reservation away.
var libraryFuncs = map[string]func(*Machine) error{
	"putint":    func(m *Machine) error { return m.doPrintI() },
	"putdouble": func(m *Machine) error { return m.doPrintF() },
	"putfloat":  func(m *Machine) error { return m.doPrintF() },
	"putchar":   func(m *Machine) error { return m.doPrintC() },
	"putstr":    func(m *Machine) error { return m.doPrintS() },
	"putln":     func(m *Machine) error { return m.doPrintLn() },
	"getchar":   discardRetSlot((*Machine).doScanC),
	"getint":    discardRetSlot((*Machine).doScanI),
	"getdouble": discardRetSlot((*Machine).doScanF),
}

// discardRetSlot wraps a scan handler (which pushes its result) so that it
// first pops the reserved-but-unused $ret slot a 0-argument, non-void
// library call leaves sitting on top of the stack.
func discardRetSlot(scan func(*Machine) error) func(*Machine) error {
	return func(m *Machine) error {
		if _, err := m.pop(); err != nil {
			return err
		}
		return scan(m)
	}
}
