package compiler

import (
	"fmt"

	"github.com/BUAA-SE-Compiling/natrium/lang/token"
)

// Kind enumerates the code generator's error taxonomy. Every failure the
// generator can report is one of these, which lets embedders branch on
// category rather than parsing message text.
type Kind uint8

const (
	_ Kind = iota
	TypeMismatch
	NotLValue
	UnknownType
	NotAllRoutesReturn
	Redefinition
	UndefinedName
	ArityMismatch
	InvalidCalculation
	NotAFunction
	VoidValueUsed
	InvalidBreakContinue
)

var kindNames = [...]string{
	TypeMismatch:         "TypeMismatch",
	NotLValue:            "NotLValue",
	UnknownType:          "UnknownType",
	NotAllRoutesReturn:   "NotAllRoutesReturn",
	Redefinition:         "Redefinition",
	UndefinedName:        "UndefinedName",
	ArityMismatch:        "ArityMismatch",
	InvalidCalculation:   "InvalidCalculation",
	NotAFunction:         "NotAFunction",
	VoidValueUsed:        "VoidValueUsed",
	InvalidBreakContinue: "InvalidBreakContinue",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Error"
}

// Error is the error type returned by every generator entry point. Span
// locates the offending construct in the source AST, per spec.md section 7;
// it is the zero Span for errors that have no single source location (e.g.
// a missing main function). Expected and Got are only populated for
// TypeMismatch, where they carry the two types involved in structured form
// rather than just the rendered message.
type Error struct {
	Kind     Kind
	Msg      string
	Span     token.Span
	Expected string
	Got      string
}

func (e *Error) Error() string {
	if e.Span.Start.Unknown() {
		return e.Kind.String() + ": " + e.Msg
	}
	line, col := e.Span.Start.LineCol()
	return fmt.Sprintf("%d:%d: %s: %s", line, col, e.Kind.String(), e.Msg)
}

// spanned is any AST value that reports its own source extent; it covers
// both ast.Node and ast.Param, which carries a Span but is not itself a
// Node.
type spanned interface {
	Span() (start, end token.Pos)
}

// spanOf reads a node's Span into a token.Span, the form Error carries it in.
func spanOf(n spanned) token.Span {
	start, end := n.Span()
	return token.Span{Start: start, End: end}
}

func newError(kind Kind, sp token.Span, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Span: sp, Msg: fmt.Sprintf(format, args...)}
}

// newTypeMismatch builds a TypeMismatch error carrying the expected and
// actual type names as structured fields, per spec.md section 8.
func newTypeMismatch(sp token.Span, expected, got string) *Error {
	return &Error{
		Kind:     TypeMismatch,
		Span:     sp,
		Expected: expected,
		Got:      got,
		Msg:      fmt.Sprintf("type mismatch: expected %s, got %s", expected, got),
	}
}

func newNotAllRoutesReturn(sp token.Span) *Error {
	return &Error{Kind: NotAllRoutesReturn, Span: sp, Msg: "not all routes through the function return"}
}
