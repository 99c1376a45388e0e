package vm

import (
	"fmt"
	"strings"
)

// StackFrame captures one call frame's position at the moment a runtime
// error was raised - grounded on the teacher's pkg/vm/errors.go, adapted
// from its message-send shape (Name/Selector) to bytecode call frames
// (Name/Line).
type StackFrame struct {
	Name string // function/method name, or "<script>"
	Line int    // source line the frame's IP mapped to
}

// RuntimeError is what Run returns when bytecode execution fails: a
// message plus the call stack at the moment of failure, innermost frame
// first.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.StackTrace) > 0 {
		b.WriteString("\n\nStack trace:")
		for _, frame := range e.StackTrace {
			fmt.Fprintf(&b, "\n  [line %d] in %s", frame.Line, frame.Name)
		}
	}
	return b.String()
}

func newRuntimeError(message string, trace []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: trace}
}
