package compiler

import "fmt"

// CompileError reports one diagnostic at a specific token. Multiple errors
// can accumulate across a single Compile call (panic-mode recovery keeps
// compiling after the first one, suppressing cascades via synchronize);
// Compile returns every collected error, but guarantees a nil *object.Object
// if the slice is non-empty - no bytecode is ever partially executed.
type CompileError struct {
	Line    int
	Col     int
	Lexeme  string
	AtEnd   bool
	Message string
}

func (e *CompileError) Error() string {
	where := fmt.Sprintf("at '%s'", e.Lexeme)
	if e.AtEnd {
		where = "at end"
	}
	return fmt.Sprintf("[line %d:%d] ERROR %s: %s", e.Line, e.Col, where, e.Message)
}

// Errors aggregates every CompileError collected during one Compile call.
type Errors []*CompileError

func (e Errors) Error() string {
	s := ""
	for i, err := range e {
		if i > 0 {
			s += "\n"
		}
		s += err.Error()
	}
	return s
}
