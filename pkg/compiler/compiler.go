// Package compiler implements smog's single-pass Pratt-style compiler: it
// walks the lexer's token stream exactly once and emits bytecode directly,
// with no intermediate AST.
//
// This is a deliberate divergence from the teacher's (kristofer/smog)
// pipeline, which tokenizes to a separate AST (pkg/ast) via a recursive-
// descent parser (pkg/parser) and only then lowers the AST to bytecode in
// a third pass (pkg/compiler). spec.md requires the clox architecture: one
// pass, token stream to bytecode, no tree in between. What's kept from the
// teacher is the *technique* - a stateful single-token/lookahead walker
// over the scanner, precedence-aware expression parsing, and panic-mode
// error recovery - not the three-stage shape.
package compiler

import (
	"strconv"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/lexer"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// Limits, per spec.md §6's configurable-limits table.
const (
	MaxLocals    = 256
	MaxUpvalues  = 256
	MaxParams    = 255
	MaxArguments = 255
	MaxCallDepth = 64 // enforced by pkg/vm, named here for documentation symmetry
)

// Host is the subset of VM behavior the compiler needs: interning string
// bytes into heap objects, and resolving a global variable's name to its
// stable compile-time slot index. Declaring this as an interface (rather
// than importing pkg/vm) keeps pkg/compiler a leaf: pkg/vm imports
// pkg/compiler, not the other way around, and the same *vm.VM instance
// that will run the bytecode also owns the intern table and global index
// the compiler must share with it (global slot numbers and interned
// constant strings are meaningless unless both compiler and VM agree on
// them).
type Host interface {
	// InternString returns the canonical object for s, allocating and
	// registering a new one only if an equal string isn't already interned.
	InternString(s string) *object.Object
	// ResolveGlobal returns the stable slot index for the global variable
	// named name, assigning a new one (backed by value.Empty until some
	// DEFINE_GLOBAL runs) if this is the first time it's been referenced.
	ResolveGlobal(name string) int
	// MarkGlobalConst records slot as `const`-declared. Tracked on the host
	// rather than per-Compile-call state because the REPL compiles one line
	// at a time - const-ness of a global has to outlive the Compile call
	// that declared it.
	MarkGlobalConst(slot int)
	// IsGlobalConst reports whether slot was declared `const`.
	IsGlobalConst(slot int) bool
}

// FunctionKind distinguishes the top-level script, a free function, a
// method, and a class's `init` method (whose implicit return value is
// `this`, not nil).
type FunctionKind int

const (
	KindScript FunctionKind = iota
	KindFunction
	KindMethod
	KindInitializer
)

type local struct {
	name       string
	depth      int // -1: declared, not yet initialized
	isConst    bool
	isCaptured bool
}

type upvalueDesc struct {
	index   int
	isLocal bool
}

// breakableKind distinguishes a loop (supports break and continue) from a
// switch (supports break only) on the nesting stack break/continue search.
type breakableKind int

const (
	breakableLoop breakableKind = iota
	breakableSwitch
)

type breakable struct {
	kind          breakableKind
	loopStart     int   // loop only: JMP_BACK target for `continue`
	breakJumps    []int // offsets of JMP operands pending patch to "after this construct"
	continueJumps []int // loop only: offsets of JMP operands pending patch to loopStart
}

// classState tracks the class currently being compiled, for `super` and
// self-reference validation, threaded the same way frame is (one per
// nested class declaration - smog classes don't nest, but a method body can
// itself declare functions, so classState must survive under those).
type classState struct {
	enclosing   *classState
	hasSuper    bool
	name        string
}

// frame is one nested function/method compilation's private state - what
// clox's `Compiler` struct holds, named here to avoid colliding with the
// Compiler type below, which is the whole multi-frame compile session.
type frame struct {
	enclosing *frame

	fn   *object.Object // TypeFunction under construction
	kind FunctionKind

	locals     []local
	scopeDepth int
	upvalues   []upvalueDesc

	breakables []breakable
}

func newFrame(enclosing *frame, kind FunctionKind, fn *object.Object) *frame {
	f := &frame{enclosing: enclosing, kind: kind, fn: fn}
	// Slot 0 is reserved for the receiver (methods) or is simply unused
	// (functions/script); it is never named by user code.
	recv := ""
	if kind == KindMethod || kind == KindInitializer {
		recv = "this"
	}
	f.locals = append(f.locals, local{name: recv, depth: 0})
	return f
}

// Compiler drives a single Compile call: one Lexer, a stack of frames
// (innermost at the end), and accumulated diagnostics.
type Compiler struct {
	host Host

	lex        *lexer.Lexer
	cur, prev  lexer.Token
	hadError   bool
	panicMode  bool
	errors     Errors

	cf *frame // current (innermost) frame
	cc *classState
}

// Compile compiles source into a top-level function object (the "script"),
// or returns every CompileError collected. No bytecode runs as a side
// effect of Compile; the caller is responsible for invoking the returned
// function.
func Compile(source string, host Host) (*object.Object, error) {
	c := &Compiler{host: host, lex: lexer.New(source)}
	fn := object.NewFunction()
	fn.SetFunctionName(nil)
	c.cf = newFrame(nil, KindScript, fn)

	c.advance()
	for !c.match(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenEOF, "Expect end of expression.")
	c.emitReturn()

	if len(c.errors) > 0 {
		return nil, c.errors
	}
	fn.SetFunctionUpvalueCount(len(c.cf.upvalues))
	return fn, nil
}

// --- token stream -----------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.lex.ScanToken()
		if c.cur.Type != lexer.TokenIllegal {
			break
		}
		c.errorAtCurrent(c.cur.Lexeme)
	}
}

func (c *Compiler) check(t lexer.TokenType) bool { return c.cur.Type == t }

func (c *Compiler) match(t lexer.TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t lexer.TokenType, message string) {
	if c.cur.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

func (c *Compiler) errorAtCurrent(message string) { c.errorAt(c.cur, message) }
func (c *Compiler) error(message string)          { c.errorAt(c.prev, message) }

func (c *Compiler) errorAt(tok lexer.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	c.errors = append(c.errors, &CompileError{
		Line: tok.Line, Col: tok.Col, Lexeme: tok.Lexeme,
		AtEnd: tok.Type == lexer.TokenEOF, Message: message,
	})
}

// synchronize discards tokens until it reaches a likely statement boundary,
// so one syntax error doesn't cascade into a wall of spurious follow-on
// errors.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.cur.Type != lexer.TokenEOF {
		if c.prev.Type == lexer.TokenSemicolon {
			return
		}
		switch c.cur.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenConst,
			lexer.TokenFor, lexer.TokenIf, lexer.TokenWhile, lexer.TokenSwitch,
			lexer.TokenPrint, lexer.TokenReturn:
			return
		}
		c.advance()
	}
}

// --- emission helpers ---------------------------------------------------

func (c *Compiler) curChunk() *chunk.Chunk { return c.cf.fn.FunctionChunk() }

func (c *Compiler) emitByte(b byte)        { c.curChunk().Write(b, c.prev.Line) }
func (c *Compiler) emitOp(op chunk.Op)     { c.curChunk().WriteOp(op, c.prev.Line) }
func (c *Compiler) emitOpByte(op chunk.Op, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *Compiler) emitReturn() {
	if c.cf.kind == KindInitializer {
		c.emitOpByte(chunk.OpGetLocal, 0) // `init` implicitly returns `this`
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.emitOp(chunk.OpReturn)
}

// emitJump writes op followed by a placeholder 2-byte offset and returns
// the offset of that placeholder, for patchJump to fill in later.
func (c *Compiler) emitJump(op chunk.Op) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.curChunk().Len() - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := c.curChunk().Len() - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
		return
	}
	code := c.curChunk().Code
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump)
}

// emitLoop emits JMP_BACK with the offset needed to land back at loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpJumpBack)
	offset := c.curChunk().Len() - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// emitConstant adds v to the chunk's constant pool and emits the right-size
// CONSTANT instruction to push it.
func (c *Compiler) emitConstant(v value.Value) {
	c.writeConstantOp(chunk.OpConstant, chunk.OpConstantLong, v)
}

func (c *Compiler) writeConstantOp(short, long chunk.Op, v value.Value) {
	idx, ok := c.curChunk().AddConstant(v)
	if !ok {
		c.error("Too many constants in one chunk.")
		return
	}
	if idx <= 0xff {
		c.emitOpByte(short, byte(idx))
	} else {
		c.emitOp(long)
		c.emitByte(byte(idx >> 8))
		c.emitByte(byte(idx))
	}
}

// identifierConstant interns name and adds it to the constant pool,
// returning its index - used for global variable names and property/
// method selectors, all of which the VM looks up by interned string
// identity at runtime.
func (c *Compiler) identifierConstant(name string) int {
	s := c.host.InternString(name)
	idx, ok := c.curChunk().AddConstant(value.FromObject(s))
	if !ok {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (c *Compiler) parseNumber() float64 {
	n, err := strconv.ParseFloat(c.prev.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return 0
	}
	return n
}
