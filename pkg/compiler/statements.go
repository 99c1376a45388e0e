package compiler

import (
	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/lexer"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// declaration compiles one top-level-or-block item: a class, function, or
// variable declaration, or (falling through) a plain statement. Recovers
// via synchronize after a syntax error so one bad statement doesn't abort
// the whole compile.
func (c *Compiler) declaration() {
	switch {
	case c.match(lexer.TokenClass):
		c.classDeclaration()
	case c.match(lexer.TokenFun):
		c.funDeclaration()
	case c.match(lexer.TokenVar):
		c.varDeclaration(false)
	case c.match(lexer.TokenConst):
		c.varDeclaration(true)
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(lexer.TokenPrint):
		c.printStatement()
	case c.match(lexer.TokenIf):
		c.ifStatement()
	case c.match(lexer.TokenWhile):
		c.whileStatement()
	case c.match(lexer.TokenFor):
		c.forStatement()
	case c.match(lexer.TokenSwitch):
		c.switchStatement()
	case c.match(lexer.TokenReturn):
		c.returnStatement()
	case c.match(lexer.TokenBreak):
		c.breakStatement()
	case c.match(lexer.TokenContinue):
		c.continueStatement()
	case c.match(lexer.TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.declaration()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

// --- variable declarations ----------------------------------------------

func (c *Compiler) varDeclaration(isConst bool) {
	global, name := c.parseVariable("Expect variable name.", isConst)

	if c.match(lexer.TokenEqual) {
		c.expression()
	} else {
		if isConst {
			c.error("Const declaration requires an initializer.")
		}
		c.emitOp(chunk.OpNil)
	}
	c.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	c.defineVariable(global, name, isConst)
}

// parseVariable consumes the variable's name token and, for a local,
// declares it immediately (so self-reference in its own initializer can be
// rejected); for a global it just returns the slot to define later, once
// the initializer is known to have compiled without error.
func (c *Compiler) parseVariable(message string, isConst bool) (slot int, name string) {
	c.consume(lexer.TokenIdentifier, message)
	name = c.prev.Lexeme
	c.declareVariable(name, isConst)
	if c.cf.scopeDepth > 0 {
		return 0, name
	}
	return c.host.ResolveGlobal(name), name
}

func (c *Compiler) defineVariable(global int, name string, isConst bool) {
	if c.cf.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	if isConst {
		if c.host.IsGlobalConst(global) {
			c.error("Cannot re-declare a const variable.")
		}
		c.host.MarkGlobalConst(global)
	}
	if global <= 0xff {
		c.emitOpByte(chunk.OpDefineGlobal, byte(global))
		return
	}
	c.emitOp(chunk.OpDefineGlobalLong)
	c.emitByte(byte(global >> 8))
	c.emitByte(byte(global))
}

// --- functions and classes ------------------------------------------------

func (c *Compiler) funDeclaration() {
	slot, name := c.parseVariable("Expect function name.", false)
	c.markInitialized()
	c.functionBody(KindFunction, name)
	c.defineVariable(slot, name, false)
}

// functionBody compiles a parameter list and `{ ... }` body into a fresh
// frame, then emits CLOSURE back in the enclosing frame to capture
// whatever upvalues the body resolved against it.
func (c *Compiler) functionBody(kind FunctionKind, name string) {
	fn := object.NewFunction()
	nameObj := c.host.InternString(name)
	fn.SetFunctionName(nameObj)

	enclosing := c.cf
	c.cf = newFrame(enclosing, kind, fn)
	c.beginScope()

	c.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !c.check(lexer.TokenRightParen) {
		for {
			fn.SetFunctionArity(fn.FunctionArity() + 1)
			if fn.FunctionArity() > MaxParams {
				c.error("Can't have more than 255 parameters.")
			}
			pslot, pname := c.parseVariable("Expect parameter name.", false)
			c.defineVariable(pslot, pname, false)
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	c.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	c.block()
	c.emitReturn()

	upvalues := c.cf.upvalues
	fn.SetFunctionUpvalueCount(len(upvalues))
	c.cf = enclosing

	fnIdx, ok := c.curChunk().AddConstant(value.FromObject(fn))
	if !ok {
		c.error("Too many constants in one chunk.")
		return
	}
	c.emitOp(chunk.OpClosure)
	c.emitByte(byte(fnIdx >> 8))
	c.emitByte(byte(fnIdx))

	for _, u := range upvalues {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(u.index >> 8))
		c.emitByte(byte(u.index))
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(lexer.TokenIdentifier, "Expect class name.")
	className := c.prev.Lexeme
	nameConst := c.identifierConstant(className)
	c.declareVariable(className, false)

	c.emitOpByte(chunk.OpClass, byte(nameConst))
	classSlot := 0
	if c.cf.scopeDepth == 0 {
		classSlot = c.host.ResolveGlobal(className)
	}
	c.defineVariable(classSlot, className, false)

	cs := &classState{enclosing: c.cc, name: className}
	c.cc = cs

	if c.match(lexer.TokenLess) {
		c.consume(lexer.TokenIdentifier, "Expect superclass name.")
		c.variable(false)
		if c.prev.Lexeme == className {
			c.error("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal("super", false)
		c.markInitialized()

		c.namedVariable(className, false)
		c.emitOp(chunk.OpInherit)
		cs.hasSuper = true
	}

	c.namedVariable(className, false)
	c.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.method()
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	c.emitOp(chunk.OpPop) // class value pushed by namedVariable above

	if cs.hasSuper {
		c.endScope()
	}
	c.cc = cs.enclosing
}

func (c *Compiler) method() {
	c.consume(lexer.TokenIdentifier, "Expect method name.")
	name := c.prev.Lexeme
	nameConst := c.identifierConstant(name)

	kind := KindMethod
	if name == "init" {
		kind = KindInitializer
	}
	c.functionBody(kind, name)
	c.emitOpByte(chunk.OpMethod, byte(nameConst))
}

// --- control flow ---------------------------------------------------------

func (c *Compiler) ifStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(lexer.TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) pushBreakable(kind breakableKind, loopStart int) {
	c.cf.breakables = append(c.cf.breakables, breakable{kind: kind, loopStart: loopStart})
}

func (c *Compiler) popBreakable() breakable {
	bs := c.cf.breakables
	top := bs[len(bs)-1]
	c.cf.breakables = bs[:len(bs)-1]
	return top
}

func (c *Compiler) patchBreaks(b breakable) {
	for _, off := range b.breakJumps {
		c.patchJump(off)
	}
}

func (c *Compiler) whileStatement() {
	loopStart := c.curChunk().Len()
	c.pushBreakable(breakableLoop, loopStart)

	c.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	b := c.cf.breakables[len(c.cf.breakables)-1]
	for _, off := range b.continueJumps {
		c.patchJump(off)
	}
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
	c.patchBreaks(c.popBreakable())
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(lexer.TokenSemicolon):
		// no initializer
	case c.match(lexer.TokenVar):
		c.varDeclaration(false)
	default:
		c.expressionStatement()
	}

	loopStart := c.curChunk().Len()
	exitJump := -1
	if !c.match(lexer.TokenSemicolon) {
		c.expression()
		c.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(chunk.OpJumpFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(lexer.TokenRightParen) {
		bodyJump := c.emitJump(chunk.OpJump)
		incrementStart := c.curChunk().Len()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.pushBreakable(breakableLoop, loopStart)
	c.statement()
	b := c.popBreakable()
	for _, off := range b.continueJumps {
		c.patchJump(off)
	}
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}
	c.patchBreaks(b)
	c.endScope()
}

// switchStatement implements spec.md §4.3's switch, resolving the "default
// clause not written last" open question (see DESIGN.md) by always
// reaching the default body through a back-edge jump emitted after every
// case test has failed, regardless of where `default:` appeared lexically
// - so its position in the clause list never changes the generated code's
// shape, only which forward label the back-edge targets.
func (c *Compiler) switchStatement() {
	c.consume(lexer.TokenLeftParen, "Expect '(' after 'switch'.")
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after switch value.")
	c.consume(lexer.TokenLeftBrace, "Expect '{' before switch body.")

	c.pushBreakable(breakableSwitch, -1)

	hasDefault := false
	defaultBodyStart := -1
	for !c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		switch {
		case c.match(lexer.TokenCase):
			c.emitOp(chunk.OpDup)
			c.expression()
			c.consume(lexer.TokenColon, "Expect ':' after case value.")
			c.emitOp(chunk.OpEqual)
			failJump := c.emitJump(chunk.OpJumpFalse)
			c.emitOp(chunk.OpPop) // discard the matched `true`
			c.emitOp(chunk.OpPop) // discard the switch value
			c.caseBody()
			c.patchJump(failJump)
			c.emitOp(chunk.OpPop) // discard the non-matching `false`
		case c.match(lexer.TokenDefault):
			if hasDefault {
				c.error("Switch statement can only have one default clause.")
			}
			hasDefault = true
			c.consume(lexer.TokenColon, "Expect ':' after 'default'.")
			skip := c.emitJump(chunk.OpJump)
			defaultBodyStart = c.curChunk().Len()
			c.emitOp(chunk.OpPop) // discard the switch value
			c.caseBody()
			c.patchJump(skip)
		default:
			c.error("Expect 'case' or 'default' inside switch body.")
			c.advance()
		}
	}
	c.consume(lexer.TokenRightBrace, "Expect '}' after switch body.")

	if hasDefault {
		c.emitLoop(defaultBodyStart)
	} else {
		c.emitOp(chunk.OpPop) // no clause matched: discard the switch value
	}
	c.patchBreaks(c.popBreakable())
}

// caseBody compiles the statements of one case/default clause up to (but
// not including) the next `case`/`default`/`}`, then emits the implicit
// break every clause ends with (smog has no fallthrough).
func (c *Compiler) caseBody() {
	for !c.check(lexer.TokenCase) && !c.check(lexer.TokenDefault) &&
		!c.check(lexer.TokenRightBrace) && !c.check(lexer.TokenEOF) {
		c.statement()
	}
	b := &c.cf.breakables[len(c.cf.breakables)-1]
	b.breakJumps = append(b.breakJumps, c.emitJump(chunk.OpJump))
}

func (c *Compiler) breakStatement() {
	if len(c.cf.breakables) == 0 {
		c.error("Can't use 'break' outside of a loop or switch.")
		c.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
		return
	}
	b := &c.cf.breakables[len(c.cf.breakables)-1]
	b.breakJumps = append(b.breakJumps, c.emitJump(chunk.OpJump))
	c.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
}

func (c *Compiler) continueStatement() {
	idx := -1
	for i := len(c.cf.breakables) - 1; i >= 0; i-- {
		if c.cf.breakables[i].kind == breakableLoop {
			idx = i
			break
		}
	}
	if idx == -1 {
		c.error("Can't use 'continue' outside of a loop.")
		c.consume(lexer.TokenSemicolon, "Expect ';' after 'continue'.")
		return
	}
	b := &c.cf.breakables[idx]
	b.continueJumps = append(b.continueJumps, c.emitJump(chunk.OpJump))
	c.consume(lexer.TokenSemicolon, "Expect ';' after 'continue'.")
}

func (c *Compiler) returnStatement() {
	if c.cf.kind == KindScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(lexer.TokenSemicolon) {
		c.emitReturn()
		return
	}
	if c.cf.kind == KindInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(chunk.OpReturn)
}
