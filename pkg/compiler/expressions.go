package compiler

import (
	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/lexer"
	"github.com/kristofer/smog/pkg/value"
)

func (c *Compiler) number(canAssign bool) {
	c.emitConstant(value.FromNumber(c.parseNumber()))
}

func (c *Compiler) string(canAssign bool) {
	s := c.host.InternString(c.prev.Lexeme)
	c.emitConstant(value.FromObject(s))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Type {
	case lexer.TokenFalse:
		c.emitOp(chunk.OpFalse)
	case lexer.TokenTrue:
		c.emitOp(chunk.OpTrue)
	case lexer.TokenNil:
		c.emitOp(chunk.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.prev.Type
	c.parsePrecedence(PrecUnary)
	switch opType {
	case lexer.TokenMinus:
		c.emitOp(chunk.OpNegate)
	case lexer.TokenBang:
		c.emitOp(chunk.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.prev.Type
	rule := getRule(opType)
	c.parsePrecedence(rule.precedence + 1)
	switch opType {
	case lexer.TokenPlus:
		c.emitOp(chunk.OpAdd)
	case lexer.TokenMinus:
		c.emitOp(chunk.OpSub)
	case lexer.TokenStar:
		c.emitOp(chunk.OpMul)
	case lexer.TokenSlash:
		c.emitOp(chunk.OpDiv)
	case lexer.TokenPercent:
		c.emitOp(chunk.OpMod)
	case lexer.TokenEqualEqual:
		c.emitOp(chunk.OpEqual)
	case lexer.TokenBangEqual:
		c.emitOp(chunk.OpNotEqual)
	case lexer.TokenGreater:
		c.emitOp(chunk.OpGreater)
	case lexer.TokenGreaterEqual:
		c.emitOp(chunk.OpGreaterEqual)
	case lexer.TokenLess:
		c.emitOp(chunk.OpLess)
	case lexer.TokenLessEqual:
		c.emitOp(chunk.OpLessEqual)
	}
}

// and_ short-circuits: if the left operand is falsey, jump past the right
// operand, leaving the falsey value on the stack as the result.
func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

// or_ short-circuits the opposite way: if the left operand is truthy, skip
// past the pop and the right operand, leaving the truthy value as the
// result.
func (c *Compiler) or_(canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpTrue)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(lexer.TokenRightParen) {
		for {
			c.expression()
			if argc == MaxArguments {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(lexer.TokenComma) {
				break
			}
		}
	}
	c.consume(lexer.TokenRightParen, "Expect ')' after arguments.")
	return argc
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(chunk.OpCall, byte(argc))
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(lexer.TokenIdentifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.prev.Lexeme)

	switch {
	case canAssign && c.match(lexer.TokenEqual):
		c.expression()
		c.emitOpByte(chunk.OpSetProperty, byte(name))
	case c.match(lexer.TokenLeftParen):
		argc := c.argumentList()
		c.emitOp(chunk.OpInvoke)
		c.emitByte(byte(name))
		c.emitByte(byte(argc))
	default:
		c.emitOpByte(chunk.OpGetProperty, byte(name))
	}
}

func (c *Compiler) this(canAssign bool) {
	if c.cc == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

func (c *Compiler) super(canAssign bool) {
	switch {
	case c.cc == nil:
		c.error("Can't use 'super' outside of a class.")
	case !c.cc.hasSuper:
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	c.consume(lexer.TokenIdentifier, "Expect superclass method name.")
	name := c.identifierConstant(c.prev.Lexeme)

	c.namedVariable("this", false)
	if c.match(lexer.TokenLeftParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitOp(chunk.OpSuperInvoke)
		c.emitByte(byte(name))
		c.emitByte(byte(argc))
	} else {
		c.namedVariable("super", false)
		c.emitOpByte(chunk.OpGetSuper, byte(name))
	}
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.prev.Lexeme, canAssign)
}

// namedVariable resolves name against locals, then enclosing-frame
// upvalues, then falls back to a global, and emits the matching GET or (if
// canAssign and an `=` follows) SET instruction.
func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.Op
	var arg int
	isConst := false

	if slot, cst, ok := c.resolveLocal(c.cf, name); ok {
		getOp, setOp, arg, isConst = chunk.OpGetLocal, chunk.OpSetLocal, slot, cst
	} else if slot, ok := c.resolveUpvalue(c.cf, name); ok {
		getOp, setOp, arg = chunk.OpGetUpvalue, chunk.OpSetUpvalue, slot
	} else {
		arg = c.host.ResolveGlobal(name)
		isConst = c.host.IsGlobalConst(arg)
		if arg <= 0xff {
			getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
		} else {
			getOp, setOp = chunk.OpGetGlobalLong, chunk.OpSetGlobalLong
		}
	}

	if canAssign && c.match(lexer.TokenEqual) {
		if isConst {
			c.error("Cannot assign to a const variable.")
		}
		c.expression()
		c.emitVariableOp(setOp, arg)
		return
	}
	c.emitVariableOp(getOp, arg)
}

func (c *Compiler) emitVariableOp(op chunk.Op, arg int) {
	switch op {
	case chunk.OpGetGlobalLong, chunk.OpSetGlobalLong:
		c.emitOp(op)
		c.emitByte(byte(arg >> 8))
		c.emitByte(byte(arg))
	default:
		c.emitOpByte(op, byte(arg))
	}
}
