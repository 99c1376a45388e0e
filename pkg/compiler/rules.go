package compiler

import "github.com/kristofer/smog/pkg/lexer"

// Precedence levels, low to high, per spec.md §4.3's precedence-climbing
// table - identical ordering to clox's Precedence enum.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssignment
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is the Pratt table: one row per token type naming its prefix
// handler (how to start an expression at this token), infix handler (how
// to continue one once a left operand exists), and the binding power of
// that infix use. Absent entries default to the zero parseRule
// (PrecNone, no handlers), which parsePrecedence treats as "not an
// expression token here".
var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:    {prefix: (*Compiler).grouping, infix: (*Compiler).call, precedence: PrecCall},
		lexer.TokenDot:          {infix: (*Compiler).dot, precedence: PrecCall},
		lexer.TokenMinus:        {prefix: (*Compiler).unary, infix: (*Compiler).binary, precedence: PrecTerm},
		lexer.TokenPlus:         {infix: (*Compiler).binary, precedence: PrecTerm},
		lexer.TokenSlash:        {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.TokenStar:         {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.TokenPercent:      {infix: (*Compiler).binary, precedence: PrecFactor},
		lexer.TokenBang:         {prefix: (*Compiler).unary},
		lexer.TokenBangEqual:    {infix: (*Compiler).binary, precedence: PrecEquality},
		lexer.TokenEqualEqual:   {infix: (*Compiler).binary, precedence: PrecEquality},
		lexer.TokenGreater:      {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.TokenGreaterEqual: {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.TokenLess:         {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.TokenLessEqual:    {infix: (*Compiler).binary, precedence: PrecComparison},
		lexer.TokenIdentifier:   {prefix: (*Compiler).variable},
		lexer.TokenString:       {prefix: (*Compiler).string},
		lexer.TokenNumber:       {prefix: (*Compiler).number},
		lexer.TokenAnd:          {infix: (*Compiler).and_, precedence: PrecAnd},
		lexer.TokenOr:           {infix: (*Compiler).or_, precedence: PrecOr},
		lexer.TokenFalse:        {prefix: (*Compiler).literal},
		lexer.TokenTrue:         {prefix: (*Compiler).literal},
		lexer.TokenNil:          {prefix: (*Compiler).literal},
		lexer.TokenThis:         {prefix: (*Compiler).this},
		lexer.TokenSuper:        {prefix: (*Compiler).super},
	}
}

func getRule(t lexer.TokenType) parseRule { return rules[t] }

// expression compiles one expression at PrecAssignment, the lowest level
// that still excludes bare comma/statement forms.
func (c *Compiler) expression() { c.parsePrecedence(PrecAssignment) }

// parsePrecedence implements the core Pratt loop: read one prefix
// expression, then keep folding in infix operators whose precedence is at
// least minPrec.
func (c *Compiler) parsePrecedence(minPrec Precedence) {
	c.advance()
	prefix := getRule(c.prev.Type).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := minPrec <= PrecAssignment
	prefix(c, canAssign)

	for minPrec <= getRule(c.cur.Type).precedence {
		c.advance()
		infix := getRule(c.prev.Type).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(lexer.TokenEqual) {
		c.error("Invalid assignment target.")
	}
}
