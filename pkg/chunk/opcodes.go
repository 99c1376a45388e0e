// Package chunk defines smog's bytecode chunk representation: a
// byte-addressable instruction stream, its constant pool, and a
// run-length-encoded source-line table.
//
// Architecture:
//
// A Chunk is the compiled body of exactly one smog function (the implicit
// top-level script counts as a function). The compiler appends bytes to a
// Chunk one instruction at a time; the VM later walks those bytes with an
// instruction pointer, exactly as clox does. This is deliberately lower
// level than the teacher's []Instruction{Op, Operand} slice - bytes here,
// not structs - because spec's instruction set mixes 0, 1, and 2-byte
// operands per opcode (OP_CONSTANT_LONG, jump offsets, per-upvalue CLOSURE
// operands) in a way a uniform Instruction struct can't represent compactly.
package chunk

// Op is a single-byte bytecode instruction opcode.
type Op byte

const (
	OpConstant     Op = iota // idx(1)   push constants[idx]
	OpConstantLong           // idx(2)   push constants[idx]
	OpNil                    // —        push nil
	OpTrue                   // —        push true
	OpFalse                  // —        push false
	OpPop                    // —        drop 1
	OpPopN                   // n(2)     drop n
	OpDup                    // —        push top again

	OpEqual        // —   pop 2, push bool
	OpNotEqual     // —   pop 2, push bool
	OpGreater      // —   pop 2 numbers, push bool
	OpGreaterEqual // —   pop 2 numbers, push bool
	OpLess         // —   pop 2 numbers, push bool
	OpLessEqual    // —   pop 2 numbers, push bool

	OpNegate // —   negate top number
	OpNot    // —   replace top with bool(falsey(top))

	OpAdd // number+number or string+string
	OpSub
	OpMul
	OpDiv
	OpMod

	OpPrint // —   pop, print

	OpDefineGlobal     // idx(1)  globals[idx] = pop()
	OpDefineGlobalLong // idx(2)
	OpGetGlobal        // idx(1)  push globals[idx]
	OpGetGlobalLong    // idx(2)
	OpSetGlobal        // idx(1)  globals[idx] = peek(0)
	OpSetGlobalLong    // idx(2)

	OpGetLocal // slot(1)  push stack[frame+slot]
	OpSetLocal // slot(1)  stack[frame+slot] = peek(0)

	OpGetUpvalue // slot(1)  push *closure.Upvalues[slot].Location
	OpSetUpvalue // slot(1)  *closure.Upvalues[slot].Location = peek(0)
	OpCloseUpvalue

	OpJump      // off(2)  ip += off
	OpJumpBack  // off(2)  ip -= off
	OpJumpTrue  // off(2)  conditional on peek(0), does not pop
	OpJumpFalse // off(2)  conditional on peek(0), does not pop

	OpCall // argc(1)

	OpClosure // fnIdx(2), then per-upvalue: isLocal(1) index(2)

	OpClass        // nameIdx(1)
	OpMethod       // nameIdx(1)
	OpInvoke       // nameIdx(1) argc(1)
	OpSuperInvoke  // nameIdx(1) argc(1)
	OpInherit      // —
	OpGetProperty  // nameIdx(1)
	OpSetProperty  // nameIdx(1)
	OpGetSuper     // nameIdx(1)

	OpReturn
)

var opNames = [...]string{
	OpConstant:         "CONSTANT",
	OpConstantLong:     "CONSTANT_LONG",
	OpNil:               "NIL",
	OpTrue:              "TRUE",
	OpFalse:             "FALSE",
	OpPop:               "POP",
	OpPopN:              "POPN",
	OpDup:               "DUP",
	OpEqual:             "EQ",
	OpNotEqual:          "NEQ",
	OpGreater:           "GREATER",
	OpGreaterEqual:      "GREATEREQ",
	OpLess:              "LESS",
	OpLessEqual:         "LESSEQ",
	OpNegate:            "NEGATE",
	OpNot:               "NOT",
	OpAdd:               "ADD",
	OpSub:               "SUB",
	OpMul:               "MUL",
	OpDiv:               "DIV",
	OpMod:               "MOD",
	OpPrint:             "PRINT",
	OpDefineGlobal:      "DEFINE_GLOBAL",
	OpDefineGlobalLong:  "DEFINE_GLOBAL_LONG",
	OpGetGlobal:         "GET_GLOBAL",
	OpGetGlobalLong:     "GET_GLOBAL_LONG",
	OpSetGlobal:         "SET_GLOBAL",
	OpSetGlobalLong:     "SET_GLOBAL_LONG",
	OpGetLocal:          "GET_LOCAL",
	OpSetLocal:          "SET_LOCAL",
	OpGetUpvalue:        "GET_UPVALUE",
	OpSetUpvalue:        "SET_UPVALUE",
	OpCloseUpvalue:      "CLOSE_UPVALUE",
	OpJump:              "JMP",
	OpJumpBack:          "JMP_BACK",
	OpJumpTrue:          "JMP_TRUE",
	OpJumpFalse:         "JMP_FALSE",
	OpCall:              "CALL",
	OpClosure:           "CLOSURE",
	OpClass:             "CLASS",
	OpMethod:            "METHOD",
	OpInvoke:            "INVOKE",
	OpSuperInvoke:       "SUPER_INVOKE",
	OpInherit:           "INHERIT",
	OpGetProperty:       "GET_PROPERTY",
	OpSetProperty:       "SET_PROPERTY",
	OpGetSuper:          "GET_SUPER",
	OpReturn:            "RETURN",
}

// String returns the opcode's mnemonic, used by the disassembler and by
// runtime-error messages that name the offending instruction.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}
