package chunk

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/kristofer/smog/pkg/value"
)

// Disassemble renders the whole chunk as human-readable text, one line per
// instruction, labelled name at the top. Used by `smog disassemble`.
//
// Grouped the way clox's debug.c groups opcodes (simple / constant / byte /
// jump / invoke), adapted from the teacher's instruction-operand formatter
// in vm/debugger.go's formatInstructionOperand.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		var n int
		offset, n = c.disassembleInstruction(&b, offset)
		_ = n
	}
	return b.String()
}

// DisassembleInstruction writes one instruction at offset to w and returns
// the offset of the next instruction. Exposed separately from Disassemble
// so the VM's step debugger (`--debug`) can print the currently
// executing instruction without re-rendering the whole chunk.
func (c *Chunk) DisassembleInstruction(w *strings.Builder, offset int) int {
	next, _ := c.disassembleInstruction(w, offset)
	return next
}

func (c *Chunk) disassembleInstruction(b *strings.Builder, offset int) (int, int) {
	fmt.Fprintf(b, "%04d ", offset)
	line := c.LineAt(offset)
	if offset > 0 && line == c.LineAt(offset-1) {
		fmt.Fprint(b, "   | ")
	} else {
		fmt.Fprintf(b, "%4d ", line)
	}

	op := Op(c.Code[offset])
	switch op {
	case OpConstant:
		return c.constantInstruction(b, op, offset, 1)
	case OpConstantLong:
		return c.constantInstruction(b, op, offset, 2)
	case OpClass, OpMethod, OpGetProperty, OpSetProperty, OpGetSuper:
		return c.constantInstruction(b, op, offset, 1)
	case OpPopN, OpDefineGlobalLong, OpGetGlobalLong, OpSetGlobalLong:
		return c.shortOperandInstruction(b, op, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall,
		OpDefineGlobal, OpGetGlobal, OpSetGlobal:
		return c.byteInstruction(b, op, offset)
	case OpJump, OpJumpTrue, OpJumpFalse:
		return c.jumpInstruction(b, op, offset, 1)
	case OpJumpBack:
		return c.jumpInstruction(b, op, offset, -1)
	case OpInvoke, OpSuperInvoke:
		return c.invokeInstruction(b, op, offset)
	case OpClosure:
		return c.closureInstruction(b, offset)
	default:
		fmt.Fprintf(b, "%s\n", op)
		return offset + 1, 1
	}
}

func (c *Chunk) constantInstruction(b *strings.Builder, op Op, offset, width int) (int, int) {
	var idx int
	if width == 1 {
		idx = int(c.Code[offset+1])
	} else {
		idx = int(binary.BigEndian.Uint16(c.Code[offset+1:]))
	}
	fmt.Fprintf(b, "%-18s %4d '%v'\n", op, idx, c.constantPreview(idx))
	return offset + 1 + width, 1 + width
}

func (c *Chunk) shortOperandInstruction(b *strings.Builder, op Op, offset int) (int, int) {
	n := int(binary.BigEndian.Uint16(c.Code[offset+1:]))
	fmt.Fprintf(b, "%-18s %4d\n", op, n)
	return offset + 3, 3
}

func (c *Chunk) byteInstruction(b *strings.Builder, op Op, offset int) (int, int) {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-18s %4d\n", op, slot)
	return offset + 2, 2
}

func (c *Chunk) jumpInstruction(b *strings.Builder, op Op, offset, sign int) (int, int) {
	jump := int(binary.BigEndian.Uint16(c.Code[offset+1:]))
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-18s %4d -> %d\n", op, offset, target)
	return offset + 3, 3
}

func (c *Chunk) invokeInstruction(b *strings.Builder, op Op, offset int) (int, int) {
	nameIdx := int(c.Code[offset+1])
	argc := int(c.Code[offset+2])
	fmt.Fprintf(b, "%-18s (%d args) %4d '%v'\n", op, argc, nameIdx, c.constantPreview(nameIdx))
	return offset + 3, 3
}

func (c *Chunk) closureInstruction(b *strings.Builder, offset int) (int, int) {
	fnIdx := int(binary.BigEndian.Uint16(c.Code[offset+1:]))
	fmt.Fprintf(b, "%-18s %4d '%v'\n", OpClosure, fnIdx, c.constantPreview(fnIdx))
	next := offset + 3
	upvalCount := c.upvalueCountHint(fnIdx)
	for i := 0; i < upvalCount; i++ {
		isLocal := c.Code[next]
		index := binary.BigEndian.Uint16(c.Code[next+1:])
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", next, kind, index)
		next += 3
	}
	return next, next - offset
}

// upvalueCountHint reads the upvalue count off the function constant at
// idx, if it is one (it always is for a well-formed CLOSURE operand);
// defensively returns 0 if the pool holds something else, so a malformed
// .sg file disassembles without panicking.
func (c *Chunk) upvalueCountHint(idx int) int {
	if idx < 0 || idx >= len(c.Constants) {
		return 0
	}
	if counter, ok := c.Constants[idx].Obj.(interface{ UpvalueCountHint() int }); ok {
		return counter.UpvalueCountHint()
	}
	return 0
}

func (c *Chunk) constantPreview(idx int) string {
	if idx < 0 || idx >= len(c.Constants) {
		return "?"
	}
	return value.Stringify(c.Constants[idx])
}
