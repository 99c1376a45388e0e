package chunk

import "github.com/kristofer/smog/pkg/value"

// MaxConstants is the largest number of distinct constants one chunk may
// hold; indices beyond it would overflow the 2-byte long-form operand.
const MaxConstants = 65535

// Chunk is the bytecode body of one function: an instruction stream, the
// constant pool instructions like OP_CONSTANT index into, and a source-line
// table for error reporting and disassembly.
type Chunk struct {
	Code      []byte
	Constants []value.Value

	// lines[i] is the number of instruction bytes that originated on
	// source line i+1. Per spec.md §4.1, looking up the line for a given
	// byte offset is a linear prefix-sum scan; this is fine because line
	// lookups only happen on the (cold) error-reporting and disassembly
	// paths.
	lines []int
}

// New returns an empty chunk.
func New() *Chunk { return &Chunk{} }

// Write appends a single byte, originating at source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.noteLine(line, 1)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Op, line int) { c.Write(byte(op), line) }

// WriteUint16 appends a big-endian two-byte operand.
func (c *Chunk) WriteUint16(v uint16, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// noteLine grows the line table as needed and records n more bytes as
// originating on line. Lines are 1-indexed on the source side, 0-indexed in
// the slice: lines[L-1] += n.
func (c *Chunk) noteLine(line, n int) {
	for len(c.lines) < line {
		c.lines = append(c.lines, 0)
	}
	c.lines[line-1] += n
}

// AddConstant appends v to the constant pool and returns its index.
// Returns ok=false once the pool would exceed MaxConstants, which the
// compiler surfaces as a compile error rather than silently truncating an
// index into the wrong slot.
func (c *Chunk) AddConstant(v value.Value) (int, bool) {
	if len(c.Constants) >= MaxConstants {
		return 0, false
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1, true
}

// LineAt recovers the 1-indexed source line that produced the instruction
// byte at offset, by scanning the run-length-encoded line table's prefix
// sums.
func (c *Chunk) LineAt(offset int) int {
	remaining := offset
	for i, n := range c.lines {
		if remaining < n {
			return i + 1
		}
		remaining -= n
	}
	if len(c.lines) == 0 {
		return 0
	}
	return len(c.lines)
}

// Len returns the number of code bytes currently in the chunk, i.e. the
// offset the next Write will land at.
func (c *Chunk) Len() int { return len(c.Code) }

// Lines exposes the run-length line table for pkg/object's .sg
// serialization, which has to round-trip it byte for byte.
func (c *Chunk) Lines() []int { return c.lines }

// FromParts rebuilds a Chunk from its three parts, used by pkg/object's .sg
// decoder once it has read code, constants, and the line table back off
// disk.
func FromParts(code []byte, constants []value.Value, lines []int) *Chunk {
	return &Chunk{Code: code, Constants: constants, lines: lines}
}
