package chunk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/chunk"
	"github.com/kristofer/smog/pkg/value"
)

func TestWriteAndLen(t *testing.T) {
	ch := chunk.New()
	ch.WriteOp(chunk.OpNil, 1)
	ch.WriteOp(chunk.OpReturn, 1)
	assert.Equal(t, 2, ch.Len())
}

func TestWriteUint16BigEndian(t *testing.T) {
	ch := chunk.New()
	ch.WriteUint16(0x1234, 1)
	assert.Equal(t, []byte{0x12, 0x34}, ch.Code)
}

func TestAddConstant(t *testing.T) {
	ch := chunk.New()
	idx, ok := ch.AddConstant(value.FromNumber(42))
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	idx, ok = ch.AddConstant(value.FromNumber(7))
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestAddConstantRejectsOverflow(t *testing.T) {
	ch := chunk.New()
	for i := 0; i < chunk.MaxConstants; i++ {
		_, ok := ch.AddConstant(value.FromNumber(float64(i)))
		require.True(t, ok)
	}
	_, ok := ch.AddConstant(value.FromNumber(0))
	assert.False(t, ok)
}

func TestLineAtTracksMultiByteInstructionsOnOneLine(t *testing.T) {
	ch := chunk.New()
	ch.WriteOp(chunk.OpConstant, 5)
	ch.Write(0, 5) // operand byte, same line
	ch.WriteOp(chunk.OpReturn, 6)

	assert.Equal(t, 5, ch.LineAt(0))
	assert.Equal(t, 5, ch.LineAt(1))
	assert.Equal(t, 6, ch.LineAt(2))
}

func TestLineAtEmptyChunk(t *testing.T) {
	ch := chunk.New()
	assert.Equal(t, 0, ch.LineAt(0))
}

func TestFromPartsRoundTrip(t *testing.T) {
	orig := chunk.New()
	orig.WriteOp(chunk.OpConstant, 1)
	orig.Write(0, 1)
	orig.AddConstant(value.FromNumber(3))

	rebuilt := chunk.FromParts(orig.Code, orig.Constants, orig.Lines())
	assert.Equal(t, orig.Code, rebuilt.Code)
	assert.Equal(t, orig.Constants, rebuilt.Constants)
	assert.Equal(t, orig.Lines(), rebuilt.Lines())
	assert.Equal(t, orig.LineAt(0), rebuilt.LineAt(0))
}

func TestDisassembleSimpleInstruction(t *testing.T) {
	ch := chunk.New()
	ch.WriteOp(chunk.OpReturn, 1)
	out := ch.Disassemble("test")
	assert.Contains(t, out, "test")
	assert.Contains(t, out, "RETURN")
}
