package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAddUpvalueEnforcesMaxUpvalues mirrors addLocal's MaxLocals enforcement:
// addUpvalue must refuse a frame's 257th distinct captured variable instead
// of growing the slice without bound.
func TestAddUpvalueEnforcesMaxUpvalues(t *testing.T) {
	c := &Compiler{}
	f := &frame{}

	for i := 0; i < MaxUpvalues; i++ {
		slot := c.addUpvalue(f, i, true)
		assert.Equal(t, i, slot)
	}
	assert.Empty(t, c.errors)
	assert.Len(t, f.upvalues, MaxUpvalues)

	slot := c.addUpvalue(f, MaxUpvalues, true)
	assert.Equal(t, 0, slot)
	assert.Len(t, f.upvalues, MaxUpvalues, "overflow must not grow past the limit")
	if assert.Len(t, c.errors, 1) {
		assert.Contains(t, c.errors[0].Message, "Too many closure variables")
	}
}

// TestAddUpvalueDedupsExistingEntryEvenNearLimit confirms a repeat capture
// of an already-recorded (index, isLocal) pair is free, not counted as a
// second slot - so filling a frame with MaxUpvalues distinct upvalues and
// then re-resolving one of them never trips the overflow error.
func TestAddUpvalueDedupsExistingEntryEvenNearLimit(t *testing.T) {
	c := &Compiler{}
	f := &frame{}
	for i := 0; i < MaxUpvalues; i++ {
		c.addUpvalue(f, i, true)
	}
	slot := c.addUpvalue(f, 0, true)
	assert.Equal(t, 0, slot)
	assert.Empty(t, c.errors)
}
