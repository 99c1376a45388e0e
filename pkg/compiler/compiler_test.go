package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/smog/pkg/compiler"
	"github.com/kristofer/smog/pkg/object"
	"github.com/kristofer/smog/pkg/value"
)

// fakeHost is a minimal compiler.Host for tests that don't need a whole VM.
type fakeHost struct {
	slots  map[string]int
	names  []string
	consts map[int]bool
}

func newFakeHost() *fakeHost {
	return &fakeHost{slots: map[string]int{}, consts: map[int]bool{}}
}

func (h *fakeHost) InternString(s string) *object.Object {
	return object.NewString(s, value.HashString(s), false)
}

func (h *fakeHost) ResolveGlobal(name string) int {
	if slot, ok := h.slots[name]; ok {
		return slot
	}
	slot := len(h.names)
	h.slots[name] = slot
	h.names = append(h.names, name)
	return slot
}

func (h *fakeHost) MarkGlobalConst(slot int)     { h.consts[slot] = true }
func (h *fakeHost) IsGlobalConst(slot int) bool  { return h.consts[slot] }

func TestCompileSimpleProgram(t *testing.T) {
	fn, err := compiler.Compile(`var x = 1; print x;`, newFakeHost())
	require.NoError(t, err)

	disasm := fn.FunctionChunk().Disassemble("script")
	assert.Contains(t, disasm, "DEFINE_GLOBAL")
	assert.Contains(t, disasm, "GET_GLOBAL")
	assert.Contains(t, disasm, "PRINT")
}

func TestCompileFunctionEmitsClosure(t *testing.T) {
	fn, err := compiler.Compile(`
		fun add(a, b) { return a + b; }
		print add(1, 2);
	`, newFakeHost())
	require.NoError(t, err)

	disasm := fn.FunctionChunk().Disassemble("script")
	assert.Contains(t, disasm, "CLOSURE")
	assert.Contains(t, disasm, "CALL")
}

func TestCompileReportsSyntaxError(t *testing.T) {
	_, err := compiler.Compile(`1 + ;`, newFakeHost())
	require.Error(t, err)
	errs, ok := err.(compiler.Errors)
	require.True(t, ok)
	assert.NotEmpty(t, errs)
}

func TestConstReassignmentIsCompileError(t *testing.T) {
	_, err := compiler.Compile(`const x = 1; x = 2;`, newFakeHost())
	require.Error(t, err)
}

func TestConstWithoutInitializerIsCompileError(t *testing.T) {
	_, err := compiler.Compile(`const x;`, newFakeHost())
	require.Error(t, err)
}

func TestSelfReferencingLocalInitializerIsCompileError(t *testing.T) {
	_, err := compiler.Compile(`{ var a = a; }`, newFakeHost())
	require.Error(t, err)
}

func TestReturnOutsideFunctionIsCompileError(t *testing.T) {
	_, err := compiler.Compile(`return 1;`, newFakeHost())
	require.Error(t, err)
}

func TestBreakOutsideLoopIsCompileError(t *testing.T) {
	_, err := compiler.Compile(`break;`, newFakeHost())
	require.Error(t, err)
}

func TestSwitchWithDefaultNotLastCompiles(t *testing.T) {
	_, err := compiler.Compile(`
		var x = 1;
		switch (x) {
			default: print "d";
			case 1: print "one";
		}
	`, newFakeHost())
	require.NoError(t, err)
}

func TestClassInheritingFromItselfIsCompileError(t *testing.T) {
	_, err := compiler.Compile(`class Foo < Foo {}`, newFakeHost())
	require.Error(t, err)
}

func TestOneErrorDoesNotCascadeDueToSynchronize(t *testing.T) {
	_, err := compiler.Compile(`
		var a = ;
		var b = 2;
		print b;
	`, newFakeHost())
	require.Error(t, err)
	errs := err.(compiler.Errors)
	assert.Len(t, errs, 1)
}
